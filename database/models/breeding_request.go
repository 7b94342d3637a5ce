// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package models

import (
	"errors"

	"github.com/slimy-crypto/slimy/database/types"
)

var ErrBreedingRequestNotFound = errors.New("breeding request not found")

// Uint64 is re-exported for model field declarations
type Uint64 = types.Uint64

const (
	BreedingStatusPending   = "pending"
	BreedingStatusSucceeded = "succeeded"
	BreedingStatusFailed    = "failed"
)

// BreedingRequest is the durable record of one breeding attempt. It is
// created when the request is accepted and updated exactly once when the
// request resolves.
type BreedingRequest struct {
	RequestID   string `gorm:"size:36;uniqueIndex;not null"`
	Status      string `gorm:"size:16;index;not null"`
	Reason      string
	Caller      []byte `gorm:"size:32;index"`
	MatronOwner []byte `gorm:"size:32"`
	SireOwner   []byte `gorm:"size:32"`
	GeneScience []byte `gorm:"size:32"`
	ID          uint   `gorm:"primarykey"`
	MatronID    uint64 `gorm:"index:idx_breeding_request_pair,priority:1"`
	SireID      uint64 `gorm:"index:idx_breeding_request_pair,priority:2"`
	ChildID     uint64
	Fee         Uint64
	RequestedAt int64 // unix milliseconds
	ResolvedAt  int64 // unix milliseconds
}

func (BreedingRequest) TableName() string {
	return "breeding_request"
}
