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

import "errors"

var ErrSlimeNotFound = errors.New("slime not found")

// Slime holds the mutable part of a slime record. The genome, generation,
// parents and birth time never change after minting and live in the blob
// store instead.
type Slime struct {
	Owner          []byte `gorm:"index:idx_slime_owner_id,priority:1;size:32;not null"`
	Approved       []byte `gorm:"size:32"`
	ID             uint64 `gorm:"primarykey;autoIncrement:false;index:idx_slime_owner_id,priority:2"`
	CooldownEnd    int64  // unix milliseconds
	PendingPartner uint64 `gorm:"index"` // zero when no breeding is pending
	PendingFee     Uint64
}

func (Slime) TableName() string {
	return "slime"
}

// IsPending reports whether the slime is locked by an unresolved breeding request
func (s *Slime) IsPending() bool {
	return s.PendingPartner != 0
}
