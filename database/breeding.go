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

package database

import (
	"github.com/slimy-crypto/slimy/database/models"
)

func (d *Database) AddBreedingRequest(req *models.BreedingRequest, txn *Txn) error {
	return d.metadata.AddBreedingRequest(req, txn.Metadata())
}

func (d *Database) SetBreedingRequest(req *models.BreedingRequest, txn *Txn) error {
	return d.metadata.SetBreedingRequest(req, txn.Metadata())
}

func (d *Database) GetBreedingRequest(
	requestId string,
	txn *Txn,
) (*models.BreedingRequest, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	return d.metadata.GetBreedingRequest(requestId, txn.Metadata())
}

// GetPendingBreedingRequest returns the unresolved request for a parent pair
func (d *Database) GetPendingBreedingRequest(
	matronId uint64,
	sireId uint64,
	txn *Txn,
) (*models.BreedingRequest, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	return d.metadata.GetPendingBreedingRequest(matronId, sireId, txn.Metadata())
}

// GetPendingBreedingRequests returns every unresolved request, oldest first
func (d *Database) GetPendingBreedingRequests(txn *Txn) ([]models.BreedingRequest, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	return d.metadata.GetPendingBreedingRequests(txn.Metadata())
}
