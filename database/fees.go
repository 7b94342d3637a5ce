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

func (d *Database) GetContractState(txn *Txn) (*models.ContractState, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	return d.metadata.GetContractState(txn.Metadata())
}

func (d *Database) SetContractState(state *models.ContractState, txn *Txn) error {
	return d.metadata.SetContractState(state, txn.Metadata())
}

func (d *Database) GetFeeLedger(txn *Txn) (*models.FeeLedger, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	return d.metadata.GetFeeLedger(txn.Metadata())
}

func (d *Database) SetFeeLedger(fees *models.FeeLedger, txn *Txn) error {
	return d.metadata.SetFeeLedger(fees, txn.Metadata())
}

// GetFunds returns the spendable funds of an address
func (d *Database) GetFunds(address []byte, txn *Txn) (uint64, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	return d.metadata.GetAccountFunds(address, txn.Metadata())
}

func (d *Database) SetFunds(address []byte, funds uint64, txn *Txn) error {
	return d.metadata.SetAccountFunds(address, funds, txn.Metadata())
}
