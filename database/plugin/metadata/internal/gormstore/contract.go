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

package gormstore

import (
	"errors"

	"github.com/slimy-crypto/slimy/database/models"
	"github.com/slimy-crypto/slimy/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetContractState returns the singleton contract state, or an empty one if
// the contract has never been initialized
func (s *Store) GetContractState(txn types.Txn) (*models.ContractState, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := models.NewContractState()
	result := db.Where("id = ?", ret.ID).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.NewContractState(), nil
		}
		return nil, result.Error
	}
	return ret, nil
}

func (s *Store) SetContractState(state *models.ContractState, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if state.ID == 0 {
		state.ID = models.NewContractState().ID
	}
	result := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(state)
	return result.Error
}

// GetFeeLedger returns the singleton fee ledger, or a zeroed one if no fee
// has been recorded yet
func (s *Store) GetFeeLedger(txn types.Txn) (*models.FeeLedger, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := models.NewFeeLedger()
	result := db.Where("id = ?", ret.ID).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.NewFeeLedger(), nil
		}
		return nil, result.Error
	}
	return ret, nil
}

func (s *Store) SetFeeLedger(fees *models.FeeLedger, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if fees.ID == 0 {
		fees.ID = models.NewFeeLedger().ID
	}
	result := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(fees)
	return result.Error
}

// GetAccountFunds returns the spendable funds of an address. Unknown
// addresses have no funds.
func (s *Store) GetAccountFunds(address []byte, txn types.Txn) (uint64, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	var account models.Account
	result := db.Where("address = ?", address).First(&account)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return uint64(account.Funds), nil
}

func (s *Store) SetAccountFunds(address []byte, funds uint64, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	account := models.Account{
		Address: address,
		Funds:   types.Uint64(funds),
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"funds"}),
	}).Create(&account)
	return result.Error
}
