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
)

func (s *Store) AddBreedingRequest(req *models.BreedingRequest, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(req).Error
}

func (s *Store) SetBreedingRequest(req *models.BreedingRequest, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if req.ID == 0 {
		return errors.New("breeding request has no primary key")
	}
	return db.Save(req).Error
}

func (s *Store) GetBreedingRequest(
	requestId string,
	txn types.Txn,
) (*models.BreedingRequest, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.BreedingRequest{}
	result := db.Where("request_id = ?", requestId).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrBreedingRequestNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetPendingBreedingRequest returns the unresolved request for a parent pair
func (s *Store) GetPendingBreedingRequest(
	matronId uint64,
	sireId uint64,
	txn types.Txn,
) (*models.BreedingRequest, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.BreedingRequest{}
	result := db.Where(
		"matron_id = ? AND sire_id = ? AND status = ?",
		matronId,
		sireId,
		models.BreedingStatusPending,
	).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrBreedingRequestNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetPendingBreedingRequests returns every unresolved request, oldest first
func (s *Store) GetPendingBreedingRequests(
	txn types.Txn,
) ([]models.BreedingRequest, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.BreedingRequest
	result := db.Where("status = ?", models.BreedingStatusPending).
		Order("id ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
