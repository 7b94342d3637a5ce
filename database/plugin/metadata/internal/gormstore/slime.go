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

// GetSlime returns the mutable record of a slime
func (s *Store) GetSlime(id uint64, txn types.Txn) (*models.Slime, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.Slime{}
	result := db.Where("id = ?", id).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrSlimeNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// SetSlime inserts or fully replaces the mutable record of a slime
func (s *Store) SetSlime(slime *models.Slime, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(slime)
	return result.Error
}

func (s *Store) CountSlimesByOwner(owner []byte, txn types.Txn) (uint64, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	var count int64
	result := db.Model(&models.Slime{}).
		Where("owner = ?", owner).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return uint64(count), nil //nolint:gosec // count is never negative
}

// GetSlimeIdsByOwner returns up to limit ids held by owner that are greater
// than afterId, in ascending order
func (s *Store) GetSlimeIdsByOwner(
	owner []byte,
	afterId uint64,
	limit int,
	txn types.Txn,
) ([]uint64, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []uint64
	result := db.Model(&models.Slime{}).
		Where("owner = ? AND id > ?", owner, afterId).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
