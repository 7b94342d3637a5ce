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

// Package gormstore holds the metadata queries shared by every gorm-backed
// metadata plugin
package gormstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/slimy-crypto/slimy/database/models"
	"github.com/slimy-crypto/slimy/database/types"
	"gorm.io/gorm"
)

// gormTxn wraps a gorm transaction and implements types.Txn
type gormTxn struct {
	store    *Store
	tx       *gorm.DB
	finished bool
}

func (t *gormTxn) Commit() error {
	if t.finished {
		return nil
	}
	if err := t.tx.Commit().Error; err != nil {
		return err
	}
	t.finished = true
	return nil
}

func (t *gormTxn) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	err := t.tx.Rollback().Error
	// Rolling back after the connection already ended the transaction is harmless
	if errors.Is(err, gorm.ErrInvalidTransaction) {
		return nil
	}
	return err
}

// Store implements the metadata queries on top of a gorm handle
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Store{db: db, logger: logger}
}

// DB returns the underlying GORM database handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction begins a new database transaction
func (s *Store) Transaction() types.Txn {
	return &gormTxn{store: s, tx: s.db.Begin()}
}

// resolveDB returns the handle to run a query against. A nil txn runs the
// query outside of any transaction.
func (s *Store) resolveDB(txn types.Txn) (*gorm.DB, error) {
	if txn == nil {
		return s.db, nil
	}
	gTxn, ok := txn.(*gormTxn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if gTxn.store != s {
		return nil, errors.New("transaction from different store")
	}
	if gTxn.finished {
		return nil, types.ErrTxnFinished
	}
	if gTxn.tx.Error != nil {
		return nil, gTxn.tx.Error
	}
	return gTxn.tx, nil
}

// Migrate creates or updates the table schemas
func (s *Store) Migrate() error {
	toMigrate := append([]any{&CommitTimestamp{}}, models.MigrateModels...)
	for _, model := range toMigrate {
		s.logger.Debug(
			fmt.Sprintf("creating table: %T", model),
			"component", "database",
		)
		if err := s.db.AutoMigrate(model); err != nil {
			return err
		}
	}
	return nil
}
