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

package database_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/slimy-crypto/slimy/database"
	"github.com/slimy-crypto/slimy/database/models"
	"github.com/slimy-crypto/slimy/database/plugin/metadata/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T, dataDir string) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{
		DataDir:      dataDir,
		PromRegistry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return db
}

func testGenes() database.SlimeGenes {
	return database.SlimeGenes{
		Genome:     []byte{0x01, 0x02, 0x03},
		Generation: 2,
		MatronId:   7,
		SireId:     9,
		BirthTime:  1700000000000,
	}
}

func TestSlimeBlobKeyOrdering(t *testing.T) {
	assert.Less(
		t,
		string(database.SlimeBlobKey(255)),
		string(database.SlimeBlobKey(256)),
	)
	assert.Len(t, database.SlimeBlobKey(1), len("slime_")+8)
}

func TestDatabaseAddSlime(t *testing.T) {
	db := newTestDatabase(t, "")
	defer db.Close() //nolint:errcheck

	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.AddSlime(
			&models.Slime{ID: 1, Owner: []byte("owner"), CooldownEnd: 5},
			testGenes(),
			txn,
		)
	})
	require.NoError(t, err)

	slime, err := db.GetSlime(1, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("owner"), slime.Owner)
	assert.Equal(t, int64(5), slime.CooldownEnd)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, slime.Genes.Genome)
	assert.Equal(t, uint32(2), slime.Genes.Generation)
	assert.Equal(t, uint64(7), slime.Genes.MatronId)
	assert.Equal(t, uint64(9), slime.Genes.SireId)

	count, err := db.CountSlimesByOwner([]byte("owner"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestDatabaseRollbackDiscardsBothStores(t *testing.T) {
	db := newTestDatabase(t, "")
	defer db.Close() //nolint:errcheck

	testErr := errors.New("abort")
	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := db.AddSlime(&models.Slime{ID: 1, Owner: []byte("owner")}, testGenes(), txn); err != nil {
			return err
		}
		// Reads inside the transaction see the write
		if _, err := db.GetSlime(1, txn); err != nil {
			return err
		}
		return testErr
	})
	require.ErrorIs(t, err, testErr)

	_, err = db.GetSlime(1, nil)
	require.ErrorIs(t, err, models.ErrSlimeNotFound)
	_, err = db.GetSlimeGenes(1, nil)
	require.ErrorIs(t, err, models.ErrSlimeNotFound)
}

func TestDatabaseAddSlimeRequiresReadWrite(t *testing.T) {
	db := newTestDatabase(t, "")
	defer db.Close() //nolint:errcheck
	txn := db.Transaction(false)
	defer txn.Release()
	require.Error(t, db.AddSlime(&models.Slime{ID: 1}, testGenes(), txn))
	require.Error(t, db.SetSlime(&models.Slime{ID: 1}, txn))
}

func TestDatabasePersistence(t *testing.T) {
	dataDir := t.TempDir()
	db := newTestDatabase(t, dataDir)
	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := db.AddSlime(&models.Slime{ID: 1, Owner: []byte("owner")}, testGenes(), txn); err != nil {
			return err
		}
		return db.SetFunds([]byte("owner"), 55, txn)
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db = newTestDatabase(t, dataDir)
	defer db.Close() //nolint:errcheck
	slime, err := db.GetSlime(1, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, slime.Genes.Genome)
	funds, err := db.GetFunds([]byte("owner"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(55), funds)
}

func TestDatabaseCommitTimestampMismatch(t *testing.T) {
	dataDir := t.TempDir()
	db := newTestDatabase(t, dataDir)
	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.SetFunds([]byte("owner"), 1, txn)
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Move the metadata store forward on its own
	metadataDb, err := sqlite.NewWithOptions(sqlite.WithDataDir(dataDir), sqlite.WithVacuum(false))
	require.NoError(t, err)
	require.NoError(t, metadataDb.SetCommitTimestamp(1, nil))
	require.NoError(t, metadataDb.Close())

	db, err = database.New(&database.Config{DataDir: dataDir})
	require.NotNil(t, db)
	defer db.Close() //nolint:errcheck
	var tsErr database.CommitTimestampError
	require.ErrorAs(t, err, &tsErr)
	assert.Equal(t, int64(1), tsErr.MetadataTimestamp)

	require.NoError(t, db.RecoverCommitTimestamp())
	funds, err := db.GetFunds([]byte("owner"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), funds)
}

func TestDatabaseBreedingRequests(t *testing.T) {
	db := newTestDatabase(t, "")
	defer db.Close() //nolint:errcheck
	req := &models.BreedingRequest{
		RequestID: "abc",
		Status:    models.BreedingStatusPending,
		MatronID:  1,
		SireID:    2,
	}
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.AddBreedingRequest(req, txn)
	}))
	got, err := db.GetPendingBreedingRequest(1, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.RequestID)
	pending, err := db.GetPendingBreedingRequests(nil)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestDatabaseUnknownPlugin(t *testing.T) {
	_, err := database.New(&database.Config{BlobPlugin: "does-not-exist"})
	require.Error(t, err)
}
