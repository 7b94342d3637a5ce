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

package mysql

import (
	"os"
	"testing"

	"github.com/slimy-crypto/slimy/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDsn(t *testing.T) {
	d, err := NewWithOptions(
		WithHost("db.example"),
		WithPort(3307),
		WithUser("slimy"),
		WithPassword("secret"),
		WithDatabase("slimes"),
		WithSSLMode("skip-verify"),
	)
	require.NoError(t, err)
	dsn := d.buildDsn()
	assert.Contains(t, dsn, "slimy:secret@tcp(db.example:3307)/slimes?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "tls=skip-verify")
	assert.Equal(t, "slimes", d.databaseName())
}

func TestDsnOverride(t *testing.T) {
	d, err := NewWithOptions(
		WithDSN(" u:p@tcp(h:3306)/ledger?parseTime=true "),
		WithHost("ignored"),
	)
	require.NoError(t, err)
	assert.Equal(t, "u:p@tcp(h:3306)/ledger?parseTime=true", d.buildDsn())
	assert.Equal(t, "ledger", d.databaseName())
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := NewWithOptions(WithHost("localhost"))
	require.Error(t, err)
}

func TestMysqlStore(t *testing.T) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set, skipping mysql integration test")
	}
	d, err := NewWithOptions(WithDSN(dsn))
	require.NoError(t, err)
	require.NoError(t, d.Start())
	defer d.Stop() //nolint:errcheck

	txn := d.Transaction()
	require.NoError(t, d.SetSlime(&models.Slime{ID: 1 << 41, Owner: []byte("my-owner")}, txn))
	require.NoError(t, txn.Rollback())
	_, err = d.GetSlime(1<<41, nil)
	require.ErrorIs(t, err, models.ErrSlimeNotFound)
}
