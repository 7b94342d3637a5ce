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
	"errors"
	"fmt"
	"io"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slimy-crypto/slimy/database/plugin"
	"github.com/slimy-crypto/slimy/database/plugin/blob"
	"github.com/slimy-crypto/slimy/database/plugin/metadata"

	// Register the built-in storage plugins
	_ "github.com/slimy-crypto/slimy/database/plugin/blob/aws"
	_ "github.com/slimy-crypto/slimy/database/plugin/blob/badger"
	_ "github.com/slimy-crypto/slimy/database/plugin/blob/gcs"
	_ "github.com/slimy-crypto/slimy/database/plugin/metadata/mysql"
	_ "github.com/slimy-crypto/slimy/database/plugin/metadata/postgres"
	_ "github.com/slimy-crypto/slimy/database/plugin/metadata/sqlite"
)

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
	DefaultGenesCacheSize = 10000
)

type Config struct {
	Logger         *slog.Logger
	PromRegistry   prometheus.Registerer
	BlobPlugin     string
	MetadataPlugin string
	// DataDir is handed to both storage plugins. An empty value keeps
	// everything in memory.
	DataDir        string
	GenesCacheSize int
}

// Database combines the blob store holding immutable slime records with the
// metadata store holding everything that changes
type Database struct {
	logger     *slog.Logger
	blob       blob.BlobStore
	metadata   metadata.MetadataStore
	genesCache *lru.Cache[uint64, SlimeGenes]
	dataDir    string
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}

func (d *Database) init() error {
	// Check commit timestamp
	if err := d.checkCommitTimestamp(); err != nil {
		return err
	}
	return nil
}

// New creates a new database instance with optional persistence using the
// data directory from the provided config
func New(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	blobPlugin := config.BlobPlugin
	if blobPlugin == "" {
		blobPlugin = DefaultBlobPlugin
	}
	metadataPlugin := config.MetadataPlugin
	if metadataPlugin == "" {
		metadataPlugin = DefaultMetadataPlugin
	}
	cacheSize := config.GenesCacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultGenesCacheSize
	}
	// Point both plugins at our data directory
	if err := plugin.SetPluginOption(plugin.PluginTypeBlob, blobPlugin, "data-dir", config.DataDir); err != nil {
		return nil, fmt.Errorf("set blob data dir: %w", err)
	}
	if err := plugin.SetPluginOption(plugin.PluginTypeMetadata, metadataPlugin, "data-dir", config.DataDir); err != nil {
		return nil, fmt.Errorf("set metadata data dir: %w", err)
	}
	env := plugin.Environment{
		Logger:       logger,
		PromRegistry: config.PromRegistry,
	}
	metadataDb, err := metadata.New(metadataPlugin, env)
	if err != nil {
		return nil, err
	}
	blobDb, err := blob.New(blobPlugin, env)
	if err != nil {
		_ = metadataDb.Close()
		return nil, err
	}
	genesCache, err := lru.New[uint64, SlimeGenes](cacheSize)
	if err != nil {
		return nil, errors.Join(err, metadataDb.Close(), blobDb.Close())
	}
	db := &Database{
		logger:     logger,
		blob:       blobDb,
		metadata:   metadataDb,
		genesCache: genesCache,
		dataDir:    config.DataDir,
	}
	if err := db.init(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	return db, nil
}
