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

package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slimy-crypto/slimy/database/plugin/blob/objectstore"
	"google.golang.org/api/option"
)

// BlobStoreGCS stores slime records in a Google Cloud Storage bucket.
type BlobStoreGCS struct {
	*objectstore.Store
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	client          *storage.Client
	bucket          *storage.BucketHandle
	bucketName      string
	prefix          string
	credentialsFile string
}

// New creates a new GCS-backed blob store. dataDir must be "gcs://<bucket>"
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*BlobStoreGCS, error) {
	bucketName, ok := strings.CutPrefix(dataDir, "gcs://")
	if !ok || bucketName == "" {
		return nil, errors.New(
			"gcs blob: bucket not set (expected dataDir='gcs://<bucket>')",
		)
	}
	return NewWithOptions(
		WithBucket(bucketName),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	), nil
}

// NewWithOptions creates a new GCS-backed blob store using options. The
// storage client is only created on Start.
func NewWithOptions(opts ...BlobStoreGCSOptionFunc) *BlobStoreGCS {
	db := &BlobStoreGCS{}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return db
}

// ValidateCredentials checks that a configured credentials file exists
func ValidateCredentials(credentialsFile string) error {
	if credentialsFile == "" {
		return nil
	}
	if _, err := os.Stat(credentialsFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf(
				"GCS credentials file does not exist: %s",
				credentialsFile,
			)
		}
		return fmt.Errorf("failed to read GCS credentials file: %w", err)
	}
	return nil
}

// Start implements the plugin.Plugin interface.
func (d *BlobStoreGCS) Start() error {
	// Validate required fields
	if d.bucketName == "" {
		return errors.New("gcs blob: bucket not set")
	}
	if err := ValidateCredentials(d.credentialsFile); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	clientOpts := []option.ClientOption{
		storage.WithDisabledClientMetrics(),
	}
	if d.credentialsFile != "" {
		clientOpts = append(
			clientOpts,
			option.WithCredentialsFile(d.credentialsFile),
		)
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return fmt.Errorf(
			"gcs blob: failed in creating storage client: %w",
			err,
		)
	}
	d.client = client
	d.bucket = client.Bucket(d.bucketName)
	store, err := objectstore.New(
		d,
		objectstore.WithLogger(d.logger),
		objectstore.WithPromRegistry(d.promRegistry),
		objectstore.WithName("gcs"),
	)
	if err != nil {
		// Clean up resources on init failure
		_ = d.Close()
		return err
	}
	d.Store = store
	return nil
}

// Stop implements the plugin.Plugin interface.
func (d *BlobStoreGCS) Stop() error {
	return d.Close()
}

// Close closes the GCS client.
func (d *BlobStoreGCS) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

func (d *BlobStoreGCS) object(key string) *storage.ObjectHandle {
	return d.bucket.Object(d.prefix + key)
}

func (d *BlobStoreGCS) GetObject(ctx context.Context, key string) ([]byte, error) {
	r, err := d.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, objectstore.ErrObjectNotFound
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (d *BlobStoreGCS) PutObject(ctx context.Context, key string, data []byte) error {
	w := d.object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (d *BlobStoreGCS) DeleteObject(ctx context.Context, key string) error {
	err := d.object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return objectstore.ErrObjectNotFound
	}
	return err
}
