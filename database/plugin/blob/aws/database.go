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

package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slimy-crypto/slimy/database/plugin/blob/objectstore"
)

// BlobStoreS3 stores slime records in an AWS S3 bucket
type BlobStoreS3 struct {
	*objectstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	credentials  aws.CredentialsProvider
	client       *s3.Client
	bucket       string
	prefix       string
	region       string
	endpoint     string
	timeout      time.Duration
}

// New creates a new S3-backed blob store and dataDir must be "s3://bucket" or "s3://bucket/prefix"
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*BlobStoreS3, error) {
	bucket, keyPrefix, err := parseDataDir(dataDir)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(
		WithBucket(bucket),
		WithPrefix(keyPrefix),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	), nil
}

func parseDataDir(dataDir string) (string, string, error) {
	path, ok := strings.CutPrefix(dataDir, "s3://")
	if !ok {
		return "", "", errors.New(
			"s3 blob: expected dataDir='s3://<bucket>[/prefix]'",
		)
	}
	bucket, keyPrefix, _ := strings.Cut(path, "/")
	if bucket == "" {
		return "", "", errors.New("s3 blob: bucket not set")
	}
	return bucket, keyPrefix, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// NewWithOptions creates a new S3-backed blob store using options. The AWS
// client is only created on Start.
func NewWithOptions(opts ...BlobStoreS3OptionFunc) *BlobStoreS3 {
	db := &BlobStoreS3{
		timeout: objectstore.DefaultTimeout,
	}
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

// Start implements the plugin.Plugin interface.
func (d *BlobStoreS3) Start() error {
	// Validate required fields
	if d.bucket == "" {
		return errors.New("s3 blob: bucket not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	var loadOpts []func(*config.LoadOptions) error
	if d.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(d.region))
	}
	if d.credentials != nil {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(d.credentials))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("s3 blob: load default AWS config: %w", err)
	}
	d.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if d.endpoint != "" {
			o.BaseEndpoint = aws.String(d.endpoint)
			// Fake S3 implementations rarely support virtual host addressing
			o.UsePathStyle = true
		}
		// Checksums are only sent when an operation requires them
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	store, err := objectstore.New(
		d,
		objectstore.WithLogger(d.logger),
		objectstore.WithPromRegistry(d.promRegistry),
		objectstore.WithTimeout(d.timeout),
		objectstore.WithName("s3"),
	)
	if err != nil {
		return err
	}
	d.Store = store
	d.logger.Info(
		fmt.Sprintf("s3 blob store using bucket %s", d.bucket),
		"component", "database",
	)
	return nil
}

// Stop implements the plugin.Plugin interface.
func (d *BlobStoreS3) Stop() error {
	return nil
}

// Close implements the BlobStore interface.
func (d *BlobStoreS3) Close() error {
	return d.Stop()
}

func (d *BlobStoreS3) fullKey(key string) string {
	return d.prefix + key
}

func (d *BlobStoreS3) GetObject(ctx context.Context, key string) ([]byte, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.fullKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, objectstore.ErrObjectNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (d *BlobStoreS3) PutObject(ctx context.Context, key string, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.fullKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		d.logger.Error(
			fmt.Sprintf("s3 put %q failed: %s", key, err),
			"component", "database",
		)
		return err
	}
	return nil
}

func (d *BlobStoreS3) DeleteObject(ctx context.Context, key string) error {
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.fullKey(key)),
	})
	if err != nil && isS3NotFound(err) {
		return objectstore.ErrObjectNotFound
	}
	return err
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &noSuchKey)
}
