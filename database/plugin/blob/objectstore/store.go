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

// Package objectstore implements the blob store contract on top of a remote
// object storage service. Writes are buffered in the transaction and only
// reach the service on commit, so a rolled back transaction leaves nothing
// behind.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/slimy-crypto/slimy/database/types"
)

const (
	DefaultTimeout = 60 * time.Second

	commitTimestampKey = "metadata_commit_timestamp"
	metricNamePrefix   = "database_blob_"
)

// ErrObjectNotFound is returned by a Client when the key does not exist
var ErrObjectNotFound = errors.New("object not found")

// Client is the minimal object storage API a backend must provide
type Client interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte) error
	DeleteObject(ctx context.Context, key string) error
}

type Store struct {
	client       Client
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	metrics      struct {
		opsTotal   *prometheus.CounterVec
		bytesTotal prometheus.Counter
	}
	timeout time.Duration
	name    string
	// commitMutex serializes flushes so that concurrent commits cannot
	// interleave their writes
	commitMutex sync.Mutex
}

type StoreOptionFunc func(*Store)

func WithLogger(logger *slog.Logger) StoreOptionFunc {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithPromRegistry(registry prometheus.Registerer) StoreOptionFunc {
	return func(s *Store) {
		s.promRegistry = registry
	}
}

// WithTimeout bounds every call to the object storage service
func WithTimeout(timeout time.Duration) StoreOptionFunc {
	return func(s *Store) {
		s.timeout = timeout
	}
}

// WithName sets the backend name used in logs and metric labels
func WithName(name string) StoreOptionFunc {
	return func(s *Store) {
		s.name = name
	}
}

func New(client Client, opts ...StoreOptionFunc) (*Store, error) {
	if client == nil {
		return nil, errors.New("object store: no client provided")
	}
	s := &Store{
		client:  client,
		timeout: DefaultTimeout,
		name:    "object",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if err := s.initMetrics(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initMetrics() error {
	s.metrics.opsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricNamePrefix + "ops_total",
			Help: "Total number of object store blob operations",
		},
		[]string{"backend", "op"},
	)
	bytesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricNamePrefix + "bytes_total",
			Help: "Total bytes read/written for object store blob operations",
		},
		[]string{"backend"},
	)
	if s.promRegistry != nil {
		for _, c := range []**prometheus.CounterVec{&s.metrics.opsTotal, &bytesTotal} {
			if err := s.promRegistry.Register(*c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					return err
				}
				existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
				if !ok {
					return err
				}
				*c = existing
			}
		}
	}
	s.metrics.bytesTotal = bytesTotal.WithLabelValues(s.name)
	return nil
}

func (s *Store) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Close is a no-op; the backend owns the client
func (s *Store) Close() error {
	return nil
}

type pendingWrite struct {
	data    []byte
	deleted bool
}

// objectTxn buffers writes until commit
type objectTxn struct {
	store     *Store
	pending   map[string]pendingWrite
	mu        sync.Mutex
	finished  bool
	readWrite bool
}

func (s *Store) NewTransaction(readWrite bool) types.Txn {
	return &objectTxn{
		store:     s,
		readWrite: readWrite,
		pending:   make(map[string]pendingWrite),
	}
}

func (t *objectTxn) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return nil
	}
	t.finished = true
	if !t.readWrite || len(t.pending) == 0 {
		return nil
	}
	return t.store.flush(t.pending)
}

func (t *objectTxn) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished = true
	t.pending = nil
	return nil
}

func (s *Store) validateTxn(txn types.Txn, write bool) (*objectTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	oTxn, ok := txn.(*objectTxn)
	if !ok || oTxn.store != s {
		return nil, types.ErrTxnWrongType
	}
	if oTxn.finished {
		return nil, types.ErrTxnFinished
	}
	if write && !oTxn.readWrite {
		return nil, errors.New("transaction is read-only")
	}
	return oTxn, nil
}

// flush writes every pending change, leaving the commit timestamp for last so
// that a partial flush is detected on the next start
func (s *Store) flush(pending map[string]pendingWrite) error {
	s.commitMutex.Lock()
	defer s.commitMutex.Unlock()
	keys := make([]string, 0, len(pending))
	for k := range pending {
		if k != commitTimestampKey {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	if _, ok := pending[commitTimestampKey]; ok {
		keys = append(keys, commitTimestampKey)
	}
	for _, key := range keys {
		write := pending[key]
		var err error
		if write.deleted {
			err = s.deleteObject(key)
		} else {
			err = s.putObject(key, write.data)
		}
		if err != nil {
			return fmt.Errorf("%s blob: flush %q: %w", s.name, key, err)
		}
	}
	return nil
}

func (s *Store) putObject(key string, data []byte) error {
	ctx, cancel := s.opContext()
	defer cancel()
	s.metrics.opsTotal.WithLabelValues(s.name, "put").Inc()
	s.metrics.bytesTotal.Add(float64(len(data)))
	return s.client.PutObject(ctx, key, data)
}

func (s *Store) deleteObject(key string) error {
	ctx, cancel := s.opContext()
	defer cancel()
	s.metrics.opsTotal.WithLabelValues(s.name, "delete").Inc()
	err := s.client.DeleteObject(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil
	}
	return err
}

// Get returns the value for a key, seeing writes made earlier in the same
// transaction
func (s *Store) Get(txn types.Txn, key []byte) ([]byte, error) {
	oTxn, err := s.validateTxn(txn, false)
	if err != nil {
		return nil, err
	}
	oTxn.mu.Lock()
	write, ok := oTxn.pending[string(key)]
	oTxn.mu.Unlock()
	if ok {
		if write.deleted {
			return nil, types.ErrBlobKeyNotFound
		}
		return slices.Clone(write.data), nil
	}
	ctx, cancel := s.opContext()
	defer cancel()
	s.metrics.opsTotal.WithLabelValues(s.name, "get").Inc()
	data, err := s.client.GetObject(ctx, string(key))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, types.ErrBlobKeyNotFound
		}
		s.logger.Error(
			fmt.Sprintf("%s blob: get %q failed: %s", s.name, string(key), err),
			"component", "database",
		)
		return nil, err
	}
	s.metrics.bytesTotal.Add(float64(len(data)))
	return data, nil
}

func (s *Store) Set(txn types.Txn, key []byte, val []byte) error {
	oTxn, err := s.validateTxn(txn, true)
	if err != nil {
		return err
	}
	oTxn.mu.Lock()
	defer oTxn.mu.Unlock()
	oTxn.pending[string(key)] = pendingWrite{data: slices.Clone(val)}
	return nil
}

func (s *Store) Delete(txn types.Txn, key []byte) error {
	oTxn, err := s.validateTxn(txn, true)
	if err != nil {
		return err
	}
	oTxn.mu.Lock()
	defer oTxn.mu.Unlock()
	oTxn.pending[string(key)] = pendingWrite{deleted: true}
	return nil
}

func (s *Store) GetCommitTimestamp() (int64, error) {
	txn := s.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck

	val, err := s.Get(txn, []byte(commitTimestampKey))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return new(big.Int).SetBytes(val).Int64(), nil
}

func (s *Store) SetCommitTimestamp(timestamp int64, txn types.Txn) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	tmpTimestamp := new(big.Int).SetInt64(timestamp)
	return s.Set(txn, []byte(commitTimestampKey), tmpTimestamp.Bytes())
}
