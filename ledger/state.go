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

package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/slimy-crypto/slimy/database"
	"github.com/slimy-crypto/slimy/database/models"
	"github.com/slimy-crypto/slimy/event"
	"github.com/slimy-crypto/slimy/genescience"
	"github.com/slimy-crypto/slimy/ledger/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultDispatchWorkers    = 4
	DefaultDispatchQueueSize  = 256
	DefaultGeneScienceTimeout = 30 * time.Second

	tracerName = "github.com/slimy-crypto/slimy/ledger"
)

type LedgerConfig struct {
	Logger       *slog.Logger
	Database     *database.Database
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	// GeneScience resolves the configured collaborator address for the
	// built-in dispatcher
	GeneScience           *genescience.Directory
	BaseBirthFee          uint64
	BirthFeePerGeneration uint64
	CooldownSchedule      []time.Duration
	BreedingPolicy        BreedingPolicy
	// GenZeroRecipient receives gen-zero slimes instead of the administrator
	// when set
	GenZeroRecipient   common.Address
	DispatchWorkers    int
	DispatchQueueSize  int
	GeneScienceTimeout time.Duration
	Clock              func() time.Time
	// Callback(s)
	BreedingSubmitFunc BreedingSubmitFunc
}

// BreedingSubmitFunc hands a committed breeding request to whatever will call
// the collaborator and later resolve it. An error resolves the request as a
// failure right away.
type BreedingSubmitFunc func(BreedingRequest) error

// Ledger is the slime ownership ledger and breeding state machine. Every
// mutating operation is serialized and runs in a single read-write database
// transaction.
type Ledger struct {
	sync.Mutex
	config     LedgerConfig
	db         *database.Database
	logger     *slog.Logger
	metrics    ledgerMetrics
	tracer     trace.Tracer
	dispatcher *dispatcher
}

func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if cfg.Database == nil {
		return nil, errors.New("no database provided")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if len(cfg.CooldownSchedule) == 0 {
		cfg.CooldownSchedule = DefaultCooldownSchedule
	}
	if cfg.BreedingPolicy == "" {
		cfg.BreedingPolicy = BreedingPolicySameOwner
	}
	if !cfg.BreedingPolicy.valid() {
		return nil, fmt.Errorf("unknown breeding policy: %s", cfg.BreedingPolicy)
	}
	if cfg.DispatchWorkers <= 0 {
		cfg.DispatchWorkers = DefaultDispatchWorkers
	}
	if cfg.DispatchQueueSize <= 0 {
		cfg.DispatchQueueSize = DefaultDispatchQueueSize
	}
	if cfg.GeneScienceTimeout <= 0 {
		cfg.GeneScienceTimeout = DefaultGeneScienceTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	l := &Ledger{
		config: cfg,
		db:     cfg.Database,
		logger: cfg.Logger,
		tracer: otel.Tracer(tracerName),
	}
	l.metrics.init(cfg.PromRegistry)
	l.dispatcher = newDispatcher(l)
	// Seed gauges from persisted state
	state, err := l.db.GetContractState(nil)
	if err != nil {
		return nil, fmt.Errorf("load contract state: %w", err)
	}
	fees, err := l.db.GetFeeLedger(nil)
	if err != nil {
		return nil, fmt.Errorf("load fee ledger: %w", err)
	}
	l.updateGauges(state, fees)
	return l, nil
}

// Start runs the breeding dispatcher and re-dispatches every request that was
// still pending when the ledger last stopped
func (l *Ledger) Start(ctx context.Context) error {
	if l.config.BreedingSubmitFunc == nil {
		l.dispatcher.start()
	}
	pending, err := l.db.GetPendingBreedingRequests(nil)
	if err != nil {
		return fmt.Errorf("load pending breeding requests: %w", err)
	}
	if len(pending) > 0 {
		l.logger.Info(
			fmt.Sprintf("re-dispatching %d pending breeding requests", len(pending)),
			"component", "ledger",
		)
	}
	for _, tmpReq := range pending {
		req := newBreedingRequest(&tmpReq)
		if l.config.BreedingSubmitFunc != nil {
			l.submit(ctx, req)
			continue
		}
		if err := l.dispatcher.enqueueWait(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// Stop halts the dispatcher. Requests still in flight stay pending and are
// re-dispatched by the next Start.
func (l *Ledger) Stop() {
	l.dispatcher.stop()
}

func (l *Ledger) now() time.Time {
	return l.config.Clock()
}

// update runs fn inside a serialized read-write transaction
func (l *Ledger) update(
	ctx context.Context,
	op string,
	fn func(*database.Txn) error,
) error {
	l.Lock()
	defer l.Unlock()
	_, span := l.tracer.Start(ctx, "ledger."+op)
	defer span.End()
	txn := l.db.Transaction(true)
	if err := txn.Do(fn); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// view runs fn inside a read-only transaction
func (l *Ledger) view(
	ctx context.Context,
	op string,
	fn func(*database.Txn) error,
) error {
	_, span := l.tracer.Start(ctx, "ledger."+op)
	defer span.End()
	txn := l.db.Transaction(false)
	defer txn.Release()
	if err := fn(txn); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (l *Ledger) publish(eventType event.EventType, data any) {
	if l.config.EventBus == nil {
		return
	}
	l.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}

func (l *Ledger) updateGauges(state *models.ContractState, fees *models.FeeLedger) {
	if state != nil {
		l.metrics.totalSupply.Set(float64(state.TotalSupply))
	}
	if fees != nil {
		l.metrics.accumulatedFees.Set(float64(fees.Accumulated))
		l.metrics.escrowedFees.Set(float64(fees.Escrowed))
	}
}

// loadSlime returns a slime, translating a missing record into
// ErrUnknownToken
func (l *Ledger) loadSlime(id uint64, txn *database.Txn) (*database.Slime, error) {
	ret, err := l.db.GetSlime(id, txn)
	if err != nil {
		return nil, translateNotFound(err, id)
	}
	return ret, nil
}

func translateNotFound(err error, id uint64) error {
	if errors.Is(err, models.ErrSlimeNotFound) {
		return fmt.Errorf("%w: %d", ErrUnknownToken, id)
	}
	return err
}

// requireAdmin loads the contract state and checks that caller holds the
// administrator capability
func (l *Ledger) requireAdmin(
	caller common.Address,
	txn *database.Txn,
) (*models.ContractState, error) {
	state, err := l.db.GetContractState(txn)
	if err != nil {
		return nil, err
	}
	if !state.Initialized {
		return nil, ErrNotInitialized
	}
	if caller.IsZero() || !bytes.Equal(state.Admin, caller.Bytes()) {
		return nil, fmt.Errorf("%w: caller is not the administrator", ErrNotAuthorized)
	}
	return state, nil
}

func isOwner(caller common.Address, record *models.Slime) bool {
	return !caller.IsZero() && bytes.Equal(record.Owner, caller.Bytes())
}

// isAuthorized reports whether caller owns the slime or is its approved
// delegate
func isAuthorized(caller common.Address, record *models.Slime) bool {
	if isOwner(caller, record) {
		return true
	}
	return !caller.IsZero() &&
		len(record.Approved) > 0 &&
		bytes.Equal(record.Approved, caller.Bytes())
}

// addressFromBytes converts a stored address. Stored addresses are always
// full length, and an empty value is the zero address.
func addressFromBytes(data []byte) common.Address {
	var ret common.Address
	copy(ret[:], data)
	return ret
}
