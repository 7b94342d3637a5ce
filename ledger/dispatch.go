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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slimy-crypto/slimy/genescience"
	"github.com/slimy-crypto/slimy/ledger/common"
)

var (
	errDispatcherStopped = errors.New("breeding dispatcher is not running")
	errDispatchQueueFull = errors.New("breeding dispatch queue is full")
)

// dispatcher is the built-in breeding worker pool. Each job looks up the
// request's collaborator, mixes the parent genomes under a timeout and
// resolves the request with the result.
type dispatcher struct {
	ledger  *Ledger
	queue   chan BreedingRequest
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func newDispatcher(l *Ledger) *dispatcher {
	return &dispatcher{ledger: l}
}

func (d *dispatcher) start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.queue = make(chan BreedingRequest, d.ledger.config.DispatchQueueSize)
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.running = true
	for range d.ledger.config.DispatchWorkers {
		d.wg.Add(1)
		go d.worker(d.ctx, d.queue)
	}
}

func (d *dispatcher) stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
	d.ledger.metrics.dispatchQueueDepth.Set(0)
}

// enqueue adds a request without blocking
func (d *dispatcher) enqueue(req BreedingRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return errDispatcherStopped
	}
	select {
	case d.queue <- req:
		d.ledger.metrics.dispatchQueueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		return errDispatchQueueFull
	}
}

// enqueueWait adds a request, waiting for queue space
func (d *dispatcher) enqueueWait(ctx context.Context, req BreedingRequest) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return errDispatcherStopped
	}
	queue := d.queue
	runCtx := d.ctx
	d.mu.Unlock()
	select {
	case queue <- req:
		d.ledger.metrics.dispatchQueueDepth.Set(float64(len(queue)))
		return nil
	case <-runCtx.Done():
		return errDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *dispatcher) worker(ctx context.Context, queue <-chan BreedingRequest) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-queue:
			d.ledger.metrics.dispatchQueueDepth.Set(float64(len(queue)))
			d.process(ctx, req)
		}
	}
}

func (d *dispatcher) process(ctx context.Context, req BreedingRequest) {
	l := d.ledger
	outcome := d.mix(ctx, req)
	if ctx.Err() != nil {
		// Shutting down. The request stays pending for the next start.
		l.logger.Debug(
			"dispatcher stopped before breeding request resolved",
			"component", "ledger",
			"request_id", req.RequestId,
		)
		return
	}
	_, err := l.ResolveBreeding(ctx, req.MatronId, req.SireId, outcome)
	if err != nil && !errors.Is(err, ErrNoPendingBreeding) {
		l.logger.Error(
			"failed to resolve breeding request",
			"component", "ledger",
			"request_id", req.RequestId,
			"error", err,
		)
	}
}

func (d *dispatcher) mix(ctx context.Context, req BreedingRequest) BreedingOutcome {
	l := d.ledger
	if l.config.GeneScience == nil {
		return FailedOutcome(ErrCollaboratorNotConfigured)
	}
	geneScience, err := l.config.GeneScience.Lookup(req.GeneScience)
	if err != nil {
		return FailedOutcome(fmt.Errorf("%w: %w", ErrCollaboratorNotConfigured, err))
	}
	matron, err := l.parentGenome(req.MatronId)
	if err != nil {
		return FailedOutcome(err)
	}
	sire, err := l.parentGenome(req.SireId)
	if err != nil {
		return FailedOutcome(err)
	}
	mixCtx, cancel := context.WithTimeout(ctx, l.config.GeneScienceTimeout)
	defer cancel()
	start := time.Now()
	genome, err := geneScience.MixGenes(mixCtx, matron, sire)
	l.metrics.collaboratorLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, genescience.ErrCollaboratorFailure) {
			err = fmt.Errorf("%w: %w", genescience.ErrCollaboratorFailure, err)
		}
		return FailedOutcome(err)
	}
	return SucceededOutcome(genome)
}

func (l *Ledger) parentGenome(id uint64) (common.Genome, error) {
	genes, err := l.db.GetSlimeGenes(id, nil)
	if err != nil {
		return common.Genome{}, translateNotFound(err, id)
	}
	return common.NewGenome(genes.Genome)
}
