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

package slimy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/slimy-crypto/slimy/api"
	"github.com/slimy-crypto/slimy/database"
	"github.com/slimy-crypto/slimy/event"
	"github.com/slimy-crypto/slimy/genescience"
	"github.com/slimy-crypto/slimy/ledger"
)

const DefaultShutdownTimeout = 30 * time.Second

type Node struct {
	config        Config
	db            *database.Database
	eventBus      *event.EventBus
	geneScience   *genescience.Directory
	ledger        *ledger.Ledger
	api           *api.Api
	shutdownFuncs []func(context.Context) error
	done          chan struct{}
	shutdownOnce  sync.Once
	ready         chan struct{}
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config: cfg,
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
	}
	n.configPopulateDefaults()
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

func (n *Node) configValidate() error {
	if (n.config.tlsCertFilePath == "") != (n.config.tlsKeyFilePath == "") {
		return errors.New("TLS certificate and key must be specified together")
	}
	if n.config.localGeneScience != nil && n.config.geneScience.IsZero() {
		return errors.New("local gene science requires a gene science address")
	}
	return nil
}

// Run starts every component and blocks until the node is stopped or the
// context is canceled
func (n *Node) Run(ctx context.Context) error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(
		&database.Config{
			DataDir:        n.config.dataDir,
			Logger:         n.config.logger,
			PromRegistry:   n.config.promRegistry,
			BlobPlugin:     n.config.blobPlugin,
			MetadataPlugin: n.config.metadataPlugin,
			GenesCacheSize: n.config.genesCacheSize,
		},
	)
	if err != nil {
		var dbErr database.CommitTimestampError
		if !errors.As(err, &dbErr) {
			return fmt.Errorf("failed to open database: %w", err)
		}
		n.config.logger.Warn(
			"database initialization error, attempting recovery",
			"component", "node",
			"error", err,
		)
		if err := db.RecoverCommitTimestamp(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to recover database: %w", err)
		}
	}
	n.db = db
	// Load event bus
	n.eventBus = event.NewEventBus(n.config.promRegistry, n.config.logger)
	// Configure gene science collaborators
	n.geneScience = genescience.NewDirectory(http.DefaultClient)
	for addr, baseURL := range n.config.geneScienceEndpoints {
		n.geneScience.RegisterEndpoint(addr, baseURL)
	}
	if n.config.localGeneScience != nil {
		n.geneScience.Register(n.config.geneScience, n.config.localGeneScience)
	}
	// Load ledger
	n.ledger, err = ledger.NewLedger(
		ledger.LedgerConfig{
			Logger:                n.config.logger,
			Database:              n.db,
			EventBus:              n.eventBus,
			PromRegistry:          n.config.promRegistry,
			GeneScience:           n.geneScience,
			BaseBirthFee:          n.config.baseBirthFee,
			BirthFeePerGeneration: n.config.birthFeePerGeneration,
			CooldownSchedule:      n.config.cooldownSchedule,
			BreedingPolicy:        n.config.breedingPolicy,
			GenZeroRecipient:      n.config.genZeroRecipient,
			DispatchWorkers:       n.config.dispatchWorkers,
			DispatchQueueSize:     n.config.dispatchQueueSize,
			GeneScienceTimeout:    n.config.geneScienceTimeout,
		},
	)
	if err != nil {
		return errors.Join(
			fmt.Errorf("failed to load ledger: %w", err),
			n.Stop(),
		)
	}
	if !n.config.admin.IsZero() {
		err := n.ledger.Init(ctx, n.config.admin, n.config.geneScience)
		switch {
		case err == nil:
		case errors.Is(err, ledger.ErrAlreadyInitialized):
			n.config.logger.Debug(
				"ledger already initialized",
				"component", "node",
			)
		default:
			return errors.Join(
				fmt.Errorf("failed to initialize ledger: %w", err),
				n.Stop(),
			)
		}
	}
	// Start ledger
	if err := n.ledger.Start(ctx); err != nil {
		return errors.Join(
			fmt.Errorf("failed to start ledger: %w", err),
			n.Stop(),
		)
	}
	// Configure RPC API
	if n.config.apiPort > 0 {
		n.api = api.NewApi(
			api.ApiConfig{
				Logger:           n.config.logger,
				Ledger:           n.ledger,
				LocalGeneScience: n.config.localGeneScience,
				Host:             n.config.apiHost,
				Port:             n.config.apiPort,
				TlsCertFilePath:  n.config.tlsCertFilePath,
				TlsKeyFilePath:   n.config.tlsKeyFilePath,
			},
		)
		if err := n.api.Start(); err != nil {
			return errors.Join(
				fmt.Errorf("failed to start API: %w", err),
				n.Stop(),
			)
		}
	}
	close(n.ready)

	// Wait for shutdown signal
	select {
	case <-n.done:
	case <-ctx.Done():
		return n.Stop()
	}
	return nil
}

// Ready is closed once every component is running
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// Ledger returns the running ledger. It is nil until Run has loaded it
func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

// EventBus returns the node's event bus
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// ApiAddr returns the address the RPC API is bound to, if it is running
func (n *Node) ApiAddr() string {
	if n.api == nil {
		return ""
	}
	addr := n.api.Addr()
	if addr == nil {
		return ""
	}
	return addr.String()
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		n.config.shutdownTimeout,
	)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown", "component", "node")

	// Phase 1: Stop accepting new work
	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Stop the breeding dispatcher, leaving in-flight requests pending
	if n.ledger != nil {
		n.ledger.Stop()
	}

	// Phase 3: Close database
	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	close(n.done)
	return err
}
