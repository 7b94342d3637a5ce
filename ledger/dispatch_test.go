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

package ledger_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/slimy-crypto/slimy/genescience"
	"github.com/slimy-crypto/slimy/ledger"
	"github.com/slimy-crypto/slimy/ledger/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingGeneScience struct {
	calls atomic.Int32
}

func (f *failingGeneScience) MixGenes(
	ctx context.Context,
	matron common.Genome,
	sire common.Genome,
) (common.Genome, error) {
	f.calls.Add(1)
	return common.Genome{}, errors.New("revert")
}

type blockingGeneScience struct{}

func (blockingGeneScience) MixGenes(
	ctx context.Context,
	matron common.Genome,
	sire common.Genome,
) (common.Genome, error) {
	<-ctx.Done()
	return common.Genome{}, ctx.Err()
}

// newDispatchEnv builds a ledger that uses the built-in dispatcher with the
// given collaborator registered at the configured address
func newDispatchEnv(
	t *testing.T,
	geneScience genescience.GeneScience,
	cfgFunc func(*ledger.LedgerConfig),
) *testEnv {
	t.Helper()
	dir := genescience.NewDirectory(nil)
	if geneScience != nil {
		dir.Register(testGeneScience, geneScience)
	}
	env := newTestEnv(t, func(cfg *ledger.LedgerConfig) {
		cfg.BreedingSubmitFunc = nil
		cfg.GeneScience = dir
		cfg.DispatchWorkers = 2
		if cfgFunc != nil {
			cfgFunc(cfg)
		}
	})
	require.NoError(t, env.ledger.Start(context.Background()))
	return env
}

func waitForResolution(
	t *testing.T,
	env *testEnv,
	requestId string,
) ledger.BreedingRequest {
	t.Helper()
	var ret ledger.BreedingRequest
	require.Eventually(
		t,
		func() bool {
			req, err := env.ledger.GetBreedingRequest(context.Background(), requestId)
			if err != nil {
				return false
			}
			ret = req
			return req.Status != ledger.BreedingStatusPending
		},
		5*time.Second,
		10*time.Millisecond,
	)
	return ret
}

func TestDispatcherLocalMixer(t *testing.T) {
	env := newDispatchEnv(t, genescience.NewLocalMixer(), nil)
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	req, err := env.ledger.BreedWith(ctx, testAlice, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	resolved := waitForResolution(t, env, req.RequestId)
	require.Equal(t, ledger.BreedingStatusSucceeded, resolved.Status, resolved.Reason)
	child, err := env.ledger.GetSlimeById(ctx, resolved.ChildId)
	require.NoError(t, err)
	expected, err := genescience.NewLocalMixer().MixGenes(ctx, testGenome(1), testGenome(2))
	require.NoError(t, err)
	assert.Equal(t, expected, child.Genome)
	assert.Equal(t, uint32(1), child.Generation)
}

func TestDispatcherRemoteCollaborator(t *testing.T) {
	path, handler := genescience.NewHandler(genescience.NewLocalMixer(), nil)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	defer server.Close()
	dir := genescience.NewDirectory(server.Client())
	dir.RegisterEndpoint(testGeneScience, server.URL)
	env := newTestEnv(t, func(cfg *ledger.LedgerConfig) {
		cfg.BreedingSubmitFunc = nil
		cfg.GeneScience = dir
	})
	require.NoError(t, env.ledger.Start(context.Background()))
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	req, err := env.ledger.BreedWith(context.Background(), testAlice, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	resolved := waitForResolution(t, env, req.RequestId)
	assert.Equal(t, ledger.BreedingStatusSucceeded, resolved.Status, resolved.Reason)
}

func TestDispatcherCollaboratorError(t *testing.T) {
	geneScience := &failingGeneScience{}
	env := newDispatchEnv(t, geneScience, nil)
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	req, err := env.ledger.BreedWith(ctx, testAlice, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	resolved := waitForResolution(t, env, req.RequestId)
	assert.Equal(t, ledger.BreedingStatusFailed, resolved.Status)
	assert.Contains(t, resolved.Reason, "revert")
	assert.Equal(t, int32(1), geneScience.calls.Load())
	funds, err := env.ledger.FundsOf(ctx, testAlice)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), funds)
}

func TestDispatcherTimeout(t *testing.T) {
	env := newDispatchEnv(t, blockingGeneScience{}, func(cfg *ledger.LedgerConfig) {
		cfg.GeneScienceTimeout = 50 * time.Millisecond
	})
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	req, err := env.ledger.BreedWith(ctx, testAlice, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	resolved := waitForResolution(t, env, req.RequestId)
	assert.Equal(t, ledger.BreedingStatusFailed, resolved.Status)
	assert.Contains(t, resolved.Reason, context.DeadlineExceeded.Error())
}

func TestDispatcherUnknownCollaborator(t *testing.T) {
	env := newDispatchEnv(t, nil, nil)
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	req, err := env.ledger.BreedWith(ctx, testAlice, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	resolved := waitForResolution(t, env, req.RequestId)
	assert.Equal(t, ledger.BreedingStatusFailed, resolved.Status)
	assert.Contains(t, resolved.Reason, ledger.ErrCollaboratorNotConfigured.Error())
}

func TestDispatcherNotStarted(t *testing.T) {
	env := newTestEnv(t, func(cfg *ledger.LedgerConfig) {
		cfg.BreedingSubmitFunc = nil
	})
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	// Nothing can run the request, so it fails before BreedWith returns
	req, err := env.ledger.BreedWith(ctx, testAlice, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	stored, err := env.ledger.GetBreedingRequest(ctx, req.RequestId)
	require.NoError(t, err)
	assert.Equal(t, ledger.BreedingStatusFailed, stored.Status)
	funds, err := env.ledger.FundsOf(ctx, testAlice)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), funds)
}

func TestSubmitFuncError(t *testing.T) {
	env := newTestEnv(t, func(cfg *ledger.LedgerConfig) {
		cfg.BreedingSubmitFunc = func(ledger.BreedingRequest) error {
			return errors.New("queue unavailable")
		}
	})
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	req, err := env.ledger.BreedWith(ctx, testAlice, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	stored, err := env.ledger.GetBreedingRequest(ctx, req.RequestId)
	require.NoError(t, err)
	assert.Equal(t, ledger.BreedingStatusFailed, stored.Status)
	assert.Contains(t, stored.Reason, "queue unavailable")
	slime, err := env.ledger.GetSlimeById(ctx, a)
	require.NoError(t, err)
	assert.Nil(t, slime.Pending)
}

func TestStartRedispatchesPending(t *testing.T) {
	// Requests are accepted but never handed to a collaborator
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	req, err := env.ledger.BreedWith(ctx, testAlice, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	env.ledger.Stop()
	// A restarted ledger over the same database picks the request back up
	dir := genescience.NewDirectory(nil)
	dir.Register(testGeneScience, genescience.NewLocalMixer())
	restarted, err := ledger.NewLedger(ledger.LedgerConfig{
		Database:              env.db,
		GeneScience:           dir,
		BaseBirthFee:          testBaseBirthFee,
		BirthFeePerGeneration: testBirthFeePerGeneration,
		Clock:                 env.clock.Now,
	})
	require.NoError(t, err)
	require.NoError(t, restarted.Start(ctx))
	defer restarted.Stop()
	env.ledger = restarted
	resolved := waitForResolution(t, env, req.RequestId)
	assert.Equal(t, ledger.BreedingStatusSucceeded, resolved.Status, resolved.Reason)
}

func TestDispatcherStopLeavesRequestPending(t *testing.T) {
	env := newDispatchEnv(t, blockingGeneScience{}, nil)
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	req, err := env.ledger.BreedWith(ctx, testAlice, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	env.ledger.Stop()
	stored, err := env.ledger.GetBreedingRequest(ctx, req.RequestId)
	require.NoError(t, err)
	assert.Equal(t, ledger.BreedingStatusPending, stored.Status)
	// Stop is idempotent
	env.ledger.Stop()
}
