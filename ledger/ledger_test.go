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
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/slimy-crypto/slimy/database"
	"github.com/slimy-crypto/slimy/event"
	"github.com/slimy-crypto/slimy/ledger"
	"github.com/slimy-crypto/slimy/ledger/common"
	"github.com/stretchr/testify/require"
)

const (
	testBaseBirthFee          = 100
	testBirthFeePerGeneration = 10
)

var (
	testAdmin       = testAddress(0xa0)
	testAlice       = testAddress(0xa1)
	testBob         = testAddress(0xb0)
	testCarol       = testAddress(0xc0)
	testGeneScience = testAddress(0x9e)
)

func testAddress(b byte) common.Address {
	var ret common.Address
	for i := range ret {
		ret[i] = b
	}
	return ret
}

func testGenome(b byte) common.Genome {
	var ret common.Genome
	for i := range ret {
		ret[i] = b + byte(i)
	}
	return ret
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	ledger    *ledger.Ledger
	db        *database.Database
	bus       *event.EventBus
	clock     *testClock
	reg       *prometheus.Registry
	mu        sync.Mutex
	submitted []ledger.BreedingRequest
}

func (e *testEnv) Submitted() []ledger.BreedingRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.submitted)
}

// newTestEnv builds an initialized ledger over in-memory stores. Breeding
// requests are captured instead of dispatched unless cfgFunc clears
// BreedingSubmitFunc.
func newTestEnv(t *testing.T, cfgFunc func(*ledger.LedgerConfig)) *testEnv {
	t.Helper()
	env := newUninitializedTestEnv(t, cfgFunc)
	require.NoError(t, env.ledger.Init(context.Background(), testAdmin, testGeneScience))
	return env
}

func newUninitializedTestEnv(t *testing.T, cfgFunc func(*ledger.LedgerConfig)) *testEnv {
	t.Helper()
	db, err := database.New(&database.Config{
		PromRegistry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	env := &testEnv{
		db:    db,
		clock: &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		reg:   prometheus.NewRegistry(),
		bus:   event.NewEventBus(nil, nil),
	}
	t.Cleanup(env.bus.Stop)
	cfg := ledger.LedgerConfig{
		Database:              db,
		EventBus:              env.bus,
		PromRegistry:          env.reg,
		BaseBirthFee:          testBaseBirthFee,
		BirthFeePerGeneration: testBirthFeePerGeneration,
		Clock:                 env.clock.Now,
		BreedingSubmitFunc: func(req ledger.BreedingRequest) error {
			env.mu.Lock()
			defer env.mu.Unlock()
			env.submitted = append(env.submitted, req)
			return nil
		},
	}
	if cfgFunc != nil {
		cfgFunc(&cfg)
	}
	l, err := ledger.NewLedger(cfg)
	require.NoError(t, err)
	t.Cleanup(l.Stop)
	env.ledger = l
	return env
}

// mint creates a gen-zero slime and hands it to owner
func (e *testEnv) mint(t *testing.T, owner common.Address, seed byte) uint64 {
	t.Helper()
	ctx := context.Background()
	id, err := e.ledger.CreateGenZeroSlime(ctx, testAdmin, testGenome(seed))
	require.NoError(t, err)
	if owner != testAdmin {
		require.NoError(t, e.ledger.Transfer(ctx, testAdmin, owner, id))
	}
	return id
}

func (e *testEnv) deposit(t *testing.T, addr common.Address, amount uint64) {
	t.Helper()
	require.NoError(
		t,
		e.ledger.Deposit(context.Background(), testAdmin, addr, amount),
	)
}

// requireOwnershipConsistent checks that every minted id has exactly one
// owner, that the owner's token list contains it and that the balances of
// the given addresses account for the whole supply
func requireOwnershipConsistent(
	t *testing.T,
	l *ledger.Ledger,
	addrs ...common.Address,
) {
	t.Helper()
	ctx := context.Background()
	supply, err := l.TotalSupply(ctx)
	require.NoError(t, err)
	tokens := make(map[common.Address][]uint64)
	var balanceTotal uint64
	for _, addr := range addrs {
		tokens[addr] = slices.Collect(l.TokensOfOwner(ctx, addr))
		balance, err := l.BalanceOf(ctx, addr)
		require.NoError(t, err)
		require.Equal(t, uint64(len(tokens[addr])), balance)
		balanceTotal += balance
	}
	require.Equal(t, supply, balanceTotal)
	for id := uint64(1); id <= supply; id++ {
		owner, err := l.OwnerOf(ctx, id)
		require.NoError(t, err)
		for _, addr := range addrs {
			require.Equal(
				t,
				addr == owner,
				slices.Contains(tokens[addr], id),
				"slime %d", id,
			)
		}
	}
}
