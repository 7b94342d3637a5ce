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
	"testing"
	"time"

	"github.com/slimy-crypto/slimy/genescience"
	"github.com/slimy-crypto/slimy/ledger"
	"github.com/slimy-crypto/slimy/ledger/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// breedingSnapshot captures everything a rejected request must leave alone
type breedingSnapshot struct {
	matron      ledger.Slime
	sire        ledger.Slime
	supply      uint64
	accumulated uint64
	escrowed    uint64
	funds       uint64
}

func takeSnapshot(
	t *testing.T,
	env *testEnv,
	caller common.Address,
	matronId, sireId uint64,
) breedingSnapshot {
	t.Helper()
	ctx := context.Background()
	var ret breedingSnapshot
	var err error
	ret.matron, err = env.ledger.GetSlimeById(ctx, matronId)
	require.NoError(t, err)
	ret.sire, err = env.ledger.GetSlimeById(ctx, sireId)
	require.NoError(t, err)
	ret.supply, err = env.ledger.TotalSupply(ctx)
	require.NoError(t, err)
	ret.accumulated, err = env.ledger.AccumulatedFees(ctx)
	require.NoError(t, err)
	ret.escrowed, err = env.ledger.EscrowedFees(ctx)
	require.NoError(t, err)
	ret.funds, err = env.ledger.FundsOf(ctx, caller)
	require.NoError(t, err)
	return ret
}

func TestBirthFee(t *testing.T) {
	env := newTestEnv(t, nil)
	var prev uint64
	for gen := range uint32(20) {
		fee := env.ledger.BirthFee(gen)
		assert.Equal(t, uint64(testBaseBirthFee+gen*testBirthFeePerGeneration), fee)
		assert.GreaterOrEqual(t, fee, prev)
		prev = fee
	}
}

func TestCooldownFor(t *testing.T) {
	env := newTestEnv(t, func(cfg *ledger.LedgerConfig) {
		cfg.CooldownSchedule = []time.Duration{time.Minute, time.Hour}
	})
	assert.Equal(t, time.Minute, env.ledger.CooldownFor(0))
	assert.Equal(t, time.Hour, env.ledger.CooldownFor(1))
	assert.Equal(t, time.Hour, env.ledger.CooldownFor(50))
}

func TestBreedWithSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	fee, err := env.ledger.BirthFeeFor(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, env.ledger.BirthFee(0), fee)
	env.deposit(t, testAlice, 1000)
	require.True(t, env.ledger.CanBreedWith(ctx, testAlice, a, b))
	req, err := env.ledger.BreedWith(ctx, testAlice, a, b, fee)
	require.NoError(t, err)
	assert.Equal(t, ledger.BreedingStatusPending, req.Status)
	assert.Equal(t, fee, req.Fee)
	assert.Equal(t, testGeneScience, req.GeneScience)
	require.NoError(t, req.Err())
	submitted := env.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, req.RequestId, submitted[0].RequestId)
	// Both parents are locked with matching cooldowns
	slimeA, err := env.ledger.GetSlimeById(ctx, a)
	require.NoError(t, err)
	slimeB, err := env.ledger.GetSlimeById(ctx, b)
	require.NoError(t, err)
	require.NotNil(t, slimeA.Pending)
	require.NotNil(t, slimeB.Pending)
	assert.Equal(t, b, slimeA.Pending.PartnerId)
	assert.Equal(t, a, slimeB.Pending.PartnerId)
	assert.Equal(t, fee, slimeA.Pending.EscrowedFee)
	assert.Equal(t, slimeA.CooldownEnd, slimeB.CooldownEnd)
	assert.False(t, slimeA.CooldownEnd.Before(env.clock.Now()))
	assert.False(t, env.ledger.CanBreedWith(ctx, testAlice, a, b))
	funds, err := env.ledger.FundsOf(ctx, testAlice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000)-fee, funds)
	escrowed, err := env.ledger.EscrowedFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, fee, escrowed)
	// Resolve with a child genome
	_, evtCh := subscribe(t, env, ledger.BreedingResolvedEventType)
	childGenome := testGenome(0x70)
	resolved, err := env.ledger.ResolveBreeding(ctx, a, b, ledger.SucceededOutcome(childGenome))
	require.NoError(t, err)
	assert.Equal(t, ledger.BreedingStatusSucceeded, resolved.Status)
	assert.Equal(t, uint64(3), resolved.ChildId)
	evt := expectEvent(t, evtCh)
	resolvedEvt, ok := evt.Data.(ledger.BreedingResolvedEvent)
	require.True(t, ok)
	assert.Equal(t, req.RequestId, resolvedEvt.Request.RequestId)
	child, err := env.ledger.GetSlimeById(ctx, resolved.ChildId)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), child.Generation)
	assert.Equal(t, a, child.MatronId)
	assert.Equal(t, b, child.SireId)
	assert.Equal(t, childGenome, child.Genome)
	assert.Equal(t, testAlice, child.Owner)
	assert.Nil(t, child.Pending)
	supply, err := env.ledger.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), supply)
	slimeA, err = env.ledger.GetSlimeById(ctx, a)
	require.NoError(t, err)
	slimeB, err = env.ledger.GetSlimeById(ctx, b)
	require.NoError(t, err)
	assert.Nil(t, slimeA.Pending)
	assert.Nil(t, slimeB.Pending)
	// The fee charged is exactly the fee that became claimable
	accumulated, err := env.ledger.AccumulatedFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, fee, accumulated)
	escrowed, err = env.ledger.EscrowedFees(ctx)
	require.NoError(t, err)
	assert.Zero(t, escrowed)
	stored, err := env.ledger.GetBreedingRequest(ctx, req.RequestId)
	require.NoError(t, err)
	assert.Equal(t, ledger.BreedingStatusSucceeded, stored.Status)
	assert.False(t, stored.ResolvedAt.IsZero())
	requireOwnershipConsistent(t, env.ledger, testAdmin, testAlice)
}

func TestBreedWithFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	before := takeSnapshot(t, env, testAlice, a, b)
	fee := env.ledger.BirthFee(0)
	_, err := env.ledger.BreedWith(ctx, testAlice, a, b, fee)
	require.NoError(t, err)
	resolved, err := env.ledger.ResolveBreeding(
		ctx,
		a,
		b,
		ledger.FailedOutcome(errors.New("collaborator reverted")),
	)
	require.NoError(t, err)
	assert.Equal(t, ledger.BreedingStatusFailed, resolved.Status)
	assert.Contains(t, resolved.Reason, "collaborator reverted")
	var failure ledger.CollaboratorFailureError
	require.ErrorAs(t, resolved.Err(), &failure)
	assert.Equal(t, resolved.RequestId, failure.RequestId)
	require.ErrorIs(t, resolved.Err(), genescience.ErrCollaboratorFailure)
	after := takeSnapshot(t, env, testAlice, a, b)
	assert.Nil(t, after.matron.Pending)
	assert.Nil(t, after.sire.Pending)
	assert.Equal(t, before.funds, after.funds)
	assert.Equal(t, before.supply, after.supply)
	assert.Equal(t, before.accumulated, after.accumulated)
	assert.Zero(t, after.escrowed)
	// Cooldowns stay in force after a failure
	assert.True(t, after.matron.CooldownEnd.After(env.clock.Now()))
	assert.False(t, env.ledger.CanBreedWith(ctx, testAlice, a, b))
	env.clock.Advance(env.ledger.CooldownFor(0))
	assert.True(t, env.ledger.CanBreedWith(ctx, testAlice, a, b))
}

func TestResolveBreedingTwice(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	_, err := env.ledger.BreedWith(ctx, testAlice, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	outcome := ledger.FailedOutcome(errors.New("timeout"))
	_, err = env.ledger.ResolveBreeding(ctx, a, b, outcome)
	require.NoError(t, err)
	funds, err := env.ledger.FundsOf(ctx, testAlice)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), funds)
	_, err = env.ledger.ResolveBreeding(ctx, a, b, outcome)
	require.ErrorIs(t, err, ledger.ErrNoPendingBreeding)
	_, err = env.ledger.ResolveBreeding(ctx, a, b, ledger.SucceededOutcome(testGenome(9)))
	require.ErrorIs(t, err, ledger.ErrNoPendingBreeding)
	funds, err = env.ledger.FundsOf(ctx, testAlice)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), funds)
	supply, err := env.ledger.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), supply)
	// The pair is matched in request order only
	_, err = env.ledger.ResolveBreeding(ctx, b, a, outcome)
	require.ErrorIs(t, err, ledger.ErrNoPendingBreeding)
}

func TestBreedWithSelfPair(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	before := takeSnapshot(t, env, testAlice, a, b)
	assert.False(t, env.ledger.CanBreedWith(ctx, testAlice, a, a))
	_, err := env.ledger.BreedWith(ctx, testAlice, a, a, env.ledger.BirthFee(0))
	require.ErrorIs(t, err, ledger.ErrSameParent)
	assert.Equal(t, before, takeSnapshot(t, env, testAlice, a, b))
	assert.Empty(t, env.Submitted())
}

func TestBreedWithErrors(t *testing.T) {
	ctx := context.Background()
	testDefs := []struct {
		name    string
		setup   func(t *testing.T, env *testEnv, a, b uint64)
		caller  common.Address
		payment uint64
		sire    uint64
		wantErr error
	}{
		{
			name:    "unknown sire",
			caller:  testAlice,
			payment: testBaseBirthFee,
			sire:    99,
			wantErr: ledger.ErrUnknownToken,
		},
		{
			name:    "caller does not own matron",
			caller:  testBob,
			payment: testBaseBirthFee,
			wantErr: ledger.ErrNotAuthorized,
		},
		{
			name: "sire belongs to someone else",
			setup: func(t *testing.T, env *testEnv, a, b uint64) {
				require.NoError(t, env.ledger.Transfer(ctx, testAlice, testBob, b))
			},
			caller:  testAlice,
			payment: testBaseBirthFee,
			wantErr: ledger.ErrNotAuthorized,
		},
		{
			name: "parent cooling down",
			setup: func(t *testing.T, env *testEnv, a, b uint64) {
				c := env.mint(t, testAlice, 3)
				_, err := env.ledger.BreedWith(ctx, testAlice, b, c, testBaseBirthFee)
				require.NoError(t, err)
				_, err = env.ledger.ResolveBreeding(ctx, b, c, ledger.FailedOutcome(errors.New("revert")))
				require.NoError(t, err)
			},
			caller:  testAlice,
			payment: testBaseBirthFee,
			wantErr: ledger.ErrNotReadyToBreed,
		},
		{
			name: "parent pending",
			setup: func(t *testing.T, env *testEnv, a, b uint64) {
				c := env.mint(t, testAlice, 3)
				_, err := env.ledger.BreedWith(ctx, testAlice, b, c, testBaseBirthFee)
				require.NoError(t, err)
				env.clock.Advance(24 * time.Hour)
			},
			caller:  testAlice,
			payment: testBaseBirthFee,
			wantErr: ledger.ErrNotReadyToBreed,
		},
		{
			name: "collaborator not configured",
			setup: func(t *testing.T, env *testEnv, a, b uint64) {
				require.NoError(t, env.ledger.SetGeneScienceContractAddress(ctx, testAdmin, common.Address{}))
			},
			caller:  testAlice,
			payment: testBaseBirthFee,
			wantErr: ledger.ErrCollaboratorNotConfigured,
		},
		{
			name:    "payment below birth fee",
			caller:  testAlice,
			payment: testBaseBirthFee - 1,
			wantErr: ledger.ErrInsufficientFee,
		},
		{
			name:    "payment above funds",
			caller:  testAlice,
			payment: 10000,
			wantErr: ledger.ErrInsufficientFunds,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			a := env.mint(t, testAlice, 1)
			b := env.mint(t, testAlice, 2)
			env.deposit(t, testAlice, 1000)
			if testDef.setup != nil {
				testDef.setup(t, env, a, b)
			}
			sire := b
			if testDef.sire != 0 {
				sire = testDef.sire
			}
			submittedBefore := len(env.Submitted())
			var before breedingSnapshot
			if testDef.sire == 0 {
				before = takeSnapshot(t, env, testDef.caller, a, sire)
			}
			_, err := env.ledger.BreedWith(ctx, testDef.caller, a, sire, testDef.payment)
			require.ErrorIs(t, err, testDef.wantErr)
			assert.Len(t, env.Submitted(), submittedBefore)
			if testDef.sire == 0 {
				assert.Equal(t, before, takeSnapshot(t, env, testDef.caller, a, sire))
			}
		})
	}
}

func TestBreedWithExcessPayment(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 1000)
	req, err := env.ledger.BreedWith(ctx, testAlice, a, b, 700)
	require.NoError(t, err)
	assert.Equal(t, env.ledger.BirthFee(0), req.Fee)
	funds, err := env.ledger.FundsOf(ctx, testAlice)
	require.NoError(t, err)
	assert.Equal(t, 1000-req.Fee, funds)
}

func TestBreedWithApprovedCaller(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testBob, 1000)
	assert.False(t, env.ledger.CanBreedWith(ctx, testBob, a, b))
	require.NoError(t, env.ledger.Approve(ctx, testAlice, testBob, a))
	assert.True(t, env.ledger.CanBreedWith(ctx, testBob, a, b))
	req, err := env.ledger.BreedWith(ctx, testBob, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	assert.Equal(t, testBob, req.Caller)
	// The child goes to the matron's owner, not the caller
	resolved, err := env.ledger.ResolveBreeding(ctx, a, b, ledger.SucceededOutcome(testGenome(5)))
	require.NoError(t, err)
	owner, err := env.ledger.OwnerOf(ctx, resolved.ChildId)
	require.NoError(t, err)
	assert.Equal(t, testAlice, owner)
}

func TestBreedingPolicy(t *testing.T) {
	ctx := context.Background()
	testDefs := []struct {
		policy   ledger.BreedingPolicy
		expected bool
	}{
		{policy: ledger.BreedingPolicySameOwner, expected: false},
		{policy: ledger.BreedingPolicyOpen, expected: true},
	}
	for _, testDef := range testDefs {
		t.Run(string(testDef.policy), func(t *testing.T) {
			env := newTestEnv(t, func(cfg *ledger.LedgerConfig) {
				cfg.BreedingPolicy = testDef.policy
			})
			a := env.mint(t, testAlice, 1)
			b := env.mint(t, testBob, 2)
			env.deposit(t, testAlice, 1000)
			assert.Equal(t, testDef.expected, env.ledger.CanBreedWith(ctx, testAlice, a, b))
			_, err := env.ledger.BreedWith(ctx, testAlice, a, b, env.ledger.BirthFee(0))
			if testDef.expected {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ledger.ErrNotAuthorized)
			}
			// Approval over the sire satisfies the same-owner policy
			if !testDef.expected {
				require.NoError(t, env.ledger.Approve(ctx, testBob, testAlice, b))
				assert.True(t, env.ledger.CanBreedWith(ctx, testAlice, a, b))
			}
		})
	}
}

func TestNewLedgerUnknownPolicy(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := ledger.NewLedger(ledger.LedgerConfig{
		Database:       env.db,
		BreedingPolicy: "bogus",
	})
	require.Error(t, err)
}

func TestCanBreedWithMatchesBreedWith(t *testing.T) {
	ctx := context.Background()
	scenarios := []struct {
		name   string
		caller common.Address
		setup  func(t *testing.T, env *testEnv, a, b uint64)
	}{
		{name: "eligible", caller: testAlice},
		{name: "stranger", caller: testCarol},
		{
			name:   "pending",
			caller: testAlice,
			setup: func(t *testing.T, env *testEnv, a, b uint64) {
				_, err := env.ledger.BreedWith(ctx, testAlice, a, b, testBaseBirthFee)
				require.NoError(t, err)
			},
		},
		{
			name:   "cooldown elapsed after failure",
			caller: testAlice,
			setup: func(t *testing.T, env *testEnv, a, b uint64) {
				_, err := env.ledger.BreedWith(ctx, testAlice, a, b, testBaseBirthFee)
				require.NoError(t, err)
				_, err = env.ledger.ResolveBreeding(ctx, a, b, ledger.FailedOutcome(errors.New("revert")))
				require.NoError(t, err)
				env.clock.Advance(time.Hour)
			},
		},
		{
			name:   "zero caller",
			caller: common.Address{},
		},
	}
	for _, scenario := range scenarios {
		t.Run(scenario.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			a := env.mint(t, testAlice, 1)
			b := env.mint(t, testAlice, 2)
			env.deposit(t, testAlice, 1000)
			if scenario.setup != nil {
				scenario.setup(t, env, a, b)
			}
			canBreed := env.ledger.CanBreedWith(ctx, scenario.caller, a, b)
			_, err := env.ledger.BreedWith(ctx, scenario.caller, a, b, testBaseBirthFee)
			if scenario.caller.IsZero() {
				// An unchecked caller reports only pair eligibility
				assert.True(t, canBreed)
				require.ErrorIs(t, err, ledger.ErrNotAuthorized)
				return
			}
			assert.Equal(t, canBreed, err == nil, "err: %v", err)
		})
	}
}

func TestResolveBreedingRevalidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	req, err := env.ledger.BreedWith(ctx, testAlice, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	// The matron changes hands while the request is outstanding
	require.NoError(t, env.ledger.Transfer(ctx, testAlice, testBob, a))
	resolved, err := env.ledger.ResolveBreeding(ctx, a, b, ledger.SucceededOutcome(testGenome(7)))
	require.NoError(t, err)
	assert.Equal(t, ledger.BreedingStatusFailed, resolved.Status)
	assert.Contains(t, resolved.Reason, "changed owner")
	assert.Zero(t, resolved.ChildId)
	funds, err := env.ledger.FundsOf(ctx, req.Caller)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), funds)
	supply, err := env.ledger.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), supply)
	accumulated, err := env.ledger.AccumulatedFees(ctx)
	require.NoError(t, err)
	assert.Zero(t, accumulated)
}

func TestResolveBreedingEmptyGenome(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	env.deposit(t, testAlice, 500)
	_, err := env.ledger.BreedWith(ctx, testAlice, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	resolved, err := env.ledger.ResolveBreeding(ctx, a, b, ledger.SucceededOutcome(common.Genome{}))
	require.NoError(t, err)
	assert.Equal(t, ledger.BreedingStatusFailed, resolved.Status)
	assert.Contains(t, resolved.Reason, ledger.ErrInvalidGenome.Error())
}

func TestBirthFeeForHigherGeneration(t *testing.T) {
	env := newTestEnv(t, func(cfg *ledger.LedgerConfig) {
		cfg.CooldownSchedule = []time.Duration{time.Second}
	})
	ctx := context.Background()
	a := env.mint(t, testAlice, 1)
	b := env.mint(t, testAlice, 2)
	c := env.mint(t, testAlice, 3)
	env.deposit(t, testAlice, 10000)
	_, err := env.ledger.BreedWith(ctx, testAlice, a, b, env.ledger.BirthFee(0))
	require.NoError(t, err)
	resolved, err := env.ledger.ResolveBreeding(ctx, a, b, ledger.SucceededOutcome(testGenome(4)))
	require.NoError(t, err)
	child := resolved.ChildId
	env.clock.Advance(time.Second)
	fee, err := env.ledger.BirthFeeFor(ctx, child, c)
	require.NoError(t, err)
	assert.Equal(t, env.ledger.BirthFee(1), fee)
	fundsBefore, err := env.ledger.FundsOf(ctx, testAlice)
	require.NoError(t, err)
	_, err = env.ledger.BreedWith(ctx, testAlice, child, c, env.ledger.BirthFee(0))
	require.ErrorIs(t, err, ledger.ErrInsufficientFee)
	req, err := env.ledger.BreedWith(ctx, testAlice, child, c, fee)
	require.NoError(t, err)
	resolved, err = env.ledger.ResolveBreeding(ctx, child, c, ledger.SucceededOutcome(testGenome(8)))
	require.NoError(t, err)
	grandchild, err := env.ledger.GetSlimeById(ctx, resolved.ChildId)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), grandchild.Generation)
	fundsAfter, err := env.ledger.FundsOf(ctx, testAlice)
	require.NoError(t, err)
	assert.Equal(t, fundsBefore-req.Fee, fundsAfter)
	accumulated, err := env.ledger.AccumulatedFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, env.ledger.BirthFee(0)+fee, accumulated)
}
