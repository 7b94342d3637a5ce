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
	"time"

	"github.com/google/uuid"
	"github.com/slimy-crypto/slimy/database"
	"github.com/slimy-crypto/slimy/database/models"
	"github.com/slimy-crypto/slimy/ledger/common"
)

// BreedingPolicy decides whether two slimes with different owners may breed
type BreedingPolicy string

const (
	// BreedingPolicySameOwner requires the sire to share the matron's owner,
	// or the caller to own or be approved for the sire as well
	BreedingPolicySameOwner BreedingPolicy = "same-owner"
	// BreedingPolicyOpen lets any sire be used
	BreedingPolicyOpen BreedingPolicy = "open"
)

func (p BreedingPolicy) valid() bool {
	return p == BreedingPolicySameOwner || p == BreedingPolicyOpen
}

// DefaultCooldownSchedule is indexed by generation. Generations past the end
// use the last entry.
var DefaultCooldownSchedule = []time.Duration{
	1 * time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
	30 * time.Minute,
	1 * time.Hour,
	2 * time.Hour,
	4 * time.Hour,
	8 * time.Hour,
	16 * time.Hour,
	24 * time.Hour,
	48 * time.Hour,
	96 * time.Hour,
	168 * time.Hour,
}

type BreedingStatus string

const (
	BreedingStatusPending   BreedingStatus = models.BreedingStatusPending
	BreedingStatusSucceeded BreedingStatus = models.BreedingStatusSucceeded
	BreedingStatusFailed    BreedingStatus = models.BreedingStatusFailed
)

// BreedingRequest is a snapshot of a breeding request
type BreedingRequest struct {
	RequestedAt time.Time
	ResolvedAt  time.Time
	RequestId   string
	Status      BreedingStatus
	Reason      string
	MatronId    uint64
	SireId      uint64
	ChildId     uint64
	Fee         uint64
	Caller      common.Address
	MatronOwner common.Address
	SireOwner   common.Address
	GeneScience common.Address
}

func newBreedingRequest(req *models.BreedingRequest) BreedingRequest {
	ret := BreedingRequest{
		RequestId:   req.RequestID,
		Status:      BreedingStatus(req.Status),
		Reason:      req.Reason,
		MatronId:    req.MatronID,
		SireId:      req.SireID,
		ChildId:     req.ChildID,
		Fee:         uint64(req.Fee),
		Caller:      addressFromBytes(req.Caller),
		MatronOwner: addressFromBytes(req.MatronOwner),
		SireOwner:   addressFromBytes(req.SireOwner),
		GeneScience: addressFromBytes(req.GeneScience),
		RequestedAt: time.UnixMilli(req.RequestedAt),
	}
	if req.ResolvedAt > 0 {
		ret.ResolvedAt = time.UnixMilli(req.ResolvedAt)
	}
	return ret
}

// Err returns a CollaboratorFailureError for a failed request and nil
// otherwise
func (r BreedingRequest) Err() error {
	if r.Status != BreedingStatusFailed {
		return nil
	}
	return CollaboratorFailureError{RequestId: r.RequestId, Reason: r.Reason}
}

// CooldownFor returns the cooldown applied to a slime of the given generation
// when it enters a breeding request
func (l *Ledger) CooldownFor(generation uint32) time.Duration {
	schedule := l.config.CooldownSchedule
	idx := int(min(generation, uint32(len(schedule)-1))) //nolint:gosec // schedule is never empty
	return schedule[idx]
}

// BirthFee returns the fee for breeding parents whose higher generation is
// generation
func (l *Ledger) BirthFee(generation uint32) uint64 {
	return l.config.BaseBirthFee + uint64(generation)*l.config.BirthFeePerGeneration
}

// BirthFeeFor returns the fee BreedWith would escrow for a parent pair
func (l *Ledger) BirthFeeFor(ctx context.Context, matronId, sireId uint64) (uint64, error) {
	var ret uint64
	err := l.view(ctx, "BirthFeeFor", func(txn *database.Txn) error {
		matron, err := l.db.GetSlimeGenes(matronId, txn)
		if err != nil {
			return translateNotFound(err, matronId)
		}
		sire, err := l.db.GetSlimeGenes(sireId, txn)
		if err != nil {
			return translateNotFound(err, sireId)
		}
		ret = l.BirthFee(max(matron.Generation, sire.Generation))
		return nil
	})
	return ret, err
}

// CanBreedWith reports whether BreedWith would pass its eligibility checks
// for this pair. A zero caller skips the authorization and policy checks.
func (l *Ledger) CanBreedWith(
	ctx context.Context,
	caller common.Address,
	matronId uint64,
	sireId uint64,
) bool {
	var ok bool
	err := l.view(ctx, "CanBreedWith", func(txn *database.Txn) error {
		_, _, err := l.checkBreedable(caller, matronId, sireId, !caller.IsZero(), txn)
		if err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil && ErrorKind(err) == "" {
		l.logger.Error(
			"breeding eligibility check failed",
			"component", "ledger",
			"error", err,
		)
	}
	return ok
}

// checkBreedable runs the eligibility checks shared by CanBreedWith and
// BreedWith, in the order their errors are reported
func (l *Ledger) checkBreedable(
	caller common.Address,
	matronId uint64,
	sireId uint64,
	checkCaller bool,
	txn *database.Txn,
) (*database.Slime, *database.Slime, error) {
	matron, err := l.loadSlime(matronId, txn)
	if err != nil {
		return nil, nil, err
	}
	sire, err := l.loadSlime(sireId, txn)
	if err != nil {
		return nil, nil, err
	}
	if matronId == sireId {
		return nil, nil, fmt.Errorf("%w: %d", ErrSameParent, matronId)
	}
	if checkCaller {
		if !isAuthorized(caller, &matron.Slime) {
			return nil, nil, fmt.Errorf(
				"%w: caller may not breed matron %d",
				ErrNotAuthorized,
				matronId,
			)
		}
		if !l.policyAllows(caller, &matron.Slime, &sire.Slime) {
			return nil, nil, fmt.Errorf(
				"%w: breeding policy %s rejects sire %d",
				ErrNotAuthorized,
				l.config.BreedingPolicy,
				sireId,
			)
		}
	}
	nowMs := l.now().UnixMilli()
	for _, parent := range []*database.Slime{matron, sire} {
		if parent.IsPending() {
			return nil, nil, fmt.Errorf(
				"%w: slime %d has a pending breeding request",
				ErrNotReadyToBreed,
				parent.ID,
			)
		}
		if nowMs < parent.CooldownEnd {
			return nil, nil, fmt.Errorf(
				"%w: slime %d is cooling down until %s",
				ErrNotReadyToBreed,
				parent.ID,
				time.UnixMilli(parent.CooldownEnd).UTC().Format(time.RFC3339),
			)
		}
	}
	return matron, sire, nil
}

func (l *Ledger) policyAllows(
	caller common.Address,
	matron *models.Slime,
	sire *models.Slime,
) bool {
	switch l.config.BreedingPolicy {
	case BreedingPolicyOpen:
		return true
	default:
		return bytes.Equal(matron.Owner, sire.Owner) || isAuthorized(caller, sire)
	}
}

// BreedWith starts a breeding request. On success both parents are locked,
// the birth fee is escrowed and the request is handed to the collaborator.
// Any payment above the birth fee stays with the caller.
func (l *Ledger) BreedWith(
	ctx context.Context,
	caller common.Address,
	matronId uint64,
	sireId uint64,
	payment uint64,
) (BreedingRequest, error) {
	var ret BreedingRequest
	var fees *models.FeeLedger
	err := l.update(ctx, "BreedWith", func(txn *database.Txn) error {
		matron, sire, err := l.checkBreedable(caller, matronId, sireId, true, txn)
		if err != nil {
			return err
		}
		state, err := l.db.GetContractState(txn)
		if err != nil {
			return err
		}
		if len(state.GeneScience) == 0 {
			return ErrCollaboratorNotConfigured
		}
		required := l.BirthFee(max(matron.Genes.Generation, sire.Genes.Generation))
		if payment < required {
			return fmt.Errorf(
				"%w: birth fee is %d, got %d",
				ErrInsufficientFee,
				required,
				payment,
			)
		}
		funds, err := l.db.GetFunds(caller.Bytes(), txn)
		if err != nil {
			return err
		}
		if funds < payment {
			return fmt.Errorf(
				"%w: payment %d exceeds available funds %d",
				ErrInsufficientFunds,
				payment,
				funds,
			)
		}
		if err := l.db.SetFunds(caller.Bytes(), funds-required, txn); err != nil {
			return err
		}
		// Lock both parents. Each starts the cooldown for its own generation.
		now := l.now()
		matron.PendingPartner = sireId
		matron.PendingFee = models.Uint64(required)
		matron.CooldownEnd = now.Add(l.CooldownFor(matron.Genes.Generation)).UnixMilli()
		if err := l.db.SetSlime(&matron.Slime, txn); err != nil {
			return err
		}
		sire.PendingPartner = matronId
		sire.PendingFee = models.Uint64(required)
		sire.CooldownEnd = now.Add(l.CooldownFor(sire.Genes.Generation)).UnixMilli()
		if err := l.db.SetSlime(&sire.Slime, txn); err != nil {
			return err
		}
		fees, err = l.db.GetFeeLedger(txn)
		if err != nil {
			return err
		}
		fees.Escrowed += models.Uint64(required)
		if err := l.db.SetFeeLedger(fees, txn); err != nil {
			return err
		}
		req := &models.BreedingRequest{
			RequestID:   uuid.NewString(),
			Status:      models.BreedingStatusPending,
			Caller:      caller.Bytes(),
			MatronOwner: matron.Owner,
			SireOwner:   sire.Owner,
			GeneScience: state.GeneScience,
			MatronID:    matronId,
			SireID:      sireId,
			Fee:         models.Uint64(required),
			RequestedAt: now.UnixMilli(),
		}
		if err := l.db.AddBreedingRequest(req, txn); err != nil {
			return fmt.Errorf("add breeding request: %w", err)
		}
		ret = newBreedingRequest(req)
		return nil
	})
	if err != nil {
		return BreedingRequest{}, err
	}
	l.updateGauges(nil, fees)
	l.metrics.breedingRequests.Inc()
	l.logger.Info(
		fmt.Sprintf("breeding requested for slimes %d and %d", matronId, sireId),
		"component", "ledger",
		"request_id", ret.RequestId,
		"fee", ret.Fee,
	)
	l.publish(BreedingRequestedEventType, BreedingRequestedEvent{Request: ret})
	l.submit(ctx, ret)
	return ret, nil
}

// submit hands a committed request to the collaborator. A request that cannot
// be submitted is resolved as a failure immediately.
func (l *Ledger) submit(ctx context.Context, req BreedingRequest) {
	var err error
	if l.config.BreedingSubmitFunc != nil {
		err = l.config.BreedingSubmitFunc(req)
	} else {
		err = l.dispatcher.enqueue(req)
	}
	if err == nil {
		return
	}
	l.logger.Warn(
		"failed to submit breeding request",
		"component", "ledger",
		"request_id", req.RequestId,
		"error", err,
	)
	// The dispatcher context may already be gone, so resolve without it
	_, resolveErr := l.ResolveBreeding(
		context.WithoutCancel(ctx),
		req.MatronId,
		req.SireId,
		FailedOutcome(err),
	)
	if resolveErr != nil && !errors.Is(resolveErr, ErrNoPendingBreeding) {
		l.logger.Error(
			"failed to resolve unsubmitted breeding request",
			"component", "ledger",
			"request_id", req.RequestId,
			"error", resolveErr,
		)
	}
}

// GetBreedingRequest returns a breeding request by id
func (l *Ledger) GetBreedingRequest(ctx context.Context, requestId string) (BreedingRequest, error) {
	var ret BreedingRequest
	err := l.view(ctx, "GetBreedingRequest", func(txn *database.Txn) error {
		req, err := l.db.GetBreedingRequest(requestId, txn)
		if err != nil {
			return err
		}
		ret = newBreedingRequest(req)
		return nil
	})
	return ret, err
}
