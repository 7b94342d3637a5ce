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

	"github.com/slimy-crypto/slimy/database"
	"github.com/slimy-crypto/slimy/database/models"
	"github.com/slimy-crypto/slimy/ledger/common"
)

// BreedingOutcome is the collaborator's answer to a breeding request. A nil
// Err means Genome holds the child genome.
type BreedingOutcome struct {
	Err    error
	Genome common.Genome
}

func SucceededOutcome(genome common.Genome) BreedingOutcome {
	return BreedingOutcome{Genome: genome}
}

func FailedOutcome(err error) BreedingOutcome {
	if err == nil {
		err = errors.New("unspecified failure")
	}
	return BreedingOutcome{Err: err}
}

// ResolveBreeding finishes the pending breeding request for a parent pair.
// Current state is re-validated first: if either parent no longer exists,
// is no longer pending with the other or has changed owner, the failure path
// is taken regardless of the outcome. On success the child is minted to the
// matron's owner and the escrowed fee becomes claimable. On failure the fee
// is refunded to the caller. Both paths unlock the parents and leave their
// cooldowns alone.
func (l *Ledger) ResolveBreeding(
	ctx context.Context,
	matronId uint64,
	sireId uint64,
	outcome BreedingOutcome,
) (BreedingRequest, error) {
	var ret BreedingRequest
	var child *Slime
	var state *models.ContractState
	var fees *models.FeeLedger
	err := l.update(ctx, "ResolveBreeding", func(txn *database.Txn) error {
		req, err := l.db.GetPendingBreedingRequest(matronId, sireId, txn)
		if err != nil {
			if errors.Is(err, models.ErrBreedingRequestNotFound) {
				return fmt.Errorf(
					"%w: matron %d, sire %d",
					ErrNoPendingBreeding,
					matronId,
					sireId,
				)
			}
			return err
		}
		state, err = l.db.GetContractState(txn)
		if err != nil {
			return err
		}
		fees, err = l.db.GetFeeLedger(txn)
		if err != nil {
			return err
		}
		matron, matronErr := l.loadSlime(matronId, txn)
		sire, sireErr := l.loadSlime(sireId, txn)
		for _, tmpErr := range []error{matronErr, sireErr} {
			if tmpErr != nil && !errors.Is(tmpErr, ErrUnknownToken) {
				return tmpErr
			}
		}
		failReason := l.revalidate(req, matron, sire)
		if failReason == "" {
			if outcome.Err != nil {
				failReason = outcome.Err.Error()
			} else if outcome.Genome.IsZero() {
				failReason = fmt.Sprintf("collaborator returned an empty genome: %s", ErrInvalidGenome)
			}
		}
		// Unlock whichever parents still belong to this request
		if matron != nil && matron.PendingPartner == sireId {
			if err := l.unlock(&matron.Slime, txn); err != nil {
				return err
			}
		}
		if sire != nil && sire.PendingPartner == matronId {
			if err := l.unlock(&sire.Slime, txn); err != nil {
				return err
			}
		}
		fee := req.Fee
		if fees.Escrowed < fee {
			l.logger.Error(
				"escrow is smaller than the request fee",
				"component", "ledger",
				"request_id", req.RequestID,
				"escrowed", uint64(fees.Escrowed),
				"fee", uint64(fee),
			)
			fees.Escrowed = 0
		} else {
			fees.Escrowed -= fee
		}
		req.ResolvedAt = l.now().UnixMilli()
		if failReason == "" {
			record, err := l.mint(
				state,
				addressFromBytes(matron.Owner),
				database.SlimeGenes{
					Genome:     outcome.Genome.Bytes(),
					Generation: max(matron.Genes.Generation, sire.Genes.Generation) + 1,
					MatronId:   matronId,
					SireId:     sireId,
					BirthTime:  req.ResolvedAt,
				},
				txn,
			)
			if err != nil {
				return err
			}
			tmpChild := newSlime(record)
			child = &tmpChild
			fees.Accumulated += fee
			req.Status = models.BreedingStatusSucceeded
			req.ChildID = record.ID
		} else {
			if err := l.credit(addressFromBytes(req.Caller), uint64(fee), txn); err != nil {
				return err
			}
			req.Status = models.BreedingStatusFailed
			req.Reason = failReason
		}
		if err := l.db.SetFeeLedger(fees, txn); err != nil {
			return err
		}
		if err := l.db.SetBreedingRequest(req, txn); err != nil {
			return err
		}
		ret = newBreedingRequest(req)
		return nil
	})
	if err != nil {
		return BreedingRequest{}, err
	}
	l.updateGauges(state, fees)
	l.metrics.breedingResolutions.WithLabelValues(string(ret.Status)).Inc()
	if child != nil {
		l.logger.Info(
			fmt.Sprintf("slime %d born to parents %d and %d", child.Id, matronId, sireId),
			"component", "ledger",
			"request_id", ret.RequestId,
			"owner", child.Owner.String(),
		)
		l.publish(SlimeMintedEventType, SlimeMintedEvent{Slime: *child})
	} else {
		l.logger.Info(
			fmt.Sprintf("breeding failed for parents %d and %d", matronId, sireId),
			"component", "ledger",
			"request_id", ret.RequestId,
			"reason", ret.Reason,
		)
	}
	l.publish(BreedingResolvedEventType, BreedingResolvedEvent{Request: ret})
	return ret, nil
}

// revalidate returns a failure reason if the parents no longer match the
// request, or an empty string
func (l *Ledger) revalidate(
	req *models.BreedingRequest,
	matron *database.Slime,
	sire *database.Slime,
) string {
	switch {
	case matron == nil:
		return fmt.Sprintf("matron %d no longer exists", req.MatronID)
	case sire == nil:
		return fmt.Sprintf("sire %d no longer exists", req.SireID)
	case matron.PendingPartner != req.SireID:
		return fmt.Sprintf("matron %d is no longer pending with sire %d", req.MatronID, req.SireID)
	case sire.PendingPartner != req.MatronID:
		return fmt.Sprintf("sire %d is no longer pending with matron %d", req.SireID, req.MatronID)
	case !bytes.Equal(matron.Owner, req.MatronOwner):
		return fmt.Sprintf("matron %d changed owner", req.MatronID)
	case !bytes.Equal(sire.Owner, req.SireOwner):
		return fmt.Sprintf("sire %d changed owner", req.SireID)
	}
	return ""
}

func (l *Ledger) unlock(record *models.Slime, txn *database.Txn) error {
	record.PendingPartner = 0
	record.PendingFee = 0
	return l.db.SetSlime(record, txn)
}
