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
	"fmt"
	"time"

	"github.com/slimy-crypto/slimy/database"
	"github.com/slimy-crypto/slimy/database/models"
	"github.com/slimy-crypto/slimy/ledger/common"
)

// Slime is an immutable snapshot of a slime record
type Slime struct {
	BirthTime   time.Time
	CooldownEnd time.Time
	Pending     *PendingBreeding
	Id          uint64
	MatronId    uint64 // zero for gen-zero
	SireId      uint64 // zero for gen-zero
	Generation  uint32
	Genome      common.Genome
	Owner       common.Address
	Approved    common.Address
}

// PendingBreeding marks a slime locked by an outstanding breeding request
type PendingBreeding struct {
	PartnerId   uint64
	EscrowedFee uint64
}

// HasParents reports whether the slime was born rather than created as
// gen-zero
func (s Slime) HasParents() bool {
	return s.MatronId != 0
}

func newSlime(record *database.Slime) Slime {
	ret := Slime{
		Id:          record.ID,
		Generation:  record.Genes.Generation,
		MatronId:    record.Genes.MatronId,
		SireId:      record.Genes.SireId,
		BirthTime:   time.UnixMilli(record.Genes.BirthTime),
		Owner:       addressFromBytes(record.Owner),
		Approved:    addressFromBytes(record.Approved),
		CooldownEnd: time.UnixMilli(record.CooldownEnd),
	}
	copy(ret.Genome[:], record.Genes.Genome)
	if record.IsPending() {
		ret.Pending = &PendingBreeding{
			PartnerId:   record.PendingPartner,
			EscrowedFee: uint64(record.PendingFee),
		}
	}
	return ret
}

// GetSlimeById returns a snapshot of a slime
func (l *Ledger) GetSlimeById(ctx context.Context, id uint64) (Slime, error) {
	var ret Slime
	err := l.view(ctx, "GetSlimeById", func(txn *database.Txn) error {
		record, err := l.loadSlime(id, txn)
		if err != nil {
			return err
		}
		ret = newSlime(record)
		return nil
	})
	return ret, err
}

// TotalSupply returns the number of slimes ever minted
func (l *Ledger) TotalSupply(ctx context.Context) (uint64, error) {
	var ret uint64
	err := l.view(ctx, "TotalSupply", func(txn *database.Txn) error {
		state, err := l.db.GetContractState(txn)
		if err != nil {
			return err
		}
		ret = state.TotalSupply
		return nil
	})
	return ret, err
}

// CreateGenZeroSlime mints a parentless slime. Only the administrator may
// call it.
func (l *Ledger) CreateGenZeroSlime(
	ctx context.Context,
	caller common.Address,
	genome common.Genome,
) (uint64, error) {
	var minted Slime
	var state *models.ContractState
	err := l.update(ctx, "CreateGenZeroSlime", func(txn *database.Txn) error {
		var err error
		state, err = l.requireAdmin(caller, txn)
		if err != nil {
			return err
		}
		recipient := caller
		if !l.config.GenZeroRecipient.IsZero() {
			recipient = l.config.GenZeroRecipient
		}
		record, err := l.mint(
			state,
			recipient,
			database.SlimeGenes{
				Genome:    genome.Bytes(),
				BirthTime: l.now().UnixMilli(),
			},
			txn,
		)
		if err != nil {
			return err
		}
		minted = newSlime(record)
		return nil
	})
	if err != nil {
		return 0, err
	}
	l.updateGauges(state, nil)
	l.logger.Info(
		fmt.Sprintf("created gen-zero slime %d", minted.Id),
		"component", "ledger",
		"owner", minted.Owner.String(),
	)
	l.publish(SlimeMintedEventType, SlimeMintedEvent{Slime: minted})
	return minted.Id, nil
}

// mint assigns the next id, stores the new slime and bumps the total supply.
// The caller's state is updated in place.
func (l *Ledger) mint(
	state *models.ContractState,
	owner common.Address,
	genes database.SlimeGenes,
	txn *database.Txn,
) (*database.Slime, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("%w: cannot mint to the zero address", ErrInvalidRecipient)
	}
	record := &models.Slime{
		ID:    state.TotalSupply + 1,
		Owner: owner.Bytes(),
	}
	if err := l.db.AddSlime(record, genes, txn); err != nil {
		return nil, fmt.Errorf("add slime: %w", err)
	}
	state.TotalSupply = record.ID
	if err := l.db.SetContractState(state, txn); err != nil {
		return nil, err
	}
	return &database.Slime{Slime: *record, Genes: genes}, nil
}
