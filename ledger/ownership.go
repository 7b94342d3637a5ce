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
	"fmt"
	"iter"

	"github.com/slimy-crypto/slimy/database"
	"github.com/slimy-crypto/slimy/ledger/common"
)

const tokensOfOwnerPageSize = 100

// OwnerOf returns the current owner of a slime
func (l *Ledger) OwnerOf(ctx context.Context, id uint64) (common.Address, error) {
	var ret common.Address
	err := l.view(ctx, "OwnerOf", func(txn *database.Txn) error {
		record, err := l.db.Metadata().GetSlime(id, txn.Metadata())
		if err != nil {
			return translateNotFound(err, id)
		}
		ret = addressFromBytes(record.Owner)
		return nil
	})
	return ret, err
}

// BalanceOf returns the number of slimes held by an address
func (l *Ledger) BalanceOf(ctx context.Context, owner common.Address) (uint64, error) {
	var ret uint64
	err := l.view(ctx, "BalanceOf", func(txn *database.Txn) error {
		var err error
		ret, err = l.db.CountSlimesByOwner(owner.Bytes(), txn)
		return err
	})
	return ret, err
}

// TokensOfOwner yields the ids held by owner in ascending order. Ids are read
// a page at a time, and every range over the sequence starts a fresh query.
// Iteration stops early if ctx is done or a read fails.
func (l *Ledger) TokensOfOwner(ctx context.Context, owner common.Address) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		var afterId uint64
		for {
			if ctx.Err() != nil {
				return
			}
			ids, err := l.db.GetSlimeIdsByOwner(
				owner.Bytes(),
				afterId,
				tokensOfOwnerPageSize,
				nil,
			)
			if err != nil {
				l.logger.Error(
					"failed to read slimes by owner",
					"component", "ledger",
					"owner", owner.String(),
					"error", err,
				)
				return
			}
			for _, id := range ids {
				if !yield(id) {
					return
				}
			}
			if len(ids) < tokensOfOwnerPageSize {
				return
			}
			afterId = ids[len(ids)-1]
		}
	}
}

// Transfer moves a slime from its owner to another address. The caller must
// be the owner or the approved delegate.
func (l *Ledger) Transfer(
	ctx context.Context,
	caller common.Address,
	to common.Address,
	id uint64,
) error {
	return l.transfer(ctx, "Transfer", caller, nil, to, id)
}

// TransferFrom is Transfer with an explicit expected current owner
func (l *Ledger) TransferFrom(
	ctx context.Context,
	caller common.Address,
	from common.Address,
	to common.Address,
	id uint64,
) error {
	return l.transfer(ctx, "TransferFrom", caller, &from, to, id)
}

func (l *Ledger) transfer(
	ctx context.Context,
	op string,
	caller common.Address,
	from *common.Address,
	to common.Address,
	id uint64,
) error {
	var evt SlimeTransferredEvent
	err := l.update(ctx, op, func(txn *database.Txn) error {
		record, err := l.db.Metadata().GetSlime(id, txn.Metadata())
		if err != nil {
			return translateNotFound(err, id)
		}
		if from != nil && !bytes.Equal(record.Owner, from.Bytes()) {
			return fmt.Errorf(
				"%w: slime %d is not owned by %s",
				ErrOwnershipMismatch,
				id,
				from.String(),
			)
		}
		if !isAuthorized(caller, record) {
			return fmt.Errorf("%w: caller may not transfer slime %d", ErrNotAuthorized, id)
		}
		if to.IsZero() {
			return fmt.Errorf("%w: cannot transfer to the zero address", ErrInvalidRecipient)
		}
		evt = SlimeTransferredEvent{
			From:    addressFromBytes(record.Owner),
			To:      to,
			SlimeId: id,
		}
		record.Owner = to.Bytes()
		record.Approved = nil
		return l.db.SetSlime(record, txn)
	})
	if err != nil {
		return err
	}
	l.metrics.transfersTotal.Inc()
	l.logger.Debug(
		fmt.Sprintf("transferred slime %d", id),
		"component", "ledger",
		"from", evt.From.String(),
		"to", to.String(),
	)
	l.publish(SlimeTransferredEventType, evt)
	return nil
}
