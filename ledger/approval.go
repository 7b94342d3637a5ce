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

	"github.com/slimy-crypto/slimy/database"
	"github.com/slimy-crypto/slimy/ledger/common"
)

// Approve sets the single delegate allowed to transfer or breed a slime on
// the owner's behalf, replacing any previous delegate. A zero delegate
// clears the approval.
func (l *Ledger) Approve(
	ctx context.Context,
	caller common.Address,
	delegate common.Address,
	id uint64,
) error {
	err := l.update(ctx, "Approve", func(txn *database.Txn) error {
		record, err := l.db.Metadata().GetSlime(id, txn.Metadata())
		if err != nil {
			return translateNotFound(err, id)
		}
		if !isOwner(caller, record) {
			return fmt.Errorf("%w: only the owner may approve slime %d", ErrNotAuthorized, id)
		}
		if delegate.IsZero() {
			record.Approved = nil
		} else {
			record.Approved = delegate.Bytes()
		}
		return l.db.SetSlime(record, txn)
	})
	if err != nil {
		return err
	}
	l.publish(
		SlimeApprovedEventType,
		SlimeApprovedEvent{
			Owner:    caller,
			Delegate: delegate,
			SlimeId:  id,
		},
	)
	return nil
}

// GetApproved returns the approved delegate of a slime, or the zero address
func (l *Ledger) GetApproved(ctx context.Context, id uint64) (common.Address, error) {
	var ret common.Address
	err := l.view(ctx, "GetApproved", func(txn *database.Txn) error {
		record, err := l.db.Metadata().GetSlime(id, txn.Metadata())
		if err != nil {
			return translateNotFound(err, id)
		}
		ret = addressFromBytes(record.Approved)
		return nil
	})
	return ret, err
}
