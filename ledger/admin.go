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

// Init performs the one-time setup, storing the administrator capability and
// optionally the gene science collaborator address
func (l *Ledger) Init(
	ctx context.Context,
	admin common.Address,
	geneScience common.Address,
) error {
	if admin.IsZero() {
		return fmt.Errorf("%w: zero administrator address", common.ErrInvalidAddress)
	}
	err := l.update(ctx, "Init", func(txn *database.Txn) error {
		state, err := l.db.GetContractState(txn)
		if err != nil {
			return err
		}
		if state.Initialized {
			return ErrAlreadyInitialized
		}
		state.Initialized = true
		state.Admin = admin.Bytes()
		if !geneScience.IsZero() {
			state.GeneScience = geneScience.Bytes()
		}
		return l.db.SetContractState(state, txn)
	})
	if err != nil {
		return err
	}
	l.logger.Info(
		"ledger initialized",
		"component", "ledger",
		"admin", admin.String(),
	)
	return nil
}

// SetGeneScienceContractAddress replaces the collaborator address used by new
// breeding requests. A zero address unsets it.
func (l *Ledger) SetGeneScienceContractAddress(
	ctx context.Context,
	caller common.Address,
	address common.Address,
) error {
	err := l.update(ctx, "SetGeneScienceContractAddress", func(txn *database.Txn) error {
		state, err := l.requireAdmin(caller, txn)
		if err != nil {
			return err
		}
		if address.IsZero() {
			state.GeneScience = nil
		} else {
			state.GeneScience = address.Bytes()
		}
		return l.db.SetContractState(state, txn)
	})
	if err != nil {
		return err
	}
	l.logger.Info(
		"gene science address updated",
		"component", "ledger",
		"address", address.String(),
	)
	return nil
}

// GeneScienceContractAddress returns the configured collaborator address, or
// the zero address when unset
func (l *Ledger) GeneScienceContractAddress(ctx context.Context) (common.Address, error) {
	var ret common.Address
	err := l.view(ctx, "GeneScienceContractAddress", func(txn *database.Txn) error {
		state, err := l.db.GetContractState(txn)
		if err != nil {
			return err
		}
		ret = addressFromBytes(state.GeneScience)
		return nil
	})
	return ret, err
}

// Administrator returns the administrator address, or the zero address
// before Init
func (l *Ledger) Administrator(ctx context.Context) (common.Address, error) {
	var ret common.Address
	err := l.view(ctx, "Administrator", func(txn *database.Txn) error {
		state, err := l.db.GetContractState(txn)
		if err != nil {
			return err
		}
		ret = addressFromBytes(state.Admin)
		return nil
	})
	return ret, err
}
