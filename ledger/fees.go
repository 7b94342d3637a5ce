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
	"errors"
	"fmt"
	"math"

	"github.com/slimy-crypto/slimy/database"
	"github.com/slimy-crypto/slimy/database/models"
	"github.com/slimy-crypto/slimy/ledger/common"
)

// Claim moves every accumulated fee to recipient's funds. Escrowed fees are
// never claimable.
func (l *Ledger) Claim(
	ctx context.Context,
	caller common.Address,
	recipient common.Address,
) (uint64, error) {
	var amount uint64
	var fees *models.FeeLedger
	err := l.update(ctx, "Claim", func(txn *database.Txn) error {
		if _, err := l.requireAdmin(caller, txn); err != nil {
			return err
		}
		if recipient.IsZero() {
			return fmt.Errorf("%w: cannot claim to the zero address", ErrInvalidRecipient)
		}
		var err error
		fees, err = l.db.GetFeeLedger(txn)
		if err != nil {
			return err
		}
		if fees.Accumulated == 0 {
			return ErrNothingToClaim
		}
		amount = uint64(fees.Accumulated)
		if err := l.credit(recipient, amount, txn); err != nil {
			return err
		}
		fees.Claimed += fees.Accumulated
		fees.Accumulated = 0
		return l.db.SetFeeLedger(fees, txn)
	})
	if err != nil {
		return 0, err
	}
	l.updateGauges(nil, fees)
	l.logger.Info(
		fmt.Sprintf("claimed %d in fees", amount),
		"component", "ledger",
		"recipient", recipient.String(),
	)
	l.publish(
		FeesClaimedEventType,
		FeesClaimedEvent{Recipient: recipient, Amount: amount},
	)
	return amount, nil
}

// AccumulatedFees returns the claimable fee balance
func (l *Ledger) AccumulatedFees(ctx context.Context) (uint64, error) {
	fees, err := l.feeLedger(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(fees.Accumulated), nil
}

// EscrowedFees returns the fees held by pending breeding requests
func (l *Ledger) EscrowedFees(ctx context.Context) (uint64, error) {
	fees, err := l.feeLedger(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(fees.Escrowed), nil
}

func (l *Ledger) feeLedger(ctx context.Context) (*models.FeeLedger, error) {
	var ret *models.FeeLedger
	err := l.view(ctx, "FeeLedger", func(txn *database.Txn) error {
		var err error
		ret, err = l.db.GetFeeLedger(txn)
		return err
	})
	return ret, err
}

// Deposit credits spendable funds to an address. Only the administrator may
// call it.
func (l *Ledger) Deposit(
	ctx context.Context,
	caller common.Address,
	address common.Address,
	amount uint64,
) error {
	return l.update(ctx, "Deposit", func(txn *database.Txn) error {
		if _, err := l.requireAdmin(caller, txn); err != nil {
			return err
		}
		if address.IsZero() {
			return fmt.Errorf("%w: cannot deposit to the zero address", ErrInvalidRecipient)
		}
		return l.credit(address, amount, txn)
	})
}

// FundsOf returns the spendable funds of an address
func (l *Ledger) FundsOf(ctx context.Context, address common.Address) (uint64, error) {
	var ret uint64
	err := l.view(ctx, "FundsOf", func(txn *database.Txn) error {
		var err error
		ret, err = l.db.GetFunds(address.Bytes(), txn)
		return err
	})
	return ret, err
}

func (l *Ledger) credit(address common.Address, amount uint64, txn *database.Txn) error {
	funds, err := l.db.GetFunds(address.Bytes(), txn)
	if err != nil {
		return err
	}
	if funds > math.MaxUint64-amount {
		return errors.New("funds overflow")
	}
	return l.db.SetFunds(address.Bytes(), funds+amount, txn)
}
