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
	"errors"
	"fmt"

	"github.com/slimy-crypto/slimy/genescience"
	"github.com/slimy-crypto/slimy/ledger/common"
)

var (
	ErrUnknownToken              = errors.New("unknown token")
	ErrNotAuthorized             = errors.New("not authorized")
	ErrInvalidRecipient          = errors.New("invalid recipient")
	ErrOwnershipMismatch         = errors.New("ownership mismatch")
	ErrSameParent                = errors.New("matron and sire are the same slime")
	ErrNotReadyToBreed           = errors.New("not ready to breed")
	ErrInsufficientFee           = errors.New("insufficient fee")
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrCollaboratorNotConfigured = errors.New("gene science collaborator not configured")
	ErrNothingToClaim            = errors.New("nothing to claim")
	ErrAlreadyInitialized        = errors.New("already initialized")
	ErrNotInitialized            = errors.New("not initialized")
	ErrNoPendingBreeding         = errors.New("no pending breeding for parent pair")
	ErrInvalidGenome             = common.ErrInvalidGenome
)

// CollaboratorFailureError describes why a breeding request took the failure
// path
type CollaboratorFailureError struct {
	RequestId string
	Reason    string
}

func (e CollaboratorFailureError) Error() string {
	return fmt.Sprintf(
		"breeding request %s failed: %s",
		e.RequestId,
		e.Reason,
	)
}

func (e CollaboratorFailureError) Unwrap() error {
	return genescience.ErrCollaboratorFailure
}

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrUnknownToken, "UnknownToken"},
	{ErrNotAuthorized, "NotAuthorized"},
	{ErrInvalidRecipient, "InvalidRecipient"},
	{ErrOwnershipMismatch, "OwnershipMismatch"},
	{ErrSameParent, "SameParent"},
	{ErrNotReadyToBreed, "NotReadyToBreed"},
	{ErrInsufficientFee, "InsufficientFee"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrCollaboratorNotConfigured, "CollaboratorNotConfigured"},
	{ErrNothingToClaim, "NothingToClaim"},
	{ErrAlreadyInitialized, "AlreadyInitialized"},
	{ErrNotInitialized, "NotInitialized"},
	{ErrNoPendingBreeding, "NoPendingBreeding"},
	{ErrInvalidGenome, "InvalidGenome"},
	{common.ErrInvalidAddress, "InvalidAddress"},
	{genescience.ErrCollaboratorFailure, "CollaboratorFailure"},
}

// ErrorKind returns the short name of the ledger error kind wrapped by err, or
// an empty string for errors that are not ledger errors
func ErrorKind(err error) string {
	for _, tmpKind := range errorKinds {
		if errors.Is(err, tmpKind.err) {
			return tmpKind.kind
		}
	}
	return ""
}
