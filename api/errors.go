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

package api

import (
	"errors"

	"connectrpc.com/connect"
	"github.com/slimy-crypto/slimy/database/models"
	"github.com/slimy-crypto/slimy/ledger"
)

// ErrorKindHeader carries the ledger error kind on every failed call
const ErrorKindHeader = "Slimy-Error-Kind"

var errorCodes = []struct {
	err  error
	code connect.Code
}{
	{ledger.ErrUnknownToken, connect.CodeNotFound},
	{models.ErrBreedingRequestNotFound, connect.CodeNotFound},
	{ledger.ErrNotAuthorized, connect.CodePermissionDenied},
	{ledger.ErrInvalidRecipient, connect.CodeInvalidArgument},
	{ledger.ErrSameParent, connect.CodeInvalidArgument},
	{ledger.ErrInvalidGenome, connect.CodeInvalidArgument},
	{ledger.ErrOwnershipMismatch, connect.CodeFailedPrecondition},
	{ledger.ErrNotReadyToBreed, connect.CodeUnavailable},
	{ledger.ErrCollaboratorNotConfigured, connect.CodeFailedPrecondition},
	{ledger.ErrNotInitialized, connect.CodeFailedPrecondition},
	{ledger.ErrNoPendingBreeding, connect.CodeFailedPrecondition},
	{ledger.ErrNothingToClaim, connect.CodeFailedPrecondition},
	{ledger.ErrAlreadyInitialized, connect.CodeAlreadyExists},
	{ledger.ErrInsufficientFee, connect.CodeResourceExhausted},
	{ledger.ErrInsufficientFunds, connect.CodeResourceExhausted},
}

// connectError converts a ledger error into a connect error with a matching
// code and the error kind attached
func connectError(err error) *connect.Error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	code := connect.CodeInternal
	for _, tmpCode := range errorCodes {
		if errors.Is(err, tmpCode.err) {
			code = tmpCode.code
			break
		}
	}
	ret := connect.NewError(code, err)
	if kind := ledger.ErrorKind(err); kind != "" {
		ret.Meta().Set(ErrorKindHeader, kind)
	}
	return ret
}

// ErrorKindOf returns the ledger error kind reported by a failed call
func ErrorKindOf(err error) string {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return ""
	}
	return connectErr.Meta().Get(ErrorKindHeader)
}
