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

package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
)

// Uint64 is stored as a decimal string so that the full unsigned range
// survives databases that only have signed 64-bit integers
//
//nolint:recvcheck
type Uint64 uint64

// GormDataType keeps the column textual so no database coerces the value
// into a lossy numeric type
func (Uint64) GormDataType() string {
	return "string"
}

func (u Uint64) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(u), 10), nil
}

func (u *Uint64) Scan(val any) error {
	var v string
	switch tmpVal := val.(type) {
	case nil:
		*u = 0
		return nil
	case string:
		v = tmpVal
	case []byte:
		v = string(tmpVal)
	case int64:
		if tmpVal < 0 {
			return fmt.Errorf("negative value for Uint64: %d", tmpVal)
		}
		*u = Uint64(tmpVal)
		return nil
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	tmpUint, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return err
	}
	*u = Uint64(tmpUint)
	return nil
}

// ErrBlobKeyNotFound is returned by blob operations when a key is missing
var ErrBlobKeyNotFound = errors.New("blob key not found")

// ErrTxnWrongType is returned when a transaction has the wrong type
var ErrTxnWrongType = errors.New("invalid transaction type")

// ErrNilTxn is returned when a nil transaction is provided where a valid transaction is required
var ErrNilTxn = errors.New("nil transaction")

// ErrNoStoreAvailable is returned when no blob or metadata store is available
var ErrNoStoreAvailable = errors.New("no store available")

// ErrBlobStoreUnavailable is returned when blob store cannot be accessed
var ErrBlobStoreUnavailable = errors.New("blob store unavailable")

// ErrTxnFinished is returned when a finished transaction is used again
var ErrTxnFinished = errors.New("transaction already finished")

// Txn is a simple transaction handle for commit/rollback only.
// The database layer coordinates metadata and blob operations separately.
type Txn interface {
	Commit() error
	Rollback() error
}
