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

// Package common holds the identity and payload types shared by the ledger,
// the gene science collaborator and the RPC API
package common

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	AddressLength = 32
	AddressHrp    = "slime"
	GenomeLength  = 32
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidGenome  = errors.New("invalid genome")
)

// Address identifies an account. The zero address means "nobody" and is
// never a valid recipient.
type Address [AddressLength]byte

// NewAddress builds an address from raw bytes
func NewAddress(data []byte) (Address, error) {
	var ret Address
	if len(data) != AddressLength {
		return ret, fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrInvalidAddress,
			AddressLength,
			len(data),
		)
	}
	copy(ret[:], data)
	return ret, nil
}

// NewAddressFromString decodes a bech32 address
func NewAddressFromString(addr string) (Address, error) {
	var ret Address
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return ret, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if hrp != AddressHrp {
		return ret, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidAddress, hrp)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return ret, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return NewAddress(decoded)
}

// IsZero reports whether this is the zero address
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) Bytes() []byte {
	return a[:]
}

// String returns the bech32 encoding of the address
func (a Address) String() string {
	convData, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(fmt.Sprintf("unexpected error converting address bits: %s", err))
	}
	encoded, err := bech32.Encode(AddressHrp, convData)
	if err != nil {
		panic(fmt.Sprintf("unexpected error encoding address: %s", err))
	}
	return encoded
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(data []byte) error {
	// An empty string decodes to the zero address
	if len(data) == 0 {
		*a = Address{}
		return nil
	}
	tmp, err := NewAddressFromString(string(data))
	if err != nil {
		return err
	}
	*a = tmp
	return nil
}

// Genome is the opaque genetic payload of a slime
type Genome [GenomeLength]byte

// NewGenome builds a genome from raw bytes
func NewGenome(data []byte) (Genome, error) {
	var ret Genome
	if len(data) != GenomeLength {
		return ret, fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrInvalidGenome,
			GenomeLength,
			len(data),
		)
	}
	copy(ret[:], data)
	return ret, nil
}

// NewGenomeFromHex decodes a hex encoded genome
func NewGenomeFromHex(data string) (Genome, error) {
	raw, err := hex.DecodeString(data)
	if err != nil {
		return Genome{}, fmt.Errorf("%w: %w", ErrInvalidGenome, err)
	}
	return NewGenome(raw)
}

// IsZero reports whether every gene is zero
func (g Genome) IsZero() bool {
	return g == Genome{}
}

func (g Genome) Bytes() []byte {
	return g[:]
}

func (g Genome) String() string {
	return hex.EncodeToString(g[:])
}

func (g Genome) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Genome) UnmarshalText(data []byte) error {
	tmp, err := NewGenomeFromHex(string(data))
	if err != nil {
		return err
	}
	*g = tmp
	return nil
}
