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
	"time"

	"github.com/slimy-crypto/slimy/ledger"
	"github.com/slimy-crypto/slimy/ledger/common"
)

type Empty struct{}

type SlimeIdRequest struct {
	SlimeId uint64 `json:"slime_id"`
}

type AddressRequest struct {
	Address common.Address `json:"address"`
}

type PairRequest struct {
	MatronId uint64 `json:"matron_id"`
	SireId   uint64 `json:"sire_id"`
}

type AmountResponse struct {
	Amount uint64 `json:"amount"`
}

type AddressResponse struct {
	Address common.Address `json:"address"`
}

type BoolResponse struct {
	Value bool `json:"value"`
}

type TokensOfOwnerRequest struct {
	Owner common.Address `json:"owner"`
	// Limit caps the number of ids returned. Zero means no limit.
	Limit int `json:"limit,omitempty"`
}

type TokensOfOwnerResponse struct {
	SlimeIds []uint64 `json:"slime_ids"`
}

type BirthFeeRequest struct {
	Generation uint32 `json:"generation"`
}

type CanBreedWithRequest struct {
	MatronId uint64 `json:"matron_id"`
	SireId   uint64 `json:"sire_id"`
	// CheckCaller applies the authorization checks to the calling identity
	CheckCaller bool `json:"check_caller,omitempty"`
}

type BreedingRequestRequest struct {
	RequestId string `json:"request_id"`
}

type InitRequest struct {
	GeneScience common.Address `json:"gene_science"`
}

type TransferRequest struct {
	To      common.Address `json:"to"`
	SlimeId uint64         `json:"slime_id"`
}

type TransferFromRequest struct {
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	SlimeId uint64         `json:"slime_id"`
}

type ApproveRequest struct {
	Delegate common.Address `json:"delegate"`
	SlimeId  uint64         `json:"slime_id"`
}

type CreateGenZeroSlimeRequest struct {
	Genome common.Genome `json:"genome"`
}

type BreedWithRequest struct {
	MatronId uint64 `json:"matron_id"`
	SireId   uint64 `json:"sire_id"`
	Payment  uint64 `json:"payment"`
}

type ClaimRequest struct {
	Recipient common.Address `json:"recipient"`
}

type DepositRequest struct {
	Address common.Address `json:"address"`
	Amount  uint64         `json:"amount"`
}

type PendingBreeding struct {
	PartnerId   uint64 `json:"partner_id"`
	EscrowedFee uint64 `json:"escrowed_fee"`
}

type Slime struct {
	BirthTime   time.Time        `json:"birth_time"`
	CooldownEnd time.Time        `json:"cooldown_end"`
	Approved    *common.Address  `json:"approved,omitempty"`
	Pending     *PendingBreeding `json:"pending,omitempty"`
	Id          uint64           `json:"id"`
	MatronId    uint64           `json:"matron_id,omitempty"`
	SireId      uint64           `json:"sire_id,omitempty"`
	Generation  uint32           `json:"generation"`
	Genome      common.Genome    `json:"genome"`
	Owner       common.Address   `json:"owner"`
}

func newSlime(s ledger.Slime) *Slime {
	ret := &Slime{
		Id:          s.Id,
		Genome:      s.Genome,
		Generation:  s.Generation,
		MatronId:    s.MatronId,
		SireId:      s.SireId,
		Owner:       s.Owner,
		BirthTime:   s.BirthTime.UTC(),
		CooldownEnd: s.CooldownEnd.UTC(),
	}
	if !s.Approved.IsZero() {
		approved := s.Approved
		ret.Approved = &approved
	}
	if s.Pending != nil {
		ret.Pending = &PendingBreeding{
			PartnerId:   s.Pending.PartnerId,
			EscrowedFee: s.Pending.EscrowedFee,
		}
	}
	return ret
}

type BreedingRequest struct {
	RequestedAt time.Time      `json:"requested_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	RequestId   string         `json:"request_id"`
	Status      string         `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	MatronId    uint64         `json:"matron_id"`
	SireId      uint64         `json:"sire_id"`
	ChildId     uint64         `json:"child_id,omitempty"`
	Fee         uint64         `json:"fee"`
	Caller      common.Address `json:"caller"`
}

func newBreedingRequest(r ledger.BreedingRequest) *BreedingRequest {
	ret := &BreedingRequest{
		RequestId:   r.RequestId,
		Status:      string(r.Status),
		Reason:      r.Reason,
		MatronId:    r.MatronId,
		SireId:      r.SireId,
		ChildId:     r.ChildId,
		Fee:         r.Fee,
		Caller:      r.Caller,
		RequestedAt: r.RequestedAt.UTC(),
	}
	if !r.ResolvedAt.IsZero() {
		resolvedAt := r.ResolvedAt.UTC()
		ret.ResolvedAt = &resolvedAt
	}
	return ret
}
