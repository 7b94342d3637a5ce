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
	"context"

	"github.com/slimy-crypto/slimy/ledger/common"
)

func (a *Api) handlers() []procedureHandler {
	l := a.config.Ledger
	return []procedureHandler{
		// Queries
		unary(a, "TotalSupply", false,
			func(ctx context.Context, _ common.Address, _ *Empty) (*AmountResponse, error) {
				supply, err := l.TotalSupply(ctx)
				if err != nil {
					return nil, err
				}
				return &AmountResponse{Amount: supply}, nil
			},
		),
		unary(a, "BalanceOf", false,
			func(ctx context.Context, _ common.Address, req *AddressRequest) (*AmountResponse, error) {
				balance, err := l.BalanceOf(ctx, req.Address)
				if err != nil {
					return nil, err
				}
				return &AmountResponse{Amount: balance}, nil
			},
		),
		unary(a, "OwnerOf", false,
			func(ctx context.Context, _ common.Address, req *SlimeIdRequest) (*AddressResponse, error) {
				owner, err := l.OwnerOf(ctx, req.SlimeId)
				if err != nil {
					return nil, err
				}
				return &AddressResponse{Address: owner}, nil
			},
		),
		unary(a, "TokensOfOwner", false,
			func(ctx context.Context, _ common.Address, req *TokensOfOwnerRequest) (*TokensOfOwnerResponse, error) {
				ret := &TokensOfOwnerResponse{SlimeIds: []uint64{}}
				for id := range l.TokensOfOwner(ctx, req.Owner) {
					ret.SlimeIds = append(ret.SlimeIds, id)
					if req.Limit > 0 && len(ret.SlimeIds) >= req.Limit {
						break
					}
				}
				return ret, nil
			},
		),
		unary(a, "GetSlimeById", false,
			func(ctx context.Context, _ common.Address, req *SlimeIdRequest) (*Slime, error) {
				slime, err := l.GetSlimeById(ctx, req.SlimeId)
				if err != nil {
					return nil, err
				}
				return newSlime(slime), nil
			},
		),
		unary(a, "GetApproved", false,
			func(ctx context.Context, _ common.Address, req *SlimeIdRequest) (*AddressResponse, error) {
				approved, err := l.GetApproved(ctx, req.SlimeId)
				if err != nil {
					return nil, err
				}
				return &AddressResponse{Address: approved}, nil
			},
		),
		unary(a, "CanBreedWith", false,
			func(ctx context.Context, caller common.Address, req *CanBreedWithRequest) (*BoolResponse, error) {
				if !req.CheckCaller {
					caller = common.Address{}
				}
				return &BoolResponse{
					Value: l.CanBreedWith(ctx, caller, req.MatronId, req.SireId),
				}, nil
			},
		),
		unary(a, "BirthFee", false,
			func(_ context.Context, _ common.Address, req *BirthFeeRequest) (*AmountResponse, error) {
				return &AmountResponse{Amount: l.BirthFee(req.Generation)}, nil
			},
		),
		unary(a, "BirthFeeFor", false,
			func(ctx context.Context, _ common.Address, req *PairRequest) (*AmountResponse, error) {
				fee, err := l.BirthFeeFor(ctx, req.MatronId, req.SireId)
				if err != nil {
					return nil, err
				}
				return &AmountResponse{Amount: fee}, nil
			},
		),
		unary(a, "GeneScienceContractAddress", false,
			func(ctx context.Context, _ common.Address, _ *Empty) (*AddressResponse, error) {
				addr, err := l.GeneScienceContractAddress(ctx)
				if err != nil {
					return nil, err
				}
				return &AddressResponse{Address: addr}, nil
			},
		),
		unary(a, "AccumulatedFees", false,
			func(ctx context.Context, _ common.Address, _ *Empty) (*AmountResponse, error) {
				amount, err := l.AccumulatedFees(ctx)
				if err != nil {
					return nil, err
				}
				return &AmountResponse{Amount: amount}, nil
			},
		),
		unary(a, "EscrowedFees", false,
			func(ctx context.Context, _ common.Address, _ *Empty) (*AmountResponse, error) {
				amount, err := l.EscrowedFees(ctx)
				if err != nil {
					return nil, err
				}
				return &AmountResponse{Amount: amount}, nil
			},
		),
		unary(a, "FundsOf", false,
			func(ctx context.Context, _ common.Address, req *AddressRequest) (*AmountResponse, error) {
				amount, err := l.FundsOf(ctx, req.Address)
				if err != nil {
					return nil, err
				}
				return &AmountResponse{Amount: amount}, nil
			},
		),
		unary(a, "GetBreedingRequest", false,
			func(ctx context.Context, _ common.Address, req *BreedingRequestRequest) (*BreedingRequest, error) {
				breedingReq, err := l.GetBreedingRequest(ctx, req.RequestId)
				if err != nil {
					return nil, err
				}
				return newBreedingRequest(breedingReq), nil
			},
		),
		// Mutations
		unary(a, "Init", true,
			func(ctx context.Context, caller common.Address, req *InitRequest) (*Empty, error) {
				if err := l.Init(ctx, caller, req.GeneScience); err != nil {
					return nil, err
				}
				return &Empty{}, nil
			},
		),
		unary(a, "SetGeneScienceContractAddress", true,
			func(ctx context.Context, caller common.Address, req *AddressRequest) (*Empty, error) {
				if err := l.SetGeneScienceContractAddress(ctx, caller, req.Address); err != nil {
					return nil, err
				}
				return &Empty{}, nil
			},
		),
		unary(a, "Claim", true,
			func(ctx context.Context, caller common.Address, req *ClaimRequest) (*AmountResponse, error) {
				amount, err := l.Claim(ctx, caller, req.Recipient)
				if err != nil {
					return nil, err
				}
				return &AmountResponse{Amount: amount}, nil
			},
		),
		unary(a, "Approve", true,
			func(ctx context.Context, caller common.Address, req *ApproveRequest) (*Empty, error) {
				if err := l.Approve(ctx, caller, req.Delegate, req.SlimeId); err != nil {
					return nil, err
				}
				return &Empty{}, nil
			},
		),
		unary(a, "Transfer", true,
			func(ctx context.Context, caller common.Address, req *TransferRequest) (*Empty, error) {
				if err := l.Transfer(ctx, caller, req.To, req.SlimeId); err != nil {
					return nil, err
				}
				return &Empty{}, nil
			},
		),
		unary(a, "TransferFrom", true,
			func(ctx context.Context, caller common.Address, req *TransferFromRequest) (*Empty, error) {
				if err := l.TransferFrom(ctx, caller, req.From, req.To, req.SlimeId); err != nil {
					return nil, err
				}
				return &Empty{}, nil
			},
		),
		unary(a, "CreateGenZeroSlime", true,
			func(ctx context.Context, caller common.Address, req *CreateGenZeroSlimeRequest) (*SlimeIdRequest, error) {
				id, err := l.CreateGenZeroSlime(ctx, caller, req.Genome)
				if err != nil {
					return nil, err
				}
				return &SlimeIdRequest{SlimeId: id}, nil
			},
		),
		unary(a, "BreedWith", true,
			func(ctx context.Context, caller common.Address, req *BreedWithRequest) (*BreedingRequest, error) {
				breedingReq, err := l.BreedWith(ctx, caller, req.MatronId, req.SireId, req.Payment)
				if err != nil {
					return nil, err
				}
				return newBreedingRequest(breedingReq), nil
			},
		),
		unary(a, "Deposit", true,
			func(ctx context.Context, caller common.Address, req *DepositRequest) (*Empty, error) {
				if err := l.Deposit(ctx, caller, req.Address, req.Amount); err != nil {
					return nil, err
				}
				return &Empty{}, nil
			},
		),
	}
}
