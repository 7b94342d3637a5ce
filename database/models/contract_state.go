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

package models

const (
	contractStateRowId = 1
	feeLedgerRowId     = 1
)

// ContractState is a singleton row holding the one-time setup and the
// supply counter
type ContractState struct {
	Admin       []byte `gorm:"size:32"`
	GeneScience []byte `gorm:"size:32"`
	ID          uint   `gorm:"primarykey"`
	TotalSupply uint64
	Initialized bool
}

func (ContractState) TableName() string {
	return "contract_state"
}

// NewContractState returns an empty contract state bound to the singleton row
func NewContractState() *ContractState {
	return &ContractState{ID: contractStateRowId}
}

// FeeLedger is a singleton row holding the claimable and escrowed fee totals
type FeeLedger struct {
	ID          uint `gorm:"primarykey"`
	Accumulated Uint64
	Escrowed    Uint64
	Claimed     Uint64
}

func (FeeLedger) TableName() string {
	return "fee_ledger"
}

// NewFeeLedger returns an empty fee ledger bound to the singleton row
func NewFeeLedger() *FeeLedger {
	return &FeeLedger{ID: feeLedgerRowId}
}
