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

package metadata

import (
	"fmt"

	"github.com/slimy-crypto/slimy/database/models"
	"github.com/slimy-crypto/slimy/database/plugin"
	"github.com/slimy-crypto/slimy/database/types"
	"gorm.io/gorm"
)

type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Contract state
	GetContractState(types.Txn) (*models.ContractState, error)
	SetContractState(*models.ContractState, types.Txn) error
	GetFeeLedger(types.Txn) (*models.FeeLedger, error)
	SetFeeLedger(*models.FeeLedger, types.Txn) error

	// Accounts
	GetAccountFunds([]byte, types.Txn) (uint64, error)
	SetAccountFunds([]byte, uint64, types.Txn) error

	// Slimes
	GetSlime(uint64, types.Txn) (*models.Slime, error)
	SetSlime(*models.Slime, types.Txn) error
	CountSlimesByOwner([]byte, types.Txn) (uint64, error)
	GetSlimeIdsByOwner(
		[]byte, // owner
		uint64, // afterId
		int, // limit
		types.Txn,
	) ([]uint64, error)

	// Breeding requests
	AddBreedingRequest(*models.BreedingRequest, types.Txn) error
	SetBreedingRequest(*models.BreedingRequest, types.Txn) error
	GetBreedingRequest(string, types.Txn) (*models.BreedingRequest, error)
	GetPendingBreedingRequest(
		uint64, // matronId
		uint64, // sireId
		types.Txn,
	) (*models.BreedingRequest, error)
	GetPendingBreedingRequests(types.Txn) ([]models.BreedingRequest, error)
}

// New returns the started metadata plugin selected by name
func New(pluginName string, env plugin.Environment) (MetadataStore, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName, env)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
