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

package genescience

import (
	"context"
	"errors"

	"github.com/slimy-crypto/slimy/ledger/common"
	"golang.org/x/crypto/blake2b"
)

// ErrCollaboratorFailure is wrapped by every non-success collaborator outcome
var ErrCollaboratorFailure = errors.New("gene science collaborator failure")

// GeneScience combines two parent genomes into a child genome
type GeneScience interface {
	MixGenes(ctx context.Context, matron, sire common.Genome) (common.Genome, error)
}

// DefaultMutationThreshold gives each gene roughly a 3% chance to mutate
const DefaultMutationThreshold = 8

// LocalMixer is a deterministic in-process collaborator. Each gene is taken
// from the matron or the sire according to a hash of both genomes, and
// occasionally mutated.
type LocalMixer struct {
	// A gene mutates when its hash byte is below this threshold
	MutationThreshold byte
}

func NewLocalMixer() *LocalMixer {
	return &LocalMixer{MutationThreshold: DefaultMutationThreshold}
}

func (m *LocalMixer) MixGenes(
	ctx context.Context,
	matron common.Genome,
	sire common.Genome,
) (common.Genome, error) {
	if err := ctx.Err(); err != nil {
		return common.Genome{}, err
	}
	selector := blake2b.Sum256(append(matron.Bytes(), sire.Bytes()...))
	mutation := blake2b.Sum256(selector[:])
	var child common.Genome
	for i := range child {
		if selector[i]&0x1 == 0 {
			child[i] = matron[i]
		} else {
			child[i] = sire[i]
		}
		if mutation[i] < m.MutationThreshold {
			child[i] ^= mutation[(i+1)%len(mutation)]
		}
	}
	return child, nil
}
