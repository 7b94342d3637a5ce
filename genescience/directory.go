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
	"errors"
	"fmt"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/slimy-crypto/slimy/ledger/common"
)

// ErrUnknownCollaborator is returned when no collaborator is known at an address
var ErrUnknownCollaborator = errors.New("no gene science collaborator at address")

// Directory resolves a collaborator address to something that can be called
type Directory struct {
	mu         sync.RWMutex
	entries    map[common.Address]GeneScience
	httpClient connect.HTTPClient
}

// NewDirectory returns an empty directory. Remote collaborators are called
// with httpClient, or http.DefaultClient when nil.
func NewDirectory(httpClient connect.HTTPClient) *Directory {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Directory{
		entries:    make(map[common.Address]GeneScience),
		httpClient: httpClient,
	}
}

// Register binds an address to a collaborator implementation
func (d *Directory) Register(addr common.Address, geneScience GeneScience) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[addr] = geneScience
}

// RegisterEndpoint binds an address to a remote collaborator at baseURL
func (d *Directory) RegisterEndpoint(addr common.Address, baseURL string) {
	d.Register(addr, NewClient(d.httpClient, baseURL))
}

// Lookup returns the collaborator bound to an address
func (d *Directory) Lookup(addr common.Address) (GeneScience, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ret, ok := d.entries[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollaborator, addr)
	}
	return ret, nil
}
