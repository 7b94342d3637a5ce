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

package slimy

import (
	"testing"
	"time"

	"github.com/slimy-crypto/slimy/genescience"
	"github.com/slimy-crypto/slimy/ledger"
	"github.com/slimy-crypto/slimy/ledger/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.NotNil(t, cfg.logger)
	assert.NotNil(t, cfg.geneScienceEndpoints)
	assert.Empty(t, cfg.dataDir)
	assert.Zero(t, cfg.apiPort)
	assert.False(t, cfg.tracing)
}

func TestConfigOptions(t *testing.T) {
	var addr common.Address
	addr[0] = 0x9e
	cfg := NewConfig(
		WithDataDir("/tmp/slimy"),
		WithBirthFee(100, 10),
		WithBreedingPolicy(ledger.BreedingPolicyOpen),
		WithCooldownSchedule([]time.Duration{time.Second}),
		WithGeneScienceEndpoint(addr, "http://localhost:9091"),
		WithDispatch(2, 16, 5*time.Second),
		WithApiPort(9999),
	)
	assert.Equal(t, "/tmp/slimy", cfg.dataDir)
	assert.Equal(t, uint64(100), cfg.baseBirthFee)
	assert.Equal(t, uint64(10), cfg.birthFeePerGeneration)
	assert.Equal(t, ledger.BreedingPolicyOpen, cfg.breedingPolicy)
	assert.Equal(t, []time.Duration{time.Second}, cfg.cooldownSchedule)
	assert.Equal(t, "http://localhost:9091", cfg.geneScienceEndpoints[addr])
	assert.Equal(t, 2, cfg.dispatchWorkers)
	assert.Equal(t, 16, cfg.dispatchQueueSize)
	assert.Equal(t, 5*time.Second, cfg.geneScienceTimeout)
	assert.Equal(t, uint(9999), cfg.apiPort)
}

func TestWithGeneScienceEndpointZeroConfig(t *testing.T) {
	cfg := &Config{}
	var addr common.Address
	addr[0] = 1
	WithGeneScienceEndpoint(addr, "http://example")(cfg)
	assert.Len(t, cfg.geneScienceEndpoints, 1)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(NewConfig(WithApiTlsCertFilePath("cert.pem")))
	require.Error(t, err)

	_, err = New(NewConfig(WithLocalGeneScience(genescience.NewLocalMixer())))
	require.Error(t, err)

	n, err := New(NewConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultShutdownTimeout, n.config.shutdownTimeout)
}
