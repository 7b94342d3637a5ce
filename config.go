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
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/slimy-crypto/slimy/genescience"
	"github.com/slimy-crypto/slimy/ledger"
	"github.com/slimy-crypto/slimy/ledger/common"
)

type Config struct {
	promRegistry          prometheus.Registerer
	logger                *slog.Logger
	localGeneScience      genescience.GeneScience
	geneScienceEndpoints  map[common.Address]string
	dataDir               string
	blobPlugin            string
	metadataPlugin        string
	apiHost               string
	tlsCertFilePath       string
	tlsKeyFilePath        string
	breedingPolicy        ledger.BreedingPolicy
	cooldownSchedule      []time.Duration
	apiPort               uint
	baseBirthFee          uint64
	birthFeePerGeneration uint64
	genesCacheSize        int
	dispatchWorkers       int
	dispatchQueueSize     int
	geneScienceTimeout    time.Duration
	shutdownTimeout       time.Duration
	admin                 common.Address
	geneScience           common.Address
	genZeroRecipient      common.Address
	tracing               bool
	tracingStdout         bool
}

// configPopulateDefaults fills in the values that have no sensible zero value
func (n *Node) configPopulateDefaults() {
	if n.config.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		n.config.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if n.config.shutdownTimeout <= 0 {
		n.config.shutdownTimeout = DefaultShutdownTimeout
	}
}

// ConfigOptionFunc is a type that represents functions that modify the Slimy config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new Slimy config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:               slog.New(slog.NewJSONHandler(io.Discard, nil)),
		geneScienceEndpoints: make(map[common.Address]string),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDataDir specifies the persistent data directory to use. The default is to store everything in memory
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithGenesCacheSize specifies how many decoded genome records are kept in memory
func WithGenesCacheSize(size int) ConfigOptionFunc {
	return func(c *Config) {
		c.genesCacheSize = size
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) OTLP collector at localhost:4318 (or an address specified by
// the OTEL_EXPORTER_OTLP_ENDPOINT env var)
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithApiHost specifies the address the RPC API listens on
func WithApiHost(host string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiHost = host
	}
}

// WithApiPort specifies the port to use for the RPC API. This is disabled by default
func WithApiPort(port uint) ConfigOptionFunc {
	return func(c *Config) {
		c.apiPort = port
	}
}

// WithApiTlsCertFilePath specifies the path to the TLS certificate for the RPC API
func WithApiTlsCertFilePath(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.tlsCertFilePath = path
	}
}

// WithApiTlsKeyFilePath specifies the path to the TLS key for the RPC API
func WithApiTlsKeyFilePath(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.tlsKeyFilePath = path
	}
}

// WithBirthFee specifies the base birth fee and the amount added per parent generation
func WithBirthFee(base uint64, perGeneration uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.baseBirthFee = base
		c.birthFeePerGeneration = perGeneration
	}
}

// WithCooldownSchedule replaces the generation indexed cooldown table
func WithCooldownSchedule(schedule []time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.cooldownSchedule = schedule
	}
}

// WithBreedingPolicy specifies whether cross-owner pairs may breed
func WithBreedingPolicy(policy ledger.BreedingPolicy) ConfigOptionFunc {
	return func(c *Config) {
		c.breedingPolicy = policy
	}
}

// WithGenZeroRecipient specifies who receives gen-zero slimes instead of the administrator
func WithGenZeroRecipient(addr common.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.genZeroRecipient = addr
	}
}

// WithAdmin initializes an uninitialized ledger on startup with the given administrator
func WithAdmin(addr common.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.admin = addr
	}
}

// WithGeneScience specifies the collaborator address stored at initialization
func WithGeneScience(addr common.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.geneScience = addr
	}
}

// WithGeneScienceEndpoint maps a collaborator address to the base URL of a
// remote gene science service
func WithGeneScienceEndpoint(addr common.Address, baseURL string) ConfigOptionFunc {
	return func(c *Config) {
		if c.geneScienceEndpoints == nil {
			c.geneScienceEndpoints = make(map[common.Address]string)
		}
		c.geneScienceEndpoints[addr] = baseURL
	}
}

// WithLocalGeneScience serves the given mixer in-process at the configured
// gene science address and over the RPC API
func WithLocalGeneScience(geneScience genescience.GeneScience) ConfigOptionFunc {
	return func(c *Config) {
		c.localGeneScience = geneScience
	}
}

// WithDispatch tunes the breeding dispatcher. Zero values keep the defaults
func WithDispatch(workers int, queueSize int, timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.dispatchWorkers = workers
		c.dispatchQueueSize = queueSize
		c.geneScienceTimeout = timeout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. Default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
