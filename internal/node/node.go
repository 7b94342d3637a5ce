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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slimy-crypto/slimy"
	"github.com/slimy-crypto/slimy/genescience"
	"github.com/slimy-crypto/slimy/internal/config"
	"github.com/slimy-crypto/slimy/ledger"
	"github.com/slimy-crypto/slimy/ledger/common"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout, err := time.ParseDuration(cfg.ShutdownTimeout)
	if err != nil {
		return fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	opts, err := nodeOptions(cfg)
	if err != nil {
		return err
	}
	opts = append(
		opts,
		slimy.WithLogger(logger),
		// Enable metrics with default prometheus registry
		slimy.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		slimy.WithShutdownTimeout(shutdownTimeout),
	)
	n, err := slimy.New(slimy.NewConfig(opts...))
	if err != nil {
		return err
	}
	// Metrics listener
	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		metricsServer = startMetricsServer(cfg, logger)
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// The node stops itself once the signal context is canceled
	var runErr error
	if err := n.Run(signalCtx); err != nil {
		logger.Error("node error", "component", "node", "error", err)
		runErr = err
		if stopErr := n.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during cleanup",
				"component", "node",
				"error", stopErr,
			)
		}
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "component", "node", "error", err)
		}
	}
	if runErr == nil {
		logger.Info("shutdown complete", "component", "node")
	}
	return runErr
}

func startMetricsServer(cfg *config.Config, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
	logger.Info(
		"serving prometheus metrics on "+addr,
		"component", "node",
	)
	metricsServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "node",
			)
		}
	}()
	return metricsServer
}

// nodeOptions translates the file/env configuration into node options
func nodeOptions(cfg *config.Config) ([]slimy.ConfigOptionFunc, error) {
	cooldowns, err := cfg.Cooldowns()
	if err != nil {
		return nil, err
	}
	var geneScienceTimeout time.Duration
	if cfg.GeneScienceTimeout != "" {
		geneScienceTimeout, err = time.ParseDuration(cfg.GeneScienceTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid gene science timeout: %w", err)
		}
	}
	admin, err := parseOptionalAddress("admin", cfg.Admin)
	if err != nil {
		return nil, err
	}
	geneScience, err := parseOptionalAddress("geneScience", cfg.GeneScience)
	if err != nil {
		return nil, err
	}
	genZeroRecipient, err := parseOptionalAddress("genZeroRecipient", cfg.GenZeroRecipient)
	if err != nil {
		return nil, err
	}
	opts := []slimy.ConfigOptionFunc{
		slimy.WithDataDir(cfg.DatabasePath),
		slimy.WithBlobPlugin(cfg.BlobPlugin),
		slimy.WithMetadataPlugin(cfg.MetadataPlugin),
		slimy.WithGenesCacheSize(cfg.GenesCacheSize),
		slimy.WithApiHost(cfg.BindAddr),
		slimy.WithApiPort(cfg.ApiPort),
		slimy.WithApiTlsCertFilePath(cfg.TlsCertFilePath),
		slimy.WithApiTlsKeyFilePath(cfg.TlsKeyFilePath),
		slimy.WithBirthFee(cfg.BaseBirthFee, cfg.BirthFeePerGeneration),
		slimy.WithCooldownSchedule(cooldowns),
		slimy.WithBreedingPolicy(ledger.BreedingPolicy(cfg.BreedingPolicy)),
		slimy.WithAdmin(admin),
		slimy.WithGeneScience(geneScience),
		slimy.WithGenZeroRecipient(genZeroRecipient),
		slimy.WithDispatch(cfg.DispatchWorkers, cfg.DispatchQueueSize, geneScienceTimeout),
		slimy.WithTracing(cfg.Tracing),
		slimy.WithTracingStdout(cfg.TracingStdout),
	}
	for tmpAddr, baseURL := range cfg.GeneScienceEndpoints {
		addr, err := common.NewAddressFromString(tmpAddr)
		if err != nil {
			return nil, fmt.Errorf("invalid gene science endpoint address %q: %w", tmpAddr, err)
		}
		opts = append(opts, slimy.WithGeneScienceEndpoint(addr, baseURL))
	}
	if cfg.LocalGeneScience {
		opts = append(opts, slimy.WithLocalGeneScience(genescience.NewLocalMixer()))
	}
	return opts, nil
}

func parseOptionalAddress(name string, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	addr, err := common.NewAddressFromString(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid %s address: %w", name, err)
	}
	return addr, nil
}
