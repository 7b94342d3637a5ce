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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/slimy-crypto/slimy/genescience"
	"github.com/slimy-crypto/slimy/internal/jsoncodec"
	"github.com/slimy-crypto/slimy/ledger"
	"github.com/slimy-crypto/slimy/ledger/common"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	ServiceName = "slimy.v1.SlimeService"
	// CallerHeader carries the bech32 address of the calling identity
	CallerHeader = "Slimy-Caller"

	DefaultHost = "0.0.0.0"
	DefaultPort = 9090
)

type Api struct {
	config   ApiConfig
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
}

type ApiConfig struct {
	Logger *slog.Logger
	Ledger *ledger.Ledger
	// LocalGeneScience, when set, is also served as a gene science
	// collaborator
	LocalGeneScience genescience.GeneScience
	Host             string
	Port             uint
	TlsCertFilePath  string
	TlsKeyFilePath   string
}

func NewApi(cfg ApiConfig) *Api {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "api")
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	return &Api{
		config: cfg,
	}
}

// Handler returns the HTTP handler serving every procedure
func (a *Api) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, tmpHandler := range a.handlers() {
		mux.Handle(tmpHandler.procedure, tmpHandler.handler)
	}
	services := []string{ServiceName}
	if a.config.LocalGeneScience != nil {
		path, handler := genescience.NewHandler(
			a.config.LocalGeneScience,
			a.config.Logger,
		)
		mux.Handle(path, handler)
		services = append(services, genescience.ServiceName)
	}
	mux.Handle(
		grpchealth.NewHandler(
			grpchealth.NewStaticChecker(services...),
			connect.WithCompressMinBytes(1024),
		),
	)
	return mux
}

// Start listens on the configured address and serves in the background
func (a *Api) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return errors.New("api already started")
	}
	listener, err := net.Listen(
		"tcp",
		net.JoinHostPort(a.config.Host, fmt.Sprintf("%d", a.config.Port)),
	)
	if err != nil {
		return err
	}
	a.listener = listener
	useTls := a.config.TlsCertFilePath != "" && a.config.TlsKeyFilePath != ""
	handler := a.Handler()
	if !useTls {
		// Use h2c so we can serve HTTP/2 without TLS
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	a.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
	}
	a.config.Logger.Info(
		"starting RPC listener on " + listener.Addr().String(),
		"tls", useTls,
	)
	go func(server *http.Server) {
		var err error
		if useTls {
			err = server.ServeTLS(
				listener,
				a.config.TlsCertFilePath,
				a.config.TlsKeyFilePath,
			)
		} else {
			err = server.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.config.Logger.Error(
				"RPC listener failed",
				"error", err,
			)
		}
	}(a.server)
	return nil
}

// Addr returns the listening address once started
func (a *Api) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Stop gracefully shuts down the listener
func (a *Api) Stop(ctx context.Context) error {
	a.mu.Lock()
	server := a.server
	a.server = nil
	a.listener = nil
	a.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

type procedureHandler struct {
	procedure string
	handler   http.Handler
}

// unary builds a handler for one procedure. Mutating procedures require the
// caller header, and queries accept it when present.
func unary[Req, Resp any](
	a *Api,
	name string,
	requireCaller bool,
	fn func(context.Context, common.Address, *Req) (*Resp, error),
) procedureHandler {
	procedure := "/" + ServiceName + "/" + name
	handler := connect.NewUnaryHandler(
		procedure,
		func(
			ctx context.Context,
			req *connect.Request[Req],
		) (*connect.Response[Resp], error) {
			caller, err := callerFromHeader(req.Header(), requireCaller)
			if err != nil {
				return nil, err
			}
			resp, err := fn(ctx, caller, req.Msg)
			if err != nil {
				ret := connectError(err)
				if ret.Code() == connect.CodeInternal {
					a.config.Logger.Error(
						"procedure failed",
						"procedure", name,
						"error", err,
					)
				}
				return nil, ret
			}
			return connect.NewResponse(resp), nil
		},
		connect.WithCodec(jsoncodec.Codec{}),
		connect.WithCompressMinBytes(1024),
	)
	return procedureHandler{procedure: procedure, handler: handler}
}

func callerFromHeader(header http.Header, required bool) (common.Address, error) {
	value := header.Get(CallerHeader)
	if value == "" {
		if required {
			return common.Address{}, connect.NewError(
				connect.CodeUnauthenticated,
				fmt.Errorf("missing %s header", CallerHeader),
			)
		}
		return common.Address{}, nil
	}
	caller, err := common.NewAddressFromString(value)
	if err != nil {
		return common.Address{}, connect.NewError(
			connect.CodeUnauthenticated,
			fmt.Errorf("invalid %s header: %w", CallerHeader, err),
		)
	}
	return caller, nil
}
