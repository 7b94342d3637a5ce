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
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/slimy-crypto/slimy/internal/jsoncodec"
	"github.com/slimy-crypto/slimy/ledger/common"
)

const (
	ServiceName         = "slimy.v1.GeneScienceService"
	MixGenesProcedure   = "/" + ServiceName + "/MixGenes"
	mixGenesPayloadSize = 4096
)

type MixGenesRequest struct {
	MatronGenome string `json:"matron_genome"`
	SireGenome   string `json:"sire_genome"`
}

type MixGenesResponse struct {
	Genome string `json:"genome"`
}

// Client calls a remote collaborator over connect
type Client struct {
	mixGenes *connect.Client[MixGenesRequest, MixGenesResponse]
}

func NewClient(httpClient connect.HTTPClient, baseURL string) *Client {
	return &Client{
		mixGenes: connect.NewClient[MixGenesRequest, MixGenesResponse](
			httpClient,
			strings.TrimRight(baseURL, "/")+MixGenesProcedure,
			connect.WithCodec(jsoncodec.Codec{}),
			connect.WithReadMaxBytes(mixGenesPayloadSize),
		),
	}
}

// MixGenes implements GeneScience. Every failure, including a malformed
// response, wraps ErrCollaboratorFailure.
func (c *Client) MixGenes(
	ctx context.Context,
	matron common.Genome,
	sire common.Genome,
) (common.Genome, error) {
	resp, err := c.mixGenes.CallUnary(
		ctx,
		connect.NewRequest(&MixGenesRequest{
			MatronGenome: matron.String(),
			SireGenome:   sire.String(),
		}),
	)
	if err != nil {
		return common.Genome{}, fmt.Errorf("%w: %w", ErrCollaboratorFailure, err)
	}
	child, err := common.NewGenomeFromHex(resp.Msg.Genome)
	if err != nil {
		return common.Genome{}, fmt.Errorf(
			"%w: malformed response: %w",
			ErrCollaboratorFailure,
			err,
		)
	}
	return child, nil
}

// NewHandler serves a GeneScience implementation as a connect service. It
// returns the path to mount the handler on.
func NewHandler(
	geneScience GeneScience,
	logger *slog.Logger,
) (string, http.Handler) {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	mixGenes := connect.NewUnaryHandler(
		MixGenesProcedure,
		func(
			ctx context.Context,
			req *connect.Request[MixGenesRequest],
		) (*connect.Response[MixGenesResponse], error) {
			matron, err := common.NewGenomeFromHex(req.Msg.MatronGenome)
			if err != nil {
				return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("matron genome: %w", err))
			}
			sire, err := common.NewGenomeFromHex(req.Msg.SireGenome)
			if err != nil {
				return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("sire genome: %w", err))
			}
			child, err := geneScience.MixGenes(ctx, matron, sire)
			if err != nil {
				logger.Warn(
					"failed to mix genes",
					"component", "genescience",
					"error", err,
				)
				if errors.Is(err, context.DeadlineExceeded) {
					return nil, connect.NewError(connect.CodeDeadlineExceeded, err)
				}
				return nil, connect.NewError(connect.CodeInternal, err)
			}
			return connect.NewResponse(&MixGenesResponse{Genome: child.String()}), nil
		},
		connect.WithCodec(jsoncodec.Codec{}),
		connect.WithReadMaxBytes(mixGenesPayloadSize),
	)
	mux := http.NewServeMux()
	mux.Handle(MixGenesProcedure, mixGenes)
	return "/" + ServiceName + "/", mux
}
