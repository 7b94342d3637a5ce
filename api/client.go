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
	"strings"

	"connectrpc.com/connect"
	"github.com/slimy-crypto/slimy/internal/jsoncodec"
	"github.com/slimy-crypto/slimy/ledger/common"
)

// Call invokes one procedure of a remote SlimeService. A zero caller sends
// no identity.
func Call[Req, Resp any](
	ctx context.Context,
	httpClient connect.HTTPClient,
	baseURL string,
	name string,
	caller common.Address,
	req *Req,
) (*Resp, error) {
	client := connect.NewClient[Req, Resp](
		httpClient,
		strings.TrimRight(baseURL, "/")+"/"+ServiceName+"/"+name,
		connect.WithCodec(jsoncodec.Codec{}),
	)
	connectReq := connect.NewRequest(req)
	if !caller.IsZero() {
		connectReq.Header().Set(CallerHeader, caller.String())
	}
	resp, err := client.CallUnary(ctx, connectReq)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
