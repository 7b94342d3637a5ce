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

package api_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slimy-crypto/slimy/api"
	"github.com/slimy-crypto/slimy/database"
	"github.com/slimy-crypto/slimy/genescience"
	"github.com/slimy-crypto/slimy/ledger"
	"github.com/slimy-crypto/slimy/ledger/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAdmin       = testAddress(0xa0)
	testAlice       = testAddress(0xa1)
	testBob         = testAddress(0xb0)
	testGeneScience = testAddress(0x9e)
)

func testAddress(b byte) common.Address {
	var ret common.Address
	for i := range ret {
		ret[i] = b
	}
	return ret
}

func testGenome(b byte) common.Genome {
	var ret common.Genome
	for i := range ret {
		ret[i] = b ^ byte(i)
	}
	return ret
}

type testServer struct {
	server *httptest.Server
	ledger *ledger.Ledger
}

// newTestServer serves a fresh ledger whose dispatcher calls the gene
// science service mounted on the same server
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.New(&database.Config{
		PromRegistry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	dir := genescience.NewDirectory(nil)
	l, err := ledger.NewLedger(ledger.LedgerConfig{
		Database:     db,
		GeneScience:  dir,
		BaseBirthFee: 100,
	})
	require.NoError(t, err)
	a := api.NewApi(api.ApiConfig{
		Ledger:           l,
		LocalGeneScience: genescience.NewLocalMixer(),
	})
	server := httptest.NewServer(a.Handler())
	t.Cleanup(server.Close)
	dir.RegisterEndpoint(testGeneScience, server.URL)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(l.Stop)
	return &testServer{server: server, ledger: l}
}

func call[Req, Resp any](
	t *testing.T,
	s *testServer,
	name string,
	caller common.Address,
	req *Req,
) (*Resp, error) {
	t.Helper()
	return api.Call[Req, Resp](
		context.Background(),
		s.server.Client(),
		s.server.URL,
		name,
		caller,
		req,
	)
}

func TestApiBreedingFlow(t *testing.T) {
	s := newTestServer(t)
	_, err := call[api.InitRequest, api.Empty](t, s, "Init", testAdmin, &api.InitRequest{GeneScience: testGeneScience})
	require.NoError(t, err)
	var ids []uint64
	for i := range 2 {
		resp, err := call[api.CreateGenZeroSlimeRequest, api.SlimeIdRequest](
			t, s, "CreateGenZeroSlime", testAdmin,
			&api.CreateGenZeroSlimeRequest{Genome: testGenome(byte(i + 1))},
		)
		require.NoError(t, err)
		_, err = call[api.TransferRequest, api.Empty](
			t, s, "Transfer", testAdmin,
			&api.TransferRequest{To: testAlice, SlimeId: resp.SlimeId},
		)
		require.NoError(t, err)
		ids = append(ids, resp.SlimeId)
	}
	_, err = call[api.DepositRequest, api.Empty](t, s, "Deposit", testAdmin, &api.DepositRequest{Address: testAlice, Amount: 1000})
	require.NoError(t, err)
	fee, err := call[api.PairRequest, api.AmountResponse](t, s, "BirthFeeFor", common.Address{}, &api.PairRequest{MatronId: ids[0], SireId: ids[1]})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), fee.Amount)
	canBreed, err := call[api.CanBreedWithRequest, api.BoolResponse](
		t, s, "CanBreedWith", testAlice,
		&api.CanBreedWithRequest{MatronId: ids[0], SireId: ids[1], CheckCaller: true},
	)
	require.NoError(t, err)
	assert.True(t, canBreed.Value)
	breedResp, err := call[api.BreedWithRequest, api.BreedingRequest](
		t, s, "BreedWith", testAlice,
		&api.BreedWithRequest{MatronId: ids[0], SireId: ids[1], Payment: fee.Amount},
	)
	require.NoError(t, err)
	assert.Equal(t, string(ledger.BreedingStatusPending), breedResp.Status)
	var resolved *api.BreedingRequest
	require.Eventually(
		t,
		func() bool {
			tmpResolved, callErr := call[api.BreedingRequestRequest, api.BreedingRequest](
				t, s, "GetBreedingRequest", common.Address{},
				&api.BreedingRequestRequest{RequestId: breedResp.RequestId},
			)
			if callErr != nil {
				return false
			}
			resolved = tmpResolved
			return resolved.Status != string(ledger.BreedingStatusPending)
		},
		5*time.Second,
		10*time.Millisecond,
	)
	require.Equal(t, string(ledger.BreedingStatusSucceeded), resolved.Status, resolved.Reason)
	require.NotNil(t, resolved.ResolvedAt)
	child, err := call[api.SlimeIdRequest, api.Slime](t, s, "GetSlimeById", common.Address{}, &api.SlimeIdRequest{SlimeId: resolved.ChildId})
	require.NoError(t, err)
	assert.Equal(t, testAlice, child.Owner)
	assert.Equal(t, uint32(1), child.Generation)
	assert.Equal(t, ids[0], child.MatronId)
	expected, err := genescience.NewLocalMixer().MixGenes(context.Background(), testGenome(1), testGenome(2))
	require.NoError(t, err)
	assert.Equal(t, expected, child.Genome)
	tokens, err := call[api.TokensOfOwnerRequest, api.TokensOfOwnerResponse](t, s, "TokensOfOwner", common.Address{}, &api.TokensOfOwnerRequest{Owner: testAlice})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, tokens.SlimeIds)
	tokens, err = call[api.TokensOfOwnerRequest, api.TokensOfOwnerResponse](t, s, "TokensOfOwner", common.Address{}, &api.TokensOfOwnerRequest{Owner: testAlice, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, tokens.SlimeIds)
	supply, err := call[api.Empty, api.AmountResponse](t, s, "TotalSupply", common.Address{}, &api.Empty{})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), supply.Amount)
	claimed, err := call[api.ClaimRequest, api.AmountResponse](t, s, "Claim", testAdmin, &api.ClaimRequest{Recipient: testBob})
	require.NoError(t, err)
	assert.Equal(t, fee.Amount, claimed.Amount)
	funds, err := call[api.AddressRequest, api.AmountResponse](t, s, "FundsOf", common.Address{}, &api.AddressRequest{Address: testBob})
	require.NoError(t, err)
	assert.Equal(t, fee.Amount, funds.Amount)
}

func TestApiErrors(t *testing.T) {
	s := newTestServer(t)
	_, err := call[api.InitRequest, api.Empty](t, s, "Init", testAdmin, &api.InitRequest{})
	require.NoError(t, err)
	created, err := call[api.CreateGenZeroSlimeRequest, api.SlimeIdRequest](
		t, s, "CreateGenZeroSlime", testAdmin,
		&api.CreateGenZeroSlimeRequest{Genome: testGenome(1)},
	)
	require.NoError(t, err)
	testDefs := []struct {
		name string
		call func() error
		code connect.Code
		kind string
	}{
		{
			name: "missing caller",
			call: func() error {
				_, err := call[api.TransferRequest, api.Empty](t, s, "Transfer", common.Address{}, &api.TransferRequest{To: testBob, SlimeId: created.SlimeId})
				return err
			},
			code: connect.CodeUnauthenticated,
		},
		{
			name: "not owner",
			call: func() error {
				_, err := call[api.TransferRequest, api.Empty](t, s, "Transfer", testBob, &api.TransferRequest{To: testBob, SlimeId: created.SlimeId})
				return err
			},
			code: connect.CodePermissionDenied,
			kind: "NotAuthorized",
		},
		{
			name: "unknown token",
			call: func() error {
				_, err := call[api.SlimeIdRequest, api.AddressResponse](t, s, "OwnerOf", common.Address{}, &api.SlimeIdRequest{SlimeId: 99})
				return err
			},
			code: connect.CodeNotFound,
			kind: "UnknownToken",
		},
		{
			name: "zero recipient",
			call: func() error {
				_, err := call[api.TransferRequest, api.Empty](t, s, "Transfer", testAdmin, &api.TransferRequest{SlimeId: created.SlimeId})
				return err
			},
			code: connect.CodeInvalidArgument,
			kind: "InvalidRecipient",
		},
		{
			name: "self pair",
			call: func() error {
				_, err := call[api.BreedWithRequest, api.BreedingRequest](t, s, "BreedWith", testAdmin, &api.BreedWithRequest{MatronId: created.SlimeId, SireId: created.SlimeId, Payment: 100})
				return err
			},
			code: connect.CodeInvalidArgument,
			kind: "SameParent",
		},
		{
			name: "already initialized",
			call: func() error {
				_, err := call[api.InitRequest, api.Empty](t, s, "Init", testBob, &api.InitRequest{})
				return err
			},
			code: connect.CodeAlreadyExists,
			kind: "AlreadyInitialized",
		},
		{
			name: "nothing to claim",
			call: func() error {
				_, err := call[api.ClaimRequest, api.AmountResponse](t, s, "Claim", testAdmin, &api.ClaimRequest{Recipient: testAdmin})
				return err
			},
			code: connect.CodeFailedPrecondition,
			kind: "NothingToClaim",
		},
		{
			name: "unknown breeding request",
			call: func() error {
				_, err := call[api.BreedingRequestRequest, api.BreedingRequest](t, s, "GetBreedingRequest", common.Address{}, &api.BreedingRequestRequest{RequestId: "missing"})
				return err
			},
			code: connect.CodeNotFound,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			err := testDef.call()
			require.Error(t, err)
			assert.Equal(t, testDef.code, connect.CodeOf(err), err.Error())
			assert.Equal(t, testDef.kind, api.ErrorKindOf(err))
		})
	}
}

func TestApiCollaboratorNotConfigured(t *testing.T) {
	s := newTestServer(t)
	_, err := call[api.InitRequest, api.Empty](t, s, "Init", testAdmin, &api.InitRequest{})
	require.NoError(t, err)
	for i := range 2 {
		_, err := call[api.CreateGenZeroSlimeRequest, api.SlimeIdRequest](
			t, s, "CreateGenZeroSlime", testAdmin,
			&api.CreateGenZeroSlimeRequest{Genome: testGenome(byte(i))},
		)
		require.NoError(t, err)
	}
	_, err = call[api.BreedWithRequest, api.BreedingRequest](t, s, "BreedWith", testAdmin, &api.BreedWithRequest{MatronId: 1, SireId: 2, Payment: 100})
	require.Error(t, err)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
	assert.Equal(t, "CollaboratorNotConfigured", api.ErrorKindOf(err))
}

func TestApiInvalidCallerHeader(t *testing.T) {
	s := newTestServer(t)
	req, err := http.NewRequest(
		http.MethodPost,
		s.server.URL+"/"+api.ServiceName+"/Init",
		strings.NewReader("{}"),
	)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.CallerHeader, "not-an-address")
	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	// Unauthenticated maps to HTTP 401 in the connect protocol
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestApiStartStop(t *testing.T) {
	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())
	a := api.NewApi(api.ApiConfig{
		Host: "127.0.0.1",
		Port: uint(port),
	})
	require.NoError(t, a.Start())
	require.Error(t, a.Start())
	assert.Equal(t, fmt.Sprintf("127.0.0.1:%d", port), a.Addr().String())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))
	require.NoError(t, a.Stop(ctx))
	assert.Nil(t, a.Addr())
}
