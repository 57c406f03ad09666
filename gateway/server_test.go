package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"loanbridge/bridge"
	"loanbridge/guard"
)

const (
	testHeader = "X-Loanbridge-Shared-Secret"
	testSecret = "hunter2"
)

type stubEngine struct {
	transferErr error
	record      bridge.TransferRecord
	lastCaller  common.Address
	lastReq     bridge.TransferRequest

	borrows    *big.Int
	borrowsErr error

	repayErr    error
	lastRepaid  *big.Int
	adminErr    error
	lastAccount common.Address
}

func (s *stubEngine) ExecuteTransfer(_ context.Context, caller common.Address, req bridge.TransferRequest) (bridge.TransferRecord, error) {
	s.lastCaller = caller
	s.lastReq = req
	if s.transferErr != nil {
		return bridge.TransferRecord{}, s.transferErr
	}
	return s.record, nil
}

func (s *stubEngine) GetUserBorrows(context.Context, common.Address) (*big.Int, error) {
	if s.borrowsErr != nil {
		return nil, s.borrowsErr
	}
	return s.borrows, nil
}

func (s *stubEngine) RepayBorrowed(_ context.Context, caller common.Address, amount *big.Int) error {
	s.lastCaller = caller
	s.lastRepaid = amount
	return s.repayErr
}

func (s *stubEngine) Pause(caller common.Address) error {
	s.lastCaller = caller
	return s.adminErr
}

func (s *stubEngine) Unpause(caller common.Address) error {
	s.lastCaller = caller
	return s.adminErr
}

func (s *stubEngine) GrantPauserRole(caller, account common.Address) error {
	s.lastCaller = caller
	s.lastAccount = account
	return s.adminErr
}

func (s *stubEngine) RevokePauserRole(caller, account common.Address) error {
	s.lastCaller = caller
	s.lastAccount = account
	return s.adminErr
}

func newTestServer(t *testing.T, engine *stubEngine, rateLimit int) *httptest.Server {
	t.Helper()
	srv, err := New(Config{
		Engine:             engine,
		SharedSecretHeader: testHeader,
		SharedSecret:       testSecret,
		RateLimitPerMin:    rateLimit,
		Registry:           prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, secret string, payload interface{}) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, ts.URL+path, &body)
	require.NoError(t, err)
	if secret != "" {
		req.Header.Set(testHeader, secret)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	ts := newTestServer(t, &stubEngine{}, 0)
	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSharedSecretRequired(t *testing.T) {
	ts := newTestServer(t, &stubEngine{}, 0)

	resp := doJSON(t, ts, http.MethodPost, "/v1/repay", "", repayPayload{})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, ts, http.MethodPost, "/v1/repay", "wrong", repayPayload{})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTransferSuccess(t *testing.T) {
	user := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	engine := &stubEngine{record: bridge.TransferRecord{
		User:        user,
		SourceAsset: common.HexToAddress("0x00000000000000000000000000000000000000b1"),
	}}
	ts := newTestServer(t, engine, 0)

	resp := doJSON(t, ts, http.MethodPost, "/v1/transfers", testSecret, transferPayload{
		Caller:            user.Hex(),
		SourceAsset:       "0x00000000000000000000000000000000000000b1",
		DestinationDomain: 7,
		Recipient:         "0x00000000000000000000000000000000000000c1",
		Amount:            "1000000",
		MaxFee:            "50",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, user, engine.lastCaller)
	require.Equal(t, uint32(7), engine.lastReq.DestinationDomain)
	require.Equal(t, "1000000", engine.lastReq.Amount.String())
	require.Equal(t, "50", engine.lastReq.MaxFee.String())

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.IsType(t, "", decoded["user"])
	require.True(t, strings.EqualFold(user.Hex(), decoded["user"].(string)))
}

func TestTransferRejectsMalformedPayload(t *testing.T) {
	ts := newTestServer(t, &stubEngine{}, 0)

	for name, payload := range map[string]transferPayload{
		"bad caller": {Caller: "nope", SourceAsset: "0x00000000000000000000000000000000000000b1", Recipient: "0x00000000000000000000000000000000000000c1", Amount: "1", MaxFee: "0"},
		"bad amount": {Caller: "0x00000000000000000000000000000000000000a1", SourceAsset: "0x00000000000000000000000000000000000000b1", Recipient: "0x00000000000000000000000000000000000000c1", Amount: "12x", MaxFee: "0"},
		"no fee":     {Caller: "0x00000000000000000000000000000000000000a1", SourceAsset: "0x00000000000000000000000000000000000000b1", Recipient: "0x00000000000000000000000000000000000000c1", Amount: "1"},
	} {
		resp := doJSON(t, ts, http.MethodPost, "/v1/transfers", testSecret, payload)
		require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "case %s", name)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{bridge.ErrInvalidAmount, http.StatusBadRequest},
		{bridge.ErrFeeTooHigh, http.StatusBadRequest},
		{guard.ErrUnauthorized, http.StatusForbidden},
		{guard.ErrPaused, http.StatusServiceUnavailable},
		{guard.ErrReentrancy, http.StatusConflict},
		{bridge.ErrTransferFailed, http.StatusBadGateway},
		{bridge.ErrExternalCallFailed, http.StatusBadGateway},
		{bridge.ErrInvalidConfiguration, http.StatusInternalServerError},
		{errors.New("surprise"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		engine := &stubEngine{transferErr: tc.err}
		ts := newTestServer(t, engine, 0)
		resp := doJSON(t, ts, http.MethodPost, "/v1/transfers", testSecret, transferPayload{
			Caller:      "0x00000000000000000000000000000000000000a1",
			SourceAsset: "0x00000000000000000000000000000000000000b1",
			Recipient:   "0x00000000000000000000000000000000000000c1",
			Amount:      "1000",
			MaxFee:      "1",
		})
		require.Equalf(t, tc.status, resp.StatusCode, "error %v", tc.err)
	}
}

func TestBorrowsEndpoint(t *testing.T) {
	engine := &stubEngine{borrows: big.NewInt(2_280_000_000)}
	ts := newTestServer(t, engine, 0)

	resp := doJSON(t, ts, http.MethodGet, "/v1/borrows/0x00000000000000000000000000000000000000a1", testSecret, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Equal(t, "2280000000", decoded["totalDebt"])

	resp = doJSON(t, ts, http.MethodGet, "/v1/borrows/not-an-address", testSecret, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	engine.borrowsErr = guard.ErrPaused
	resp = doJSON(t, ts, http.MethodGet, "/v1/borrows/0x00000000000000000000000000000000000000a1", testSecret, nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRepayEndpoint(t *testing.T) {
	engine := &stubEngine{}
	ts := newTestServer(t, engine, 0)

	resp := doJSON(t, ts, http.MethodPost, "/v1/repay", testSecret, repayPayload{
		Caller: "0x00000000000000000000000000000000000000a1",
		Amount: "500",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "500", engine.lastRepaid.String())

	engine.repayErr = bridge.ErrTransferFailed
	resp = doJSON(t, ts, http.MethodPost, "/v1/repay", testSecret, repayPayload{
		Caller: "0x00000000000000000000000000000000000000a1",
		Amount: "500",
	})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestAdminEndpoints(t *testing.T) {
	engine := &stubEngine{}
	ts := newTestServer(t, engine, 0)

	caller := "0x00000000000000000000000000000000000000a1"
	account := common.HexToAddress("0x00000000000000000000000000000000000000d1")

	resp := doJSON(t, ts, http.MethodPost, "/v1/admin/pause", testSecret, adminPayload{Caller: caller})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, ts, http.MethodPost, "/v1/admin/pausers/grant", testSecret, adminPayload{Caller: caller, Account: account.Hex()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, account, engine.lastAccount)

	resp = doJSON(t, ts, http.MethodPost, "/v1/admin/pausers/grant", testSecret, adminPayload{Caller: caller})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	engine.adminErr = guard.ErrUnauthorized
	resp = doJSON(t, ts, http.MethodPost, "/v1/admin/unpause", testSecret, adminPayload{Caller: caller})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRateLimitApplies(t *testing.T) {
	ts := newTestServer(t, &stubEngine{borrows: big.NewInt(0)}, 1)

	resp := doJSON(t, ts, http.MethodGet, "/v1/borrows/0x00000000000000000000000000000000000000a1", testSecret, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, ts, http.MethodGet, "/v1/borrows/0x00000000000000000000000000000000000000a1", testSecret, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
