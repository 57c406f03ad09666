// Package gateway exposes the orchestrator over an authenticated HTTP API.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"loanbridge/bridge"
	"loanbridge/guard"
)

const requestLimit = 1 << 20 // 1 MiB

// Orchestrator is the engine surface the gateway fronts.
type Orchestrator interface {
	ExecuteTransfer(ctx context.Context, caller common.Address, req bridge.TransferRequest) (bridge.TransferRecord, error)
	GetUserBorrows(ctx context.Context, user common.Address) (*big.Int, error)
	RepayBorrowed(ctx context.Context, caller common.Address, amount *big.Int) error
	Pause(caller common.Address) error
	Unpause(caller common.Address) error
	GrantPauserRole(caller, account common.Address) error
	RevokePauserRole(caller, account common.Address) error
}

// Config carries the gateway wiring.
type Config struct {
	Engine             Orchestrator
	SharedSecretHeader string
	SharedSecret       string
	RateLimitPerMin    int
	Registry           *prometheus.Registry
	Logger             *slog.Logger
}

// Server serves the loanbridge HTTP API.
type Server struct {
	engine  Orchestrator
	logger  *slog.Logger
	handler http.Handler
}

// New assembles the router with auth, rate limiting and observability
// middleware on every /v1 route.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("gateway: engine required")
	}
	if strings.TrimSpace(cfg.SharedSecretHeader) == "" || cfg.SharedSecret == "" {
		return nil, fmt.Errorf("gateway: shared secret auth required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{engine: cfg.Engine, logger: logger}
	obs := newObservability("loanbridge-gateway", cfg.Registry)
	limiter := newRateLimiter(cfg.RateLimitPerMin)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", obs.metricsHandler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(limiter.middleware)
		v1.Use(sharedSecretAuth(cfg.SharedSecretHeader, cfg.SharedSecret))
		v1.Use(obs.middleware("v1"))

		v1.Post("/transfers", s.handleTransfer)
		v1.Get("/borrows/{address}", s.handleBorrows)
		v1.Post("/repay", s.handleRepay)

		v1.Route("/admin", func(admin chi.Router) {
			admin.Post("/pause", s.handlePause)
			admin.Post("/unpause", s.handleUnpause)
			admin.Post("/pausers/grant", s.handleGrantPauser)
			admin.Post("/pausers/revoke", s.handleRevokePauser)
		})
	})

	s.handler = otelhttp.NewHandler(r, "loanbridge-gateway")
	return s, nil
}

// Handler returns the assembled HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

type transferPayload struct {
	Caller            string `json:"caller"`
	SourceAsset       string `json:"sourceAsset"`
	DestinationDomain uint32 `json:"destinationDomain"`
	Recipient         string `json:"recipient"`
	Amount            string `json:"amount"`
	MaxFee            string `json:"maxFee"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var payload transferPayload
	if err := decodeRequest(w, r, &payload); err != nil {
		writeBadRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", payload.Caller)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	sourceAsset, err := parseAddress("sourceAsset", payload.SourceAsset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	recipient, err := parseAddress("recipient", payload.Recipient)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	maxFee, err := parseAmount("maxFee", payload.MaxFee)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	record, err := s.engine.ExecuteTransfer(r.Context(), caller, bridge.TransferRequest{
		SourceAsset:       sourceAsset,
		DestinationDomain: payload.DestinationDomain,
		Recipient:         recipient,
		Amount:            amount,
		MaxFee:            maxFee,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleBorrows(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	total, err := s.engine.GetUserBorrows(r.Context(), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user":      user.Hex(),
		"totalDebt": total.String(),
	})
}

type repayPayload struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	var payload repayPayload
	if err := decodeRequest(w, r, &payload); err != nil {
		writeBadRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", payload.Caller)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.engine.RepayBorrowed(r.Context(), caller, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user":   caller.Hex(),
		"repaid": amount.String(),
	})
}

type adminPayload struct {
	Caller  string `json:"caller"`
	Account string `json:"account"`
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request, needsAccount bool, apply func(caller, account common.Address) error) {
	var payload adminPayload
	if err := decodeRequest(w, r, &payload); err != nil {
		writeBadRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", payload.Caller)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var account common.Address
	if needsAccount {
		if account, err = parseAddress("account", payload.Account); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	if err := apply(caller, account); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handleAdmin(w, r, false, func(caller, _ common.Address) error {
		return s.engine.Pause(caller)
	})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.handleAdmin(w, r, false, func(caller, _ common.Address) error {
		return s.engine.Unpause(caller)
	})
}

func (s *Server) handleGrantPauser(w http.ResponseWriter, r *http.Request) {
	s.handleAdmin(w, r, true, func(caller, account common.Address) error {
		return s.engine.GrantPauserRole(caller, account)
	})
}

func (s *Server) handleRevokePauser(w http.ResponseWriter, r *http.Request) {
	s.handleAdmin(w, r, true, func(caller, account common.Address) error {
		return s.engine.RevokePauserRole(caller, account)
	})
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, requestLimit)
	defer func() { _ = body.Close() }()
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s: invalid address", field)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s: required", field)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid integer", field)
	}
	return value, nil
}

// statusFor maps engine sentinels onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bridge.ErrInvalidAddress),
		errors.Is(err, bridge.ErrInvalidAmount),
		errors.Is(err, bridge.ErrFeeTooHigh),
		errors.Is(err, guard.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, guard.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, guard.ErrPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, guard.ErrReentrancy), errors.Is(err, guard.ErrNotPaused):
		return http.StatusConflict
	case errors.Is(err, bridge.ErrExternalCallFailed), errors.Is(err, bridge.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
