package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"loanbridge/bridge"
	"loanbridge/config"
	"loanbridge/evm"
	"loanbridge/facility"
	"loanbridge/gateway"
	"loanbridge/guard"
	"loanbridge/messenger"
	"loanbridge/observability/logging"
	telemetry "loanbridge/observability/otel"
	"loanbridge/oracle"
	"loanbridge/token"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "loanbridge.toml", "path to loanbridged config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("validate config: %v", err)
	}

	logger := logging.Setup("loanbridged", cfg.Observability.LogLevel)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "loanbridged",
		Endpoint:    cfg.Observability.OTLPEndpoint,
		Insecure:    cfg.Observability.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	client, err := evm.Dial(cfg.Chain.RPCURL)
	if err != nil {
		log.Fatalf("dial chain rpc: %v", err)
	}
	defer client.Close()

	signer, err := evm.NewSigner(cfg.SignerKey, cfg.ChainID())
	if err != nil {
		log.Fatalf("build signer: %v", err)
	}

	guardian, err := guard.New(config.Address(cfg.Roles.SuperAdmin))
	if err != nil {
		log.Fatalf("build guard: %v", err)
	}
	superAdmin := config.Address(cfg.Roles.SuperAdmin)
	for _, admin := range config.Addresses(cfg.Roles.Admins) {
		if err := guardian.GrantAdmin(superAdmin, admin); err != nil {
			log.Fatalf("grant admin %s: %v", admin.Hex(), err)
		}
	}
	for _, pauser := range config.Addresses(cfg.Roles.Pausers) {
		if err := guardian.GrantPauser(superAdmin, pauser); err != nil {
			log.Fatalf("grant pauser %s: %v", pauser.Hex(), err)
		}
	}

	registry := prometheus.NewRegistry()
	engine, err := bridge.NewEngine(bridge.EngineConfig{
		Guard:           guardian,
		Facility:        facility.NewEVM(config.Address(cfg.Contracts.Facility), client, signer),
		Oracle:          oracle.NewEVM(config.Address(cfg.Contracts.Oracle), client),
		Messenger:       messenger.NewEVM(config.Address(cfg.Contracts.Messenger), client, signer),
		Tokens:          token.NewEVM(client, signer),
		SettlementAsset: config.Address(cfg.Contracts.SettlementAsset),
		Emitter:         bridge.LogEmitter{Logger: logger},
		Metrics:         bridge.NewMetrics(registry),
		Logger:          logger,
	})
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	server, err := gateway.New(gateway.Config{
		Engine:             engine,
		SharedSecretHeader: cfg.Gateway.SharedSecretHeader,
		SharedSecret:       cfg.SharedSecret,
		RateLimitPerMin:    cfg.Gateway.RateLimitPerMin,
		Registry:           registry,
		Logger:             logger,
	})
	if err != nil {
		log.Fatalf("build gateway: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Gateway.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("loanbridged listening",
			"listen", cfg.Gateway.Listen,
			"custody", signer.Address().Hex(),
			"facility", cfg.Contracts.Facility,
			"messenger", cfg.Contracts.Messenger)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("forcing server stop", "error", err)
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}
}
