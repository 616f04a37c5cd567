package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/smartbond/middleware/pkg/api"
	apphttp "github.com/smartbond/middleware/pkg/app/http"
	"github.com/smartbond/middleware/pkg/cofhe"
	"github.com/smartbond/middleware/pkg/config"
	"github.com/smartbond/middleware/pkg/ledger"
	"github.com/smartbond/middleware/pkg/ledger/contracts"
	"github.com/smartbond/middleware/pkg/orchestrator"
	"github.com/smartbond/middleware/pkg/pgutil"
	"github.com/smartbond/middleware/pkg/retry"
	"github.com/smartbond/middleware/pkg/store"
)

const initialRefreshTimeout = 60 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting bond orchestrator",
		zap.String("config", *configPath),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Orchestrator exited with error", zap.Error(err))
	}
	logger.Info("Orchestrator stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deployments, err := config.LoadDeployments(cfg.DeploymentsFile)
	if err != nil {
		return fmt.Errorf("load deployments: %w", err)
	}
	logger.Info("Loaded contract deployments",
		zap.String("network", deployments.Network),
		zap.String("factory", deployments.BondFactory),
		zap.String("registry", deployments.BondRegistry))

	gateway, err := cofhe.NewClient(cofhe.Config{
		BaseURL:        cfg.Cofhe.BaseURL,
		PermitToken:    cfg.Cofhe.PermitToken,
		SealingSecret:  []byte(cfg.Cofhe.SealingSecret),
		SecurityZone:   cfg.Cofhe.SecurityZone,
		RequestTimeout: cfg.Cofhe.RequestTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("create coprocessor client: %w", err)
	}

	ledgerClient, err := ledger.NewClient(&cfg.Ethereum, logger)
	if err != nil {
		return fmt.Errorf("create ledger client: %w", err)
	}
	defer ledgerClient.Close()
	logger.Info("Connected to ledger",
		zap.String("rpc_url", cfg.Ethereum.RPCURL),
		zap.Int64("chain_id", cfg.Ethereum.ChainID),
		zap.String("signer", ledgerClient.Signer().Hex()))

	var journal orchestrator.Journal
	var runLog api.RunLog
	if cfg.Database.Host != "" {
		db, err := pgutil.ConnectDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		defer db.Close()

		st := store.NewStore(db)
		journal = st
		runLog = st
		logger.Info("Connected to database",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database))
	} else {
		logger.Warn("No database configured; workflow journal disabled")
	}

	orch := orchestrator.New(gateway, ledgerClient, journal, stepReporter{logger}, orchestrator.Config{
		Factory:        deployments.FactoryAddress(),
		Registry:       deployments.RegistryAddress(),
		PaymentToken:   deployments.PaymentTokenAddress(),
		GasLimit:       cfg.Ethereum.GasLimit,
		Confirmations:  cfg.Ethereum.ConfirmationBlocks,
		ReceiptTimeout: cfg.Ethereum.ReceiptTimeout,
		ClaimPolicy: retry.Policy{
			MaxAttempts: cfg.Redeem.MaxClaimAttempts,
			Delay:       cfg.Redeem.ClaimDelay,
		},
	}, logger)

	runInitialRefresh(ctx, orch, logger)

	stopMetrics := startMetricsServer(cfg.Monitoring, logger)
	defer stopMetrics()

	decimals := paymentTokenDecimals(ctx, ledgerClient, deployments.PaymentTokenAddress(), logger)
	handler := api.NewHandler(orch, runLog, decimals, logger)
	router := api.NewServer(handler, &cfg.Auth, logger).Router()

	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

// runInitialRefresh warms the bond read model before serving requests. A
// failure here is not fatal; the snapshot stays empty until the first
// successful refresh via the API.
func runInitialRefresh(ctx context.Context, orch *orchestrator.Orchestrator, logger *zap.Logger) {
	refreshCtx, cancel := context.WithTimeout(ctx, initialRefreshTimeout)
	defer cancel()

	if err := orch.RefreshAll(refreshCtx, orch.Signer()); err != nil {
		logger.Warn("Initial bond refresh failed (snapshot empty until next refresh)", zap.Error(err))
		return
	}
	logger.Info("Initial bond refresh completed", zap.Int("bonds", len(orch.Snapshot())))
}

// startMetricsServer exposes /metrics on its own listener so scrapes never
// contend with workflow requests. Returns a stopper.
func startMetricsServer(cfg config.MonitoringConfig, logger *zap.Logger) func() {
	if !cfg.Enabled {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", zap.Int("port", cfg.MetricsPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// paymentTokenDecimals reads the settlement token's decimals, falling back to
// 18 when the view is unavailable.
func paymentTokenDecimals(ctx context.Context, lc *ledger.Client, token common.Address, logger *zap.Logger) int32 {
	out, err := lc.Call(ctx, token, contracts.PaymentTokenABI, "decimals")
	if err == nil && len(out) == 1 {
		if d, ok := out[0].(uint8); ok {
			return int32(d)
		}
	}
	logger.Warn("Failed to read payment token decimals, assuming 18", zap.Error(err))
	return 18
}

// stepReporter logs workflow step transitions at debug level.
type stepReporter struct {
	logger *zap.Logger
}

func (r stepReporter) Report(workflow string, step orchestrator.Step) {
	r.logger.Debug("Workflow step",
		zap.String("workflow", workflow),
		zap.String("step", string(step)))
}
