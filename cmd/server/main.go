/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the equipment loan server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (YAML file + LOAN_* environment)
  3. Build the zap logger
  4. Initialize SQLite store
  5. Wire repository, engine, service and fine scheduler
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Optional YAML config file
  -port    Overrides server.port
  -db      Overrides database.path ("" keeps the configured one)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdown_timeout)
  3. Stop the fine scheduler, letting a running batch finish
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/loans.db"

  # Run with in-memory database and demo scenarios
  LOAN_SERVER_SCENARIOS=true ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - config/config.go: Every setting and its default
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/warp/equipment-loan/api"
	"github.com/warp/equipment-loan/config"
	"github.com/warp/equipment-loan/generic"
	"github.com/warp/equipment-loan/loan"
	"github.com/warp/equipment-loan/logging"
	"github.com/warp/equipment-loan/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger, err := logging.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer store.Close()

	// Domain wiring
	fines := loan.FinePolicy{
		PerDay:   generic.NewMoney(cfg.Fine.PerDay, generic.CurrencyIDR),
		Location: cfg.Fine.Location(loan.DefaultLocation),
	}
	engine := loan.NewEngine(fines, logger.Named("engine"))
	service := loan.NewService(
		loan.NewRepository(store),
		engine,
		logger.Named("service"),
		loan.WithBatchConcurrency(cfg.Scheduler.Concurrency),
	)

	scheduler := api.NewFineScheduler(service, store, logger)
	scheduler.Interval = cfg.Scheduler.Interval
	scheduler.Enabled = cfg.Scheduler.Enabled

	handler := api.NewHandler(service, logger.Named("http"))
	handler.Fines = scheduler
	handler.Runs = store
	handler.DB = store
	if cfg.Server.Scenarios {
		handler.Scenarios = store
	}

	// Create router
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateWindow:     cfg.Server.RateWindow,
	})

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  4 * cfg.Server.ReadTimeout,
	}

	scheduler.Start()
	defer scheduler.Stop()

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.Database.Path),
			zap.Bool("scenarios", cfg.Server.Scenarios),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
