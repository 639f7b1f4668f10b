// Package main implements the entry point for the phonebook service, a
// GraphQL API over a MongoDB-backed phonebook with user accounts, token
// authentication, and a live person-added subscription stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/phonebook/auth"
	"github.com/c360/phonebook/config"
	"github.com/c360/phonebook/gateway/graphql"
	"github.com/c360/phonebook/metric"
	"github.com/c360/phonebook/notifier"
	"github.com/c360/phonebook/resolver"
	"github.com/c360/phonebook/store"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "phonebook"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	showVersion := flag.Bool("version", false, "print version and exit")
	validateOnly := flag.Bool("validate", false, "validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s (built %s)\n", appName, Version, BuildTime)
		return
	}

	// Run application with proper error handling
	if err := run(*validateOnly); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(validateOnly bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if validateOnly {
		slog.Info("Configuration is valid")
		return nil
	}

	slog.Info("Starting phonebook service",
		"version", Version,
		"build_time", BuildTime,
		"address", cfg.BindAddress,
		"path", cfg.Path)

	ctx := context.Background()

	st, client, err := setupStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			slog.Error("MongoDB disconnect failed", "error", err)
		}
	}()

	gateway, events, err := setupGateway(cfg, st, logger)
	if err != nil {
		return err
	}
	defer events.Close()

	return runWithSignalHandling(ctx, gateway)
}

// setupStore connects to MongoDB and prepares the document store. An
// unreachable store at startup is logged but not fatal: the driver
// reconnects lazily and individual operations fail until it recovers.
func setupStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store.Store, storeClient, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	slog.Info("Connecting to MongoDB", "database", cfg.Database)
	client, err := store.Connect(connectCtx, cfg.MongoURL)
	if client == nil {
		return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err != nil {
		slog.Error("MongoDB unreachable at startup, continuing", "error", err)
	}

	st := store.New(client, cfg.Database, logger)

	if err == nil {
		if idxErr := st.EnsureIndexes(ctx); idxErr != nil {
			slog.Error("failed to ensure indexes", "error", idxErr)
		}
	}

	return st, client, nil
}

// storeClient is the slice of the MongoDB client the entry point needs
type storeClient interface {
	Disconnect(ctx context.Context) error
}

// setupGateway wires the resolver set, identity resolution, metrics, and
// event notifier into the GraphQL gateway
func setupGateway(cfg config.Config, st *store.Store, logger *slog.Logger) (*graphql.Gateway, *notifier.Notifier, error) {
	events := notifier.New(logger)
	tokens := auth.NewTokenService(cfg.JWTKey, cfg.TokenTTL())
	metrics := metric.New()

	res := resolver.New(st, tokens, auth.NewPasswordHasher(), events, metrics, logger)
	contexts := auth.NewContextBuilder(tokens, st, logger)

	gateway, err := graphql.NewGateway(graphql.FromProcessConfig(cfg), res, contexts, metrics, logger)
	if err != nil {
		events.Close()
		return nil, nil, fmt.Errorf("create gateway: %w", err)
	}

	return gateway, events, nil
}

// runWithSignalHandling starts the gateway and handles shutdown signals
func runWithSignalHandling(ctx context.Context, gateway *graphql.Gateway) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	errChan := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		errChan <- gateway.Start(signalCtx, ready)
	}()

	select {
	case <-ready:
		slog.Info("Phonebook service started")
	case err := <-errChan:
		return fmt.Errorf("start gateway: %w", err)
	}

	select {
	case <-signalCtx.Done():
		// Start shuts the server down itself on context cancellation
		slog.Info("Received shutdown signal")
		if err := <-errChan; err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("gateway failed: %w", err)
		}
	}

	slog.Info("Phonebook shutdown complete")
	return nil
}
