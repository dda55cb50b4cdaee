// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/codelab/acesso/internal/auth"
	"github.com/codelab/acesso/internal/config"
	"github.com/codelab/acesso/internal/gateway/kong"
	acessogrpc "github.com/codelab/acesso/internal/grpc"
	"github.com/codelab/acesso/internal/logging"
	"github.com/codelab/acesso/internal/mail"
	"github.com/codelab/acesso/internal/observability"
	acessotls "github.com/codelab/acesso/internal/tls"
)

const shutdownTimeout = 5 * time.Second

// ObservabilityServer is the subset of observability.Server used by serve.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// Listen opens the gRPC listener.
	// Default: net.Listen
	Listen func(network, address string) (net.Listener, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer

	// Signals delivers shutdown signals.
	// Default: SIGINT and SIGTERM via signal.Notify
	Signals <-chan os.Signal

	// OnReady is called with the gRPC address once serving.
	OnReady func(addr string)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the acesso gRPC service",
		Long: `Run the acesso.v1.Auth gRPC service together with the metrics and
health endpoints and the expired reset token purger.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	cmd.Flags().String("grpc-addr", ":9090", "gRPC listen address")
	cmd.Flags().String("certs-dir", "", "directory with the TLS certificates (empty = plaintext)")
	cmd.Flags().String("metrics-addr", ":9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", "json", "log format (json or text)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("store-driver", config.DriverPostgres, "store driver (postgres or memory)")
	cmd.Flags().Bool("auto-migrate", false, "apply pending migrations on startup")

	return cmd
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.Listen == nil {
		deps.Listen = net.Listen
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if deps.Signals == nil {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		deps.Signals = sigChan
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.Setup("acesso", version, cfg.Log.Format, cmd.ErrOrStderr(), level)
	slog.SetDefault(logger)

	logger.Info("starting acesso",
		"grpc_addr", cfg.GRPC.Addr,
		"store_driver", cfg.Store.Driver,
		"tls", cfg.GRPC.CertsDir != "",
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	be, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer be.close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Mail.RedisAddr,
		Password: cfg.Mail.RedisPassword,
		DB:       cfg.Mail.RedisDB,
	})
	defer func() { _ = rdb.Close() }()
	dispatcher := mail.NewRedisDispatcher(rdb, mail.WithStream(cfg.Mail.Stream))

	gateway, err := kong.NewClient(kong.Config{
		AdminURL: cfg.Kong.AdminURL,
		APIKey:   cfg.Kong.APIKey,
		Secret:   cfg.Session.Secret,
		Timeout:  cfg.Kong.Timeout,
	}, kong.WithLogger(logger))
	if err != nil {
		return err
	}

	signer, err := auth.NewJWTSigner(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		return err
	}
	hasher := auth.NewArgon2idHasher()

	authSvc, err := auth.NewAuthService(be.users, gateway, signer, hasher, auth.WithLogger(logger))
	if err != nil {
		return err
	}
	recoverySvc, err := auth.NewRecoveryService(be.users, be.tokens, be.tx, hasher, dispatcher,
		auth.WithLogger(logger),
		auth.WithTokenTTL(cfg.Recovery.TokenTTL),
	)
	if err != nil {
		return err
	}

	var tlsConfig *tls.Config
	if cfg.GRPC.CertsDir != "" {
		if tlsConfig, err = acessotls.LoadServerTLS(cfg.GRPC.CertsDir, cfg.GRPC.CertName); err != nil {
			return err
		}
	}

	grpcServer := acessogrpc.NewServer(tlsConfig, logger)
	acessogrpc.RegisterAuthServer(grpcServer,
		acessogrpc.NewAuthHandler(authSvc, recoverySvc, be.users, acessogrpc.WithLogger(logger)))

	listener, err := deps.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.GRPC.Addr).Wrap(err)
	}

	var serving atomic.Bool
	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool {
			checkCtx, checkCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer checkCancel()
			return serving.Load() && be.ready(checkCtx)
		})
		obsErrChan, err := obsServer.Start()
		if err != nil {
			_ = listener.Close()
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		recoverySvc.RunPurger(ctx, cfg.Recovery.PurgeInterval)
	}()

	errChan := make(chan error, 1)
	go func() {
		if serveErr := grpcServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			errChan <- serveErr
		}
	}()
	serving.Store(true)

	logger.Info("acesso ready", "grpc_addr", listener.Addr().String())
	if deps.OnReady != nil {
		deps.OnReady(listener.Addr().String())
	}

	var runErr error
	select {
	case sig := <-deps.Signals:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errChan:
		runErr = oops.Code("GRPC_SERVE_FAILED").Wrap(err)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	serving.Store(false)
	cancel()
	grpcServer.GracefulStop()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when an error arrives, the channel closes, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
