package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talking-avatar/backend/pkg/config"
	"talking-avatar/backend/pkg/di"
	"talking-avatar/backend/pkg/health"
	"talking-avatar/backend/pkg/router"
	"talking-avatar/backend/pkg/secrets"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New()
			if port != "" {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	log := setupLogger(cfg)
	log.Info("Starting application", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vault, err := secrets.NewVaultManager(secrets.VaultConfigFrom(cfg), log)
	if err != nil {
		log.LogError(err, "Vault unavailable, reading provider keys from the environment only")
	} else {
		secrets.ResolveProviderKeys(ctx, vault, cfg, log)
	}

	container, err := di.New(ctx, cfg, log, di.Overrides{})
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		return err
	}
	defer container.Close()

	r := router.New(container)
	r.SetupRoutes()

	go r.RateLimiter.Run(ctx, 5*time.Minute)
	container.Health.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcHealth *health.GRPCServer
	if cfg.Server.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCHealthPort)
		if err != nil {
			return fmt.Errorf("listen for grpc health: %w", err)
		}
		grpcHealth = health.NewGRPCServer(container.Health)
		go func() {
			log.Info("gRPC health service starting", "port", cfg.Server.GRPCHealthPort)
			if err := grpcHealth.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc health server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-errCh:
		log.LogError(err, "Server failed")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if grpcHealth != nil {
		grpcHealth.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
		return err
	}

	log.Info("Server exited gracefully")
	return nil
}
