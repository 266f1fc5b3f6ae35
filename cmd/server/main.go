package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/upb/ecs-app/app"
	"github.com/upb/ecs-app/config"
	"github.com/upb/ecs-app/internal/logging"
	"github.com/upb/ecs-app/routes"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const readHeaderTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := config.Environ(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, env, os.Stdout); err != nil {
		reportError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run loads the configuration, builds every dependency and serves until ctx
// is cancelled. Nothing is logged before the configuration is known to be
// valid.
func run(ctx context.Context, env config.Env, stdout io.Writer) error {
	cfg, err := config.Load(env)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging(), stdout)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("starting application",
		zap.String("environment", cfg.Environment()),
		zap.String("cache", string(cfg.Cache().Kind())),
		zap.String("job_queue", string(cfg.JobQueue().Kind())))

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		_ = logger.Sync()
		return err
	}

	if err := deps.Start(ctx); err != nil {
		return multierr.Append(err, deps.Close(context.Background()))
	}

	ln, err := net.Listen("tcp", cfg.Server().Address())
	if err != nil {
		err = fmt.Errorf("failed to listen on %s: %w", cfg.Server().Address(), err)
		return multierr.Append(err, deps.Close(context.Background()))
	}

	serveErr := serve(ctx, deps, ln)

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server().ShutdownTimeout())
	defer cancel()
	if err := deps.Close(closeCtx); err != nil {
		serveErr = multierr.Append(serveErr, err)
	}
	return serveErr
}

// serve handles requests on ln until ctx is done, then shuts the server down
// gracefully within the configured timeout.
func serve(ctx context.Context, deps *app.Dependencies, ln net.Listener) error {
	server := deps.Config.Server()
	srv := &http.Server{
		Handler:           routes.SetupRoutes(deps),
		ReadTimeout:       server.ReadTimeout(),
		WriteTimeout:      server.WriteTimeout(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("http server listening", zap.String("address", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		deps.Logger.Info("received shutdown signal, initiating graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	deps.Logger.Info("http server stopped")
	return nil
}

// reportError prints configuration problems one per line so an operator can
// fix them all in one go
func reportError(w io.Writer, err error) {
	if config.IsMissingRequiredVariable(err) || config.IsInvalidValue(err) {
		fmt.Fprintln(w, "invalid configuration:")
		for _, e := range multierr.Errors(err) {
			fmt.Fprintf(w, "  - %v\n", e)
		}
		return
	}
	fmt.Fprintf(w, "fatal: %v\n", err)
}
