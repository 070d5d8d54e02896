package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/recht-proxy/pkg/cache"
	"github.com/Sternrassler/recht-proxy/pkg/invoker"
	"github.com/Sternrassler/recht-proxy/pkg/logging"
	"github.com/Sternrassler/recht-proxy/pkg/lookup"
	"github.com/Sternrassler/recht-proxy/pkg/ratelimit"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.LookupEnv).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the CLI. Flag defaults come from the environment.
func newRootCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	cfg, envErr := LoadEnv(lookupEnv)

	cmd := &cobra.Command{
		Use:   "recht-proxy",
		Short: "HTTP proxy resolving German law citations through the recht tool.",
		Long: `recht-proxy serves GET /map?q=<citation> (e.g. "BGB 1") by invoking the
recht command-line tool, caching successes and failures in memory.

Every flag defaults to the environment variable named in its description.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.Port, "port", cfg.Port, "listen port (PORT)")
	flags.StringVar(&cfg.PublicDir, "public-dir", cfg.PublicDir, "directory of static front-end assets (PUBLIC_DIR)")
	flags.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "grace period for in-flight requests on shutdown")
	flags.StringVar(&cfg.RechtBin, "recht-bin", cfg.RechtBin, "recht binary name or path (RECHT_BIN)")
	flags.DurationVar(&cfg.RechtTimeout, "recht-timeout", cfg.RechtTimeout, "timeout per recht invocation (RECHT_TIMEOUT_MS)")
	flags.IntVar(&cfg.MaxOutputBytes, "recht-max-buffer", cfg.MaxOutputBytes, "maximum captured recht output in bytes (RECHT_MAX_BUFFER)")
	flags.IntVar(&cfg.CacheLimit, "cache-limit", cfg.CacheLimit, "maximum cached lookups (CACHE_LIMIT)")
	flags.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "lifetime of cached successes (CACHE_TTL_MS)")
	flags.DurationVar(&cfg.CacheErrorTTL, "cache-error-ttl", cfg.CacheErrorTTL, "lifetime of cached failures (CACHE_ERROR_TTL_MS)")
	flags.DurationVar(&cfg.CacheSweep, "cache-sweep", cfg.CacheSweep, "expiry sweep interval, 0 uses the cache ttl (CACHE_SWEEP_MS)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (LOG_LEVEL)")
	flags.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "human-readable console logs (LOG_PRETTY)")
	flags.Float64Var(&cfg.RateLimitRPS, "rate-limit-rps", cfg.RateLimitRPS, "lookups per second per client, 0 disables (RATE_LIMIT_RPS)")
	flags.IntVar(&cfg.RateLimitBurst, "rate-limit-burst", cfg.RateLimitBurst, "lookup burst per client (RATE_LIMIT_BURST)")

	return cmd
}

// run wires the components and serves until ctx is cancelled.
func run(ctx context.Context, cfg Config) error {
	logging.Setup(cfg.loggingConfig())
	logger := logging.NewLogger(logging.ComponentServer)

	store, err := cache.New[lookup.Payload](cfg.cacheConfig(), logging.NewLogger(logging.ComponentCache))
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}

	tool, err := invoker.New(cfg.invokerConfig(), logging.NewLogger(logging.ComponentInvoker))
	if err != nil {
		return fmt.Errorf("create invoker: %w", err)
	}
	if err := tool.Available(); err != nil {
		logger.Warn().Err(err).Str("binary", tool.Binary()).Msg("recht binary not found - lookups will fail until it is installed")
	}

	svc, err := lookup.NewService(store, tool, logging.NewLogger(logging.ComponentLookup))
	if err != nil {
		return fmt.Errorf("create lookup service: %w", err)
	}

	limiter, err := ratelimit.NewTracker(cfg.rateLimitConfig(), logging.NewLogger(logging.ComponentRateLimit))
	if err != nil {
		return fmt.Errorf("create rate limiter: %w", err)
	}

	srv := &http.Server{
		Addr: cfg.addr(),
		Handler: newHandler(handlerDeps{
			Lookup:    svc,
			Ready:     tool.Available,
			Limiter:   limiter,
			PublicDir: cfg.PublicDir,
			Logger:    logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("addr", srv.Addr).
			Str("recht_bin", cfg.RechtBin).
			Dur("recht_timeout", cfg.RechtTimeout).
			Int("cache_limit", cfg.CacheLimit).
			Bool("rate_limit", limiter.Enabled()).
			Msg("Starting recht proxy")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		return store.Run(gctx)
	})

	g.Go(func() error {
		return limiter.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		return err
	}
	logger.Info().Msg("Server stopped")
	return nil
}
