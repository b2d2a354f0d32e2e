// Command notifd runs the long-poll event broker: a consumer listener for
// subscribe calls, a producer listener for event ingest, and a stat listener
// for introspection and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/notifd/notifd/auth"
	"github.com/notifd/notifd/hub"
	"github.com/notifd/notifd/longpollhttp"
	"github.com/notifd/notifd/presence"
	"github.com/notifd/notifd/tokencache"
	"github.com/notifd/notifd/upstream"
)

type appConfig struct {
	// Listeners, one per audience as in the original deployment layout.
	ClientAddr string `env:"NOTIFD_CLIENT_ADDR,default=:8001"`
	IngestAddr string `env:"NOTIFD_INGEST_ADDR,default=:8002"`
	StatAddr   string `env:"NOTIFD_STAT_ADDR,default=:8003"`

	// APIEndpoint is the base URL of the platform API used for token
	// validation and presence updates.
	APIEndpoint string `env:"NOTIFD_API_ENDPOINT,required"`

	// RedisAddr, when set, switches the token cache to Redis.
	RedisAddr string `env:"NOTIFD_REDIS_ADDR"`

	PollTimeout   time.Duration `env:"NOTIFD_POLL_TIMEOUT,default=25s"`
	Retention     time.Duration `env:"NOTIFD_EVENT_RETENTION,default=10m"`
	TokenCacheTTL time.Duration `env:"NOTIFD_TOKEN_CACHE_TTL,default=30m"`
	OfflineDelay  time.Duration `env:"NOTIFD_OFFLINE_DELAY,default=10s"`

	LogLevel string `env:"NOTIFD_LOG_LEVEL,default=info"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := envdecode.Decode(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("parse NOTIFD_LOG_LEVEL: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	client := upstream.New(cfg.APIEndpoint, upstream.WithLogger(logger))

	var verifier auth.Verifier = tokencache.NewMemory(client, cfg.TokenCacheTTL)
	if cfg.RedisAddr != "" {
		rc, err := tokencache.NewRedis(tokencache.Config{RedisAddr: cfg.RedisAddr}, client, cfg.TokenCacheTTL, logger)
		if err != nil {
			return fmt.Errorf("redis token cache: %w", err)
		}
		defer rc.Close()
		verifier = rc
	}

	tracker := presence.New(client,
		presence.WithDelay(cfg.OfflineDelay),
		presence.WithLogger(logger))
	defer tracker.Close()

	h := hub.New(
		hub.WithRetention(cfg.Retention),
		hub.WithPollTimeout(cfg.PollTimeout),
		hub.WithPresence(tracker),
		hub.WithLogger(logger))
	tracker.SetSessionCheck(h.HasPendingToken)

	clientMux := http.NewServeMux()
	clientMux.Handle("/", longpollhttp.NewSubscribeHandler(h, verifier, longpollhttp.WithLogger(logger)))

	ingestMux := http.NewServeMux()
	ingestMux.Handle("/", longpollhttp.NewIngestHandler(h, longpollhttp.WithLogger(logger)))

	statMux := http.NewServeMux()
	statMux.Handle("/metrics", promhttp.Handler())
	statMux.Handle("/", longpollhttp.NewStatHandler(h, tracker, longpollhttp.WithLogger(logger)))

	servers := []*http.Server{
		{Addr: cfg.ClientAddr, Handler: clientMux},
		{Addr: cfg.IngestAddr, Handler: ingestMux},
		{Addr: cfg.StatAddr, Handler: statMux},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		logger.Info("listening", slog.String("addr", srv.Addr))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", slog.String("addr", srv.Addr), slog.String("err", err.Error()))
		}
	}
	return nil
}
