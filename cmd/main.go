package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quotegate/guardian/config"
	"github.com/quotegate/guardian/internal/cache"
	"github.com/quotegate/guardian/internal/circuitbreaker"
	"github.com/quotegate/guardian/internal/healthcheck"
	"github.com/quotegate/guardian/internal/httpserver"
	"github.com/quotegate/guardian/internal/metrics"
	"github.com/quotegate/guardian/internal/ops"
	"github.com/quotegate/guardian/internal/ratelimit"
	"github.com/quotegate/guardian/internal/retry"
	"github.com/quotegate/guardian/internal/upstream"
	"github.com/quotegate/guardian/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(1000, log)
	collector.Start(ctx)

	registry := circuitbreaker.NewRegistry(
		circuitbreaker.WithStateChange(func(service string, from, to circuitbreaker.State) {
			collector.Emit(metrics.MetricEvent{
				Type:      metrics.EventStateChanged,
				Service:   service,
				FromState: from.String(),
				ToState:   to.String(),
			})
			log.Warn("Circuit state changed",
				slog.String("upstream", service),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		}),
	)

	var redisClient *redis.Client
	if cfg.RateLimit.Mode == config.RateLimitModeRedis || cfg.Cache.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	limiter := buildLimiter(cfg, redisClient, collector, log)
	policy := buildRetryPolicy(cfg)

	clientOpts := []upstream.ClientOption{
		upstream.WithCollector(collector),
	}
	if cfg.Cache.Enabled {
		clientOpts = append(clientOpts, upstream.WithCache(cache.NewStore(redisClient)))
	}

	client := upstream.NewClient(registry, limiter, policy, log, clientOpts...)

	services, err := buildServices(cfg)
	if err != nil {
		log.Error("Failed to build services", slog.Any("err", err))
		os.Exit(1)
	}

	healthInterval, err := time.ParseDuration(cfg.HealthCheck.Interval)
	if err != nil {
		log.Error("Invalid health check interval", slog.Any("err", err))
		os.Exit(1)
	}
	for _, svc := range services {
		go healthcheck.Watch(ctx, svc, healthInterval, collector, log)
	}

	opsHandler := ops.NewHandler(log, registry)
	router := setupRouter(opsHandler, collector, client, services)

	srv, err := httpserver.New(cfg.Server.Address, router)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Guardian started",
		slog.String("address", cfg.Server.Address),
		slog.Int("services", len(services)))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error running server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func buildLimiter(cfg *config.Config, redisClient *redis.Client, collector *metrics.Collector, log *slog.Logger) ratelimit.Limiter {
	if cfg.RateLimit.Mode == config.RateLimitModeRedis {
		return ratelimit.NewDistributed(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, log,
			ratelimit.OnFailOpen(func(key string) {
				collector.Emit(metrics.MetricEvent{
					Type:    metrics.EventRateLimitFailOpen,
					Service: key,
				})
			}))
	}
	return ratelimit.NewLocal(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

func buildRetryPolicy(cfg *config.Config) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.Retry.MaxRetries
	policy.Factor = cfg.Retry.Factor

	// Validation already guaranteed these parse.
	if d, err := time.ParseDuration(cfg.Retry.BaseWait); err == nil {
		policy.BaseWait = d
	}
	if d, err := time.ParseDuration(cfg.Retry.MaxWait); err == nil {
		policy.MaxWait = d
	}
	return policy
}

func buildServices(cfg *config.Config) (map[string]upstream.Service, error) {
	defaultTimeout, err := time.ParseDuration(cfg.Breaker.RecoveryTimeout)
	if err != nil {
		return nil, err
	}

	var defaultTTL time.Duration
	if cfg.Cache.Enabled {
		defaultTTL, err = time.ParseDuration(cfg.Cache.DefaultTTL)
		if err != nil {
			return nil, err
		}
	}

	services := make(map[string]upstream.Service, len(cfg.Services))
	for _, sc := range cfg.Services {
		svc := upstream.Service{
			Name:             sc.Name,
			BaseURL:          sc.URL,
			HealthPath:       sc.HealthPath,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			RecoveryTimeout:  defaultTimeout,
			CacheTTL:         defaultTTL,
		}

		if sc.FailureThreshold > 0 {
			svc.FailureThreshold = sc.FailureThreshold
		}
		if sc.RecoveryTimeout != "" {
			d, err := time.ParseDuration(sc.RecoveryTimeout)
			if err != nil {
				return nil, err
			}
			svc.RecoveryTimeout = d
		}
		if sc.CacheTTL != "" {
			d, err := time.ParseDuration(sc.CacheTTL)
			if err != nil {
				return nil, err
			}
			svc.CacheTTL = d
		}

		services[svc.Name] = svc
	}

	return services, nil
}
