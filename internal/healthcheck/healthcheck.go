package healthcheck

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quotegate/guardian/internal/metrics"
	"github.com/quotegate/guardian/internal/upstream"
)

// Watch periodically probes an upstream service's health endpoint and
// reports transitions through the metrics pipeline. It is purely
// observational: breaker state is driven by real call outcomes, not by
// probes.
func Watch(
	ctx context.Context,
	svc upstream.Service,
	interval time.Duration,
	collector *metrics.Collector,
	logger *slog.Logger,
) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	healthPath := svc.HealthPath
	if healthPath == "" {
		healthPath = "/health"
	}
	healthURL := strings.TrimSuffix(svc.BaseURL, "/") + healthPath

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Unknown until the first probe answers.
	known := false
	healthy := false

	for {
		select {
		case <-ctx.Done():
			logger.Info("Health watch stopped",
				slog.String("upstream", svc.Name))
			return

		case <-ticker.C:
			current := probe(ctx, client, healthURL)

			if known && current == healthy {
				continue
			}
			known = true
			healthy = current

			collector.Emit(metrics.MetricEvent{
				Type:    metrics.EventHealthChanged,
				Service: svc.Name,
				Healthy: healthy,
			})

			if healthy {
				logger.Info("Upstream is healthy",
					slog.String("upstream", svc.Name))
			} else {
				logger.Warn("Upstream is down",
					slog.String("upstream", svc.Name))
			}
		}
	}
}

func probe(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	res, err := client.Do(req)
	if err != nil {
		return false
	}
	res.Body.Close()

	return res.StatusCode == http.StatusOK
}
