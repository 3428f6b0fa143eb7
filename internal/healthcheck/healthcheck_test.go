package healthcheck_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quotegate/guardian/internal/healthcheck"
	"github.com/quotegate/guardian/internal/metrics"
	"github.com/quotegate/guardian/internal/upstream"
)

var _ = Describe("Watch", func() {
	var (
		collector *metrics.Collector
		ctx       context.Context
		cancel    context.CancelFunc
		logger    *slog.Logger
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		collector = metrics.NewCollector(100, logger)
		ctx, cancel = context.WithCancel(context.Background())
		collector.Start(ctx)
	})

	AfterEach(func() {
		cancel()
	})

	It("should report a healthy upstream", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/health"))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		svc := upstream.Service{Name: "market-data", BaseURL: server.URL}
		go healthcheck.Watch(ctx, svc, 10*time.Millisecond, collector, logger)

		Eventually(func() bool {
			return collector.Snapshot().Services["market-data"].Healthy
		}, time.Second, 10*time.Millisecond).Should(BeTrue())
	})

	It("should report a transition to unhealthy", func() {
		var healthy atomic.Bool
		healthy.Store(true)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if healthy.Load() {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}))
		defer server.Close()

		svc := upstream.Service{Name: "market-data", BaseURL: server.URL, HealthPath: "/health"}
		go healthcheck.Watch(ctx, svc, 10*time.Millisecond, collector, logger)

		Eventually(func() bool {
			return collector.Snapshot().Services["market-data"].Healthy
		}, time.Second, 10*time.Millisecond).Should(BeTrue())

		healthy.Store(false)

		Eventually(func() bool {
			return collector.Snapshot().Services["market-data"].Healthy
		}, time.Second, 10*time.Millisecond).Should(BeFalse())
	})

	It("should treat an unreachable upstream as unhealthy", func() {
		svc := upstream.Service{Name: "ghost", BaseURL: "http://127.0.0.1:1"}
		go healthcheck.Watch(ctx, svc, 10*time.Millisecond, collector, logger)

		Eventually(func() bool {
			_, seen := collector.Snapshot().Services["ghost"]
			return seen
		}, time.Second, 10*time.Millisecond).Should(BeTrue())
		Expect(collector.Snapshot().Services["ghost"].Healthy).To(BeFalse())
	})

	It("should stop when the context is cancelled", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		watchCtx, watchCancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			svc := upstream.Service{Name: "market-data", BaseURL: server.URL}
			healthcheck.Watch(watchCtx, svc, 10*time.Millisecond, collector, logger)
		}()

		watchCancel()
		Eventually(done).Should(BeClosed())
	})
})
