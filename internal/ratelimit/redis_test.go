package ratelimit_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/quotegate/guardian/internal/ratelimit"
)

var _ = Describe("Distributed", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	Context("when Redis is unreachable", func() {
		var client *redis.Client

		BeforeEach(func() {
			// Nothing listens here; every command fails fast.
			client = redis.NewClient(&redis.Options{
				Addr:        "127.0.0.1:1",
				DialTimeout: 50 * time.Millisecond,
				MaxRetries:  -1,
			})
		})

		AfterEach(func() {
			client.Close()
		})

		It("should fail open and allow the call", func() {
			limiter := ratelimit.NewDistributed(client, 5, 10, logger)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			allowed, err := limiter.Allow(ctx, "market-data")
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeTrue())
		})

		It("should report each fail-open decision through the hook", func() {
			var failOpens atomic.Int64
			limiter := ratelimit.NewDistributed(client, 5, 10, logger,
				ratelimit.OnFailOpen(func(key string) {
					Expect(key).To(Equal("market-data"))
					failOpens.Add(1)
				}))

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			_, _ = limiter.Allow(ctx, "market-data")
			_, _ = limiter.Allow(ctx, "market-data")

			Expect(failOpens.Load()).To(Equal(int64(2)))
		})

		It("should let Wait return immediately via fail-open", func() {
			limiter := ratelimit.NewDistributed(client, 5, 10, logger)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			Expect(limiter.Wait(ctx, "market-data")).To(Succeed())
		})
	})
})
