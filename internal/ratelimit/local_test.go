package ratelimit_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quotegate/guardian/internal/ratelimit"
)

var _ = Describe("Local", func() {
	var limiter *ratelimit.Local

	Describe("Allow", func() {
		It("should allow a full burst and then deny", func() {
			limiter = ratelimit.NewLocal(1, 2)

			allowed, err := limiter.Allow(context.Background(), "market-data")
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeTrue())

			allowed, _ = limiter.Allow(context.Background(), "market-data")
			Expect(allowed).To(BeTrue())

			allowed, _ = limiter.Allow(context.Background(), "market-data")
			Expect(allowed).To(BeFalse())
		})

		It("should keep buckets independent per key", func() {
			limiter = ratelimit.NewLocal(1, 1)

			allowed, _ := limiter.Allow(context.Background(), "market-data")
			Expect(allowed).To(BeTrue())
			allowed, _ = limiter.Allow(context.Background(), "market-data")
			Expect(allowed).To(BeFalse())

			allowed, _ = limiter.Allow(context.Background(), "notifier")
			Expect(allowed).To(BeTrue())
		})

		It("should refill over time", func() {
			limiter = ratelimit.NewLocal(100, 1)

			allowed, _ := limiter.Allow(context.Background(), "market-data")
			Expect(allowed).To(BeTrue())
			allowed, _ = limiter.Allow(context.Background(), "market-data")
			Expect(allowed).To(BeFalse())

			Eventually(func() bool {
				allowed, _ := limiter.Allow(context.Background(), "market-data")
				return allowed
			}, time.Second, 5*time.Millisecond).Should(BeTrue())
		})
	})

	Describe("Wait", func() {
		It("should return promptly while tokens remain", func() {
			limiter = ratelimit.NewLocal(10, 5)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			Expect(limiter.Wait(ctx, "market-data")).To(Succeed())
		})

		It("should respect context cancellation when exhausted", func() {
			limiter = ratelimit.NewLocal(0.01, 1)

			_, _ = limiter.Allow(context.Background(), "market-data")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()

			Expect(limiter.Wait(ctx, "market-data")).NotTo(Succeed())
		})
	})

	Describe("concurrent access", func() {
		It("should serve many goroutines against one key without losing buckets", func() {
			limiter = ratelimit.NewLocal(1000, 1000)

			const goroutines = 100
			var wg sync.WaitGroup
			wg.Add(goroutines)

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					allowed, err := limiter.Allow(context.Background(), "market-data")
					Expect(err).NotTo(HaveOccurred())
					Expect(allowed).To(BeTrue())
				}()
			}
			wg.Wait()
		})
	})
})
