package circuitbreaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quotegate/guardian/internal/circuitbreaker"
)

var _ = Describe("Registry", func() {
	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		registry = circuitbreaker.NewRegistry()
	})

	Describe("GetBreaker", func() {
		It("should create a closed breaker for an unknown service", func() {
			cb := registry.GetBreaker("market-data", 5, 30*time.Second)
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should return the same instance for repeated lookups of the same service", func() {
			cb1 := registry.GetBreaker("market-data", 5, 30*time.Second)
			cb2 := registry.GetBreaker("market-data", 5, 30*time.Second)
			Expect(cb1).To(BeIdenticalTo(cb2))
		})

		It("should return distinct instances for distinct services", func() {
			cb1 := registry.GetBreaker("market-data", 5, 30*time.Second)
			cb2 := registry.GetBreaker("notifier", 5, 30*time.Second)
			Expect(cb1).NotTo(BeIdenticalTo(cb2))
		})

		It("should ignore parameters on a second lookup for a registered name", func() {
			cb1 := registry.GetBreaker("market-data", 2, 30*time.Second)
			cb2 := registry.GetBreaker("market-data", 99, time.Hour)
			Expect(cb1).To(BeIdenticalTo(cb2))

			// Still the original threshold of 2.
			cb2.Call(func() error { return errUpstream })
			cb2.Call(func() error { return errUpstream })
			Expect(cb1.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should apply registry options to constructed breakers", func() {
			clock := newFakeClock()
			registry = circuitbreaker.NewRegistry(circuitbreaker.WithClock(clock.Now))

			cb := registry.GetBreaker("market-data", 1, 10*time.Second)
			cb.Call(func() error { return errUpstream })
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			clock.Advance(10 * time.Second)
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
		})
	})

	Describe("AllStates", func() {
		It("should map every registered service to its state name", func() {
			registry.GetBreaker("market-data", 5, 30*time.Second)
			tripped := registry.GetBreaker("notifier", 2, 30*time.Second)

			tripped.Call(func() error { return errUpstream })
			tripped.Call(func() error { return errUpstream })

			Expect(registry.AllStates()).To(Equal(map[string]string{
				"market-data": "CLOSED",
				"notifier":    "OPEN",
			}))
		})

		It("should be empty for a fresh registry", func() {
			Expect(registry.AllStates()).To(BeEmpty())
		})
	})

	Describe("Reset", func() {
		It("should close every breaker without evicting it", func() {
			tripped := registry.GetBreaker("notifier", 1, time.Hour)
			tripped.Call(func() error { return errUpstream })
			Expect(tripped.State()).To(Equal(circuitbreaker.StateOpen))

			registry.Reset()

			Expect(registry.AllStates()).To(Equal(map[string]string{
				"notifier": "CLOSED",
			}))
			Expect(registry.GetBreaker("notifier", 99, time.Hour)).To(BeIdenticalTo(tripped))
		})
	})

	Describe("concurrent access", func() {
		It("should hand out a single instance under concurrent first access", func() {
			const goroutines = 100

			var wg sync.WaitGroup
			wg.Add(goroutines)

			results := make([]*circuitbreaker.CircuitBreaker, goroutines)
			for i := 0; i < goroutines; i++ {
				go func(idx int) {
					defer wg.Done()
					results[idx] = registry.GetBreaker("market-data", 5, 30*time.Second)
				}(i)
			}
			wg.Wait()

			for _, cb := range results {
				Expect(cb).To(BeIdenticalTo(results[0]))
			}
			Expect(registry.AllStates()).To(HaveLen(1))
		})

		It("should keep breaker state valid under concurrent calls", func() {
			cb := registry.GetBreaker("market-data", 5, 30*time.Second)

			const goroutines = 50
			var wg sync.WaitGroup
			wg.Add(goroutines * 2)

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					cb.Call(func() error { return errUpstream })
				}()
				go func() {
					defer wg.Done()
					cb.Call(func() error { return nil })
				}()
			}
			wg.Wait()

			Expect(cb.State()).To(BeElementOf(
				circuitbreaker.StateClosed,
				circuitbreaker.StateOpen,
				circuitbreaker.StateHalfOpen,
			))
		})
	})
})
