package retry_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quotegate/guardian/internal/circuitbreaker"
	"github.com/quotegate/guardian/internal/retry"
)

// recordingSleeper records requested waits instead of sleeping.
type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.waits = append(s.waits, d)
	return nil
}

var errFlaky = errors.New("connection reset")

var _ = Describe("Do", func() {
	var (
		policy  retry.Policy
		sleeper *recordingSleeper
	)

	BeforeEach(func() {
		policy = retry.Policy{
			MaxRetries: 3,
			BaseWait:   100 * time.Millisecond,
			MaxWait:    time.Second,
			Factor:     2.0,
		}
		sleeper = &recordingSleeper{}
	})

	It("should return nil on first success without sleeping", func() {
		calls := 0
		err := retry.Do(context.Background(), policy, sleeper, retry.Default, func() error {
			calls++
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
		Expect(sleeper.waits).To(BeEmpty())
	})

	It("should retry until success", func() {
		calls := 0
		err := retry.Do(context.Background(), policy, sleeper, retry.Default, func() error {
			calls++
			if calls < 3 {
				return errFlaky
			}
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(3))
		Expect(sleeper.waits).To(HaveLen(2))
	})

	It("should wrap the last error once retries are exhausted", func() {
		calls := 0
		err := retry.Do(context.Background(), policy, sleeper, retry.Default, func() error {
			calls++
			return errFlaky
		})

		Expect(errors.Is(err, retry.ErrRetriesExhausted)).To(BeTrue())
		Expect(errors.Is(err, errFlaky)).To(BeTrue())
		Expect(calls).To(Equal(4)) // initial attempt plus three retries
	})

	It("should grow waits exponentially within jitter bounds", func() {
		_ = retry.Do(context.Background(), policy, sleeper, retry.Default, func() error {
			return errFlaky
		})

		Expect(sleeper.waits).To(HaveLen(3))
		expected := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
		for i, wait := range sleeper.waits {
			Expect(wait).To(BeNumerically("~", expected[i], expected[i]/5))
		}
	})

	It("should cap waits at MaxWait", func() {
		policy.MaxRetries = 8
		policy.MaxWait = 300 * time.Millisecond

		_ = retry.Do(context.Background(), policy, sleeper, retry.Default, func() error {
			return errFlaky
		})

		for _, wait := range sleeper.waits {
			// Cap plus 20% jitter headroom.
			Expect(wait).To(BeNumerically("<=", 360*time.Millisecond))
		}
	})

	It("should not retry a non-retryable error", func() {
		calls := 0
		marker := errors.New("bad request")
		never := func(error) bool { return false }

		err := retry.Do(context.Background(), policy, sleeper, never, func() error {
			calls++
			return marker
		})

		Expect(err).To(MatchError(marker))
		Expect(errors.Is(err, retry.ErrRetriesExhausted)).To(BeFalse())
		Expect(calls).To(Equal(1))
	})

	It("should not retry an open-circuit rejection under the default classifier", func() {
		calls := 0
		rejection := &circuitbreaker.CircuitOpenError{Service: "quotes", RetryAfter: 5 * time.Second}

		err := retry.Do(context.Background(), policy, sleeper, retry.Default, func() error {
			calls++
			return rejection
		})

		Expect(circuitbreaker.IsOpen(err)).To(BeTrue())
		Expect(calls).To(Equal(1))
	})

	It("should stop when the context is cancelled between attempts", func() {
		ctx, cancel := context.WithCancel(context.Background())

		calls := 0
		err := retry.Do(ctx, policy, sleeper, retry.Default, func() error {
			calls++
			cancel()
			return errFlaky
		})

		Expect(err).To(MatchError(context.Canceled))
		Expect(calls).To(Equal(1))
	})
})

var _ = Describe("DoValue", func() {
	It("should return the successful value", func() {
		sleeper := &recordingSleeper{}
		calls := 0

		value, err := retry.DoValue(context.Background(), retry.DefaultPolicy(), sleeper, retry.Default,
			func() ([]byte, error) {
				calls++
				if calls == 1 {
					return nil, errFlaky
				}
				return []byte(`{"price": 42}`), nil
			})

		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal([]byte(`{"price": 42}`)))
	})

	It("should zero the value on failure", func() {
		sleeper := &recordingSleeper{}
		policy := retry.Policy{MaxRetries: 1, BaseWait: time.Millisecond, MaxWait: time.Millisecond, Factor: 1}

		value, err := retry.DoValue(context.Background(), policy, sleeper, retry.Default,
			func() (string, error) {
				return "partial", errFlaky
			})

		Expect(err).To(HaveOccurred())
		Expect(value).To(BeEmpty())
	})
})
