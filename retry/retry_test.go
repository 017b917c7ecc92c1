package retry_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"teambot/errs"
	"teambot/retry"
)

type recorder struct {
	sleeps []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.sleeps = append(r.sleeps, d)
	return nil
}

var _ = Describe("Executor", func() {
	var (
		rec *recorder
		ex  *retry.Executor
		ctx context.Context
	)

	BeforeEach(func() {
		rec = &recorder{}
		ex = retry.New(retry.WithSleeper(rec.sleep))
		ctx = context.Background()
	})

	Specify("succeeds on the fourth attempt after three server errors", func() {
		calls := 0
		v, err := retry.Do(ctx, ex, "roles.create", func(context.Context) (string, error) {
			calls++
			if calls < 4 {
				return "", fmt.Errorf("%w: status 503", errs.ErrRemoteServer)
			}
			return "role", nil
		})

		Expect(err).To(BeNil())
		Expect(v).To(Equal("role"))
		Expect(calls).To(Equal(4))
		Expect(rec.sleeps).To(Equal([]time.Duration{
			700 * time.Millisecond,
			1400 * time.Millisecond,
			2800 * time.Millisecond,
		}))
	})

	Specify("never sleeps on authorization failures", func() {
		calls := 0
		err := ex.Run(ctx, "roles.assign", func(context.Context) error {
			calls++
			return fmt.Errorf("%w: status 403", errs.ErrAuthorizationDenied)
		})

		Expect(err).To(MatchError(errs.ErrAuthorizationDenied))
		Expect(calls).To(Equal(1))
		Expect(rec.sleeps).To(BeEmpty())
	})

	Specify("returns the last retryable error once attempts are exhausted", func() {
		calls := 0
		err := ex.Run(ctx, "messages.create", func(context.Context) error {
			calls++
			return fmt.Errorf("%w: attempt %d", errs.ErrTransientNetwork, calls)
		})

		Expect(err).To(MatchError(errs.ErrTransientNetwork))
		Expect(err.Error()).To(ContainSubstring("attempt 4"))
		Expect(calls).To(Equal(4))
		Expect(rec.sleeps).To(HaveLen(3))
	})

	Specify("does not retry unclassified errors", func() {
		boom := errors.New("boom")
		calls := 0
		err := ex.Run(ctx, "op", func(context.Context) error {
			calls++
			return boom
		})

		Expect(err).To(Equal(boom))
		Expect(calls).To(Equal(1))
	})

	Specify("honours the configured attempt count", func() {
		ex = retry.New(retry.WithSleeper(rec.sleep), retry.WithMaxAttempts(2), retry.WithBaseDelay(10*time.Millisecond))
		calls := 0
		_ = ex.Run(ctx, "op", func(context.Context) error {
			calls++
			return errs.ErrRemoteServer
		})

		Expect(calls).To(Equal(2))
		Expect(rec.sleeps).To(Equal([]time.Duration{10 * time.Millisecond}))
	})

	Specify("stops when the context is cancelled during backoff", func() {
		ex = retry.New(retry.WithBaseDelay(time.Hour))
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		err := ex.Run(cctx, "op", func(context.Context) error {
			calls++
			return errs.ErrRemoteServer
		})
		Expect(err).To(MatchError(context.Canceled))
		Expect(calls).To(Equal(1))
	})
})

var _ = Describe("Retryable", func() {
	DescribeTable("classification",
		func(err error, expected bool) {
			Expect(retry.Retryable(err)).To(Equal(expected))
		},
		Entry("nil", nil, false),
		Entry("authorization", errs.ErrAuthorizationDenied, false),
		Entry("server error", fmt.Errorf("%w: 502", errs.ErrRemoteServer), true),
		Entry("transient", errs.ErrTransientNetwork, true),
		Entry("raw network error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true),
		Entry("deadline", context.DeadlineExceeded, false),
		Entry("not found", errs.ErrRemoteNotFound, false),
		Entry("validation", errs.ErrTeamFull, false),
	)
})
