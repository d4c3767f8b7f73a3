package merchantd

import (
	"context"
	"time"
)

// Poller drives a bounded polling loop against the commerce platform. Every
// loop is capped by MaxAttempts so an abandoned wallet handshake can never
// poll forever.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int

	// sleep is injectable for tests.
	sleep func(context.Context, time.Duration) error
}

// NewPoller builds a poller with the given interval and attempt ceiling.
func NewPoller(interval time.Duration, maxAttempts int) *Poller {
	return &Poller{Interval: interval, MaxAttempts: maxAttempts, sleep: sleepCtx}
}

// Poll invokes check once per interval until it reports done, the context is
// cancelled, or the attempt ceiling is reached. A check error aborts the loop.
func (p *Poller) Poll(ctx context.Context, check func(ctx context.Context, attempt int) (done bool, err error)) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		done, err := check(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return err
		}
	}
	return ErrPollTimeout
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
