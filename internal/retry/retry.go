// Package retry provides the single bounded backoff policy every remote
// call in the pipeline is wrapped with.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRemoteUnavailable wraps the final error once a policy exhausts its
// attempts. Fatal to the current partition.
var ErrRemoteUnavailable = errors.New("remote unavailable")

// Policy retries an operation with exponential backoff. Sleep is
// injectable so tests run without waiting.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	Sleep        func(time.Duration)
}

// Default mirrors the archive client's production settings: five
// attempts, one second base delay, doubling between attempts.
func Default() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Multiplier:   2.0,
	}
}

// Do runs op until it succeeds, the attempt bound is reached, or ctx is
// cancelled. Exhaustion returns an error wrapping ErrRemoteUnavailable
// and the last failure.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.InitialDelay
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		sleep(delay)
		delay = time.Duration(float64(delay) * p.Multiplier)
	}

	return fmt.Errorf("%w after %d attempts: %s", ErrRemoteUnavailable, attempts, lastErr)
}
