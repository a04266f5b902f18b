package durable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrNotVisible is returned when a file does not appear within the polling
// budget.
var ErrNotVisible = errors.New("file not visible")

// WaitVisible polls until path exists, checking at most attempts times with
// a fixed interval between checks. Network shares may report a freshly moved
// file a moment after the move returned.
func WaitVisible(ctx context.Context, path string, attempts int, interval time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	op := func() error {
		ok, err := Exists(path)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return ErrNotVisible
		}
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(err, ErrNotVisible) {
			return fmt.Errorf("%w after %d checks: %s", ErrNotVisible, attempts, path)
		}
		return err
	}
	return nil
}
