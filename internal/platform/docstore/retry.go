package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// runWithRetry re-executes attempt from scratch while it fails with ErrConflict.
func runWithRetry(ctx context.Context, opts Options, attempt func(context.Context) error) error {
	opts = opts.withDefaults()
	var err error
	for n := 1; n <= opts.MaxAttempts; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = attempt(ctx)
		if err == nil || !errors.Is(err, ErrConflict) {
			return err
		}
		if opts.OnConflict != nil {
			opts.OnConflict(n, err)
		}
		if n == opts.MaxAttempts {
			break
		}
		timer := time.NewTimer(opts.Backoff * time.Duration(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("docstore: gave up after %d attempts: %w", opts.MaxAttempts, err)
}
