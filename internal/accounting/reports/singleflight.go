package reports

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// build coalesces concurrent builds of the same versioned key. The shared
// work runs detached from the first caller's cancellation; each caller still
// stops waiting when its own context ends.
func build(ctx context.Context, group *singleflight.Group, key string, fn func(context.Context) ([]byte, error)) ([]byte, error, bool) {
	detached := context.WithoutCancel(ctx)
	resultChan := group.DoChan(key, func() (interface{}, error) {
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err, res.Shared
		}
		return res.Val.([]byte), nil, res.Shared
	}
}
