package async

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/logging"
)

// Dispatch runs the handler in a new goroutine with a background
// context that keeps the caller's logger, so the work outlives the
// request that triggered it. Panics and errors are logged, never
// propagated.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	bgCtx := logging.With(context.Background(), logging.From(ctx))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.From(bgCtx).Error("panic in async handler", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			logging.From(bgCtx).Error("async handler failed", "error", goerr.Unwrap(err))
		}
	}()
}
