package http

import (
	"context"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/logging"
)

// userHeader carries the authenticated caller identity, set by the
// upstream auth proxy.
const userHeader = "X-Quokka-User"

type userIDKey struct{}

// callerIdentity extracts the caller's user ID from the request header.
// Requests without an identity are rejected; every /api route is scoped
// to a user.
func callerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := types.UserID(r.Header.Get(userHeader))
		if err := userID.Validate(); err != nil {
			http.Error(w, "missing user identity", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) types.UserID {
	if userID, ok := ctx.Value(userIDKey{}).(types.UserID); ok {
		return userID
	}
	return ""
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// recoverer turns a handler panic into a 500 response. The panic is
// logged with a stack and reported to Sentry when the SDK is configured.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				var panicErr error
				switch e := rec.(type) {
				case error:
					panicErr = goerr.Wrap(e, "panic in HTTP handler")
				default:
					panicErr = goerr.New("panic in HTTP handler", goerr.V("panic", rec))
				}

				logging.From(r.Context()).Error("HTTP handler panicked",
					"error", panicErr,
					"path", r.URL.Path,
				)
				sentry.CaptureException(panicErr)

				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
