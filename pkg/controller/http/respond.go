package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/usecase"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/errutil"
	"github.com/m-mizutani/goerr/v2"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // header already committed
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return goerr.Wrap(err, "invalid request body")
	}
	return nil
}

// handleError maps a usecase failure to an HTTP status and writes the
// error response.
func handleError(ctx context.Context, w http.ResponseWriter, err error) {
	errutil.HandleHTTP(ctx, w, err, statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, usecase.ErrAgentSession):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
