package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/fulldump/box"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/caixa"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/filelock"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/fiscal"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/integrador"
)

// ErrBadRequest marks invalid request parameters.
var ErrBadRequest = errors.New("bad request")

// AccessLog logs one line per request.
func AccessLog(l *slog.Logger) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			r := box.GetRequest(ctx)
			now := time.Now()
			defer func() {
				l.Info("http", "method", r.Method, "url", r.URL.String(), "remote", remoteAddr(r), "elapsed", time.Since(now))
			}()

			next(ctx)
		}
	}
}

// RecoverFromPanic turns a handler panic into an internal error.
func RecoverFromPanic(l *slog.Logger) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			defer func() {
				if p := recover(); p != nil {
					l.Error("handler panic", "panic", p, "stack", string(debug.Stack()))
					box.SetError(ctx, fmt.Errorf("internal error: %v", p))
				}
			}()
			next(ctx)
		}
	}
}

// PrettyErrorInterceptor writes handler errors as JSON with a status code
// derived from the error kind.
func PrettyErrorInterceptor(next box.H) box.H {
	return func(ctx context.Context) {

		next(ctx)

		err := box.GetError(ctx)
		if err == nil {
			return
		}
		w := box.GetResponse(ctx)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(StatusFor(err))
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": err.Error(),
			},
		})
	}
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, caixa.ErrInvalidTerminal),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, integrador.ErrInvalidIdentifier),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr):
		return http.StatusBadRequest
	case errors.Is(err, integrador.ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, integrador.ErrCorrelationTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, fiscal.ErrDeviceUnavailable),
		errors.Is(err, filelock.ErrWriteConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func remoteAddr(r *http.Request) string {
	if xff := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-For"), ",")[0]); xff != "" {
		return xff
	}
	return r.RemoteAddr
}
