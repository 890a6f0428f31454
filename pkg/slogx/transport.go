package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/pkg/idx"
)

// Transport logs outgoing requests and tags each with an X-Request-ID so
// client and server logs can be lined up. Pairs added with WithAttrs are
// logged too, and the resulting logger is put on the request context for the
// layers below.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = idx.New().String()
		r = r.Clone(r.Context())
		r.Header.Set("X-Request-ID", reqID)
	}

	logger := OrDefault(t.Logger).With(Attrs(r.Context())...).With(
		"req_id", reqID,
		"method", r.Method,
		"host", r.URL.Host,
		"path", r.URL.Path,
	)
	r = r.WithContext(WithContext(r.Context(), logger))

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(r)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("http_request_failed", "duration_ms", duration, "error", err)
		return nil, err
	}

	logger.Debug("http_request", "status", resp.StatusCode, "duration_ms", duration)
	return resp, nil
}
