package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
)

const callbackPage = `<!doctype html>
<html><body><p>Login complete. You can close this window.</p></body></html>`

// redirectListener serves the redirect URI path on loopback and hands over
// the first query it receives.
type redirectListener struct {
	server  *http.Server
	queries chan string
	errs    chan error
}

func listenForRedirect(redirectURI string, logger *slog.Logger) (*redirectListener, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect uri: %w", err)
	}
	if u.Scheme != "http" || u.Port() == "" {
		return nil, fmt.Errorf("redirect uri %q must be http with an explicit port", redirectURI)
	}
	if ip := net.ParseIP(u.Hostname()); u.Hostname() != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return nil, fmt.Errorf("redirect uri %q must point at a loopback address", redirectURI)
	}

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", u.Host, err)
	}

	l := &redirectListener{
		queries: make(chan string, 1),
		errs:    make(chan error, 1),
	}
	l.server = &http.Server{
		Handler:           redirectHandler(u.Path, l.queries),
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("redirect listener failed", "error", err)
			l.errs <- err
		}
	}()
	return l, nil
}

// redirectHandler routes path to a handler that sends the raw query to
// queries. Only the first redirect is taken.
func redirectHandler(path string, queries chan<- string) http.Handler {
	if path == "" {
		path = "/"
	}

	r := chi.NewRouter()
	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		select {
		case queries <- r.URL.RawQuery:
		default:
			http.Error(w, "login already handled", http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(callbackPage))
	})
	return r
}

// Wait blocks until the redirect arrives.
func (l *redirectListener) Wait(ctx context.Context) (string, error) {
	select {
	case q := <-l.queries:
		return q, nil
	case err := <-l.errs:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *redirectListener) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = l.server.Shutdown(ctx)
}
