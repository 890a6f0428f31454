package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedirectHandler(t *testing.T) {
	t.Parallel()

	queries := make(chan string, 1)
	srv := httptest.NewServer(redirectHandler("/callback", queries))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/callback?code=abc&state=xyz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "Login complete")
	require.Equal(t, "code=abc&state=xyz", <-queries)

	t.Run("other paths are not served", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/elsewhere?code=abc")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("only the first redirect is taken", func(t *testing.T) {
		queries <- "occupied"
		resp, err := http.Get(srv.URL + "/callback?code=again")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Equal(t, "occupied", <-queries)
	})
}

func TestListenForRedirect(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, uri := range []string{
		"com.example.app:/login",
		"https://127.0.0.1:8765/callback",
		"http://127.0.0.1/callback",
		"http://example.com:8765/callback",
	} {
		_, err := listenForRedirect(uri, logger)
		require.Error(t, err, uri)
	}

	t.Run("cancelled wait", func(t *testing.T) {
		l := &redirectListener{queries: make(chan string), errs: make(chan error)}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := l.Wait(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}
