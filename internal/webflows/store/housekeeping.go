package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/pkg/slogx"
)

// DefaultHousekeepingInterval is used when no interval is configured.
const DefaultHousekeepingInterval = time.Hour

// KeyPurger is implemented by stores that keep expiring key material.
type KeyPurger interface {
	PurgeExpiredKeys(ctx context.Context) (int, error)
}

// Housekeeping periodically purges expired data keys so the keys namespace
// doesn't grow without bound in long-running processes.
type Housekeeping struct {
	Purger   KeyPurger
	Logger   *slog.Logger
	Interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHousekeeping creates a worker. If interval is 0 or negative it defaults
// to DefaultHousekeepingInterval.
func NewHousekeeping(purger KeyPurger, logger *slog.Logger, interval time.Duration) *Housekeeping {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}

	return &Housekeeping{
		Purger:   purger,
		Logger:   slogx.OrDefault(logger),
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. A first pass runs immediately.
func (h *Housekeeping) Start() {
	go h.run()
	h.Logger.Debug("housekeeping started", "interval", h.Interval)
}

// Stop shuts the worker down and waits for an in-progress pass to finish.
// Calling it more than once is fine.
func (h *Housekeeping) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		<-h.doneCh
		h.Logger.Debug("housekeeping stopped")
	})
}

func (h *Housekeeping) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	h.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			h.RunOnce(context.Background())
		case <-h.stopCh:
			return
		}
	}
}

// RunOnce performs a single purge pass.
func (h *Housekeeping) RunOnce(ctx context.Context) {
	purged, err := h.Purger.PurgeExpiredKeys(ctx)
	if err != nil {
		h.Logger.Error("failed to purge expired data keys", "error", err)
		return
	}
	if purged > 0 {
		h.Logger.Info("purged expired data keys", "count", purged)
	}
}
