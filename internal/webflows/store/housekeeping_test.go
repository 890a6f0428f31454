package store_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/store"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/store/drivers/memory"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/idx"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func newIDAt(t time.Time) idx.ID { return idx.NewAt(t) }

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpiredKeys(context.Context) (int, error) {
	p.calls.Add(1)
	return 0, p.err
}

func TestHousekeeping_RunsImmediatelyAndStops(t *testing.T) {
	t.Parallel()

	p := &countingPurger{}
	h := store.NewHousekeeping(p, slogx.Discard(), time.Hour)
	h.Start()

	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestHousekeeping_Ticks(t *testing.T) {
	t.Parallel()

	p := &countingPurger{err: errors.New("boom")}
	h := store.NewHousekeeping(p, slogx.Discard(), 10*time.Millisecond)
	h.Start()
	defer h.Stop()

	require.Eventually(t, func() bool { return p.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestHousekeeping_PurgesEncryptedStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := memory.NewStore()
	c := &clock{now: time.Now()}
	s := newEncrypted(backend, "m", c)
	require.NoError(t, s.Put(ctx, "ns", "k", []byte("v")))

	c.Advance(16 * 24 * time.Hour)
	store.NewHousekeeping(s, slogx.Discard(), 0).RunOnce(ctx)

	keys, err := backend.Keys(ctx, store.KeysNamespace)
	require.NoError(t, err)
	require.Empty(t, keys)
}
