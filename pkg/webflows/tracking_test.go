package webflows_test

import (
	"testing"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/pkg/webflows"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	t.Parallel()

	tracker := webflows.NewTracker()
	rec := &eventRecorder{}
	var funcEvents []webflows.EventType

	tracker.AddListener(rec)
	remove := tracker.AddListener(webflows.TrackingListenerFunc(func(e webflows.TrackingEvent) {
		funcEvents = append(funcEvents, e.Type)
	}))

	tracker.Track(webflows.LoginPromptView)
	remove()
	tracker.Track(webflows.LoginPromptLeave)
	tracker.RemoveListener(rec)
	tracker.Track(webflows.LoginPromptDestroyed)

	require.Equal(t, []webflows.EventType{webflows.LoginPromptView}, funcEvents)
	require.Equal(t, []webflows.EventType{webflows.LoginPromptView, webflows.LoginPromptLeave}, rec.types())

	e := rec.events[0]
	require.False(t, e.ID.IsZero())
	require.NotEqual(t, e.ID, rec.events[1].ID)
	require.Equal(t, "schibsted-account", e.ProviderComponent)
	require.Equal(t, "account-sdk-android-web-1.0.0", e.DeployTag)
	require.WithinDuration(t, time.Now(), e.Timestamp, time.Minute)
	require.WithinDuration(t, e.Timestamp, e.ID.Time(), time.Millisecond)
}
