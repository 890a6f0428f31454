package webflows

import (
	"sync"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/api"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/idx"
)

const (
	// ProviderComponent maps to the "provider.component" property of
	// analytics events.
	ProviderComponent = "schibsted-account"

	packageName = "account-sdk-android-web"
)

// DeployTag maps to the "deploy_tag" property of analytics events.
const DeployTag = packageName + "-" + api.Version

type EventType string

const (
	LoginPromptCreated                     EventType = "LoginPromptCreated"
	LoginPromptView                        EventType = "LoginPromptView"
	LoginPromptLeave                       EventType = "LoginPromptLeave"
	LoginPromptDestroyed                   EventType = "LoginPromptDestroyed"
	LoginPromptClickToLogin                EventType = "LoginPromptClickToLogin"
	LoginPromptClickToContinueWithoutLogin EventType = "LoginPromptClickToContinueWithoutLogin"
	LoginPromptClickOutside                EventType = "LoginPromptClickOutside"
	LoginPromptContentProviderInsert       EventType = "LoginPromptContentProviderInsert"
	LoginPromptContentProviderDelete       EventType = "LoginPromptContentProviderDelete"
	UserLoginSuccessful                    EventType = "UserLoginSuccessful"
	UserLoginFailed                        EventType = "UserLoginFailed"
	UserLoginCanceled                      EventType = "UserLoginCanceled"
)

// TrackingEvent is handed to tracking listeners.
type TrackingEvent struct {
	ID                idx.ID
	Type              EventType
	ProviderComponent string
	DeployTag         string
	Timestamp         time.Time
}

type TrackingListener interface {
	OnEvent(TrackingEvent)
}

// TrackingListenerFunc adapts a function to TrackingListener.
type TrackingListenerFunc func(TrackingEvent)

func (f TrackingListenerFunc) OnEvent(e TrackingEvent) { f(e) }

// Tracker fans events out to listeners, synchronously and in registration
// order.
type Tracker struct {
	mu        sync.RWMutex
	listeners []trackingEntry
	nextID    int
}

type trackingEntry struct {
	id       int
	listener TrackingListener
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// AddListener registers l. The returned func removes it again.
func (t *Tracker) AddListener(l TrackingListener) (remove func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, trackingEntry{id: id, listener: l})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.removeWhere(func(e trackingEntry) bool { return e.id == id })
	}
}

// RemoveListener removes every registration of l. l must be comparable,
// e.g. a pointer; function listeners are removed with the func returned by
// AddListener.
func (t *Tracker) RemoveListener(l TrackingListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeWhere(func(e trackingEntry) bool { return e.listener == l })
}

func (t *Tracker) removeWhere(match func(trackingEntry) bool) {
	kept := t.listeners[:0]
	for _, e := range t.listeners {
		if !match(e) {
			kept = append(kept, e)
		}
	}
	clear(t.listeners[len(kept):])
	t.listeners = kept
}

// Track emits an event of type typ.
func (t *Tracker) Track(typ EventType) {
	now := time.Now()
	event := TrackingEvent{
		ID:                idx.NewAt(now),
		Type:              typ,
		ProviderComponent: ProviderComponent,
		DeployTag:         DeployTag,
		Timestamp:         now,
	}

	t.mu.RLock()
	listeners := make([]TrackingListener, len(t.listeners))
	for i, e := range t.listeners {
		listeners[i] = e.listener
	}
	t.mu.RUnlock()

	for _, l := range listeners {
		l.OnEvent(event)
	}
}
