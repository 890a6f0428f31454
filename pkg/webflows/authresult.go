package webflows

import (
	"context"
	"errors"
	"sync"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/either"
)

type NotAuthedKind int

const (
	NoLoggedInUser NotAuthedKind = iota
	AuthInProgress
	LoginCancelled
	LoginFailed
)

func (k NotAuthedKind) String() string {
	switch k {
	case AuthInProgress:
		return "AuthInProgress"
	case LoginCancelled:
		return "CancelledByUser"
	case LoginFailed:
		return "LoginFailed"
	default:
		return "NoLoggedInUser"
	}
}

// NotAuthed is why there is no user. Err is set for LoginFailed.
type NotAuthed struct {
	Kind NotAuthedKind
	Err  *LoginError
}

// AuthResult is the logged-in user or the reason there isn't one.
type AuthResult = either.Either[NotAuthed, *User]

// AuthResultObserver tracks the logged-in state of a client:
//
//	after creation:   Right(user) or Left(NoLoggedInUser)
//	login started:    Left(AuthInProgress)
//	login completed:  Right(user) or Left(LoginFailed)
//	login cancelled:  Left(CancelledByUser)
//	user logged out:  Left(NoLoggedInUser)
//
// Only one observer can be attached to a client at a time.
type AuthResultObserver struct {
	client *Client

	mu     sync.RWMutex
	value  AuthResult
	subs   map[int]func(AuthResult)
	nextID int
}

// NewAuthResultObserver attaches an observer to client and resumes the last
// logged-in user.
func NewAuthResultObserver(ctx context.Context, client *Client) (*AuthResultObserver, error) {
	o := &AuthResultObserver{
		client: client,
		value:  notAuthed(NoLoggedInUser),
		subs:   make(map[int]func(AuthResult)),
	}

	client.mu.Lock()
	if client.observer != nil {
		client.mu.Unlock()
		return nil, ErrObserverAlreadyInitialized
	}
	client.observer = o
	client.mu.Unlock()

	user, err := client.ResumeLastLoggedInUser(ctx)
	switch {
	case err != nil:
		client.logger.Error("failed to resume last logged-in user", "error", err)
	case user != nil:
		o.set(either.Right[NotAuthed](user))
	}
	return o, nil
}

func notAuthed(kind NotAuthedKind) AuthResult {
	return either.Left[NotAuthed, *User](NotAuthed{Kind: kind})
}

func (o *AuthResultObserver) Value() AuthResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.value
}

// Subscribe calls fn with the current value and on every change until the
// returned func is called.
func (o *AuthResultObserver) Subscribe(fn func(AuthResult)) (unsubscribe func()) {
	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.subs[id] = fn
	current := o.value
	o.mu.Unlock()

	fn(current)

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// StartLogin returns a login URL and moves to AuthInProgress.
func (o *AuthResultObserver) StartLogin(ctx context.Context, req domain.AuthRequest) (string, error) {
	loginURL, err := o.client.LoginURL(ctx, req)
	if err != nil {
		return "", err
	}
	o.set(notAuthed(AuthInProgress))
	return loginURL, nil
}

// Complete finishes the login started with StartLogin.
func (o *AuthResultObserver) Complete(ctx context.Context, query string) (*User, error) {
	user, err := o.client.HandleAuthenticationResponse(ctx, query)
	if err != nil {
		var lerr *LoginError
		errors.As(err, &lerr)
		if errors.Is(err, ErrCancelledByUser) {
			o.set(notAuthed(LoginCancelled))
		} else {
			o.set(either.Left[NotAuthed, *User](NotAuthed{Kind: LoginFailed, Err: lerr}))
		}
		return nil, err
	}
	o.set(either.Right[NotAuthed](user))
	return user, nil
}

// Cancel records that the user abandoned the login.
func (o *AuthResultObserver) Cancel() {
	o.set(notAuthed(LoginCancelled))
	o.client.tracker.Track(UserLoginCanceled)
}

// Logout moves to NoLoggedInUser. User.Logout calls it; it doesn't log
// anyone out by itself.
func (o *AuthResultObserver) Logout() {
	o.set(notAuthed(NoLoggedInUser))
}

// Close detaches the observer from its client so a new one can be created.
func (o *AuthResultObserver) Close() {
	o.client.mu.Lock()
	if o.client.observer == o {
		o.client.observer = nil
	}
	o.client.mu.Unlock()

	o.mu.Lock()
	clear(o.subs)
	o.mu.Unlock()
}

func (o *AuthResultObserver) set(v AuthResult) {
	o.mu.Lock()
	o.value = v
	subs := make([]func(AuthResult), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}
