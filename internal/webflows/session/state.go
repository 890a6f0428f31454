package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/store"
)

const (
	StateNamespace = "state"
	AuthStateKey   = "AuthState"
)

// StateStorage keeps small JSON values between starting a login and handling
// its redirect.
type StateStorage struct {
	kv store.Store
}

func NewStateStorage(kv store.Store) *StateStorage {
	return &StateStorage{kv: kv}
}

// SetValue stores v under key, replacing any previous value.
func (s *StateStorage) SetValue(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return store.NewStorageError("encode state", err)
	}
	if err := s.kv.Put(ctx, StateNamespace, key, raw); err != nil {
		return store.NewStorageError("write state", err)
	}
	return nil
}

// GetValue decodes the value under key into dst. It reports false when
// nothing is stored.
func (s *StateStorage) GetValue(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := s.kv.Get(ctx, StateNamespace, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, store.NewStorageError("read state", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, store.NewStorageError("decode state", err)
	}
	return true, nil
}

func (s *StateStorage) RemoveValue(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, StateNamespace, key); err != nil {
		return store.NewStorageError("remove state", err)
	}
	return nil
}

// SaveAuthState stores the pending login. Only one is kept; a second login
// started before the first completes replaces it.
func (s *StateStorage) SaveAuthState(ctx context.Context, st domain.AuthState) error {
	return s.SetValue(ctx, AuthStateKey, st)
}

// AuthState returns the pending login, or nil if there is none.
func (s *StateStorage) AuthState(ctx context.Context) (*domain.AuthState, error) {
	var st domain.AuthState
	ok, err := s.GetValue(ctx, AuthStateKey, &st)
	if err != nil || !ok {
		return nil, err
	}
	return &st, nil
}

func (s *StateStorage) RemoveAuthState(ctx context.Context) error {
	return s.RemoveValue(ctx, AuthStateKey)
}
