// Package session persists login state: the pending AuthState of a login in
// progress and the StoredUserSession of logged-in users. It also finds and
// migrates sessions written in older formats.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/store"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/jwtx"
)

// Namespaces used in the underlying store.
const (
	SessionsNamespace         = "sessions"
	PreviousSessionsNamespace = "sessions.v1"
)

// Storage keeps one session per client id.
type Storage interface {
	Save(ctx context.Context, session domain.StoredUserSession) error
	// Get returns nil, nil when the client has no session. Errors are
	// *store.StorageError.
	Get(ctx context.Context, clientID string) (*domain.StoredUserSession, error)
	Remove(ctx context.Context, clientID string) error
}

// KVStorage stores sessions as JSON in one namespace of a store.Store.
type KVStorage struct {
	kv        store.Store
	namespace string
	now       func() time.Time
}

var _ Storage = (*KVStorage)(nil)

func NewKVStorage(kv store.Store, namespace string) *KVStorage {
	return &KVStorage{kv: kv, namespace: namespace, now: time.Now}
}

func (s *KVStorage) Save(ctx context.Context, session domain.StoredUserSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return store.NewStorageError("encode session", err)
	}
	if err := s.kv.Put(ctx, s.namespace, session.ClientID, raw); err != nil {
		return store.NewStorageError("write session", err)
	}
	return nil
}

func (s *KVStorage) Get(ctx context.Context, clientID string) (*domain.StoredUserSession, error) {
	raw, err := s.kv.Get(ctx, s.namespace, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewStorageError("read session", err)
	}
	return DecodeStoredSession(clientID, raw, s.now())
}

func (s *KVStorage) Remove(ctx context.Context, clientID string) error {
	if err := s.kv.Delete(ctx, s.namespace, clientID); err != nil {
		return store.NewStorageError("remove session", err)
	}
	return nil
}

// ============================================================================
// Decoding, including sessions with obfuscated field names
// ============================================================================

// DecodeStoredSession decodes a stored session. Some releases wrote sessions
// with obfuscated field names; for those the tokens are located by shape and
// told apart by their claims: refresh tokens carry "sid", ID tokens carry
// "nonce" and anything else is the access token. now becomes UpdatedAt of a
// recovered session.
func DecodeStoredSession(clientID string, raw []byte, now time.Time) (*domain.StoredUserSession, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, store.NewStorageError("decode session", err)
	}

	if !obfuscated(top) {
		var s domain.StoredUserSession
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, store.NewStorageError("decode session", err)
		}
		return &s, nil
	}

	tokens, err := findTokens(top)
	if err != nil {
		return nil, store.NewStorageError("decode obfuscated session", err)
	}
	return &domain.StoredUserSession{
		ClientID:   clientID,
		UserTokens: *tokens,
		UpdatedAt:  now,
	}, nil
}

// obfuscated is true unless the session has userTokens.refreshToken under
// their plain names.
func obfuscated(top map[string]json.RawMessage) bool {
	var userTokens map[string]json.RawMessage
	if err := json.Unmarshal(top["userTokens"], &userTokens); err != nil {
		return true
	}
	_, ok := userTokens["refreshToken"]
	return !ok
}

func findTokens(top map[string]json.RawMessage) (*domain.UserTokens, error) {
	var accessToken, refreshToken, idToken string

	for _, key := range sortedKeys(top) {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(top[key], &inner); err != nil {
			continue // not an object
		}

		for _, innerKey := range sortedKeys(inner) {
			var value string
			if err := json.Unmarshal(inner[innerKey], &value); err != nil || !jwtx.LooksLikeJWT(value) {
				continue
			}

			payload, err := jwtx.UnverifiedPayload(value)
			if err != nil {
				return nil, fmt.Errorf("field %s.%s: %w", key, innerKey, err)
			}

			switch {
			case hasClaim(payload, "sid"):
				refreshToken = value
			case hasClaim(payload, "nonce"):
				idToken = value
			default:
				accessToken = value
			}
		}
	}

	if accessToken == "" {
		return nil, errors.New("no access token found")
	}

	claims, err := claimsFromTokens(idToken, refreshToken)
	if err != nil {
		return nil, err
	}

	return &domain.UserTokens{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		IDToken:       idToken,
		IDTokenClaims: claims,
	}, nil
}

func claimsFromTokens(idToken, refreshToken string) (domain.IDTokenClaims, error) {
	var out domain.IDTokenClaims

	if idToken != "" {
		c, err := jwtx.ParseUnverified(idToken)
		if err != nil {
			return out, err
		}
		out.Iss = c.Issuer
		out.Sub = c.Subject
		out.Aud = []string(c.Audience)
		out.Exp = c.ExpiresAtUnix()
		out.Nonce = c.Nonce
		out.AMR = c.AMR
	}

	if refreshToken != "" {
		c, err := jwtx.ParseUnverified(refreshToken)
		if err != nil {
			return out, err
		}
		out.UserID = c.UserID
	}

	return out, nil
}

func hasClaim(payload map[string]any, name string) bool {
	_, ok := payload[name]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
