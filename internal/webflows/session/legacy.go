package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/api"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/store"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/jwtx"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/slogx"
)

const (
	LegacyNamespace   = "legacy"
	LegacySessionsKey = "sessions"
)

// ============================================================================
// Legacy session records
// ============================================================================

// LegacyUserTokens is how the previous SDK generation stored tokens.
type LegacyUserTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// LegacySession is one entry of the previous SDK's session list. LastActive
// is in milliseconds since the epoch.
type LegacySession struct {
	LastActive int64            `json:"lastActive"`
	UserID     string           `json:"userId"`
	Token      LegacyUserTokens `json:"token"`
}

// LegacyTokenStorage reads and clears the raw legacy session list.
type LegacyTokenStorage struct {
	kv store.Store
}

func NewLegacyTokenStorage(kv store.Store) *LegacyTokenStorage {
	return &LegacyTokenStorage{kv: kv}
}

func (s *LegacyTokenStorage) Get(ctx context.Context) ([]LegacySession, error) {
	raw, err := s.kv.Get(ctx, LegacyNamespace, LegacySessionsKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewStorageError("read legacy sessions", err)
	}

	var sessions []LegacySession
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, store.NewStorageError("decode legacy sessions", err)
	}
	return sessions, nil
}

// Save replaces the list. Only importers and tests write legacy sessions.
func (s *LegacyTokenStorage) Save(ctx context.Context, sessions []LegacySession) error {
	raw, err := json.Marshal(sessions)
	if err != nil {
		return store.NewStorageError("encode legacy sessions", err)
	}
	if err := s.kv.Put(ctx, LegacyNamespace, LegacySessionsKey, raw); err != nil {
		return store.NewStorageError("write legacy sessions", err)
	}
	return nil
}

func (s *LegacyTokenStorage) Remove(ctx context.Context) error {
	if err := s.kv.Delete(ctx, LegacyNamespace, LegacySessionsKey); err != nil {
		return store.NewStorageError("remove legacy sessions", err)
	}
	return nil
}

// LegacySessionStorage turns legacy records into sessions.
type LegacySessionStorage struct {
	tokens *LegacyTokenStorage
}

func NewLegacySessionStorage(tokens *LegacyTokenStorage) *LegacySessionStorage {
	return &LegacySessionStorage{tokens: tokens}
}

// Get returns the most recently active legacy session issued to clientID,
// or nil. The client a session belongs to is read from its access token.
// Sessions without a refresh token can't be migrated and are skipped.
func (s *LegacySessionStorage) Get(ctx context.Context, clientID string) (*domain.StoredUserSession, error) {
	sessions, err := s.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	var newest *domain.StoredUserSession
	for _, ls := range sessions {
		stored, ok := fromLegacy(ls)
		if !ok || stored.ClientID != clientID {
			continue
		}
		if newest == nil || stored.UpdatedAt.After(newest.UpdatedAt) {
			newest = stored
		}
	}
	return newest, nil
}

func (s *LegacySessionStorage) Remove(ctx context.Context) error {
	return s.tokens.Remove(ctx)
}

func fromLegacy(ls LegacySession) (*domain.StoredUserSession, bool) {
	at, err := jwtx.ParseUnverified(ls.Token.AccessToken)
	if err != nil || at.ClientID == "" {
		return nil, false
	}
	if ls.Token.RefreshToken == "" {
		return nil, false
	}

	return &domain.StoredUserSession{
		ClientID: at.ClientID,
		UserTokens: domain.UserTokens{
			AccessToken:   ls.Token.AccessToken,
			RefreshToken:  ls.Token.RefreshToken,
			IDToken:       ls.Token.IDToken,
			IDTokenClaims: legacyIDTokenClaims(ls.Token.IDToken),
		},
		UpdatedAt: time.UnixMilli(ls.LastActive),
	}, true
}

// legacyIDTokenClaims reads what it can from an unverified ID token. Legacy
// ID tokens were optional, so zero claims are fine.
func legacyIDTokenClaims(idToken string) domain.IDTokenClaims {
	if idToken == "" {
		return domain.IDTokenClaims{}
	}
	c, err := jwtx.ParseUnverified(idToken)
	if err != nil || c.Subject == "" {
		return domain.IDTokenClaims{}
	}
	return domain.IDTokenClaims{
		Iss:    c.Issuer,
		Sub:    c.Subject,
		UserID: c.LegacyUserID,
		Exp:    c.ExpiresAtUnix(),
		Nonce:  c.Nonce,
	}
}

// ============================================================================
// Legacy client
// ============================================================================

// LegacyAPI is the part of api.Client used with legacy credentials.
type LegacyAPI interface {
	LegacyCodeExchange(ctx context.Context, accessToken, newClientID string) (*api.CodeExchangeResponse, error)
	LegacyRefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*api.TokenResponse, error)
}

// LegacyClient acts as the legacy client to obtain an authorization code for
// the new one.
type LegacyClient struct {
	clientID     string
	clientSecret string
	api          LegacyAPI
	logger       *slog.Logger
}

func NewLegacyClient(clientID, clientSecret string, legacyAPI LegacyAPI, logger *slog.Logger) *LegacyClient {
	return &LegacyClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		api:          legacyAPI,
		logger:       slogx.OrDefault(logger),
	}
}

// AuthCodeFromTokens exchanges legacy tokens for an authorization code for
// newClientID. An expired access token is refreshed once; if that fails the
// original 401 is returned.
func (c *LegacyClient) AuthCodeFromTokens(ctx context.Context, tokens domain.UserTokens, newClientID string) (string, error) {
	resp, err := c.api.LegacyCodeExchange(ctx, tokens.AccessToken, newClientID)
	if err == nil {
		return resp.Code, nil
	}

	var httpErr *domain.HTTPError
	if !errors.As(err, &httpErr) || !httpErr.IsErrorResponse() ||
		httpErr.StatusCode != http.StatusUnauthorized || tokens.RefreshToken == "" {
		return "", err
	}

	fresh, rerr := c.api.LegacyRefreshToken(ctx, c.clientID, c.clientSecret, tokens.RefreshToken)
	if rerr != nil {
		c.logger.Error("failed to refresh legacy tokens", "error", rerr)
		return "", err
	}
	c.logger.Debug("refreshed legacy tokens")

	resp, err = c.api.LegacyCodeExchange(ctx, fresh.AccessToken, newClientID)
	if err != nil {
		return "", err
	}
	return resp.Code, nil
}

// ============================================================================
// Migration
// ============================================================================

// TokenRequester turns an authorization code into a session for the new
// client. webflows.Client implements it.
type TokenRequester interface {
	MakeTokenRequest(ctx context.Context, code string, state *domain.AuthState) (*domain.StoredUserSession, error)
}

// MigratingStorage is a Storage that, when the new storage has nothing,
// migrates the newest legacy session. A failed migration is logged and
// reported as no session, leaving the legacy record for another attempt.
type MigratingStorage struct {
	newStorage     Storage
	legacyStorage  *LegacySessionStorage
	legacyClient   *LegacyClient
	legacyClientID string
	clientID       string
	requester      TokenRequester
	logger         *slog.Logger
}

var _ Storage = (*MigratingStorage)(nil)

// MigratingStorageConfig wires a MigratingStorage.
type MigratingStorageConfig struct {
	NewStorage     Storage
	LegacyStorage  *LegacySessionStorage
	LegacyClient   *LegacyClient
	LegacyClientID string
	ClientID       string // the new client sessions are migrated to
	Requester      TokenRequester
	Logger         *slog.Logger
}

func NewMigratingStorage(cfg MigratingStorageConfig) *MigratingStorage {
	return &MigratingStorage{
		newStorage:     cfg.NewStorage,
		legacyStorage:  cfg.LegacyStorage,
		legacyClient:   cfg.LegacyClient,
		legacyClientID: cfg.LegacyClientID,
		clientID:       cfg.ClientID,
		requester:      cfg.Requester,
		logger:         slogx.OrDefault(cfg.Logger),
	}
}

func (s *MigratingStorage) Save(ctx context.Context, session domain.StoredUserSession) error {
	return s.newStorage.Save(ctx, session)
}

func (s *MigratingStorage) Get(ctx context.Context, clientID string) (*domain.StoredUserSession, error) {
	session, err := s.newStorage.Get(ctx, clientID)
	if err != nil || session != nil {
		return session, err
	}

	legacy, err := s.legacyStorage.Get(ctx, s.legacyClientID)
	if err != nil {
		s.logger.Error("failed to read legacy sessions", "error", err)
		return nil, nil
	}
	if legacy == nil {
		return nil, nil
	}

	return s.migrate(ctx, legacy), nil
}

func (s *MigratingStorage) Remove(ctx context.Context, clientID string) error {
	return s.newStorage.Remove(ctx, clientID)
}

func (s *MigratingStorage) migrate(ctx context.Context, legacy *domain.StoredUserSession) *domain.StoredUserSession {
	code, err := s.legacyClient.AuthCodeFromTokens(ctx, legacy.UserTokens, s.clientID)
	if err != nil {
		s.logger.Error("failed to migrate tokens", "stage", "code_exchange", "error", err)
		return nil
	}

	migrated, err := s.requester.MakeTokenRequest(ctx, code, nil)
	if err != nil {
		s.logger.Error("failed to migrate tokens", "stage", "token_request", "error", err)
		return nil
	}

	if err := s.newStorage.Save(ctx, *migrated); err != nil {
		s.logger.Error("failed to save migrated session", "error", err)
		return nil
	}
	if err := s.legacyStorage.Remove(ctx); err != nil {
		s.logger.Error("failed to remove legacy sessions", "error", err)
	}

	s.logger.Info("migrated legacy session", "legacy_client_id", s.legacyClientID, "client_id", s.clientID)
	return migrated
}
