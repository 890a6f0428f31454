package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/store"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/slogx"
)

// UpgradingStorage reads from next, falling back to previous and moving any
// session found there into next. Saves only go to next; removes go to both
// so a session left behind by a failed move can't come back.
type UpgradingStorage struct {
	next     Storage
	previous Storage
	logger   *slog.Logger
}

var _ Storage = (*UpgradingStorage)(nil)

func NewUpgradingStorage(next, previous Storage, logger *slog.Logger) *UpgradingStorage {
	return &UpgradingStorage{next: next, previous: previous, logger: slogx.OrDefault(logger)}
}

func (s *UpgradingStorage) Save(ctx context.Context, session domain.StoredUserSession) error {
	return s.next.Save(ctx, session)
}

func (s *UpgradingStorage) Get(ctx context.Context, clientID string) (*domain.StoredUserSession, error) {
	session, err := s.next.Get(ctx, clientID)
	if err == nil && session != nil {
		return session, nil
	}
	if err != nil {
		s.logger.Warn("failed to read session, trying previous storage", "client_id", clientID, "error", err)
	}

	session, err = s.previous.Get(ctx, clientID)
	if err != nil || session == nil {
		return session, err
	}

	if err := s.next.Save(ctx, *session); err != nil {
		s.logger.Error("failed to upgrade session", "client_id", clientID, "error", err)
		return session, nil
	}
	if err := s.previous.Remove(ctx, clientID); err != nil {
		s.logger.Error("failed to remove upgraded session", "client_id", clientID, "error", err)
	}
	s.logger.Debug("upgraded stored session", "client_id", clientID)
	return session, nil
}

func (s *UpgradingStorage) Remove(ctx context.Context, clientID string) error {
	err := s.next.Remove(ctx, clientID)
	if perr := s.previous.Remove(ctx, clientID); perr != nil && !errors.Is(perr, store.ErrNotFound) {
		err = errors.Join(err, perr)
	}
	return err
}
