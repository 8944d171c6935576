package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danuharapan/senandika/server/domain/entities"
	"github.com/danuharapan/senandika/server/domain/repositories"
)

// ErrNotLoggedIn means no app-level user session is persisted.
var ErrNotLoggedIn = errors.New("no user is logged in")

const (
	themeKey       = "theme"
	sessionUserKey = "session-user"
)

// SettingsService holds the app-wide preferences that survive restarts:
// the UI theme and the signed-in user session.
type SettingsService struct {
	store  repositories.KeyValueStore
	logger *zap.Logger
}

// NewSettingsService creates the settings store.
func NewSettingsService(store repositories.KeyValueStore, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: store, logger: logger}
}

// Theme returns the persisted theme, defaulting to light when unset or
// unreadable.
func (s *SettingsService) Theme(ctx context.Context) entities.ThemeMode {
	raw, err := s.store.Get(ctx, themeKey)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			s.logger.Warn("Failed to load theme, using default", zap.Error(err))
		}
		return entities.ThemeLight
	}

	mode := entities.ThemeMode(raw)
	if !mode.Valid() {
		s.logger.Warn("Discarding corrupt theme value", zap.String("value", raw))
		return entities.ThemeLight
	}
	return mode
}

// SetTheme persists the theme choice.
func (s *SettingsService) SetTheme(ctx context.Context, mode entities.ThemeMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid theme mode: %s", mode)
	}
	if err := s.store.Set(ctx, themeKey, string(mode)); err != nil {
		return fmt.Errorf("persist theme: %w", err)
	}
	return nil
}

// Login records the signed-in user so the session survives restarts. A
// fresh id is assigned when the caller does not supply one.
func (s *SettingsService) Login(ctx context.Context, user entities.User) (*entities.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encode user session: %w", err)
	}
	if err := s.store.Set(ctx, sessionUserKey, string(payload)); err != nil {
		return nil, fmt.Errorf("persist user session: %w", err)
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID))
	return &user, nil
}

// CurrentUser returns the persisted session, or ErrNotLoggedIn when absent.
// A corrupt record is treated as logged out.
func (s *SettingsService) CurrentUser(ctx context.Context) (*entities.User, error) {
	raw, err := s.store.Get(ctx, sessionUserKey)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("load user session: %w", err)
	}

	var user entities.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Warn("Discarding corrupt user session", zap.Error(err))
		return nil, ErrNotLoggedIn
	}
	return &user, nil
}

// Logout removes the persisted session. Logging out while already logged
// out is not an error.
func (s *SettingsService) Logout(ctx context.Context) error {
	if err := s.store.Remove(ctx, sessionUserKey); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("clear user session: %w", err)
	}
	return nil
}
