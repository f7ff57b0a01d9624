package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/martelinho/martelinho/internal/domain"
	"github.com/martelinho/martelinho/internal/lifecycle"
)

// UserService handles the mock login and profile edits.
type UserService struct {
	store  domain.MarketStore
	audit  domain.AuditStore
	now    func() time.Time
	logger *slog.Logger
}

// NewUserService creates a UserService. audit may be nil.
func NewUserService(store domain.MarketStore, audit domain.AuditStore, logger *slog.Logger) *UserService {
	return &UserService{
		store:  store,
		audit:  audit,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "users")),
	}
}

// Login creates a fresh profile for the submitted form. No credentials are
// checked.
func (s *UserService) Login(ctx context.Context, form lifecycle.Signup) (domain.User, error) {
	u, err := lifecycle.NewUser(form, s.now())
	if err != nil {
		return domain.User{}, err
	}
	if err := s.store.Commit(ctx, domain.Changeset{Users: []domain.User{u}}); err != nil {
		return domain.User{}, fmt.Errorf("users: save %s: %w", u.ID, err)
	}
	u.Version++
	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", u.ID),
		slog.String("name", u.Name),
	)
	if s.audit != nil {
		if err := s.audit.Log(ctx, "user.login", map[string]any{"user_id": u.ID, "name": u.Name}); err != nil {
			s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}
	}
	return u, nil
}

// Get returns a profile. Unknown ids mean "login required".
func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	return u, nil
}

// Rename changes the nickname, at most once every 30 days.
func (s *UserService) Rename(ctx context.Context, id, nick string) (domain.User, error) {
	for attempt := 1; ; attempt++ {
		u, err := s.Get(ctx, id)
		if err != nil {
			return domain.User{}, err
		}
		next, err := lifecycle.Rename(u, nick, s.now())
		if err != nil {
			return domain.User{}, err
		}
		err = s.store.Commit(ctx, domain.Changeset{Users: []domain.User{next}})
		if err == nil {
			next.Version++
			return next, nil
		}
		if !isConflict(err) || attempt == maxCommitAttempts {
			return domain.User{}, fmt.Errorf("users: rename %s: %w", id, err)
		}
	}
}
