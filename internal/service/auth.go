// Package service holds the application logic between the HTTP handlers and
// the repositories: authentication and refresh rotation, plan windows, admin
// account management, questionnaires and messaging.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/smartplate/smartplate-api/internal/model"
	"github.com/smartplate/smartplate-api/internal/plan"
	"github.com/smartplate/smartplate-api/internal/queue"
	"github.com/smartplate/smartplate-api/internal/repository"
	"github.com/smartplate/smartplate-api/internal/utils"
	"github.com/smartplate/smartplate-api/pkg/apperr"
)

// Session is the outcome of a login or refresh: a new token pair for an
// account.
type Session struct {
	Account model.Account
	Access  utils.IssuedToken
	Refresh utils.IssuedToken
}

// AuthService implements login, refresh rotation, logout and password
// changes.
type AuthService struct {
	accounts AccountStore
	refresh  RefreshStore
	tokens   *utils.TokenManager
	hasher   utils.Hasher
	events   EventPublisher
	loc      *time.Location
	log      *slog.Logger

	// Now is the clock used for plan checks and login stamps.
	Now func() time.Time
}

func NewAuthService(accounts AccountStore, refresh RefreshStore, tokens *utils.TokenManager,
	hasher utils.Hasher, events EventPublisher, loc *time.Location, log *slog.Logger) *AuthService {
	return &AuthService{
		accounts: accounts,
		refresh:  refresh,
		tokens:   tokens,
		hasher:   hasher,
		events:   events,
		loc:      loc,
		log:      log,
		Now:      time.Now,
	}
}

// Login checks the credentials of an account of the given role.  Unknown
// e-mail, wrong password and wrong role are indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string, role model.Role) (Session, error) {
	a, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.hasher.VerifyDummy(password)
		return Session{}, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, apperr.Internal("login failed", err)
	}
	if !s.hasher.Verify(password, a.PasswordHash) || a.Role != role {
		return Session{}, apperr.ErrInvalidCredentials
	}

	now := s.Now().UTC()
	if err := s.accounts.TouchLogin(ctx, a.ID, now); err != nil {
		s.log.Warn("record login failed", slog.String("account_id", a.ID), slog.Any("err", err))
	}
	a.LastLoginAt = &now
	return s.issue(ctx, a)
}

// Refresh rotates a refresh token.  The presented token is consumed first, so
// a token can be used once; a second use fails as Unauthorized.  Users whose
// plan window has lapsed are refused with ErrPlanExpired.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Session, error) {
	if raw == "" {
		return Session{}, apperr.ErrMissingRefresh
	}
	claims, err := s.tokens.Verify(raw, utils.KindRefresh)
	if err != nil {
		return Session{}, apperr.ErrUnauthorized
	}

	accountID, err := s.refresh.Consume(ctx, utils.HashRefreshRaw(claims.ID))
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Info("refresh token reuse or revoked", slog.String("account_id", claims.RegisteredClaims.Subject))
		return Session{}, apperr.ErrUnauthorized
	}
	if err != nil {
		return Session{}, apperr.Internal("refresh failed", err)
	}
	if accountID != claims.RegisteredClaims.Subject {
		return Session{}, apperr.ErrUnauthorized
	}

	a, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperr.ErrUnauthorized
	}
	if err != nil {
		return Session{}, apperr.Internal("refresh failed", err)
	}
	if a.Role != claims.Role {
		return Session{}, apperr.ErrUnauthorized
	}

	if a.Role == model.RoleUser {
		if w := WindowOf(a, s.Now(), s.loc); w.Expired {
			s.publish(ctx, queue.AccountEventsQueue, s.accountEvent(queue.EventPlanExpired, a))
			return Session{}, apperr.ErrPlanExpired
		}
	}
	return s.issue(ctx, a)
}

// Logout consumes the presented refresh token when it is valid.  It never
// fails: the caller clears the cookie regardless.
func (s *AuthService) Logout(ctx context.Context, raw string) {
	if raw == "" {
		return
	}
	claims, err := s.tokens.Verify(raw, utils.KindRefresh)
	if err != nil {
		return
	}
	if _, err := s.refresh.Consume(ctx, utils.HashRefreshRaw(claims.ID)); err != nil &&
		!errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("logout revoke failed", slog.String("account_id", claims.RegisteredClaims.Subject), slog.Any("err", err))
	}
}

// ChangePassword validates the policy, stores the new hash, clears the
// first-login flags and revokes every refresh token of the account.  The
// caller receives a fresh session.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, newPassword string) (Session, error) {
	if msg := utils.PasswordPolicyViolation(newPassword); msg != "" {
		return Session{}, apperr.Validation("Invalid password", map[string]string{"newPassword": msg})
	}
	a, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperr.ErrUnauthorized
	}
	if err != nil {
		return Session{}, apperr.Internal("change password failed", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return Session{}, apperr.Internal("change password failed", err)
	}
	if err := s.accounts.UpdatePassword(ctx, a.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, apperr.ErrUnauthorized
		}
		return Session{}, apperr.Internal("change password failed", err)
	}
	if err := s.refresh.RevokeAll(ctx, a.ID); err != nil {
		return Session{}, apperr.Internal("change password failed", err)
	}

	a.PasswordHash = hash
	a.MustChangePassword = false
	a.FirstLogin = false
	s.publish(ctx, queue.AccountEventsQueue, s.accountEvent(queue.EventPasswordChanged, a))
	return s.issue(ctx, a)
}

// issue mints an access/refresh pair and records the refresh id.
func (s *AuthService) issue(ctx context.Context, a model.Account) (Session, error) {
	sub := utils.Subject{
		ID:                 a.ID,
		Role:               a.Role,
		FirstLogin:         a.FirstLogin,
		MustChangePassword: a.MustChangePassword,
	}
	access, err := s.tokens.IssueAccess(sub)
	if err != nil {
		return Session{}, apperr.Internal("issue token", err)
	}
	refresh, err := s.tokens.IssueRefresh(sub)
	if err != nil {
		return Session{}, apperr.Internal("issue token", err)
	}
	if err := s.refresh.Store(ctx, a.ID, utils.HashRefreshRaw(refresh.ID), refresh.Exp); err != nil {
		return Session{}, apperr.Internal("store refresh token", err)
	}
	return Session{Account: a, Access: access, Refresh: refresh}, nil
}

func (s *AuthService) accountEvent(kind string, a model.Account) queue.AccountEvent {
	return queue.AccountEvent{
		Type:      kind,
		AccountID: a.ID,
		Email:     a.Email,
		Role:      string(a.Role),
		At:        s.Now().UTC().Format(time.RFC3339),
	}
}

func (s *AuthService) publish(ctx context.Context, q string, ev any) {
	publish(ctx, s.events, s.log, q, ev)
}

func publish(ctx context.Context, p EventPublisher, log *slog.Logger, q string, ev any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, q, ev); err != nil {
		log.Debug("event dropped", slog.String("queue", q), slog.Any("err", err))
	}
}

// WindowOf computes the plan window of an account at now.
func WindowOf(a model.Account, now time.Time, loc *time.Location) plan.Window {
	return plan.Compute(plan.Input{
		EnrollAt:      a.CreatedAt,
		ExplicitStart: a.DietStartDate,
		ExplicitEnd:   a.DietEndDate,
		DurationText:  a.DietTime,
		Now:           now,
	}, loc)
}
