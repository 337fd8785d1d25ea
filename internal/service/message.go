package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/smartplate/smartplate-api/internal/model"
	"github.com/smartplate/smartplate-api/internal/queue"
	"github.com/smartplate/smartplate-api/internal/repository"
	"github.com/smartplate/smartplate-api/pkg/apperr"
)

// Message and paging limits.
const (
	MaxMessageLen   = 5000
	DefaultPageSize = 50
	MaxPageSize     = 200
	maxAdminThreads = 100
)

// MessageService implements direct messaging between the coach and clients.
type MessageService struct {
	accounts AccountStore
	messages MessageStore
	events   EventPublisher
	log      *slog.Logger

	Now func() time.Time
}

func NewMessageService(accounts AccountStore, messages MessageStore, events EventPublisher, log *slog.Logger) *MessageService {
	return &MessageService{accounts: accounts, messages: messages, events: events, log: log, Now: time.Now}
}

// MyAdmin returns the id of the coach a client talks to: the earliest admin.
func (s *MessageService) MyAdmin(ctx context.Context) (string, error) {
	a, err := s.accounts.FirstAdmin(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return "", apperr.NotFound("No admin available")
	}
	if err != nil {
		return "", apperr.Internal("failed to resolve admin", err)
	}
	return a.ID, nil
}

// Threads lists the inbox of the caller.  An admin sees every client it has
// exchanged messages with; a client sees the single admin thread.
func (s *MessageService) Threads(ctx context.Context, meID string, role model.Role) ([]model.Thread, error) {
	if role == model.RoleAdmin {
		ts, err := s.messages.AdminThreads(ctx, meID, maxAdminThreads)
		if err != nil {
			return nil, apperr.Internal("failed to load threads", err)
		}
		return ts, nil
	}

	admin, err := s.accounts.FirstAdmin(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return []model.Thread{}, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to load threads", err)
	}
	t, err := s.messages.UserThread(ctx, meID, admin.ID)
	if err != nil {
		return nil, apperr.Internal("failed to load threads", err)
	}
	return []model.Thread{t}, nil
}

// ClampLimit bounds a requested page size to 1..200, defaulting to 50.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}

// Conversation returns a page of messages between the caller and otherID in
// ascending order and marks the incoming ones as read.
func (s *MessageService) Conversation(ctx context.Context, meID, otherID string, before *time.Time, limit int) ([]model.Message, error) {
	if err := validateOtherID(otherID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.Conversation(ctx, meID, otherID, before, ClampLimit(limit))
	if err != nil {
		return nil, apperr.Internal("failed to load conversation", err)
	}
	if _, err := s.messages.MarkRead(ctx, meID, otherID, s.Now()); err != nil {
		return nil, apperr.Internal("failed to load conversation", err)
	}
	return msgs, nil
}

// Send stores a message from the caller to otherID.  Messages only flow
// between an admin and a client.
func (s *MessageService) Send(ctx context.Context, meID string, role model.Role, otherID, body string) (model.Message, error) {
	if err := validateOtherID(otherID); err != nil {
		return model.Message{}, err
	}
	body = strings.TrimSpace(body)
	if n := utf8.RuneCountInString(body); n == 0 || n > MaxMessageLen {
		return model.Message{}, apperr.Validation("Message body required (max 5000 chars)",
			map[string]string{"body": "must be between 1 and 5000 characters"})
	}

	other, err := s.accounts.GetByID(ctx, otherID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Message{}, apperr.InvalidArg("Recipient does not exist")
	}
	if err != nil {
		return model.Message{}, apperr.Internal("failed to send message", err)
	}
	if other.Role == role {
		return model.Message{}, apperr.ErrForbidden
	}

	m := model.Message{SenderID: meID, RecipientID: otherID, Body: body, CreatedAt: s.Now().UTC()}
	if err := s.messages.Insert(ctx, &m); err != nil {
		return model.Message{}, apperr.Internal("failed to send message", err)
	}
	publish(ctx, s.events, s.log, queue.MessageSentQueue, queue.MessageSentEvent{
		MessageID:   m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Length:      utf8.RuneCountInString(m.Body),
		SentAt:      m.CreatedAt.Format(time.RFC3339),
	})
	return m, nil
}

func validateOtherID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.InvalidArg("Invalid otherId")
	}
	return nil
}
