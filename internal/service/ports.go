package service

import (
	"context"
	"time"

	"github.com/smartplate/smartplate-api/internal/model"
)

//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks github.com/smartplate/smartplate-api/internal/service AccountStore,RefreshStore,QuestionnaireStore,MessageStore,EventPublisher

// AccountStore is the account persistence used by the services.
type AccountStore interface {
	Create(ctx context.Context, a *model.Account) error
	GetByID(ctx context.Context, id string) (model.Account, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	FirstAdmin(ctx context.Context) (model.Account, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string) error
	UpdatePlan(ctx context.Context, id, dietTime string, start, end *time.Time) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]model.DashboardRow, error)
}

// RefreshStore records issued refresh token ids (hashed) and lets each be
// consumed once.
type RefreshStore interface {
	Store(ctx context.Context, accountID, tokenHash string, exp time.Time) error
	Consume(ctx context.Context, tokenHash string) (string, error)
	RevokeAll(ctx context.Context, accountID string) error
}

// QuestionnaireStore persists intake forms.
type QuestionnaireStore interface {
	Get(ctx context.Context, userID string) (model.Questionnaire, error)
	Upsert(ctx context.Context, q *model.Questionnaire) error
}

// MessageStore persists direct messages.
type MessageStore interface {
	Insert(ctx context.Context, m *model.Message) error
	Conversation(ctx context.Context, a, b string, before *time.Time, limit int) ([]model.Message, error)
	MarkRead(ctx context.Context, recipientID, senderID string, at time.Time) (int64, error)
	AdminThreads(ctx context.Context, adminID string, limit int) ([]model.Thread, error)
	UserThread(ctx context.Context, userID, adminID string) (model.Thread, error)
}

// EventPublisher emits domain events.  Failures never fail the request.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, event any) error
}
