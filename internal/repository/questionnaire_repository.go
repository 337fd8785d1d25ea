package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/smartplate/smartplate-api/internal/model"
)

var (
	questionnaireSelect string
	questionnaireUpsert string
)

func init() {
	cols := append([]string{"user_id", "height", "weight", "age"}, model.OptionalColumns...)
	questionnaireSelect = "SELECT " + strings.Join(cols, ",") + ",submitted_at FROM questionnaires WHERE user_id=? LIMIT 1"

	updates := make([]string, 0, len(cols))
	for _, c := range cols[1:] {
		updates = append(updates, c+"=VALUES("+c+")")
	}
	updates = append(updates, "submitted_at=VALUES(submitted_at)")
	questionnaireUpsert = "INSERT INTO questionnaires (" + strings.Join(cols, ",") + ",submitted_at) VALUES (" +
		strings.TrimSuffix(strings.Repeat("?,", len(cols)+1), ",") + ") ON DUPLICATE KEY UPDATE " +
		strings.Join(updates, ", ")
}

// QuestionnaireRepo stores one intake form per user.
type QuestionnaireRepo struct{ DB *sql.DB }

func NewQuestionnaireRepo(db *sql.DB) *QuestionnaireRepo { return &QuestionnaireRepo{DB: db} }

// Get returns the stored answers of a user.
func (r *QuestionnaireRepo) Get(ctx context.Context, userID string) (model.Questionnaire, error) {
	var q model.Questionnaire
	answers := q.OptionalAnswers()
	nulls := make([]sql.NullString, len(answers))

	dest := []any{&q.UserID, &q.Height, &q.Weight, &q.Age}
	for i := range nulls {
		dest = append(dest, &nulls[i])
	}
	dest = append(dest, &q.SubmittedAt)

	if err := r.DB.QueryRowContext(ctx, questionnaireSelect, userID).Scan(dest...); err != nil {
		return model.Questionnaire{}, notFound(err, "get questionnaire")
	}
	for i, p := range answers {
		*p = stringPtr(nulls[i])
	}
	return q, nil
}

// Upsert replaces the answers of q.UserID.
func (r *QuestionnaireRepo) Upsert(ctx context.Context, q *model.Questionnaire) error {
	args := []any{q.UserID, q.Height, q.Weight, q.Age}
	for _, p := range q.OptionalAnswers() {
		if *p == nil {
			args = append(args, nil)
		} else {
			args = append(args, **p)
		}
	}
	args = append(args, q.SubmittedAt)
	_, err := r.DB.ExecContext(ctx, questionnaireUpsert, args...)
	return errors.Wrap(err, "upsert questionnaire")
}
