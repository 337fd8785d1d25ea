package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/smartplate/smartplate-api/internal/model"
	"github.com/smartplate/smartplate-api/internal/repository"
	"github.com/smartplate/smartplate-api/pkg/apperr"
)

// Age bounds accepted on the intake form.
const (
	MinAge = 20
	MaxAge = 90
)

// FlexInt decodes a JSON number or a numeric string.  Present reports that
// the key was sent; Valid that it held an integer.
type FlexInt struct {
	Value   int
	Present bool
	Valid   bool
}

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	*f = FlexInt{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	f.Present = true
	s := string(b)
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	f.Value, f.Valid = n, true
	return nil
}

// QuestionnaireInput is the submitted form.  Age overrides the integer field
// of the embedded questionnaire so that "34" and 34 are both accepted.
type QuestionnaireInput struct {
	model.Questionnaire
	Age FlexInt `json:"age"`
}

// QuestionnaireService reads and replaces a client's intake form.
type QuestionnaireService struct {
	store QuestionnaireStore
	Now   func() time.Time
}

func NewQuestionnaireService(store QuestionnaireStore) *QuestionnaireService {
	return &QuestionnaireService{store: store, Now: time.Now}
}

// Get returns the stored form; the bool is false when none was submitted.
func (s *QuestionnaireService) Get(ctx context.Context, userID string) (model.Questionnaire, bool, error) {
	q, err := s.store.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Questionnaire{}, false, nil
	}
	if err != nil {
		return model.Questionnaire{}, false, apperr.Internal("failed to read questionnaire", err)
	}
	return q, true, nil
}

// Submit validates in and replaces the stored form of userID.
func (s *QuestionnaireService) Submit(ctx context.Context, userID string, in QuestionnaireInput) (model.Questionnaire, error) {
	q := in.Questionnaire
	q.UserID = userID
	q.Height = strings.TrimSpace(q.Height)
	q.Weight = strings.TrimSpace(q.Weight)

	fields := map[string]string{}
	if q.Height == "" {
		fields["height"] = "required"
	}
	if q.Weight == "" {
		fields["weight"] = "required"
	}
	switch {
	case !in.Age.Present:
		fields["age"] = "required"
	case !in.Age.Valid || in.Age.Value < MinAge || in.Age.Value > MaxAge:
		fields["age"] = "must be an integer between 20 and 90"
	}
	if len(fields) > 0 {
		return model.Questionnaire{}, apperr.Validation("Validation error", fields)
	}

	q.Age = in.Age.Value
	q.SubmittedAt = s.Now().UTC()
	if err := s.store.Upsert(ctx, &q); err != nil {
		return model.Questionnaire{}, apperr.Internal("failed to save questionnaire", err)
	}
	return q, nil
}
