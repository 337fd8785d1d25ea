package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/smartplate/smartplate-api/internal/plan"
	"github.com/smartplate/smartplate-api/internal/repository"
	"github.com/smartplate/smartplate-api/pkg/apperr"
)

// PlanView is the wire form of a plan window.  Dates are YYYY-MM-DD; EndDate
// is nil for an unbounded plan.
type PlanView struct {
	EnrollDate string  `json:"enrollDate"`
	StartDate  string  `json:"startDate"`
	EndDate    *string `json:"endDate"`
	DietDays   int     `json:"dietDays"`
	DayIndex   int     `json:"dayIndex"`
	Expired    bool    `json:"expired"`
	TZ         string  `json:"tz"`
}

// NewPlanView renders w for zone loc.
func NewPlanView(w plan.Window, loc *time.Location) PlanView {
	v := PlanView{
		EnrollDate: plan.FormatDate(w.EnrollDate),
		StartDate:  plan.FormatDate(w.StartDate),
		DietDays:   w.DurationDays,
		DayIndex:   w.TodayIndex,
		Expired:    w.Expired,
		TZ:         loc.String(),
	}
	if w.EndDate != nil {
		end := plan.FormatDate(*w.EndDate)
		v.EndDate = &end
	}
	return v
}

// PlanService answers plan window queries for stored accounts.
type PlanService struct {
	accounts AccountStore
	loc      *time.Location
	Now      func() time.Time
}

func NewPlanService(accounts AccountStore, loc *time.Location) *PlanService {
	return &PlanService{accounts: accounts, loc: loc, Now: time.Now}
}

// WindowFor fetches the account and computes its window for today.
func (s *PlanService) WindowFor(ctx context.Context, accountID string) (plan.Window, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return plan.Window{}, apperr.ErrAccountNotFound
	}
	if err != nil {
		return plan.Window{}, apperr.Internal("failed to compute plan window", err)
	}
	return WindowOf(a, s.Now(), s.loc), nil
}

// PlanFor is WindowFor rendered for the wire.
func (s *PlanService) PlanFor(ctx context.Context, accountID string) (PlanView, error) {
	w, err := s.WindowFor(ctx, accountID)
	if err != nil {
		return PlanView{}, err
	}
	return NewPlanView(w, s.loc), nil
}
