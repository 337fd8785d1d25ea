package service

import (
	"context"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/smartplate/smartplate-api/internal/bmi"
	"github.com/smartplate/smartplate-api/internal/model"
	"github.com/smartplate/smartplate-api/internal/plan"
	"github.com/smartplate/smartplate-api/internal/queue"
	"github.com/smartplate/smartplate-api/internal/repository"
	"github.com/smartplate/smartplate-api/internal/utils"
	"github.com/smartplate/smartplate-api/pkg/apperr"
)

// CreateUserInput is the admin form for a new client account.
type CreateUserInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	DietTime  string `json:"dietTime"`
}

// UpdatePlanInput changes the plan fields of a client.  Nil fields are left
// unchanged; an empty string clears the field.
type UpdatePlanInput struct {
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
	DietTime  *string `json:"dietTime"`
}

// AccountView is the public form of an account.
type AccountView struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Role               model.Role `json:"role"`
	DietTime           string     `json:"diet_time,omitempty"`
	DietStartDate      *string    `json:"diet_start_date"`
	DietEndDate        *string    `json:"diet_end_date"`
	MustChangePassword bool       `json:"must_change_password"`
	FirstLogin         bool       `json:"first_login"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// NewAccountView hides the password hash and renders calendar dates.
func NewAccountView(a model.Account) AccountView {
	return AccountView{
		ID:                 a.ID,
		Name:               a.Name,
		Email:              a.Email,
		Role:               a.Role,
		DietTime:           a.DietTime,
		DietStartDate:      datePtr(a.DietStartDate),
		DietEndDate:        datePtr(a.DietEndDate),
		MustChangePassword: a.MustChangePassword,
		FirstLogin:         a.FirstLogin,
		LastLoginAt:        a.LastLoginAt,
		CreatedAt:          a.CreatedAt,
	}
}

// DashboardEntry is one row of the admin table.
type DashboardEntry struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	DietStartDate      *string    `json:"diet_start_date"`
	DietEndDate        *string    `json:"diet_end_date"`
	FirstLogin         bool       `json:"first_login"`
	MustChangePassword bool       `json:"must_change_password"`
	Age                *int       `json:"age"`
	ProgramGoal        *string    `json:"program_goal"`
	Height             *string    `json:"height"`
	Weight             *string    `json:"weight"`
	BMI                bmi.Result `json:"bmi"`
	Plan               PlanView   `json:"plan"`
	CreatedAt          time.Time  `json:"created_at"`
}

// UserDetails is the full record shown in the admin details view.
type UserDetails struct {
	User          AccountView          `json:"user"`
	Questionnaire *model.Questionnaire `json:"questionnaire"`
	Plan          PlanView             `json:"plan"`
	BMI           bmi.Result           `json:"bmi"`
}

// AccountService implements the coach's account management.
type AccountService struct {
	accounts       AccountStore
	questionnaires QuestionnaireStore
	hasher         utils.Hasher
	events         EventPublisher
	loc            *time.Location
	log            *slog.Logger

	Now func() time.Time
}

func NewAccountService(accounts AccountStore, questionnaires QuestionnaireStore, hasher utils.Hasher,
	events EventPublisher, loc *time.Location, log *slog.Logger) *AccountService {
	return &AccountService{
		accounts:       accounts,
		questionnaires: questionnaires,
		hasher:         hasher,
		events:         events,
		loc:            loc,
		log:            log,
		Now:            time.Now,
	}
}

// CreateUser validates the form and stores a client account that must change
// its password on first login.
func (s *AccountService) CreateUser(ctx context.Context, in CreateUserInput) (model.Account, error) {
	fields := map[string]string{}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		fields["name"] = "required"
	}
	email := model.NormalizeEmail(in.Email)
	if !validEmail(email) {
		fields["email"] = "must be a valid e-mail address"
	}
	if n := utf8.RuneCountInString(in.Password); n < utils.PasswordMinLen || n > utils.PasswordMaxLen {
		fields["password"] = "must be between 8 and 64 characters"
	}
	start, end := parseRequiredDates(in.StartDate, in.EndDate, fields)
	if len(fields) > 0 {
		return model.Account{}, apperr.Validation("Invalid payload", fields)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.Account{}, apperr.Internal("failed to create user", err)
	}
	a := model.Account{
		ID:                 uuid.NewString(),
		Name:               name,
		Email:              email,
		PasswordHash:       hash,
		Role:               model.RoleUser,
		DietTime:           strings.TrimSpace(in.DietTime),
		DietStartDate:      start,
		DietEndDate:        end,
		MustChangePassword: true,
		FirstLogin:         true,
		CreatedAt:          s.Now().UTC(),
	}
	a.UpdatedAt = a.CreatedAt
	if err := s.accounts.Create(ctx, &a); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.Account{}, apperr.AlreadyExists("Email already exists")
		}
		return model.Account{}, apperr.Internal("failed to create user", err)
	}
	publish(ctx, s.events, s.log, queue.AccountEventsQueue, queue.AccountEvent{
		Type:      queue.EventAccountCreated,
		AccountID: a.ID,
		Email:     a.Email,
		Role:      string(a.Role),
		At:        a.CreatedAt.Format(time.RFC3339),
	})
	return a, nil
}

// Dashboard lists every client with BMI and plan state.
func (s *AccountService) Dashboard(ctx context.Context) ([]DashboardEntry, error) {
	rows, err := s.accounts.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to load dashboard", err)
	}
	now := s.Now()
	out := make([]DashboardEntry, 0, len(rows))
	for _, r := range rows {
		w := plan.Compute(plan.Input{
			EnrollAt:      r.CreatedAt,
			ExplicitStart: r.DietStartDate,
			ExplicitEnd:   r.DietEndDate,
			DurationText:  r.DietTime,
			Now:           now,
		}, s.loc)
		out = append(out, DashboardEntry{
			ID:                 r.ID,
			Name:               r.Name,
			Email:              r.Email,
			DietStartDate:      datePtr(r.DietStartDate),
			DietEndDate:        datePtr(r.DietEndDate),
			FirstLogin:         r.FirstLogin,
			MustChangePassword: r.MustChangePassword,
			Age:                r.Age,
			ProgramGoal:        r.ProgramGoal,
			Height:             r.Height,
			Weight:             r.Weight,
			BMI:                bmi.Compute(deref(r.Height), deref(r.Weight)),
			Plan:               NewPlanView(w, s.loc),
			CreatedAt:          r.CreatedAt,
		})
	}
	return out, nil
}

// UserDetails returns one client with questionnaire, plan and BMI.
func (s *AccountService) UserDetails(ctx context.Context, id string) (UserDetails, error) {
	a, err := s.getUser(ctx, id)
	if err != nil {
		return UserDetails{}, err
	}
	d := UserDetails{
		User: NewAccountView(a),
		Plan: NewPlanView(WindowOf(a, s.Now(), s.loc), s.loc),
		BMI:  bmi.Compute("", ""),
	}
	q, err := s.questionnaires.Get(ctx, a.ID)
	switch {
	case err == nil:
		d.Questionnaire = &q
		d.BMI = bmi.Compute(q.Height, q.Weight)
	case errors.Is(err, repository.ErrNotFound):
	default:
		return UserDetails{}, apperr.Internal("failed to load user details", err)
	}
	return d, nil
}

// UpdatePlan applies a partial change to a client's plan fields.
func (s *AccountService) UpdatePlan(ctx context.Context, id string, in UpdatePlanInput) (model.Account, error) {
	a, err := s.getUser(ctx, id)
	if err != nil {
		return model.Account{}, err
	}

	fields := map[string]string{}
	start, end := a.DietStartDate, a.DietEndDate
	if in.StartDate != nil {
		start = parseOptionalDate(*in.StartDate, "startDate", fields)
	}
	if in.EndDate != nil {
		end = parseOptionalDate(*in.EndDate, "endDate", fields)
	}
	if start != nil && end != nil && end.Before(*start) {
		fields["endDate"] = "must not be before startDate"
	}
	dietTime := a.DietTime
	if in.DietTime != nil {
		dietTime = strings.TrimSpace(*in.DietTime)
	}
	if len(fields) > 0 {
		return model.Account{}, apperr.Validation("Invalid payload", fields)
	}

	if err := s.accounts.UpdatePlan(ctx, a.ID, dietTime, start, end); err != nil {
		return model.Account{}, apperr.Internal("failed to update plan", err)
	}
	a.DietStartDate, a.DietEndDate, a.DietTime = start, end, dietTime
	return a, nil
}

// DeleteUser removes a client account and everything attached to it.
func (s *AccountService) DeleteUser(ctx context.Context, id string) error {
	err := s.accounts.DeleteUser(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.ErrAccountNotFound
	}
	if err != nil {
		return apperr.Internal("failed to delete user", err)
	}
	publish(ctx, s.events, s.log, queue.AccountEventsQueue, queue.AccountEvent{
		Type:      queue.EventAccountDeleted,
		AccountID: id,
		Role:      string(model.RoleUser),
		At:        s.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

var exportHeader = []any{"Name", "Email", "Start date", "End date", "Day", "Expired", "Age", "Goal", "Height", "Weight", "BMI", "BMI category"}

// ExportXLSX writes the dashboard as a spreadsheet to w.
func (s *AccountService) ExportXLSX(ctx context.Context, w io.Writer) error {
	entries, err := s.Dashboard(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	const sheet = "Sheet1"

	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return apperr.Internal("failed to export users", err)
	}
	for i, e := range entries {
		row := []any{
			e.Name, e.Email, deref(e.DietStartDate), deref(e.DietEndDate),
			e.Plan.DayIndex, e.Plan.Expired, "", deref(e.ProgramGoal),
			deref(e.Height), deref(e.Weight), "", e.BMI.Label,
		}
		if e.Age != nil {
			row[6] = *e.Age
		}
		if e.BMI.Value != nil {
			row[10] = *e.BMI.Value
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apperr.Internal("failed to export users", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return apperr.Internal("failed to export users", err)
		}
	}
	if err := f.Write(w); err != nil {
		return apperr.Internal("failed to export users", err)
	}
	return nil
}

func (s *AccountService) getUser(ctx context.Context, id string) (model.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && a.Role != model.RoleUser) {
		return model.Account{}, apperr.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, apperr.Internal("failed to load user", err)
	}
	return a, nil
}

// parseRequiredDates parses a mandatory start/end pair, recording problems
// in fields.
func parseRequiredDates(startS, endS string, fields map[string]string) (*time.Time, *time.Time) {
	if strings.TrimSpace(startS) == "" {
		fields["startDate"] = "required"
	}
	if strings.TrimSpace(endS) == "" {
		fields["endDate"] = "required"
	}
	start := parseOptionalDate(startS, "startDate", fields)
	end := parseOptionalDate(endS, "endDate", fields)
	if start != nil && end != nil && end.Before(*start) {
		fields["endDate"] = "must not be before startDate"
	}
	return start, end
}

func parseOptionalDate(s, field string, fields map[string]string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := plan.ParseDate(s)
	if err != nil {
		fields[field] = "must be a date in YYYY-MM-DD format"
		return nil
	}
	return &d
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, ".")
}

func datePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := plan.FormatDate(*t)
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
