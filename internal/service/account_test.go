package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartplate/smartplate-api/internal/model"
	"github.com/smartplate/smartplate-api/internal/queue"
	"github.com/smartplate/smartplate-api/internal/repository"
	"github.com/smartplate/smartplate-api/internal/service/mocks"
	"github.com/smartplate/smartplate-api/internal/utils"
	"github.com/smartplate/smartplate-api/pkg/apperr"
)

func newAccountService(t *testing.T, now time.Time) (*AccountService, *mocks.MockAccountStore, *mocks.MockQuestionnaireStore, *mocks.MockEventPublisher) {
	t.Helper()
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	qs := mocks.NewMockQuestionnaireStore(ctrl)
	events := mocks.NewMockEventPublisher(ctrl)
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)

	svc := NewAccountService(accounts, qs, utils.NewHasher(bcrypt.MinCost), events, loc, testLog)
	svc.Now = func() time.Time { return now }
	return svc, accounts, qs, events
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestAccountService_CreateUser(t *testing.T) {
	now := time.Date(2023, 12, 31, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	valid := CreateUserInput{
		Name:      "Dana",
		Email:     " Dana@Example.com ",
		Password:  "Temp-pass1",
		StartDate: "2024-01-01",
		EndDate:   "2024-01-21",
		DietTime:  "21 days",
	}

	t.Run("happy path", func(t *testing.T) {
		svc, accounts, _, events := newAccountService(t, now)
		accounts.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, a *model.Account) error {
				assert.Equal(t, "dana@example.com", a.Email)
				assert.Equal(t, model.RoleUser, a.Role)
				assert.True(t, a.MustChangePassword)
				assert.True(t, a.FirstLogin)
				assert.Equal(t, date(2024, 1, 1), a.DietStartDate)
				assert.Equal(t, date(2024, 1, 21), a.DietEndDate)
				assert.NotEqual(t, "Temp-pass1", a.PasswordHash)
				return nil
			})
		events.EXPECT().Publish(gomock.Any(), queue.AccountEventsQueue, gomock.Any()).Return(errors.New("broker down"))

		a, err := svc.CreateUser(ctx, valid)
		require.NoError(t, err)
		assert.Len(t, a.ID, 36)
		assert.Equal(t, now, a.CreatedAt)
	})

	t.Run("sad path - field errors", func(t *testing.T) {
		svc, _, _, _ := newAccountService(t, now)
		_, err := svc.CreateUser(ctx, CreateUserInput{
			Email:     "not-an-email",
			Password:  "short",
			StartDate: "2024-02-01",
			EndDate:   "2024-01-01",
		})
		ae, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.CodeInvalidArgument, ae.Code)
		assert.Equal(t, "Invalid payload", ae.Message)
		assert.Contains(t, ae.Fields, "name")
		assert.Contains(t, ae.Fields, "email")
		assert.Contains(t, ae.Fields, "password")
		assert.Equal(t, "must not be before startDate", ae.Fields["endDate"])
	})

	t.Run("sad path - dates required and well formed", func(t *testing.T) {
		svc, _, _, _ := newAccountService(t, now)
		in := valid
		in.StartDate = ""
		in.EndDate = "21/01/2024"
		_, err := svc.CreateUser(ctx, in)
		ae, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, "required", ae.Fields["startDate"])
		assert.Equal(t, "must be a date in YYYY-MM-DD format", ae.Fields["endDate"])
	})

	t.Run("sad path - duplicate email", func(t *testing.T) {
		svc, accounts, _, _ := newAccountService(t, now)
		accounts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(repository.ErrEmailExists)

		_, err := svc.CreateUser(ctx, valid)
		ae, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.CodeAlreadyExists, ae.Code)
		assert.Equal(t, "Email already exists", ae.Message)
	})
}

func TestAccountService_UpdatePlan(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	stored := model.Account{
		ID: "u1", Role: model.RoleUser, DietTime: "21 days",
		DietStartDate: date(2024, 1, 1), DietEndDate: date(2024, 1, 21),
	}
	str := func(s string) *string { return &s }

	t.Run("end only keeps the stored start", func(t *testing.T) {
		svc, accounts, _, _ := newAccountService(t, now)
		accounts.EXPECT().GetByID(gomock.Any(), "u1").Return(stored, nil)
		accounts.EXPECT().UpdatePlan(gomock.Any(), "u1", "21 days", date(2024, 1, 1), date(2024, 2, 10)).Return(nil)

		a, err := svc.UpdatePlan(ctx, "u1", UpdatePlanInput{EndDate: str("2024-02-10")})
		require.NoError(t, err)
		assert.Equal(t, date(2024, 2, 10), a.DietEndDate)
	})

	t.Run("empty string clears", func(t *testing.T) {
		svc, accounts, _, _ := newAccountService(t, now)
		accounts.EXPECT().GetByID(gomock.Any(), "u1").Return(stored, nil)
		accounts.EXPECT().UpdatePlan(gomock.Any(), "u1", "30 days", date(2024, 1, 1), nil).Return(nil)

		_, err := svc.UpdatePlan(ctx, "u1", UpdatePlanInput{EndDate: str(""), DietTime: str(" 30 days ")})
		require.NoError(t, err)
	})

	t.Run("sad path - end before merged start", func(t *testing.T) {
		svc, accounts, _, _ := newAccountService(t, now)
		accounts.EXPECT().GetByID(gomock.Any(), "u1").Return(stored, nil)

		_, err := svc.UpdatePlan(ctx, "u1", UpdatePlanInput{EndDate: str("2023-12-01")})
		assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	})

	t.Run("sad path - admin accounts are not plan targets", func(t *testing.T) {
		svc, accounts, _, _ := newAccountService(t, now)
		accounts.EXPECT().GetByID(gomock.Any(), "a1").Return(model.Account{ID: "a1", Role: model.RoleAdmin}, nil)

		_, err := svc.UpdatePlan(ctx, "a1", UpdatePlanInput{})
		assert.ErrorIs(t, err, apperr.ErrAccountNotFound)
	})
}

func TestAccountService_UserDetails(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	acct := model.Account{
		ID: "u1", Name: "Dana", Role: model.RoleUser, PasswordHash: "secret",
		DietStartDate: date(2024, 1, 1), DietEndDate: date(2024, 1, 21),
	}

	t.Run("with questionnaire", func(t *testing.T) {
		svc, accounts, qs, _ := newAccountService(t, now)
		accounts.EXPECT().GetByID(gomock.Any(), "u1").Return(acct, nil)
		qs.EXPECT().Get(gomock.Any(), "u1").Return(model.Questionnaire{UserID: "u1", Height: "170", Weight: "65", Age: 34}, nil)

		d, err := svc.UserDetails(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, d.Questionnaire)
		require.NotNil(t, d.BMI.Value)
		assert.Equal(t, 22.5, *d.BMI.Value)
		assert.Equal(t, 5, d.Plan.DayIndex)
		assert.Equal(t, "2024-01-01", *d.User.DietStartDate)
	})

	t.Run("without questionnaire", func(t *testing.T) {
		svc, accounts, qs, _ := newAccountService(t, now)
		accounts.EXPECT().GetByID(gomock.Any(), "u1").Return(acct, nil)
		qs.EXPECT().Get(gomock.Any(), "u1").Return(model.Questionnaire{}, repository.ErrNotFound)

		d, err := svc.UserDetails(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, d.Questionnaire)
		assert.Nil(t, d.BMI.Value)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, accounts, _, _ := newAccountService(t, now)
		accounts.EXPECT().GetByID(gomock.Any(), "nope").Return(model.Account{}, repository.ErrNotFound)

		_, err := svc.UserDetails(ctx, "nope")
		assert.ErrorIs(t, err, apperr.ErrAccountNotFound)
	})
}

func TestAccountService_DeleteUser(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	svc, accounts, _, events := newAccountService(t, now)
	accounts.EXPECT().DeleteUser(gomock.Any(), "u1").Return(nil)
	events.EXPECT().Publish(gomock.Any(), queue.AccountEventsQueue, gomock.Any()).Return(nil)
	require.NoError(t, svc.DeleteUser(ctx, "u1"))

	accounts.EXPECT().DeleteUser(gomock.Any(), "u2").Return(repository.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteUser(ctx, "u2"), apperr.ErrAccountNotFound)
}

func TestAccountService_ExportXLSX(t *testing.T) {
	now := time.Date(2024, 1, 22, 12, 0, 0, 0, time.UTC)
	svc, accounts, _, _ := newAccountService(t, now)

	age := 34
	h, w, goal := "170", "65", "lose weight"
	accounts.EXPECT().ListUsers(gomock.Any()).Return([]model.DashboardRow{
		{
			ID: "u1", Name: "Dana", Email: "dana@example.com",
			DietStartDate: date(2024, 1, 1), DietEndDate: date(2024, 1, 21),
			CreatedAt: time.Date(2023, 12, 31, 8, 0, 0, 0, time.UTC),
			Age:       &age, ProgramGoal: &goal, Height: &h, Weight: &w,
		},
		{
			ID: "u2", Name: "Noa", Email: "noa@example.com", DietTime: "30 days",
			CreatedAt: time.Date(2024, 1, 20, 8, 0, 0, 0, time.UTC),
		},
	}, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportXLSX(context.Background(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Name", rows[0][0])
	assert.Equal(t, "BMI category", rows[0][11])

	assert.Equal(t, []string{"Dana", "dana@example.com", "2024-01-01", "2024-01-21", "21", "TRUE", "34", "lose weight", "170", "65", "22.5", "Normal"}, rows[1])
	assert.Equal(t, "Noa", rows[2][0])
	assert.Equal(t, "2", rows[2][4])
	assert.Equal(t, "FALSE", rows[2][5])
}
