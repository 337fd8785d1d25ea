package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartplate/smartplate-api/internal/model"
	"github.com/smartplate/smartplate-api/internal/repository"
	"github.com/smartplate/smartplate-api/internal/service/mocks"
	"github.com/smartplate/smartplate-api/pkg/apperr"
)

func TestPlanService_PlanFor(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)
	accounts := mocks.NewMockAccountStore(gomock.NewController(t))
	svc := NewPlanService(accounts, loc)

	t.Run("duration only plan", func(t *testing.T) {
		// enrolled late on the 1st UTC, already the 2nd in Jerusalem
		svc.Now = func() time.Time { return time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC) }
		accounts.EXPECT().GetByID(gomock.Any(), "u1").Return(model.Account{
			ID: "u1", Role: model.RoleUser, DietTime: "21 days",
			CreatedAt: time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC),
		}, nil)

		v, err := svc.PlanFor(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "2024-01-02", v.EnrollDate)
		assert.Equal(t, "2024-01-03", v.StartDate)
		require.NotNil(t, v.EndDate)
		assert.Equal(t, "2024-01-23", *v.EndDate)
		assert.Equal(t, 21, v.DietDays)
		assert.Equal(t, 2, v.DayIndex)
		assert.False(t, v.Expired)
		assert.Equal(t, "Asia/Jerusalem", v.TZ)
	})

	t.Run("unbounded plan has no end", func(t *testing.T) {
		svc.Now = func() time.Time { return time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC) }
		accounts.EXPECT().GetByID(gomock.Any(), "u2").Return(model.Account{
			ID: "u2", Role: model.RoleUser, CreatedAt: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		}, nil)

		v, err := svc.PlanFor(context.Background(), "u2")
		require.NoError(t, err)
		assert.Nil(t, v.EndDate)
		assert.Zero(t, v.DietDays)
		assert.False(t, v.Expired)
	})

	t.Run("unknown account", func(t *testing.T) {
		accounts.EXPECT().GetByID(gomock.Any(), "gone").Return(model.Account{}, repository.ErrNotFound)
		_, err := svc.PlanFor(context.Background(), "gone")
		assert.ErrorIs(t, err, apperr.ErrAccountNotFound)
	})
}
