package plan

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func ptr(t time.Time) *time.Time { return &t }

func TestParseDurationDays(t *testing.T) {
	cases := map[string]int{
		"21 days":        21,
		"30":             30,
		"program: 14d":   14,
		"6 weeks, 42":    6,
		"":               0,
		"unlimited":      0,
		"  007 days ":    7,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseDurationDays(in), in)
	}
}

func TestDerivedWindowAdvancesOneDayAtATime(t *testing.T) {
	enroll := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	start := date(t, "2024-03-11")

	for day := 0; day <= 25; day++ {
		now := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC).AddDate(0, 0, day)
		w := Compute(Input{EnrollAt: enroll, DurationText: "21 days", Now: now}, time.UTC)

		assert.Equal(t, start, w.StartDate)
		require.NotNil(t, w.EndDate)
		assert.Equal(t, date(t, "2024-03-31"), *w.EndDate)
		assert.Equal(t, 21, w.DurationDays)

		want := day + 1
		if want > 21 {
			want = 21
		}
		assert.Equal(t, want, w.TodayIndex, "day %d", day)
	}
}

func TestNotStartedYet(t *testing.T) {
	enroll := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	w := Compute(Input{EnrollAt: enroll, DurationText: "21 days", Now: enroll}, time.UTC)
	assert.Equal(t, 0, w.TodayIndex)
	assert.False(t, w.Expired)
	assert.Equal(t, date(t, "2024-03-10"), w.EnrollDate)
}

func TestExpiryBoundaryIsExclusive(t *testing.T) {
	in := Input{
		ExplicitStart: ptr(date(t, "2024-01-01")),
		ExplicitEnd:   ptr(date(t, "2024-01-21")),
		EnrollAt:      time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC),
	}

	in.Now = time.Date(2024, 1, 21, 23, 59, 0, 0, time.UTC)
	w := Compute(in, time.UTC)
	assert.False(t, w.Expired)
	assert.Equal(t, 21, w.TodayIndex)
	assert.Equal(t, 21, w.DurationDays)

	in.Now = time.Date(2024, 1, 22, 0, 0, 1, 0, time.UTC)
	w = Compute(in, time.UTC)
	assert.True(t, w.Expired)
	assert.Equal(t, 21, w.TodayIndex)
}

func TestExplicitDatesOverrideDuration(t *testing.T) {
	w := Compute(Input{
		EnrollAt:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		ExplicitStart: ptr(date(t, "2024-06-01")),
		ExplicitEnd:   ptr(date(t, "2024-06-10")),
		DurationText:  "90 days",
		Now:           time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
	}, time.UTC)

	assert.Equal(t, date(t, "2024-06-01"), w.StartDate)
	assert.Equal(t, date(t, "2024-06-10"), *w.EndDate)
	assert.Equal(t, 10, w.DurationDays)
	assert.Equal(t, 3, w.TodayIndex)
}

func TestPartialOverrides(t *testing.T) {
	enroll := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	now := time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

	onlyStart := Compute(Input{EnrollAt: enroll, ExplicitStart: ptr(date(t, "2024-05-10")), DurationText: "5", Now: now}, time.UTC)
	assert.Equal(t, date(t, "2024-05-10"), onlyStart.StartDate)
	assert.Equal(t, date(t, "2024-05-14"), *onlyStart.EndDate)
	assert.True(t, onlyStart.Expired)

	onlyEnd := Compute(Input{EnrollAt: enroll, ExplicitEnd: ptr(date(t, "2024-05-31")), Now: now}, time.UTC)
	assert.Equal(t, date(t, "2024-05-02"), onlyEnd.StartDate)
	assert.Equal(t, 30, onlyEnd.DurationDays)
	assert.Equal(t, 19, onlyEnd.TodayIndex)
	assert.False(t, onlyEnd.Expired)
}

func TestUnboundedPlanNeverExpires(t *testing.T) {
	enroll := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	w := Compute(Input{EnrollAt: enroll, DurationText: "open ended", Now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, time.UTC)
	assert.Nil(t, w.EndDate)
	assert.Equal(t, 0, w.DurationDays)
	assert.False(t, w.Expired)
	assert.Equal(t, DaysBetween(w.StartDate, date(t, "2024-01-01"))+1, w.TodayIndex)
}

func TestDatesAreTakenInConfiguredZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)

	// 22:30 UTC on Jan 31 is already Feb 1 in Jerusalem.
	enroll := time.Date(2024, 1, 31, 22, 30, 0, 0, time.UTC)
	now := time.Date(2024, 2, 1, 22, 30, 0, 0, time.UTC) // Feb 2 local

	w := Compute(Input{EnrollAt: enroll, DurationText: "10", Now: now}, loc)
	assert.Equal(t, date(t, "2024-02-01"), w.EnrollDate)
	assert.Equal(t, date(t, "2024-02-02"), w.StartDate)
	assert.Equal(t, 1, w.TodayIndex)

	utc := Compute(Input{EnrollAt: enroll, DurationText: "10", Now: now}, time.UTC)
	assert.Equal(t, date(t, "2024-02-01"), utc.StartDate)
	assert.Equal(t, 1, utc.TodayIndex)
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	a := DateIn(time.Date(2024, 3, 30, 12, 0, 0, 0, loc), loc)
	b := DateIn(time.Date(2024, 4, 1, 12, 0, 0, 0, loc), loc)
	assert.Equal(t, 2, DaysBetween(a, b))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2024-01-21", FormatDate(date(t, "2024-01-21")))
	_, err := ParseDate("21/01/2024")
	assert.Error(t, err)
}
