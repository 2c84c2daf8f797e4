package aggregator

import (
	"testing"
	"time"

	"github.com/apextime/attendance-backend-go/internal/domain/summary"
	"github.com/apextime/attendance-backend-go/internal/pkg/workday"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 2, 6, hour, minute, 0, 0, time.UTC)
}

func TestCompute_FullDay(t *testing.T) {
	t.Parallel()

	date := workday.Date{Year: 2026, Month: 2, Day: 6}
	punches := []time.Time{at(9, 0), at(13, 0), at(18, 30)}

	s := Compute("t1", "e1", date, punches, 4)

	assert.Equal(t, summary.StatusPresent, s.Status)
	assert.Equal(t, "9.5", s.WorkingHours.String())
	assert.Equal(t, 3, s.TotalPunches)
	assert.True(t, s.FirstIn.Equal(at(9, 0)))
	require.NotNil(t, s.LastOut)
	assert.True(t, s.LastOut.Equal(at(18, 30)))
	assert.Equal(t, `["2026-02-06T09:00:00Z","2026-02-06T13:00:00Z","2026-02-06T18:30:00Z"]`, s.PunchLog)
}

func TestCompute_SinglePunchIsPresentWithoutHours(t *testing.T) {
	t.Parallel()

	date := workday.Date{Year: 2026, Month: 2, Day: 6}
	s := Compute("t1", "e1", date, []time.Time{at(9, 0)}, 4)

	assert.Equal(t, summary.StatusPresent, s.Status)
	assert.Nil(t, s.LastOut)
	assert.True(t, s.WorkingHours.IsZero())
	assert.Equal(t, 1, s.TotalPunches)
}

func TestCompute_ShortSpanIsHalfDay(t *testing.T) {
	t.Parallel()

	date := workday.Date{Year: 2026, Month: 2, Day: 6}
	s := Compute("t1", "e1", date, []time.Time{at(9, 0), at(12, 30)}, 4)

	assert.Equal(t, summary.StatusHalfDay, s.Status)
	assert.Equal(t, "3.5", s.WorkingHours.String())
}

func TestCompute_SpanAtThresholdIsPresent(t *testing.T) {
	t.Parallel()

	date := workday.Date{Year: 2026, Month: 2, Day: 6}
	s := Compute("t1", "e1", date, []time.Time{at(9, 0), at(13, 0)}, 4)

	assert.Equal(t, summary.StatusPresent, s.Status)
	assert.Equal(t, "4", s.WorkingHours.String())
}

func TestCompute_OrderDoesNotMatter(t *testing.T) {
	t.Parallel()

	date := workday.Date{Year: 2026, Month: 2, Day: 6}
	ordered := Compute("t1", "e1", date, []time.Time{at(9, 0), at(13, 0), at(18, 30)}, 4)
	shuffled := Compute("t1", "e1", date, []time.Time{at(18, 30), at(9, 0), at(13, 0)}, 4)

	assert.Equal(t, ordered, shuffled)
}

func TestCompute_CoincidentPunchesBothCount(t *testing.T) {
	t.Parallel()

	// Two devices reporting the same instant for one person are two events;
	// same-device re-delivery was already collapsed at the store.
	date := workday.Date{Year: 2026, Month: 2, Day: 6}
	s := Compute("t1", "e1", date, []time.Time{at(9, 0), at(9, 0)}, 4)

	assert.Equal(t, 2, s.TotalPunches)
	assert.Equal(t, `["2026-02-06T09:00:00Z","2026-02-06T09:00:00Z"]`, s.PunchLog)
	require.NotNil(t, s.LastOut)
	assert.True(t, s.LastOut.Equal(at(9, 0)))
	assert.True(t, s.WorkingHours.IsZero())
	assert.Equal(t, summary.StatusHalfDay, s.Status)
}

func TestCompute_NoPunchesIsAbsent(t *testing.T) {
	t.Parallel()

	date := workday.Date{Year: 2026, Month: 2, Day: 6}
	s := Compute("t1", "e1", date, nil, 4)

	assert.Equal(t, summary.StatusAbsent, s.Status)
	assert.Equal(t, "[]", s.PunchLog)
	assert.True(t, s.FirstIn.IsZero())
}

func TestCompute_RoundsToTwoDecimals(t *testing.T) {
	t.Parallel()

	date := workday.Date{Year: 2026, Month: 2, Day: 6}
	// 8h 50m 10s spans 8.8361... hours.
	end := time.Date(2026, 2, 6, 17, 50, 10, 0, time.UTC)
	s := Compute("t1", "e1", date, []time.Time{at(9, 0), end}, 4)

	assert.Equal(t, "8.84", s.WorkingHours.String())
}
