package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyNext(t *testing.T) {
	d, err := Parse([]string{"18:30", "6:00", "06:00"}, "UTC")
	require.NoError(t, err)

	tests := []struct {
		name  string
		after time.Time
		want  time.Time
	}{
		{name: "before first", after: time.Date(2024, 6, 1, 5, 0, 0, 0, time.UTC), want: time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)},
		{name: "exactly at a run is exclusive", after: time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC), want: time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC)},
		{name: "after last rolls over", after: time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC), want: time.Date(2024, 6, 2, 6, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(d.Next(tt.after)), "got %s", d.Next(tt.after))
		})
	}
}

func TestDailyNextInTimezone(t *testing.T) {
	d, err := Parse([]string{"09:00"}, "Asia/Nicosia")
	require.NoError(t, err)

	next := d.Next(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))

	loc, err := time.LoadLocation("Europe/Nicosia")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 1, 11, 9, 0, 0, 0, loc).Equal(next))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]string{"25:00"}, "")
	require.ErrorIs(t, err, ErrHourOutOfRange)

	_, err = Parse([]string{"7"}, "")
	require.ErrorIs(t, err, ErrTimeFormat)

	_, err = Parse(nil, "Mars/Olympus")
	require.Error(t, err)

	d, err := Parse([]string{" "}, "")
	require.NoError(t, err)
	assert.True(t, d.IsEmpty())
	assert.True(t, d.Next(time.Now()).IsZero())
}

func TestNormalizeTimeHM(t *testing.T) {
	got, err := NormalizeTimeHM("7:05")
	require.NoError(t, err)
	assert.Equal(t, "07:05", got)

	_, err = NormalizeTimeHM("07:5")
	require.ErrorIs(t, err, ErrTimeFormat)

	_, err = NormalizeTimeHM("07:60")
	require.ErrorIs(t, err, ErrInvalidMinute)
}
