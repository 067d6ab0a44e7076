package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockHour(t *testing.T) {
	tests := []struct {
		marker string
		hour   int
		want   int
	}{
		{"오전", 1, 1},
		{"오전", 11, 11},
		{"오전", 12, 0},
		{"오후", 1, 13},
		{"오후", 11, 23},
		{"오후", 12, 12},
	}
	for _, tt := range tests {
		got, err := ClockHour(tt.marker, tt.hour)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %d", tt.marker, tt.hour)
	}
}

func TestClockHourRejectsInvalid(t *testing.T) {
	_, err := ClockHour("오전", 0)
	assert.ErrorIs(t, err, ErrInvalidClock)

	_, err = ClockHour("오후", 13)
	assert.ErrorIs(t, err, ErrInvalidClock)

	_, err = ClockHour("AM", 3)
	assert.ErrorIs(t, err, ErrInvalidMarker)
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("오후", "3:07")
	require.NoError(t, err)
	assert.Equal(t, 15, h)
	assert.Equal(t, 7, m)

	_, _, err = ParseClock("오후", "3:60")
	assert.ErrorIs(t, err, ErrInvalidClock)

	_, _, err = ParseClock("오후", "307")
	assert.ErrorIs(t, err, ErrInvalidClock)
}

func TestNewDateValidatesCalendar(t *testing.T) {
	_, err := NewDate(2024, 2, 29)
	assert.NoError(t, err)

	_, err = NewDate(2023, 2, 29)
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = NewDate(2024, 13, 1)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestNormalizerAt(t *testing.T) {
	day, err := KoreanDate("2024", "1", "1")
	require.NoError(t, err)

	got, err := NewNormalizer(nil).At(day, "오전", "9:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 30, 0, 0, KST), got)

	got, err = NewNormalizer(time.UTC).At(day, "오후", "12:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 5, 0, 0, time.UTC), got)

	_, err = NewNormalizer(nil).At(Date{}, "오전", "9:30")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
