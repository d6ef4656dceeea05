package agenda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"90s", 90 * time.Second},
		{"1h30m", 90 * time.Minute},
		{"5 minutes", 5 * time.Minute},
		{"one hour", time.Hour},
		{"a day", 24 * time.Hour},
		{"minute", time.Minute},
		{"2 days and 3 hours", 51 * time.Hour},
		{"1.5 hours", 90 * time.Minute},
		{"1 week, 2 days", 9 * 24 * time.Hour},
		{"500 ms", 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	for _, input := range []string{"", "5", "five parsecs", "0s", "-1m", "1 hour 2"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseDuration(input)
			assert.ErrorIs(t, err, ErrInvalidInterval)
		})
	}
}

func TestParseInterval(t *testing.T) {
	from := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		interval string
		timezone string
		want     time.Time
	}{
		{"go duration", "90s", "", from.Add(90 * time.Second)},
		{"human interval", "5 minutes", "", from.Add(5 * time.Minute)},
		{"cron expression", "30 * * * *", "", time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)},
		{"cron with seconds", "15 0 12 * * *", "", time.Date(2024, 3, 10, 12, 0, 15, 0, time.UTC)},
		{"descriptor", "@daily", "", time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{"timezone", "0 9 * * *", "America/New_York", time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, err := ParseInterval(tt.interval, tt.timezone)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(schedule.Next(from)), "next = %v, want %v", schedule.Next(from), tt.want)
		})
	}
}

func TestParseInterval_Invalid(t *testing.T) {
	tests := []struct {
		interval string
		timezone string
	}{
		{"", ""},
		{"not a schedule", ""},
		{"61 * * * *", ""},
		{"0 9 * * *", "Mars/Olympus"},
		{"200ms", ""},
	}

	for _, tt := range tests {
		t.Run(tt.interval, func(t *testing.T) {
			_, err := ParseInterval(tt.interval, tt.timezone)
			assert.ErrorIs(t, err, ErrInvalidInterval)
		})
	}
}

func TestParseWhen(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		when string
		want time.Time
	}{
		{"now", now},
		{"2024-05-01T08:00:00Z", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:00:00+02:00", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
		{"in 10 minutes", now.Add(10 * time.Minute)},
		{"2h", now.Add(2 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.when, func(t *testing.T) {
			got, err := ParseWhen(tt.when, now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "ParseWhen() = %v, want %v", got, tt.want)
		})
	}

	_, err := ParseWhen("next blue moon", now)
	assert.ErrorIs(t, err, ErrInvalidWhen)

	_, err = ParseWhen("", now)
	assert.ErrorIs(t, err, ErrInvalidWhen)
}
