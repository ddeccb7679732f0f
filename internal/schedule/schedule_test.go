package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty uses sentinel", "", Suspended},
		{"whitespace uses sentinel", "   ", Suspended},
		{"explicit schedule kept", "0 3 * * *", "0 3 * * *"},
		{"descriptor kept", "@hourly", "@hourly"},
		{"sentinel is stable", Suspended, Suspended},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestEqualAppliesNormalizationToBothSides(t *testing.T) {
	// An observed CronJob carries the expanded sentinel while the declaration
	// carries nothing; both describe the same suspended project.
	assert.True(t, Equal(Suspended, ""))
	assert.True(t, Equal("", Suspended))
	assert.True(t, Equal("", " "))
	assert.False(t, Equal("0 3 * * *", ""))
	assert.False(t, Equal("0 3 * * *", "0 4 * * *"))
}

func TestSuspendedNeverFires(t *testing.T) {
	sched, err := cron.ParseStandard(Suspended)
	require.NoError(t, err)

	next := sched.Next(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, next.IsZero(), "expected no activation, got %v", next)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(""))
	assert.NoError(t, Validate("*/15 * * * *"))
	assert.NoError(t, Validate("@daily"))
	assert.NoError(t, Validate("CRON_TZ=UTC 0 3 * * *"))
	assert.NoError(t, Validate(Suspended))

	err := Validate("every day")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSchedule))

	err = Validate("0 3 * *")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSchedule))
}
