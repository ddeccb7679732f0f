// Package schedule resolves the effective cron schedule of a project.
//
// Projects without a schedule still get a CronJob so they can be rebuilt on
// demand. Such CronJobs carry the Suspended expression, which names the 31st
// of February and therefore never fires, and are created with suspend=true.
package schedule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Suspended is the effective schedule of a project that declared none.
const Suspended = "* * 31 2 *"

// ErrInvalidSchedule is returned by Validate for expressions the cron parser rejects.
var ErrInvalidSchedule = errors.New("invalid cron schedule")

// Normalize returns the schedule a CronJob should carry for the declared
// expression s. It must be applied to both sides of a drift comparison.
func Normalize(s string) string {
	if IsSuspended(s) {
		return Suspended
	}
	return s
}

// IsSuspended reports whether s declares no schedule at all.
func IsSuspended(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Equal reports whether two declared or observed schedules resolve to the same
// effective schedule.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Validate checks a declared expression. An empty expression is valid.
func Validate(s string) error {
	if IsSuspended(s) {
		return nil
	}
	if _, err := cron.ParseStandard(s); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, s, err)
	}
	return nil
}
