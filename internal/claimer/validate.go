package claimer

import (
	"fmt"
	"strings"
	"time"
)

// ValidateDuration enforces the duration invariants of a time entry:
// hours >= 0, minutes in [0,59], and not both zero.
func ValidateDuration(hours, minutes int) error {
	if hours < 0 {
		return &ValidationError{Field: "hodiny", Reason: "must not be negative"}
	}
	if minutes < 0 || minutes > 59 {
		return &ValidationError{Field: "minuty", Reason: "must be between 0 and 59"}
	}
	if hours == 0 && minutes == 0 {
		return &ValidationError{Field: "hodiny", Reason: "hours and minutes cannot both be zero"}
	}
	return nil
}

// ValidateCodes requires at least one of the JIRA key and the task code.
func ValidateCodes(jira, uloha string) error {
	if strings.TrimSpace(jira) == "" && strings.TrimSpace(uloha) == "" {
		return &ValidationError{Field: "uloha", Reason: "a task code or a JIRA key is required"}
	}
	return nil
}

// DateAnomaly returns a non-empty reason when datum lies in the future or
// before the first day of the previous calendar month, relative to now.
func DateAnomaly(datum, now time.Time) string {
	day := civilDay(datum)
	today := civilDay(now)
	if day.After(today) {
		return fmt.Sprintf("date %s is in the future", day.Format(time.DateOnly))
	}
	windowStart := time.Date(today.Year(), today.Month()-1, 1, 0, 0, 0, 0, time.UTC)
	if day.Before(windowStart) {
		return fmt.Sprintf("date %s is outside the current and previous month", day.Format(time.DateOnly))
	}
	return ""
}

// CheckDate turns a date anomaly into a ConfirmationRequiredError unless the
// caller already confirmed it.
func CheckDate(datum, now time.Time, confirmed bool) error {
	if reason := DateAnomaly(datum, now); reason != "" && !confirmed {
		return &ConfirmationRequiredError{Reason: reason}
	}
	return nil
}

// civilDay drops the clock part, keeping the calendar day as seen in t's location.
func civilDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
