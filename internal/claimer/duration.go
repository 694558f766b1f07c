package claimer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseDuration normalises the hours and minutes typed into the entry form.
// Hours may be decimal ("2.5" or "2,5"); the fractional part is converted to
// minutes and carried into the minutes field. Empty fields default to 0.
// Range checks are left to ValidateDuration.
func ParseDuration(hours, minutes string) (int, int, error) {
	hours = strings.ReplaceAll(strings.TrimSpace(hours), ",", ".")
	minutes = strings.TrimSpace(minutes)

	m := 0
	if minutes != "" {
		v, err := strconv.Atoi(minutes)
		if err != nil {
			return 0, 0, &ValidationError{Field: "minuty", Reason: fmt.Sprintf("%q is not a whole number", minutes)}
		}
		m = v
	}

	if hours == "" {
		return 0, m, nil
	}

	if !strings.Contains(hours, ".") {
		h, err := strconv.Atoi(hours)
		if err != nil {
			return 0, 0, &ValidationError{Field: "hodiny", Reason: fmt.Sprintf("%q is not a number", hours)}
		}
		return h, m, nil
	}

	f, err := strconv.ParseFloat(hours, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, 0, &ValidationError{Field: "hodiny", Reason: fmt.Sprintf("%q is not a number", hours)}
	}
	if f < 0 {
		return 0, 0, &ValidationError{Field: "hodiny", Reason: "must not be negative"}
	}
	if f > float64(math.MaxInt32) {
		return 0, 0, &ValidationError{Field: "hodiny", Reason: "too large"}
	}
	// Minutes must be in range before the fraction carries into them.
	if m < 0 || m > 59 {
		return 0, 0, &ValidationError{Field: "minuty", Reason: "must be between 0 and 59"}
	}

	whole := math.Floor(f)
	total := int(whole)*60 + int(math.Round((f-whole)*60)) + m
	return total / 60, total % 60, nil
}

// FormatDuration renders hours and minutes as "2h 30m".
func FormatDuration(hours, minutes int) string {
	switch {
	case hours == 0:
		return fmt.Sprintf("%dm", minutes)
	case minutes == 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
}
