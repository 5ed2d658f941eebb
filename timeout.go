package metaclaude

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unlimited disables the execution deadline.
const Unlimited time.Duration = 0

// ParseTimeout converts a timeout specification into a duration. Accepted
// forms: raw integer seconds ("120"), a value with an s/m/h unit suffix
// ("45s", "30m", "2h"), or the sentinels "unlimited", "none" and "0", all of
// which return Unlimited. Parsing happens during validation, before any
// resource is provisioned.
func ParseTimeout(spec string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(spec))

	switch s {
	case "unlimited", "none", "0":
		return Unlimited, nil
	case "":
		return 0, &RunError{
			Category: CategoryValidation,
			Message:  "timeout specification is empty",
			Hint:     "use a value like '30m', '2h', '7200s', '120', or 'unlimited'",
			Err:      ErrInvalidTimeout,
		}
	}

	unit := time.Second
	digits := s
	switch {
	case strings.HasSuffix(s, "s"):
		digits = s[:len(s)-1]
	case strings.HasSuffix(s, "m"):
		digits, unit = s[:len(s)-1], time.Minute
	case strings.HasSuffix(s, "h"):
		digits, unit = s[:len(s)-1], time.Hour
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, &RunError{
			Category: CategoryValidation,
			Message:  fmt.Sprintf("invalid timeout %q", spec),
			Hint:     "use a value like '30m', '2h', '7200s', '120', or 'unlimited'",
			Err:      ErrInvalidTimeout,
		}
	}
	if n == 0 {
		return Unlimited, nil
	}
	return time.Duration(n) * unit, nil
}

// FormatTimeout renders a deadline for display. Unlimited maps back to the
// "unlimited" sentinel.
func FormatTimeout(d time.Duration) string {
	if d == Unlimited {
		return "unlimited"
	}
	return d.String()
}
