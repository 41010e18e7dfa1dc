package utils

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// StepDelay converts a sequence step's configured interval into the
// delay used when scheduling its job. Any unit other than "hours" is
// treated as days; "1 day" is always exactly 24h regardless of DST.
func StepDelay(amount int, unit string) time.Duration {
	if unit == "hours" {
		return time.Duration(amount) * time.Hour
	}
	return time.Duration(amount) * 24 * time.Hour
}

// ValidateMXRecords checks if a domain has valid MX records
func ValidateMXRecords(email string) (bool, error) {
	parts := strings.Split(email, "@")
	if len(parts) < 2 {
		return false, fmt.Errorf("invalid email format")
	}

	domain := parts[1]
	mxRecords, err := net.LookupMX(domain)
	if err != nil {
		return false, err
	}

	return len(mxRecords) > 0, nil
}

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d.Hours() >= 24 {
		days := int(d.Hours() / 24)
		return fmt.Sprintf("%d days", days)
	} else if d.Hours() >= 1 {
		return fmt.Sprintf("%.1f hours", d.Hours())
	} else if d.Minutes() >= 1 {
		return fmt.Sprintf("%.1f minutes", d.Minutes())
	}
	return fmt.Sprintf("%.0f seconds", d.Seconds())
}
