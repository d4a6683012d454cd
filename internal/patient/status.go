package patient

import (
	"errors"
	"fmt"
)

// Status vocabulary
const (
	StatusInquiry    = "Inquiry"
	StatusOnboarding = "Onboarding"
	StatusActive     = "Active"
	StatusChurned    = "Churned"
)

// ErrUnknownStatus is returned when a written status is outside the vocabulary
var ErrUnknownStatus = errors.New("unknown status")

// Statuses lists the vocabulary in form order
func Statuses() []string {
	return []string{StatusInquiry, StatusOnboarding, StatusActive, StatusChurned}
}

// IsStatus reports whether s belongs to the vocabulary
func IsStatus(s string) bool {
	switch s {
	case StatusInquiry, StatusOnboarding, StatusActive, StatusChurned:
		return true
	}
	return false
}

// ValidateStatuses checks every entry against the vocabulary
func ValidateStatuses(statuses []string) error {
	for _, s := range statuses {
		if !IsStatus(s) {
			return fmt.Errorf("%w: %q", ErrUnknownStatus, s)
		}
	}
	return nil
}
