package enums

import (
	"fmt"
	"strings"
)

// MandateStatus tracks a recurring-payment authorization. Processor states
// outside the known set are kept verbatim (upper-cased).
type MandateStatus string

const (
	MandateStatusPending   MandateStatus = "PENDING"
	MandateStatusActive    MandateStatus = "ACTIVE"
	MandateStatusFailed    MandateStatus = "FAILED"
	MandateStatusCancelled MandateStatus = "CANCELLED"
	MandateStatusPaused    MandateStatus = "PAUSED"
)

var validMandateStatuses = []MandateStatus{
	MandateStatusPending,
	MandateStatusActive,
	MandateStatusFailed,
	MandateStatusCancelled,
	MandateStatusPaused,
}

// String implements fmt.Stringer.
func (m MandateStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is one of the lifecycle states this service drives.
func (m MandateStatus) IsValid() bool {
	for _, candidate := range validMandateStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// MandateStatusFromRemote normalizes a processor-reported state. Empty input maps to PENDING.
func MandateStatusFromRemote(state string) MandateStatus {
	normalized := strings.ToUpper(strings.TrimSpace(state))
	if normalized == "" {
		return MandateStatusPending
	}
	return MandateStatus(normalized)
}

// ParseMandateStatus converts raw filter input into a known MandateStatus.
func ParseMandateStatus(value string) (MandateStatus, error) {
	normalized := MandateStatus(strings.ToUpper(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid mandate status %q", value)
}
