package mission

import (
	"fmt"
	"strings"
)

// ResetMode controls when missions expire and how completed ones are handled.
type ResetMode int

const (
	// ResetPerMap clears missions when the map changes.
	ResetPerMap ResetMode = iota
	// ResetDaily expires missions at the end of each day.
	ResetDaily
	// ResetWeekly expires missions at the end of each week (Sunday).
	ResetWeekly
	// ResetMonthly expires missions at the end of each month.
	ResetMonthly
	// ResetInstant replaces a completed mission immediately.
	ResetInstant
)

// ParseResetMode converts a config string into a ResetMode.
func ParseResetMode(s string) (ResetMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "permap", "per_map", "map":
		return ResetPerMap, nil
	case "daily":
		return ResetDaily, nil
	case "weekly":
		return ResetWeekly, nil
	case "monthly":
		return ResetMonthly, nil
	case "instant":
		return ResetInstant, nil
	default:
		return ResetDaily, fmt.Errorf("mission: unknown reset mode %q", s)
	}
}

func (m ResetMode) String() string {
	switch m {
	case ResetPerMap:
		return "PerMap"
	case ResetDaily:
		return "Daily"
	case ResetWeekly:
		return "Weekly"
	case ResetMonthly:
		return "Monthly"
	case ResetInstant:
		return "Instant"
	default:
		return fmt.Sprintf("ResetMode(%d)", int(m))
	}
}

// HasExpiration reports whether missions under this mode carry an expiration
// timestamp and therefore need the periodic sweep timer.
func (m ResetMode) HasExpiration() bool {
	switch m {
	case ResetDaily, ResetWeekly, ResetMonthly:
		return true
	default:
		return false
	}
}
