package lifecycle

import (
	"fmt"
	"strings"

	"github.com/ukydev/car-rental/internal/models"
)

// TransitionPolicy decides which status changes an update may make.
type TransitionPolicy string

const (
	// PolicyForward allows Pending -> Active -> Completed one step at a time.
	PolicyForward TransitionPolicy = "forward"
	// PolicyOpen allows any status to be replaced by any other.
	PolicyOpen TransitionPolicy = "open"
)

// ParseTransitionPolicy parses a policy name; empty means PolicyForward.
func ParseTransitionPolicy(s string) (TransitionPolicy, error) {
	switch TransitionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyForward:
		return PolicyForward, nil
	case PolicyOpen:
		return PolicyOpen, nil
	default:
		return "", fmt.Errorf("unknown status policy %q (want forward or open)", s)
	}
}

// Allows reports whether a record may move from one status to another.
func (p TransitionPolicy) Allows(from, to models.Status) bool {
	if p == PolicyOpen {
		return true
	}
	return from.CanAdvanceTo(to)
}
