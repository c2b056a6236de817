// Package validation holds the pure field checks applied to records before
// they reach the store.
package validation

import (
	"strings"
	"time"

	"github.com/ukydev/car-rental/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// dateLayouts are tried in order when parsing a date field.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// IsValidID reports whether value is a 24 character hex object id.
func IsValidID(value string) bool {
	return primitive.IsValidObjectID(value)
}

// ParseDate parses a date string. Zone-less values are read as UTC.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// IsValidDate reports whether value parses to a calendar date.
func IsValidDate(value string) bool {
	_, ok := ParseDate(value)
	return ok
}

// IsValidRange reports whether start is strictly before end.
func IsValidRange(start, end time.Time) bool {
	return start.Before(end)
}

// IsValidDateRange parses both values and checks start < end.
func IsValidDateRange(start, end string) bool {
	s, ok := ParseDate(start)
	if !ok {
		return false
	}
	e, ok := ParseDate(end)
	if !ok {
		return false
	}
	return IsValidRange(s, e)
}

// IsValidStatus checks value against the closed status set. Matching is exact.
func IsValidStatus(value string) bool {
	return models.IsValidStatus(models.Status(value))
}

// StatusOrDefault returns Pending for an absent status.
func StatusOrDefault(value string, present bool) models.Status {
	if !present {
		return models.StatusPending
	}
	return models.Status(value)
}

// AllowedStatuses renders the status set for error messages, e.g. "Pending, Active, Completed".
func AllowedStatuses() string {
	names := make([]string, len(models.AllStatuses))
	for i, s := range models.AllStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// IsValidCategory reports whether value is non-empty once trimmed.
func IsValidCategory(value string) bool {
	return strings.TrimSpace(value) != ""
}
