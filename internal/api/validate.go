package api

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var dateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// isISODateTime accepts ISO-8601 datetimes with an offset (RFC3339) or naive
// ones without a timezone.
func isISODateTime(s string) bool {
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return true
	}
	if _, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return true
	}
	return false
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// asInt validates that a JSON number carries no fractional part and returns
// it as an integer. JSON has only one number type, so integer fields arrive
// as float64.
func asInt(v float64) (int64, bool) {
	if math.Trunc(v) != v {
		return 0, false
	}
	return int64(v), true
}

// parseLimit reads a positive integer query parameter capped at max. Missing
// values return 0 (no limit / use default); malformed or out-of-range values
// record a field error.
func parseLimit(q url.Values, key string, max int, fe *fieldErrors) int {
	s := q.Get(key)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		fe.add(key, "must be a positive integer")
		return 0
	}
	if v > max {
		fe.add(key, "must be at most "+strconv.Itoa(max))
		return 0
	}
	return v
}

// optionalString validates presence-sensitive string fields: when the field
// is present it must be non-empty and at most maxLen runes (0 = unbounded).
func optionalString(val *string, path string, maxLen int, fe *fieldErrors) {
	if val == nil {
		return
	}
	if *val == "" {
		fe.add(path, "must not be empty")
		return
	}
	if maxLen > 0 && len([]rune(*val)) > maxLen {
		fe.add(path, "must be at most "+strconv.Itoa(maxLen)+" characters")
	}
}

// optionalNonNegInt validates an optional integer field that must be >= 0,
// returning the converted value.
func optionalNonNegInt(val *float64, path string, fe *fieldErrors) *int64 {
	if val == nil {
		return nil
	}
	n, ok := asInt(*val)
	if !ok {
		fe.add(path, "must be an integer")
		return nil
	}
	if n < 0 {
		fe.add(path, "must be non-negative")
		return nil
	}
	return &n
}

func optionalNonNegFloat(val *float64, path string, fe *fieldErrors) *float64 {
	if val == nil {
		return nil
	}
	if *val < 0 {
		fe.add(path, "must be non-negative")
		return nil
	}
	return val
}
