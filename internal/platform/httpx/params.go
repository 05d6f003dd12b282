package httpx

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// HeaderIdempotencyKey carries a client supplied request key.
const HeaderIdempotencyKey = "Idempotency-Key"

// ParseDate accepts either 2006-01-02 or RFC3339 and returns UTC.
func ParseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrBadRequest, raw)
	}
	return t.UTC(), nil
}

// QueryDate parses an optional date query parameter.
func QueryDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	return ParseDate(raw)
}

// QueryInt parses an optional integer query parameter.
func QueryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, name, raw)
	}
	return v, nil
}

// QueryDateEnd parses an optional inclusive upper bound. A bare date covers
// the whole day.
func QueryDateEnd(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC().Add(24*time.Hour - time.Nanosecond), nil
	}
	return ParseDate(raw)
}
