package session

import (
	"fmt"
	"time"

	"groundtruth/pkg/platform/sentinel"
)

// ExpiredError reports a cached session that failed the freshness check.
// Callers reading the cache directly (no re-login) receive this; the Manager
// converts it into a fresh login instead.
type ExpiredError struct {
	Role string
	Age  time.Duration
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("session for role %q expired after %s", e.Role, e.Age.Round(time.Second))
}

// Is lets errors.Is(err, sentinel.ErrExpired) match.
func (e *ExpiredError) Is(target error) bool {
	return target == sentinel.ErrExpired
}
