package postgres

import (
	"strings"
	"time"
)

// RetryPolicy decides what happens to a task after a failed attempt.
// Retryable classifies the failure; a non-retryable failure goes straight
// to terminal failed without consuming the remaining attempts. Delay
// returns how far into the future the next attempt is pushed, given the
// attempt number just recorded (1 for the first failure).
type RetryPolicy struct {
	Retryable func(err error) bool
	Delay     func(retryCount int) time.Duration
}

// DefaultRetryPolicy retries every failure immediately: the task returns
// to pending with its scheduled time untouched.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retryable: func(error) bool { return true },
		Delay:     func(int) time.Duration { return 0 },
	}
}

// TieredBackoff builds a delay function from escalating tiers: the first
// failure waits tiers[0], the second tiers[1], and every failure past the
// last tier keeps waiting the final tier's duration.
func TieredBackoff(tiers ...time.Duration) func(int) time.Duration {
	return func(retryCount int) time.Duration {
		if len(tiers) == 0 {
			return 0
		}
		if retryCount < 1 {
			retryCount = 1
		}
		if retryCount > len(tiers) {
			return tiers[len(tiers)-1]
		}
		return tiers[retryCount-1]
	}
}

// TransientOnly treats timeout and rate-limit style failures as retryable
// and everything else as permanent.
func TransientOnly(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "timeout"):
		return true
	case strings.Contains(msg, "timed out"):
		return true
	case strings.Contains(msg, "rate limit"):
		return true
	case strings.Contains(msg, "too many requests"):
		return true
	case strings.Contains(msg, "temporarily"):
		return true
	case strings.Contains(msg, "connection reset"):
		return true
	}

	return false
}
