package sync

import "time"

// calculateBackoff returns the delay before the next attempt of an operation
// that has failed `attempts` times: base doubled per attempt, capped.
func calculateBackoff(attempts int, base, cap time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	// 2^(attempts-1) * base without overflowing on large counters.
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= cap || delay <= 0 {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}
