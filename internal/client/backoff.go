package client

import "time"

// reconnectBaseDelay/reconnectMaxDelay implement spec.md §4.7's "exponential
// backoff doubling from 1 s to a cap of 30 s."
const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// defaultMaxReconnectAttempts bounds how many reconnect attempts are made
// before ReconnectFailed is raised (spec.md §4.7/§7). The source leaves the
// exact count unspecified beyond "a configured maximum"; ten attempts (the
// last five each waiting the full 30s cap) gives roughly three minutes of retry
// budget before giving up, a reasonable default for a collaborative editor
// session.
const defaultMaxReconnectAttempts = 10

// reconnectDelay returns the backoff delay before reconnect attempt number
// attempt (1-indexed): 1s, 2s, 4s, 8s, 16s, capped at 30s thereafter.
func reconnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := reconnectBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= reconnectMaxDelay {
			return reconnectMaxDelay
		}
	}
	return delay
}
