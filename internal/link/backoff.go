package link

import "time"

// BackoffConfig controls the delay between reconnect requests.
//
// The zero value reconnects immediately on every disconnect. Attempts are
// never capped; only the delay between them is tunable.
type BackoffConfig struct {
	// InitialDelay is the wait before the first reconnect after a disconnect.
	InitialDelay time.Duration

	// MaxDelay caps delay growth. Zero means no cap.
	MaxDelay time.Duration

	// Multiplier scales the delay after each consecutive failure (default: 2.0).
	Multiplier float64
}

// ImmediateBackoff reconnects with no delay.
func ImmediateBackoff() BackoffConfig {
	return BackoffConfig{Multiplier: 2.0}
}

func (b BackoffConfig) withDefaults() BackoffConfig {
	if b.Multiplier < 1 {
		b.Multiplier = 2.0
	}
	if b.InitialDelay < 0 {
		b.InitialDelay = 0
	}
	if b.MaxDelay < 0 {
		b.MaxDelay = 0
	}
	return b
}

// grow returns the delay following d.
func (b BackoffConfig) grow(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * b.Multiplier)
	if b.MaxDelay > 0 && next > b.MaxDelay {
		next = b.MaxDelay
	}
	return next
}
