package gonats

import (
	"math"
	"math/rand"
	"time"
)

// ReconnectPolicy controls the delay schedule of the reconnection
// loop. The delay for attempt n (1-indexed) is
//
//	clamp(base + uniform(-Jitter, +Jitter)*base, 0, MaxDelay)
//
// with base = InitialDelay * Multiplier^(n-1).
type ReconnectPolicy struct {
	Enabled bool
	// MaxAttempts bounds the loop; -1 means unlimited.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Jitter is the symmetric relative jitter, clamped to [0, 1].
	Jitter float64
	// Multiplier is the exponential growth factor, clamped to >= 1.
	Multiplier float64

	// Rand supplies the jitter source; nil uses the shared one.
	// Tests seed it for deterministic schedules.
	Rand *rand.Rand
}

// DefaultReconnect is the policy used when none is configured.
func DefaultReconnect() ReconnectPolicy {
	return ReconnectPolicy{
		Enabled:      true,
		MaxAttempts:  60,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Jitter:       0.10,
		Multiplier:   2.0,
	}
}

// DisabledReconnect never retries.
func DisabledReconnect() ReconnectPolicy {
	p := DefaultReconnect()
	p.Enabled = false
	return p
}

// AggressiveReconnect retries forever with short delays.
func AggressiveReconnect() ReconnectPolicy {
	return ReconnectPolicy{
		Enabled:      true,
		MaxAttempts:  -1,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Jitter:       0.2,
		Multiplier:   2.0,
	}
}

// ConservativeReconnect retries a few times with long delays.
func ConservativeReconnect() ReconnectPolicy {
	return ReconnectPolicy{
		Enabled:      true,
		MaxAttempts:  10,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Jitter:       0.1,
		Multiplier:   2.0,
	}
}

func (p ReconnectPolicy) jitter() float64 {
	return math.Min(math.Max(p.Jitter, 0), 1)
}

func (p ReconnectPolicy) multiplier() float64 {
	return math.Max(p.Multiplier, 1)
}

// NextDelay computes the sleep before attempt n (1-indexed).
func (p ReconnectPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(p.InitialDelay) * math.Pow(p.multiplier(), float64(attempt-1))

	var u float64
	if p.Rand != nil {
		u = p.Rand.Float64()
	} else {
		u = rand.Float64()
	}
	jittered := base + (u*2-1)*p.jitter()*base

	if max := float64(p.MaxDelay); jittered > max {
		jittered = max
	}
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}

// ShouldContinue reports whether attempt n (1-indexed) may proceed.
func (p ReconnectPolicy) ShouldContinue(attempt int) bool {
	if !p.Enabled {
		return false
	}
	if p.MaxAttempts < 0 {
		return true
	}
	return attempt < p.MaxAttempts
}
