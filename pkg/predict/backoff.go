package predict

import (
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffPolicy configures the retry delay growth for failed exchanges.
type BackoffPolicy struct {
	// IgnoredFailures is the number of initial consecutive failures that
	// retry without delay before the exponential schedule kicks in.
	IgnoredFailures int
	// BaseDelay is the first real delay.
	BaseDelay time.Duration
	// Multiplier grows the delay on each further failure.
	Multiplier float64
	// JitterFraction subtracts a uniform random share of the computed delay,
	// so synchronized clients spread out.
	JitterFraction float64
	// MaxDelay clamps the pre-jitter delay.
	MaxDelay time.Duration
	// ResetAfter is the idle window after which failure memory clears. A
	// success inside the window keeps the memory of prior failures.
	ResetAfter time.Duration
}

// DefaultBackoffPolicy mirrors a conservative service-protection profile.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		IgnoredFailures: 1,
		BaseDelay:       time.Second,
		Multiplier:      2,
		JitterFraction:  0.2,
		MaxDelay:        30 * time.Second,
		ResetAfter:      10 * time.Minute,
	}
}

// backoffState tracks consecutive failures and computes the next retry
// delay. The pre-jitter delay is monotonically non-decreasing across
// consecutive failures and resets only after the idle window elapses.
type backoffState struct {
	mu sync.Mutex

	policy BackoffPolicy
	exp    *backoff.ExponentialBackOff

	failures  int
	delay     time.Duration
	lastEvent time.Time
	// sticky marks that a computed wait is still in force even if an
	// unrelated exchange succeeds in the meantime.
	sticky bool

	now func() time.Time
	rng func() float64
}

func newBackoffState(policy BackoffPolicy) *backoffState {
	return &backoffState{
		policy: policy,
		exp:    newExponential(policy),
		now:    time.Now,
		rng:    rand.Float64,
	}
}

func newExponential(policy BackoffPolicy) *backoff.ExponentialBackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.BaseDelay
	exp.Multiplier = policy.Multiplier
	exp.MaxInterval = policy.MaxDelay
	// Jitter is applied by this wrapper so the pre-jitter delay stays
	// observable; the schedule itself must be deterministic.
	exp.RandomizationFactor = 0
	// The schedule never expires on its own; the reset window governs it.
	exp.MaxElapsedTime = 0
	exp.Reset()
	return exp
}

// RecordFailure notes one failed exchange and returns the jittered delay to
// wait before the retry.
func (b *backoffState) RecordFailure() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.maybeReset(now)
	b.lastEvent = now
	b.failures++
	b.sticky = true

	if b.failures <= b.policy.IgnoredFailures {
		return 0
	}
	next := b.exp.NextBackOff()
	if next == backoff.Stop {
		next = b.policy.MaxDelay
	}
	if next < b.delay {
		next = b.delay
	}
	b.delay = next
	return b.jitter(next)
}

// RecordSuccess notes a successful exchange. Failure memory survives a
// success unless the reset window has elapsed.
func (b *backoffState) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.maybeReset(now)
	b.lastEvent = now
	b.sticky = false
}

// Delay returns the current pre-jitter delay.
func (b *backoffState) Delay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.delay
}

// Failures returns the consecutive failure count.
func (b *backoffState) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *backoffState) maybeReset(now time.Time) {
	if b.lastEvent.IsZero() || b.policy.ResetAfter <= 0 {
		return
	}
	if now.Sub(b.lastEvent) >= b.policy.ResetAfter {
		b.failures = 0
		b.delay = 0
		b.sticky = false
		b.exp = newExponential(b.policy)
	}
}

func (b *backoffState) jitter(d time.Duration) time.Duration {
	if b.policy.JitterFraction <= 0 || d <= 0 {
		return d
	}
	cut := time.Duration(b.rng() * b.policy.JitterFraction * float64(d))
	return d - cut
}
