package auth

import "time"

// Lockout defaults: five consecutive failures lock the account for fifteen minutes.
const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 15 * time.Minute
)

// LockState is the persisted lockout state of one account. A zero
// LockedUntil means Unlocked(FailedAttempts); otherwise the account is
// Locked(LockedUntil) until that instant passes.
type LockState struct {
	FailedAttempts int
	LockedUntil    time.Time
}

// IsLocked reports whether the lock is still in force at now.
func (s LockState) IsLocked(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// Remaining returns how long the lock has left at now, or zero.
func (s LockState) Remaining(now time.Time) time.Duration {
	if !s.IsLocked(now) {
		return 0
	}
	return s.LockedUntil.Sub(now)
}

// LockoutDecision is the outcome of a failed-login transition.
type LockoutDecision struct {
	// State is the state to persist.
	State LockState

	// Locked is true when the account is locked after this transition.
	Locked bool

	// JustLocked is true when this failure crossed the threshold.
	JustLocked bool

	// Remaining is the time left on the lock, zero when unlocked.
	Remaining time.Duration
}

// Err returns a *LockedError when the decision leaves the account locked.
func (d LockoutDecision) Err() error {
	if !d.Locked {
		return nil
	}
	return &LockedError{Until: d.State.LockedUntil, Remaining: d.Remaining}
}

// LockoutPolicy is the brute-force lockout state machine. All methods are
// pure; persistence is the credential store's job.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy returns the 5 attempts / 15 minutes policy.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: DefaultLockoutThreshold, Duration: DefaultLockoutDuration}
}

func (p LockoutPolicy) normalized() LockoutPolicy {
	if p.Threshold < 1 {
		p.Threshold = DefaultLockoutThreshold
	}
	if p.Duration <= 0 {
		p.Duration = DefaultLockoutDuration
	}
	return p
}

// Evaluate applies lazy expiry: a lock whose window has passed becomes
// Unlocked(0). Any other state is returned unchanged.
func (p LockoutPolicy) Evaluate(s LockState, now time.Time) LockState {
	if !s.LockedUntil.IsZero() && !now.Before(s.LockedUntil) {
		return LockState{}
	}
	return s
}

// OnFailure applies a failed login at now.
//
//   - Locked and still in force: unchanged, attempts are not incremented.
//   - Locked but expired: evaluated as Unlocked(0) first.
//   - Unlocked(n): becomes Unlocked(n+1), or Locked(now+Duration) when
//     n+1 reaches the threshold.
func (p LockoutPolicy) OnFailure(s LockState, now time.Time) LockoutDecision {
	p = p.normalized()

	if s.IsLocked(now) {
		return LockoutDecision{State: s, Locked: true, Remaining: s.Remaining(now)}
	}

	s = p.Evaluate(s, now)
	s.FailedAttempts++

	if s.FailedAttempts >= p.Threshold {
		s.LockedUntil = now.Add(p.Duration)
		return LockoutDecision{State: s, Locked: true, JustLocked: true, Remaining: p.Duration}
	}
	return LockoutDecision{State: s}
}

// OnSuccess returns the state after a successful login: Unlocked(0).
func (p LockoutPolicy) OnSuccess() LockState {
	return LockState{}
}
