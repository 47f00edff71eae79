package auth

import (
	"errors"
	"testing"
	"time"
)

var lockoutNow = time.Date(2026, 10, 4, 9, 0, 0, 0, time.UTC)

func TestLockoutPolicy_LocksAtThreshold(t *testing.T) {
	p := DefaultLockoutPolicy()
	var s LockState

	for i := 1; i < p.Threshold; i++ {
		d := p.OnFailure(s, lockoutNow)
		if d.Locked {
			t.Fatalf("attempt %d: Locked = true before threshold", i)
		}
		if d.State.FailedAttempts != i {
			t.Fatalf("attempt %d: FailedAttempts = %d", i, d.State.FailedAttempts)
		}
		s = d.State
	}

	d := p.OnFailure(s, lockoutNow)
	if !d.Locked || !d.JustLocked {
		t.Fatalf("threshold attempt: Locked = %v, JustLocked = %v, want both true", d.Locked, d.JustLocked)
	}
	if want := lockoutNow.Add(15 * time.Minute); !d.State.LockedUntil.Equal(want) {
		t.Errorf("LockedUntil = %v, want %v", d.State.LockedUntil, want)
	}
	if d.Remaining != 15*time.Minute {
		t.Errorf("Remaining = %v, want 15m", d.Remaining)
	}

	var lerr *LockedError
	if !errors.As(d.Err(), &lerr) || !errors.Is(d.Err(), ErrRateLimited) {
		t.Errorf("Err() = %v, want *LockedError wrapping ErrRateLimited", d.Err())
	}
}

func TestLockoutPolicy_FailureWhileLockedDoesNotIncrement(t *testing.T) {
	p := DefaultLockoutPolicy()
	s := LockState{FailedAttempts: 5, LockedUntil: lockoutNow.Add(10 * time.Minute)}

	d := p.OnFailure(s, lockoutNow)
	if !d.Locked || d.JustLocked {
		t.Fatalf("Locked = %v, JustLocked = %v, want true/false", d.Locked, d.JustLocked)
	}
	if d.State != s {
		t.Errorf("State = %+v, want unchanged %+v", d.State, s)
	}
	if d.Remaining != 10*time.Minute {
		t.Errorf("Remaining = %v, want 10m", d.Remaining)
	}
}

func TestLockoutPolicy_ExpiredLockSelfHeals(t *testing.T) {
	p := DefaultLockoutPolicy()
	s := LockState{FailedAttempts: 5, LockedUntil: lockoutNow.Add(-time.Second)}

	if s.IsLocked(lockoutNow) {
		t.Fatal("IsLocked() = true for expired lock")
	}
	if got := p.Evaluate(s, lockoutNow); got != (LockState{}) {
		t.Errorf("Evaluate() = %+v, want zero state", got)
	}

	d := p.OnFailure(s, lockoutNow)
	if d.Locked {
		t.Fatal("Locked = true, want expired lock to reset first")
	}
	if d.State.FailedAttempts != 1 || !d.State.LockedUntil.IsZero() {
		t.Errorf("State = %+v, want Unlocked(1)", d.State)
	}
}

func TestLockoutPolicy_LockBoundaryIsExclusive(t *testing.T) {
	s := LockState{FailedAttempts: 5, LockedUntil: lockoutNow}

	if s.IsLocked(lockoutNow) {
		t.Error("IsLocked() = true at exactly LockedUntil")
	}
	if s.Remaining(lockoutNow) != 0 {
		t.Errorf("Remaining() = %v, want 0", s.Remaining(lockoutNow))
	}
}

func TestLockoutPolicy_OnSuccessResets(t *testing.T) {
	p := DefaultLockoutPolicy()
	if got := p.OnSuccess(); got != (LockState{}) {
		t.Errorf("OnSuccess() = %+v, want zero state", got)
	}
}

func TestLockoutPolicy_ZeroValueUsesDefaults(t *testing.T) {
	var p LockoutPolicy
	s := LockState{FailedAttempts: DefaultLockoutThreshold - 1}

	d := p.OnFailure(s, lockoutNow)
	if !d.JustLocked {
		t.Fatal("zero policy did not lock at default threshold")
	}
	if d.Remaining != DefaultLockoutDuration {
		t.Errorf("Remaining = %v, want %v", d.Remaining, DefaultLockoutDuration)
	}
}

func TestLockoutDecision_ErrNilWhenUnlocked(t *testing.T) {
	if err := (LockoutDecision{}).Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}
