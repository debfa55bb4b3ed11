package pagination

import (
	"context"
	"testing"
	"time"
)

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	if policy.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", policy.MaxAttempts)
	}
	if policy.BaseDelay != 2*time.Second {
		t.Errorf("BaseDelay = %v, want 2s", policy.BaseDelay)
	}
	if policy.MaxBackoff != 0 {
		t.Errorf("MaxBackoff = %v, want 0 (uncapped)", policy.MaxBackoff)
	}
	if policy.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", policy.BackoffMultiplier)
	}
}

func TestRetryContext_Doubling(t *testing.T) {
	rc := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, BackoffMultiplier: 2}.NewRetryContext()

	if rc.Attempt != 1 {
		t.Fatalf("Attempt = %d, want 1", rc.Attempt)
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, d := range want {
		if rc.Delay != d {
			t.Errorf("attempt %d: Delay = %v, want %v", i+1, rc.Delay, d)
		}
		if rc.Exhausted() != (i == len(want)-1) {
			t.Errorf("attempt %d: Exhausted() = %v", i+1, rc.Exhausted())
		}
		rc.Next()
	}
}

func TestRetryContext_MaxBackoff(t *testing.T) {
	rc := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxBackoff: 3 * time.Second}.NewRetryContext()

	rc.Next() // 2s
	rc.Next() // capped at 3s
	if rc.Delay != 3*time.Second {
		t.Errorf("Delay = %v, want 3s", rc.Delay)
	}
	rc.Next()
	if rc.Delay != 3*time.Second {
		t.Errorf("Delay = %v, want 3s", rc.Delay)
	}
}

func TestRetryPolicy_Normalize(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 0, BaseDelay: -time.Second}.normalize()

	if p.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", p.MaxAttempts)
	}
	if p.BaseDelay != 0 {
		t.Errorf("BaseDelay = %v, want 0", p.BaseDelay)
	}
	if p.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", p.BackoffMultiplier)
	}
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := sleepContext(ctx, 10*time.Second)
	duration := time.Since(start)

	if err == nil {
		t.Fatal("Expected context error")
	}
	if duration > 2*time.Second {
		t.Errorf("sleepContext should return on cancel, took %v", duration)
	}
}

func TestSleepContext_Elapses(t *testing.T) {
	if err := sleepContext(context.Background(), 5*time.Millisecond); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
