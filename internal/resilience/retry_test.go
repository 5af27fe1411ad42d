package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("503"), 503)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("got %q, want ok", got)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	perm := errors.New("bad request")
	_, err := Retry(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
		calls++
		return 0, perm
	})
	if !errors.Is(err, perm) {
		t.Fatalf("err = %v, want %v", err, perm)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	p := fastPolicy(4)
	p.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	_, err := Retry(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("timeout"), 0)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
	if len(retried) != 3 || retried[0] != 1 || retried[2] != 3 {
		t.Fatalf("retried = %v, want [1 2 3]", retried)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 5, Initial: time.Hour, Max: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, p, func(context.Context) (int, error) {
			calls++
			return 0, NewTransientError(errors.New("busy"), 429)
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not stop after cancel")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestPolicyDelay_CappedAtMax(t *testing.T) {
	p := Policy{Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := p.delay(i); got != w {
			t.Errorf("delay(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestPolicyDelay_JitterBounds(t *testing.T) {
	p := Policy{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2, Jitter: 0.5}
	for range 100 {
		d := p.delay(0)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("delay %v outside jitter bounds", d)
		}
	}
}

func TestPolicyFrom(t *testing.T) {
	p := PolicyFrom(5, 100, 2000, 3, 0.1)
	if p.Attempts != 5 || p.Initial != 100*time.Millisecond || p.Max != 2*time.Second || p.Multiplier != 3 || p.Jitter != 0.1 {
		t.Fatalf("unexpected policy: %+v", p)
	}

	d := DefaultPolicy()
	p = PolicyFrom(0, 0, 0, 0, -1)
	if p.Attempts != d.Attempts || p.Initial != d.Initial || p.Jitter != d.Jitter {
		t.Fatalf("zero values should keep defaults: %+v", p)
	}
}
