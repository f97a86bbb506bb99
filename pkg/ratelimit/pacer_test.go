package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewPacer_ZeroDelayNeverWaits(t *testing.T) {
	p := NewPacer(0, zerolog.Nop())

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() failed: %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("zero-delay pacer waited %v", elapsed)
	}
	if p.Delay() != 0 {
		t.Errorf("Delay() = %v, want 0", p.Delay())
	}
}

func TestPacer_SpacesRequests(t *testing.T) {
	delay := 30 * time.Millisecond
	p := NewPacer(delay, zerolog.Nop())

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() failed: %v", err)
		}
	}
	elapsed := time.Since(start)

	// Every wait, the first included, lasts the full delay.
	if elapsed < 3*delay {
		t.Errorf("3 paced calls took %v, want at least %v", elapsed, 3*delay)
	}
}

func TestPacer_FirstRequestIsPaced(t *testing.T) {
	delay := 40 * time.Millisecond
	p := NewPacer(delay, zerolog.Nop())

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}

	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("first Wait returned after %v, want roughly %v", elapsed, delay)
	}
}

func TestPacer_WaitsFullDelayAfterSlowRequest(t *testing.T) {
	delay := 40 * time.Millisecond
	p := NewPacer(delay, zerolog.Nop())

	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}

	// The request itself outlasts the delay.
	time.Sleep(3 * delay)

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("Wait after a slow request took %v, want at least %v", elapsed, delay)
	}
}

func TestPacer_CancelledDuringWait(t *testing.T) {
	p := NewPacer(time.Hour, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := p.Wait(ctx); err == nil {
		t.Error("Expected error when the context expires during the wait")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait returned after %v, want it to stop with the context", elapsed)
	}
}

func TestPacer_ContextCancelled(t *testing.T) {
	p := NewPacer(time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestPacer_Delay(t *testing.T) {
	p := NewPacer(500*time.Millisecond, zerolog.Nop())
	if p.Delay() != 500*time.Millisecond {
		t.Errorf("Delay() = %v, want 500ms", p.Delay())
	}
}
