package vad

import (
	"context"
	"testing"
	"time"

	"github.com/ali8molaee/audio-recorder/internal/protocol"
)

func TestNewDetectorValidation(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		wantErr bool
	}{
		{"valid", 5 * time.Second, false},
		{"sub-second", 100 * time.Millisecond, false},
		{"zero", 0, true},
		{"negative", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDetector(tt.timeout)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewDetector() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && d.Timeout() != tt.timeout {
				t.Errorf("Expected timeout %v, got %v", tt.timeout, d.Timeout())
			}
		})
	}
}

func TestNextReturnsUnit(t *testing.T) {
	d, _ := NewDetector(time.Second)
	units := make(chan protocol.Unit, 1)
	units <- protocol.Unit{Kind: protocol.KindBinary, Data: []byte{1}}

	unit, event := d.Next(context.Background(), units)
	if event != EventUnit {
		t.Fatalf("Expected EventUnit, got %v", event)
	}
	if unit.Kind != protocol.KindBinary {
		t.Errorf("Expected binary unit, got %v", unit.Kind)
	}
	if stats := d.GetStats(); stats.TotalUnits != 1 {
		t.Errorf("Expected 1 unit, got %d", stats.TotalUnits)
	}
}

func TestNextIdle(t *testing.T) {
	d, _ := NewDetector(20 * time.Millisecond)
	units := make(chan protocol.Unit)

	start := time.Now()
	_, event := d.Next(context.Background(), units)
	if event != EventIdle {
		t.Fatalf("Expected EventIdle, got %v", event)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Idle fired early after %v", elapsed)
	}

	_, _ = d.Next(context.Background(), units)
	if d.ConsecutiveIdle() != 2 {
		t.Errorf("Expected 2 consecutive idle periods, got %d", d.ConsecutiveIdle())
	}
}

func TestUnitResetsIdleCount(t *testing.T) {
	d, _ := NewDetector(10 * time.Millisecond)
	units := make(chan protocol.Unit, 1)

	d.Next(context.Background(), units)
	if d.ConsecutiveIdle() != 1 {
		t.Fatalf("Expected 1 consecutive idle period, got %d", d.ConsecutiveIdle())
	}

	units <- protocol.Unit{Kind: protocol.KindBinary}
	d.Next(context.Background(), units)
	if d.ConsecutiveIdle() != 0 {
		t.Errorf("Expected idle count reset by unit, got %d", d.ConsecutiveIdle())
	}

	d.Next(context.Background(), units)
	d.Reset()
	if d.ConsecutiveIdle() != 0 {
		t.Errorf("Expected idle count reset, got %d", d.ConsecutiveIdle())
	}
	if stats := d.GetStats(); stats.IdlePeriods != 2 {
		t.Errorf("Expected 2 idle periods total, got %d", stats.IdlePeriods)
	}
}

func TestTimerRestartsPerUnit(t *testing.T) {
	timeout := 60 * time.Millisecond
	d, _ := NewDetector(timeout)
	units := make(chan protocol.Unit)

	// Units arriving faster than the timeout must never produce an idle event.
	go func() {
		for i := 0; i < 5; i++ {
			time.Sleep(timeout / 4)
			units <- protocol.Unit{Kind: protocol.KindBinary}
		}
	}()

	for i := 0; i < 5; i++ {
		if _, event := d.Next(context.Background(), units); event != EventUnit {
			t.Fatalf("Iteration %d: expected EventUnit, got %v", i, event)
		}
	}
}

func TestNextClosed(t *testing.T) {
	d, _ := NewDetector(time.Second)
	units := make(chan protocol.Unit)
	close(units)

	if _, event := d.Next(context.Background(), units); event != EventClosed {
		t.Errorf("Expected EventClosed, got %v", event)
	}
}

func TestNextCancelled(t *testing.T) {
	d, _ := NewDetector(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, event := d.Next(ctx, make(chan protocol.Unit)); event != EventCancelled {
		t.Errorf("Expected EventCancelled, got %v", event)
	}
}

func TestEventString(t *testing.T) {
	if EventIdle.String() != "idle" {
		t.Errorf("Expected idle, got %s", EventIdle.String())
	}
	if Event(9).String() != "event(9)" {
		t.Errorf("Expected event(9), got %s", Event(9).String())
	}
}
