package vad

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ali8molaee/audio-recorder/internal/protocol"
)

// Event is the outcome of one wait for inbound traffic
type Event int

const (
	// EventUnit means a unit arrived before the timeout
	EventUnit Event = iota
	// EventIdle means the timeout elapsed with no traffic
	EventIdle
	// EventClosed means the unit channel was closed
	EventClosed
	// EventCancelled means the context was done
	EventCancelled
)

func (e Event) String() string {
	switch e {
	case EventUnit:
		return "unit"
	case EventIdle:
		return "idle"
	case EventClosed:
		return "closed"
	case EventCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Detector tracks silence on a single stream. It is owned by the goroutine
// that calls Next; Stats may be read concurrently.
type Detector struct {
	timeout time.Duration

	// Statistics
	totalUnits      uint64
	idlePeriods     uint64
	consecutiveIdle int
	lastActivity    time.Time

	mu sync.RWMutex
}

// DetectorStats represents silence detector statistics
type DetectorStats struct {
	Timeout         time.Duration `json:"timeout"`
	TotalUnits      uint64        `json:"total_units"`
	IdlePeriods     uint64        `json:"idle_periods"`
	ConsecutiveIdle int           `json:"consecutive_idle"`
	LastActivity    time.Time     `json:"last_activity"`
}

// NewDetector creates a detector with the given silence interval
func NewDetector(timeout time.Duration) (*Detector, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	return &Detector{
		timeout:      timeout,
		lastActivity: time.Now(),
	}, nil
}

// Next blocks until a unit arrives, the timeout elapses, units is closed or
// ctx is done. The timer starts fresh on every call.
func (d *Detector) Next(ctx context.Context, units <-chan protocol.Unit) (protocol.Unit, Event) {
	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case unit, ok := <-units:
		if !ok {
			return protocol.Unit{}, EventClosed
		}
		d.mu.Lock()
		d.totalUnits++
		d.consecutiveIdle = 0
		d.lastActivity = time.Now()
		d.mu.Unlock()
		return unit, EventUnit
	case <-timer.C:
		d.mu.Lock()
		d.idlePeriods++
		d.consecutiveIdle++
		d.mu.Unlock()
		return protocol.Unit{}, EventIdle
	case <-ctx.Done():
		return protocol.Unit{}, EventCancelled
	}
}

// ConsecutiveIdle returns the number of idle periods since the last unit or Reset
func (d *Detector) ConsecutiveIdle() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.consecutiveIdle
}

// Reset clears the consecutive idle counter
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.consecutiveIdle = 0
}

// Timeout returns the configured silence interval
func (d *Detector) Timeout() time.Duration {
	return d.timeout
}

// GetStats returns detector statistics
func (d *Detector) GetStats() DetectorStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return DetectorStats{
		Timeout:         d.timeout,
		TotalUnits:      d.totalUnits,
		IdlePeriods:     d.idlePeriods,
		ConsecutiveIdle: d.consecutiveIdle,
		LastActivity:    d.lastActivity,
	}
}
