package audio

import (
	"sync"

	"github.com/eapache/queue"
)

// sequence is the ordered chunk list of one client. Chunks are stored in a
// ring-buffer FIFO so appends and drains never shift the backing array.
type sequence struct {
	chunks *queue.Queue
	bytes  int
}

// Accumulator stores the raw binary frames received from each client until
// they are finalized. Sequences are keyed by an opaque string (the stream
// controller uses the connection id) and are independent of each other;
// insertion order equals arrival order.
type Accumulator struct {
	sequences map[string]*sequence
	mu        sync.Mutex
}

// PendingStats describes the not yet finalized data of one client
type PendingStats struct {
	Chunks int `json:"pending_chunks"`
	Bytes  int `json:"pending_bytes"`
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{
		sequences: make(map[string]*sequence),
	}
}

// Append adds a chunk to the end of the key's sequence, creating the
// sequence on first use. The accumulator takes ownership of chunk.
func (a *Accumulator) Append(key string, chunk []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq, exists := a.sequences[key]
	if !exists {
		seq = &sequence{chunks: queue.New()}
		a.sequences[key] = seq
	}
	seq.chunks.Add(chunk)
	seq.bytes += len(chunk)
}

// DrainAndClear removes and returns the key's whole sequence in arrival
// order. The key is left with an empty sequence; a second drain without
// intervening appends returns nil.
func (a *Accumulator) DrainAndClear(key string) [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq, exists := a.sequences[key]
	if !exists {
		return nil
	}
	delete(a.sequences, key)

	if seq.chunks.Length() == 0 {
		return nil
	}
	drained := make([][]byte, 0, seq.chunks.Length())
	for seq.chunks.Length() > 0 {
		drained = append(drained, seq.chunks.Remove().([]byte))
	}
	return drained
}

// IsNonEmpty reports whether the key has at least one pending chunk
func (a *Accumulator) IsNonEmpty(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq, exists := a.sequences[key]
	return exists && seq.chunks.Length() > 0
}

// Discard drops any pending chunks for the key without returning them
func (a *Accumulator) Discard(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sequences, key)
}

// Pending returns the number of chunks and bytes awaiting finalization
func (a *Accumulator) Pending(key string) PendingStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq, exists := a.sequences[key]
	if !exists {
		return PendingStats{}
	}
	return PendingStats{Chunks: seq.chunks.Length(), Bytes: seq.bytes}
}

// Clients returns the number of keys with a live sequence
func (a *Accumulator) Clients() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sequences)
}

// Concat joins drained chunks into one contiguous buffer, preserving order
func Concat(chunks [][]byte) []byte {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	out := make([]byte, 0, total)
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return out
}
