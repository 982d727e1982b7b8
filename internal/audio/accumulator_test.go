package audio

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

func TestAccumulatorPreservesArrivalOrder(t *testing.T) {
	acc := NewAccumulator()

	acc.Append("abc", []byte{0x00, 0x01})
	acc.Append("abc", []byte{0x02})
	acc.Append("abc", []byte{0x03, 0x04, 0x05})

	chunks := acc.DrainAndClear("abc")
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}

	got := Concat(chunks)
	want := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestAccumulatorDrainClears(t *testing.T) {
	acc := NewAccumulator()
	acc.Append("abc", []byte("hello"))

	if !acc.IsNonEmpty("abc") {
		t.Fatal("Expected pending data before drain")
	}

	if chunks := acc.DrainAndClear("abc"); len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk on first drain, got %d", len(chunks))
	}

	if acc.IsNonEmpty("abc") {
		t.Error("Expected no pending data after drain")
	}
	if chunks := acc.DrainAndClear("abc"); chunks != nil {
		t.Errorf("Expected nil on second drain, got %d chunks", len(chunks))
	}

	// Chunks appended after a drain start a fresh sequence.
	acc.Append("abc", []byte("again"))
	chunks := acc.DrainAndClear("abc")
	if len(chunks) != 1 || string(chunks[0]) != "again" {
		t.Errorf("Expected only the new chunk, got %q", chunks)
	}
}

func TestAccumulatorClientsAreIndependent(t *testing.T) {
	acc := NewAccumulator()
	acc.Append("alice", []byte{1})
	acc.Append("bob", []byte{2, 2})

	if acc.Clients() != 2 {
		t.Errorf("Expected 2 clients, got %d", acc.Clients())
	}

	acc.DrainAndClear("alice")
	if !acc.IsNonEmpty("bob") {
		t.Error("Draining alice must not touch bob")
	}

	stats := acc.Pending("bob")
	if stats.Chunks != 1 || stats.Bytes != 2 {
		t.Errorf("Expected 1 chunk / 2 bytes for bob, got %+v", stats)
	}
}

func TestAccumulatorDiscard(t *testing.T) {
	acc := NewAccumulator()
	acc.Append("abc", []byte{1, 2, 3})
	acc.Discard("abc")

	if acc.IsNonEmpty("abc") {
		t.Error("Expected no pending data after discard")
	}
	if acc.Clients() != 0 {
		t.Errorf("Expected 0 clients after discard, got %d", acc.Clients())
	}
	if stats := acc.Pending("abc"); stats != (PendingStats{}) {
		t.Errorf("Expected zero stats, got %+v", stats)
	}

	// Discarding an unknown client is a no-op.
	acc.Discard("missing")
}

func TestAccumulatorConcurrentClients(t *testing.T) {
	acc := NewAccumulator()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			clientID := fmt.Sprintf("client-%d", id)
			for j := 0; j < 100; j++ {
				acc.Append(clientID, []byte{byte(j)})
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		chunks := acc.DrainAndClear(fmt.Sprintf("client-%d", i))
		if len(chunks) != 100 {
			t.Fatalf("Expected 100 chunks for client %d, got %d", i, len(chunks))
		}
		for j, chunk := range chunks {
			if chunk[0] != byte(j) {
				t.Errorf("Client %d chunk %d out of order: got %d", i, j, chunk[0])
				break
			}
		}
	}
}

func TestAccumulatorConcurrentDrainDeliversOnce(t *testing.T) {
	acc := NewAccumulator()
	for j := 0; j < 50; j++ {
		acc.Append("abc", []byte{byte(j)})
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chunks := acc.DrainAndClear("abc")
			mu.Lock()
			total += len(chunks)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 50 {
		t.Errorf("Expected chunks delivered exactly once (50 total), got %d", total)
	}
}
