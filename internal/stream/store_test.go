package stream

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/ali8molaee/audio-recorder/internal/audio"
)

func TestStoreRegisterLookup(t *testing.T) {
	store := NewStore()
	conn := newFakeConn()
	session := NewSession("abc", conn)

	if _, replaced := store.Register("abc", session); replaced {
		t.Error("Expected first registration not to replace")
	}

	got, exists := store.Lookup("abc")
	if !exists || got != session {
		t.Fatalf("Expected registered session, got %v (exists=%v)", got, exists)
	}
	if store.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", store.Count())
	}
	if session.ConnectionID == "" {
		t.Error("Expected a connection id")
	}
	if got.Conn() != conn {
		t.Error("Expected lookup to expose the connection handle")
	}
}

func TestStoreLastWriterWins(t *testing.T) {
	store := NewStore()
	first := NewSession("abc", nil)
	second := NewSession("abc", nil)

	store.Register("abc", first)
	previous, replaced := store.Register("abc", second)
	if !replaced || previous != first {
		t.Errorf("Expected first session to be replaced")
	}

	got, _ := store.Lookup("abc")
	if got != second {
		t.Error("Expected lookup to return the latest session")
	}
	if first.ConnectionID == second.ConnectionID {
		t.Error("Expected distinct connection ids")
	}
}

func TestStoreUnregisterIdempotent(t *testing.T) {
	store := NewStore()
	store.Register("abc", NewSession("abc", nil))

	store.Unregister("abc")
	store.Unregister("abc")
	store.Unregister("never-registered")

	if _, exists := store.Lookup("abc"); exists {
		t.Error("Expected session to be removed")
	}
	if store.Count() != 0 {
		t.Errorf("Expected 0 sessions, got %d", store.Count())
	}
}

func TestStoreUnregisterSessionKeepsReplacement(t *testing.T) {
	store := NewStore()
	first := NewSession("abc", nil)
	second := NewSession("abc", nil)

	store.Register("abc", first)
	store.Register("abc", second)

	if store.UnregisterSession(first) {
		t.Error("Expected replaced session not to unregister its successor")
	}
	if got, _ := store.Lookup("abc"); got != second {
		t.Error("Expected the newer session to stay registered")
	}

	if !store.UnregisterSession(second) {
		t.Error("Expected current session to be removed")
	}
	if _, exists := store.Lookup("abc"); exists {
		t.Error("Expected store to be empty")
	}
	if store.UnregisterSession(second) {
		t.Error("Expected second removal to report false")
	}
}

func TestStoreSessionsSorted(t *testing.T) {
	store := NewStore()
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		store.Register(id, NewSession(id, nil))
	}

	sessions := store.Sessions()
	if len(sessions) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(sessions))
	}
	for i, want := range []string{"alpha", "bravo", "charlie"} {
		if sessions[i].ClientID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, sessions[i].ClientID)
		}
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			clientID := fmt.Sprintf("client-%d", id)
			for j := 0; j < 100; j++ {
				store.Register(clientID, NewSession(clientID, nil))
				store.Lookup(clientID)
				_ = store.Sessions()
				store.Unregister(clientID)
			}
		}(i)
	}
	wg.Wait()

	if store.Count() != 0 {
		t.Errorf("Expected empty store, got %d", store.Count())
	}
}

func TestEmptyRecordJSON(t *testing.T) {
	data, err := json.Marshal(EmptyRecord())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"texts":[],"note":null}` {
		t.Errorf("Expected default record, got %s", data)
	}
}

func TestSessionRecord(t *testing.T) {
	session := NewSession("abc", newFakeConn())
	session.AppendText("first")
	session.AppendText("second")

	record := session.Record(audio.PendingStats{Chunks: 2, Bytes: 8})

	if record.ClientID != "abc" || record.RemoteAddr != "127.0.0.1:5555" {
		t.Errorf("Unexpected identity fields: %+v", record)
	}
	if record.PendingStats.Chunks != 2 || record.PendingStats.Bytes != 8 {
		t.Errorf("Unexpected pending stats: %+v", record.PendingStats)
	}
	if len(record.Texts) != 2 || record.Texts[1] != "second" {
		t.Errorf("Expected two texts, got %v", record.Texts)
	}
	if record.Note != nil {
		t.Errorf("Expected nil note, got %v", *record.Note)
	}

	// Snapshot must not alias session state.
	record.Texts[0] = "changed"
	if again := session.Record(audio.PendingStats{}); again.Texts[0] != "first" {
		t.Error("Record texts alias session storage")
	}

	session.SetNote("flagged")
	if note := session.Record(audio.PendingStats{}).Note; note == nil || *note != "flagged" {
		t.Errorf("Expected note 'flagged', got %v", note)
	}
	session.SetNote("")
	if note := session.Record(audio.PendingStats{}).Note; note != nil {
		t.Errorf("Expected note to be cleared, got %v", *note)
	}

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"client_id", "connection_id", "remote_addr", "connected_at", "pending_chunks", "pending_bytes", "texts", "note"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Expected key %q in %s", key, data)
		}
	}
}
