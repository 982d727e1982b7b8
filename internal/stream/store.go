package stream

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ali8molaee/audio-recorder/internal/audio"
)

// Session is the registry entry of one live connection. It references the
// connection without owning it; the controller serving the connection closes it.
type Session struct {
	ClientID     string
	ConnectionID string
	RemoteAddr   string
	ConnectedAt  time.Time

	conn  Conn
	texts []string
	note  *string
	mu    sync.RWMutex
}

// Record is the JSON view of a session returned by the lookup API. Fields
// other than texts and note are omitted for clients without a live session.
type Record struct {
	ClientID     string     `json:"client_id,omitempty"`
	ConnectionID string     `json:"connection_id,omitempty"`
	RemoteAddr   string     `json:"remote_addr,omitempty"`
	ConnectedAt  *time.Time `json:"connected_at,omitempty"`
	*audio.PendingStats
	Texts []string `json:"texts"`
	Note  *string  `json:"note"`
}

// NewSession creates a session for conn with a fresh connection identifier.
// conn may be nil for sessions that are not backed by a connection.
func NewSession(clientID string, conn Conn) *Session {
	remoteAddr := ""
	if conn != nil {
		if addr := conn.RemoteAddr(); addr != nil {
			remoteAddr = addr.String()
		}
	}
	return &Session{
		ClientID:     clientID,
		ConnectionID: uuid.NewString(),
		RemoteAddr:   remoteAddr,
		ConnectedAt:  time.Now(),
		conn:         conn,
		texts:        make([]string, 0),
	}
}

// Conn returns the connection handle of the session
func (s *Session) Conn() Conn {
	return s.conn
}

// AppendText records a transcription result
func (s *Session) AppendText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
}

// SetNote records the latest problem seen by the session. An empty note
// clears it.
func (s *Session) SetNote(note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if note == "" {
		s.note = nil
		return
	}
	s.note = &note
}

// Record returns a snapshot of the session
func (s *Session) Record(pending audio.PendingStats) Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	connectedAt := s.ConnectedAt
	texts := make([]string, len(s.texts))
	copy(texts, s.texts)

	var note *string
	if s.note != nil {
		value := *s.note
		note = &value
	}

	return Record{
		ClientID:     s.ClientID,
		ConnectionID: s.ConnectionID,
		RemoteAddr:   s.RemoteAddr,
		ConnectedAt:  &connectedAt,
		PendingStats: &pending,
		Texts:        texts,
		Note:         note,
	}
}

// EmptyRecord is the lookup result for a client without a live session
func EmptyRecord() Record {
	return Record{Texts: []string{}}
}

// Store is the registry of live sessions keyed by client identifier
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// Register inserts the session, replacing any session already registered
// under the same client identifier. The replaced session is returned.
func (s *Store) Register(clientID string, session *Session) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, replaced := s.sessions[clientID]
	s.sessions[clientID] = session
	return previous, replaced
}

// Lookup returns the session registered for the client
func (s *Store) Lookup(clientID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[clientID]
	return session, exists
}

// Unregister removes the client's entry. Removing an absent client is a no-op.
func (s *Store) Unregister(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, clientID)
}

// UnregisterSession removes the client's entry only if it still is session.
// It reports whether the entry was removed.
func (s *Store) UnregisterSession(session *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, exists := s.sessions[session.ClientID]; !exists || current != session {
		return false
	}
	delete(s.sessions, session.ClientID)
	return true
}

// Count returns the number of registered sessions
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sessions returns a snapshot of all registered sessions ordered by client id
func (s *Store) Sessions() []*Session {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ClientID < sessions[j].ClientID
	})
	return sessions
}
