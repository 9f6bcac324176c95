// Package conversation holds per-session chat transcripts in process
// memory. Transcripts live only as long as the process: a restart loses
// all history. Stored length is unbounded; callers that talk to the
// model should use Window to keep prompts small.
package conversation

import "sync"

// Role tags one side of the dialogue.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Store maps a session key to its ordered transcript. Safe for
// concurrent use; appends for different sessions do not block each
// other beyond the shared map lock.
type Store struct {
	mu          sync.RWMutex
	transcripts map[string][]Turn
}

func NewStore() *Store {
	return &Store{transcripts: make(map[string][]Turn)}
}

// Append records a turn for the session, creating the transcript on
// first use. Turns are stored in call order; the store does not enforce
// role alternation.
func (s *Store) Append(sessionKey string, role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[sessionKey] = append(s.transcripts[sessionKey], Turn{Role: role, Content: content})
}

// Window returns the last max turns in original order, or the whole
// transcript if it is shorter. The result is a copy.
func (s *Store) Window(sessionKey string, max int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.transcripts[sessionKey]
	if len(arr) == 0 {
		return nil
	}
	if max <= 0 || max > len(arr) {
		max = len(arr)
	}
	out := make([]Turn, max)
	copy(out, arr[len(arr)-max:])
	return out
}

// History returns the full stored transcript as a copy, distinct from
// the bounded Window view.
func (s *Store) History(sessionKey string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.transcripts[sessionKey]
	if len(arr) == 0 {
		return nil
	}
	out := make([]Turn, len(arr))
	copy(out, arr)
	return out
}

// Clear removes the transcript entirely. A subsequent Append starts
// fresh.
func (s *Store) Clear(sessionKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transcripts, sessionKey)
}

// ActiveCount reports how many transcripts are currently held.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcripts)
}
