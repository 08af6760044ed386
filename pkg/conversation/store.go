package conversation

import "sync"

// Store is an append-only history with deferred clearing.
type Store struct {
	mu        sync.RWMutex
	messages  []Message
	clearMark int
	clearReq  bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{messages: make([]Message, 0, 16)}
}

// Append stores a copy of msg.
func (s *Store) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg.Clone())
}

// Clear drops all history immediately and cancels any pending clear request.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = s.messages[:0:0]
	s.clearReq = false
	s.clearMark = 0
}

// RequestClear marks the current history for removal at the next Update.
func (s *Store) RequestClear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearReq = true
	s.clearMark = len(s.messages)
}

// Update applies a pending clear. It reports whether anything was cleared.
// Messages appended after RequestClear are kept.
func (s *Store) Update() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.clearReq {
		return false
	}
	mark := s.clearMark
	if mark > len(s.messages) {
		mark = len(s.messages)
	}
	kept := make([]Message, len(s.messages)-mark)
	copy(kept, s.messages[mark:])
	s.messages = kept
	s.clearReq = false
	s.clearMark = 0
	return true
}

// Messages returns a deep copy of the history.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Since returns a deep copy of the messages from index from onwards.
func (s *Store) Since(from int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if from >= len(s.messages) {
		return []Message{}
	}
	out := make([]Message, 0, len(s.messages)-from)
	for _, m := range s.messages[from:] {
		out = append(out, m.Clone())
	}
	return out
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
