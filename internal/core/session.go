package core

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session is one researcher's workspace: a set of files and their histories.
// All file operations hold mu, so tasks on the same session run one at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	files    *FileRegistry
	lastUsed atomic.Int64
}

func newSession(id string, historyDepth int, now time.Time) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: now,
		files:     NewFileRegistry(historyDepth),
	}
	s.touch(now)
	return s
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// LastUsed returns when the session was last accessed.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// SessionInfo is the public view of a session.
type SessionInfo struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"createdAt"`
	LastUsed  time.Time     `json:"lastUsed"`
	Files     []FileSummary `json:"files"`
}

// Info returns a listing of the session and its files.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make([]FileSummary, 0, s.files.Len())
	for _, name := range s.files.Names() {
		f, _ := s.files.Get(name)
		files = append(files, f.Summary())
	}
	return SessionInfo{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		LastUsed:  s.LastUsed(),
		Files:     files,
	}
}
