package artifact

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultGracePeriod bounds how long a completed job's artifact stays
// downloadable when no new job supersedes it.
const DefaultGracePeriod = 3 * time.Minute

// Artifact is one job's downloadable output pair with a revocable handle.
type Artifact struct {
	ID        string    `json:"id"`
	BaseName  string    `json:"baseName"`
	SRT       string    `json:"srt"`
	Plain     string    `json:"plain"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store owns at most one live artifact at a time. Exposing a new artifact
// revokes the previous one first; a grace timer revokes a stale artifact that
// was never superseded. The single current field is the only ownership
// tracking, so release happens exactly once per handle.
type Store struct {
	mu      sync.Mutex
	current *Artifact
	timer   *time.Timer
	grace   time.Duration
}

// NewStore creates a store with the given grace period, or the default when
// zero.
func NewStore(grace time.Duration) *Store {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Store{grace: grace}
}

// Expose registers a freshly built artifact as the single live one, assigns
// its handle, revokes any predecessor, and arms the grace timer.
func (s *Store) Expose(baseName, srt, plain string) Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revokeLocked()

	artifact := Artifact{
		ID:        uuid.NewString(),
		BaseName:  baseName,
		SRT:       srt,
		Plain:     plain,
		CreatedAt: time.Now().UTC(),
	}
	s.current = &artifact

	id := artifact.ID
	s.timer = time.AfterFunc(s.grace, func() {
		s.Revoke(id)
	})
	return artifact
}

// Get returns the live artifact when the handle is still valid.
func (s *Store) Get(id string) (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ID != id {
		return Artifact{}, false
	}
	return *s.current, true
}

// Revoke releases the artifact behind the handle. Revoking an already
// released or superseded handle is a no-op.
func (s *Store) Revoke(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ID != id {
		return false
	}
	s.revokeLocked()
	return true
}

// RevokeCurrent releases whatever artifact is live, if any.
func (s *Store) RevokeCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokeLocked()
}

// Current returns the live artifact's handle, empty when none is live.
func (s *Store) Current() (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Artifact{}, false
	}
	return *s.current, true
}

// revokeLocked drops the live artifact and stops its grace timer.
func (s *Store) revokeLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.current = nil
}
