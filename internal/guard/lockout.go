package guard

import (
	"sync"
	"time"

	"github.com/attaboy/siteadmin/internal/domain"
)

// ChallengeRegistry holds in-progress login sessions keyed by challenge ID.
// Expired entries are dropped when touched; there is no background sweeper.
type ChallengeRegistry struct {
	mu       sync.Mutex
	sessions map[string]domain.LoginAttempt
	now      func() time.Time
}

// NewChallengeRegistry creates an empty registry.
func NewChallengeRegistry() *ChallengeRegistry {
	return &ChallengeRegistry{
		sessions: make(map[string]domain.LoginAttempt),
		now:      time.Now,
	}
}

// Put stores a copy of the attempt under its challenge ID.
func (r *ChallengeRegistry) Put(attempt domain.LoginAttempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.sessions[attempt.ChallengeID] = attempt
}

// Get returns a copy of the attempt, or false when it is unknown or expired.
func (r *ChallengeRegistry) Get(challengeID string) (domain.LoginAttempt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.sessions[challengeID]
	if !ok {
		return domain.LoginAttempt{}, false
	}
	if attempt.Expired(r.now()) {
		delete(r.sessions, challengeID)
		return domain.LoginAttempt{}, false
	}
	return attempt, true
}

// Modify applies fn to the stored attempt atomically and keeps the result.
// It returns false when the challenge is unknown or expired.
func (r *ChallengeRegistry) Modify(challengeID string, fn func(*domain.LoginAttempt)) (domain.LoginAttempt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.sessions[challengeID]
	if !ok || attempt.Expired(r.now()) {
		delete(r.sessions, challengeID)
		return domain.LoginAttempt{}, false
	}
	fn(&attempt)
	r.sessions[challengeID] = attempt
	return attempt, true
}

// Delete forgets a challenge.
func (r *ChallengeRegistry) Delete(challengeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, challengeID)
}

// Len returns the number of live challenges.
func (r *ChallengeRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	return len(r.sessions)
}

func (r *ChallengeRegistry) sweepLocked() {
	now := r.now()
	for id, attempt := range r.sessions {
		if attempt.Expired(now) {
			delete(r.sessions, id)
		}
	}
}
