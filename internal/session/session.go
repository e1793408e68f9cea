package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage orders the after-hours dialogue. Transitions only move forward;
// stores enforce this with a compare-and-swap on the stored stage so a
// duplicate webhook delivery can never regress a session or dispatch twice.
type Stage int

const (
	StageLocation Stage = iota
	StageIssue
	StageUrgency
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageLocation:
		return "awaiting_location"
	case StageIssue:
		return "awaiting_issue"
	case StageUrgency:
		return "awaiting_urgency"
	case StageComplete:
		return "complete"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Session accumulates one after-hours dialogue across webhook round-trips.
// It is owned by the store; handlers work on a copy and persist via Put or
// Advance.
type Session struct {
	Key      string `json:"key"`
	CallerID string `json:"caller_id,omitempty"`

	Stage Stage `json:"stage"`

	// Transcripts is append-only, one entry per captured utterance.
	Transcripts []string `json:"transcripts,omitempty"`

	Name  string `json:"name,omitempty"`
	Issue string `json:"issue,omitempty"`

	// Location holds either a gazetteer-confirmed canonical name or the
	// caller's raw words. Once confirmed it is never overwritten by a
	// lower-confidence later guess.
	Location          string `json:"location,omitempty"`
	LocationConfirmed bool   `json:"location_confirmed,omitempty"`

	// UrgencyHint is the extractor's tri-state read, kept for the urgency
	// turn's classifier.
	UrgencyHint string `json:"urgency_hint,omitempty"`
	Urgent      bool   `json:"urgent,omitempty"`

	// Reprompts counts empty-speech turns; the machine caps these.
	Reprompts int `json:"reprompts,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// New builds a fresh session at the location stage. The key is a random
// UUID, so concurrent calls from one number cannot collide.
func New(callerID string, now time.Time) *Session {
	return &Session{
		Key:       uuid.NewString(),
		CallerID:  callerID,
		Stage:     StageLocation,
		CreatedAt: now,
	}
}

// Expired reports whether the session has outlived ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// Store is the only shared mutable structure in the system. Implementations
// must make Advance atomic per key; sessions are independent, so no
// cross-key coordination is required.
//
// Horizontal scaling beyond one process means swapping MemoryStore for
// RedisStore; nothing in the interface assumes locality.
type Store interface {
	// Get returns the stored session or nil when absent/expired.
	Get(ctx context.Context, key string) (*Session, error)

	// Put stores s unconditionally. Used to create fresh sessions and to
	// persist non-transition updates such as re-prompt counts.
	Put(ctx context.Context, s *Session) error

	// Advance persists s only if the stored session's stage still equals
	// from. A false return means a concurrent delivery won the transition;
	// the caller must not perform transition side effects.
	Advance(ctx context.Context, s *Session, from Stage) (bool, error)

	Delete(ctx context.Context, key string) error
}

// DefaultTTL bounds abandoned sessions; callers that hang up mid-dialogue
// never send another turn, so the sweep is the only reclamation path.
const DefaultTTL = 10 * time.Minute
