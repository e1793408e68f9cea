package notify

import (
	"sync"
	"time"
)

// DispatchLog is an append-only in-memory record of notification attempts,
// kept for operational visibility: channel failures never block the caller,
// so this is where they remain observable.

type Attempt struct {
	Channel string
	Target  string
	At      time.Time
	// Err is empty on success.
	Err string
}

type DispatchLog struct {
	mu       sync.Mutex
	attempts []Attempt
}

func NewDispatchLog() *DispatchLog { return &DispatchLog{} }

func (l *DispatchLog) Record(a Attempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, a)
}

// Attempts returns a copy of the recorded attempts, oldest first.
func (l *DispatchLog) Attempts() []Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Attempt, len(l.attempts))
	copy(out, l.attempts)
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
