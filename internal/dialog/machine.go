package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tradecall/internal/extract"
	"tradecall/internal/gazetteer"
	"tradecall/internal/notify"
	"tradecall/internal/session"
	"tradecall/internal/urgency"
)

// Machine orchestrates the after-hours turn sequence:
//
//	greet -> ask suburb -> ask issue -> ask urgency -> close
//
// Each turn is one webhook round-trip; the only continuity is the session
// key. Stage transitions go through the store's compare-and-swap, which is
// what makes the COMPLETE-triggers-notification step survive duplicate
// webhook deliveries: exactly one delivery wins the final transition, and
// only the winner dispatches.

// LeadSink receives the finished lead exactly once per session.
type LeadSink interface {
	AfterHoursLead(ctx context.Context, lead notify.Lead)
}

type Machine struct {
	store     session.Store
	gaz       *gazetteer.Matcher
	extractor extract.Extractor
	urgency   *urgency.Classifier
	leads     LeadSink
	log       *slog.Logger

	// maxReprompts caps silent turns per session before the terminal
	// fallback message; the dialogue must not loop indefinitely.
	maxReprompts int
	now          func() time.Time
}

const defaultMaxReprompts = 3

func NewMachine(store session.Store, gaz *gazetteer.Matcher, ex extract.Extractor, uc *urgency.Classifier, leads LeadSink, log *slog.Logger) *Machine {
	return &Machine{
		store:        store,
		gaz:          gaz,
		extractor:    ex,
		urgency:      uc,
		leads:        leads,
		log:          log.With("component", "dialog"),
		maxReprompts: defaultMaxReprompts,
		now:          time.Now,
	}
}

// Turn is what the webhook layer renders back to the caller.
type Turn struct {
	// Session is non-nil while the dialogue continues; its key goes into
	// the next turn's action URL.
	Session *session.Session

	// Prompt is the text to speak this round-trip.
	Prompt string

	// Gather is true when another utterance is expected.
	Gather bool

	// Done is true when the call should end after the prompt.
	Done bool
}

// Begin creates a fresh session and returns the first gathering turn.
func (m *Machine) Begin(ctx context.Context, callerID string) (Turn, error) {
	s := session.New(callerID, m.now())
	if err := m.store.Put(ctx, s); err != nil {
		return Turn{}, fmt.Errorf("dialog: create session: %w", err)
	}
	m.log.Info("after-hours dialogue started", "session", s.Key, "caller", redact(callerID))
	return Turn{Session: s, Prompt: promptFor(s.Stage), Gather: true}, nil
}

// Resume handles one delivered turn. An unknown or expired key is a fresh
// start at the location stage, never an error: the platform cannot tell us
// "I lost your session" apart from "this is a new call".
func (m *Machine) Resume(ctx context.Context, key, callerID, speech string) (Turn, error) {
	s, err := m.store.Get(ctx, key)
	if err != nil {
		return Turn{}, fmt.Errorf("dialog: load session: %w", err)
	}
	if s == nil {
		s = session.New(callerID, m.now())
		if key != "" {
			s.Key = key
		}
		if err := m.store.Put(ctx, s); err != nil {
			return Turn{}, fmt.Errorf("dialog: recreate session: %w", err)
		}
		m.log.Info("session not found, restarting dialogue", "session", s.Key)
	}

	speech = strings.TrimSpace(speech)
	if speech == "" {
		return m.reprompt(ctx, s)
	}

	s.Transcripts = append(s.Transcripts, speech)

	switch s.Stage {
	case session.StageLocation:
		return m.handleLocation(ctx, s, speech)
	case session.StageIssue:
		return m.handleIssue(ctx, s, speech)
	case session.StageUrgency:
		return m.handleUrgency(ctx, s, speech)
	default:
		// A replayed turn for an already-complete session: close politely,
		// dispatch nothing.
		return Turn{Prompt: closingPrompt(s.Urgent), Done: true}, nil
	}
}

// reprompt repeats the current stage's question until the cap, then closes
// with the text-us fallback and discards the session.
func (m *Machine) reprompt(ctx context.Context, s *session.Session) (Turn, error) {
	s.Reprompts++
	if s.Reprompts > m.maxReprompts {
		if err := m.store.Delete(ctx, s.Key); err != nil {
			m.log.Warn("session delete failed", "session", s.Key, "err", err)
		}
		m.log.Info("dialogue abandoned after silent turns", "session", s.Key, "stage", s.Stage.String())
		return Turn{Prompt: terminalPrompt, Done: true}, nil
	}
	if err := m.store.Put(ctx, s); err != nil {
		return Turn{}, fmt.Errorf("dialog: persist reprompt: %w", err)
	}
	return Turn{Session: s, Prompt: "Sorry, I didn't catch that. " + promptFor(s.Stage), Gather: true}, nil
}

func (m *Machine) handleLocation(ctx context.Context, s *session.Session, speech string) (Turn, error) {
	if match := m.gaz.Match(speech); match != "" {
		s.Location = match
		s.LocationConfirmed = true
	} else {
		// Keep the raw words; downstream treats them as unconfirmed.
		s.Location = speech
		s.LocationConfirmed = false
	}

	next := *s
	next.Stage = session.StageIssue
	ok, err := m.store.Advance(ctx, &next, session.StageLocation)
	if err != nil {
		return Turn{}, fmt.Errorf("dialog: advance to issue: %w", err)
	}
	if !ok {
		return m.lostRace(ctx, s.Key)
	}
	return Turn{Session: &next, Prompt: promptFor(next.Stage), Gather: true}, nil
}

func (m *Machine) handleIssue(ctx context.Context, s *session.Session, speech string) (Turn, error) {
	rec := m.extractor.Extract(ctx, speech, prior(s))

	next := *s
	next.Stage = session.StageUrgency
	if rec.Name != "" {
		next.Name = rec.Name
	}
	next.Issue = rec.Issue
	if strings.TrimSpace(next.Issue) == "" {
		next.Issue = speech
	}
	next.UrgencyHint = rec.Urgency

	// The extractor sometimes hears the suburb more cleanly than the raw
	// turn did. Re-run the matcher on its guess and prefer it only when it
	// clears the bar; a confirmed location is never replaced by anything
	// less confident.
	if rec.Location != "" && !strings.EqualFold(rec.Location, next.Location) {
		if match := m.gaz.Match(rec.Location); match != "" {
			next.Location = match
			next.LocationConfirmed = true
		}
	}

	ok, err := m.store.Advance(ctx, &next, session.StageIssue)
	if err != nil {
		return Turn{}, fmt.Errorf("dialog: advance to urgency: %w", err)
	}
	if !ok {
		return m.lostRace(ctx, s.Key)
	}
	return Turn{Session: &next, Prompt: promptFor(next.Stage), Gather: true}, nil
}

func (m *Machine) handleUrgency(ctx context.Context, s *session.Session, speech string) (Turn, error) {
	next := *s
	next.Stage = session.StageComplete
	// The caller's answer to the emergency question is the primary
	// structured signal; the extractor's hint and the keyword scan over the
	// whole call back it up.
	next.Urgent = m.urgency.Classify(speech, "") ||
		m.urgency.Classify(next.UrgencyHint, strings.Join(s.Transcripts, " "))

	won, err := m.store.Advance(ctx, &next, session.StageUrgency)
	if err != nil {
		return Turn{}, fmt.Errorf("dialog: complete: %w", err)
	}
	if won {
		m.leads.AfterHoursLead(ctx, notify.Lead{
			CallerID:  next.CallerID,
			Name:      next.Name,
			Location:  next.Location,
			Confirmed: next.LocationConfirmed,
			Issue:     next.Issue,
			Urgent:    next.Urgent,
		})
		if err := m.store.Delete(ctx, next.Key); err != nil {
			m.log.Warn("session delete failed", "session", next.Key, "err", err)
		}
		m.log.Info("lead captured", "session", next.Key,
			"location", next.Location, "confirmed", next.LocationConfirmed, "urgent", next.Urgent)
	} else {
		m.log.Info("duplicate completion suppressed", "session", next.Key)
	}
	return Turn{Prompt: closingPrompt(next.Urgent), Done: true}, nil
}

// lostRace re-reads the session after a failed transition (a duplicate
// delivery advanced it first) and re-asks the now-current question.
func (m *Machine) lostRace(ctx context.Context, key string) (Turn, error) {
	s, err := m.store.Get(ctx, key)
	if err != nil {
		return Turn{}, fmt.Errorf("dialog: reload after race: %w", err)
	}
	if s == nil || s.Stage == session.StageComplete {
		return Turn{Prompt: closingPrompt(false), Done: true}, nil
	}
	return Turn{Session: s, Prompt: promptFor(s.Stage), Gather: true}, nil
}

// prior returns the transcripts before the current utterance; Resume has
// already appended the live turn.
func prior(s *session.Session) []string {
	if len(s.Transcripts) == 0 {
		return nil
	}
	return s.Transcripts[:len(s.Transcripts)-1]
}

func promptFor(stage session.Stage) string {
	switch stage {
	case session.StageLocation:
		return "Which suburb are you in?"
	case session.StageIssue:
		return "What's going wrong? Describe the problem for me."
	case session.StageUrgency:
		return "Is it an emergency that can't wait until the morning?"
	default:
		return closingPrompt(false)
	}
}

func closingPrompt(urgent bool) string {
	if urgent {
		return "Thanks, we've got your details and will get back to you as soon as possible. Goodbye."
	}
	return "Thanks, we've got your details and will call you back first thing. Goodbye."
}

const terminalPrompt = "Sorry, I'm having trouble hearing you. Please send us a text with your suburb and the problem, and we'll get right back to you. Goodbye."

func redact(number string) string {
	if len(number) <= 4 {
		return number
	}
	return "..." + number[len(number)-4:]
}
