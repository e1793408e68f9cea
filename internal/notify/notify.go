package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tradecall/internal/outcome"
)

// Lead is the final record of a completed after-hours dialogue.
// Name is only ever sourced from the extractor and is commonly empty;
// consumers must treat it as optional.
type Lead struct {
	CallerID string
	Name     string
	// Location is canonical when Confirmed, otherwise the caller's raw words.
	Location  string
	Confirmed bool
	Issue     string
	Urgent    bool
}

// MissedCall is one concluded live-dial attempt that did not reach a person.
// It exists only for the duration of the webhook that reported it.
type MissedCall struct {
	CallerID        string
	DialStatus      string
	DurationSeconds int
	AnsweredBy      string
}

// SMSSender sends one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// CallPlacer rings a number and speaks a message.
type CallPlacer interface {
	PlaceCall(ctx context.Context, to, message string) error
}

// EmailSender delivers one email. Implementations report not-configured as
// an error; the notifier logs it and moves on like any channel failure.
type EmailSender interface {
	Send(ctx context.Context, subject, body string) error
}

// Notifier fans a lead or missed call out to independent channels. There is
// no all-or-nothing guarantee: each channel has independent value, so a
// failed email must not suppress the owner's text alert. Channel failures
// are logged and recorded in the dispatch log, never returned.
type Notifier struct {
	SMS   SMSSender
	Voice CallPlacer
	Email EmailSender

	OwnerNumber  string
	BusinessName string

	Log        *slog.Logger
	Dispatches *DispatchLog
}

func New(sms SMSSender, voice CallPlacer, email EmailSender, ownerNumber, businessName string, log *slog.Logger) *Notifier {
	return &Notifier{
		SMS:          sms,
		Voice:        voice,
		Email:        email,
		OwnerNumber:  ownerNumber,
		BusinessName: businessName,
		Log:          log.With("component", "notify"),
		Dispatches:   NewDispatchLog(),
	}
}

// AfterHoursLead notifies the owner (text, email, urgent voice call) and
// thanks the caller by text. Called exactly once per completed session; the
// exactly-once guarantee lives in the session store transition, not here.
func (n *Notifier) AfterHoursLead(ctx context.Context, lead Lead) {
	ownerBody := n.leadText(lead)

	n.attempt("owner_sms", n.OwnerNumber, func() error {
		return n.SMS.SendSMS(ctx, n.OwnerNumber, ownerBody)
	})
	n.attempt("owner_email", n.OwnerNumber, func() error {
		if n.Email == nil {
			return errSkipped
		}
		subject := fmt.Sprintf("After-hours lead: %s", orUnknown(lead.Location))
		return n.Email.Send(ctx, subject, ownerBody)
	})
	if lead.Urgent {
		// Voice escalation goes last so the silent channels land even if
		// the call itself fails.
		n.attempt("owner_voice", n.OwnerNumber, func() error {
			return n.Voice.PlaceCall(ctx, n.OwnerNumber, n.leadSpoken(lead))
		})
	}
	if lead.CallerID != "" {
		n.attempt("caller_sms", lead.CallerID, func() error {
			return n.SMS.SendSMS(ctx, lead.CallerID,
				fmt.Sprintf("Thanks for calling %s. We've got your details and will be in touch first thing.", n.BusinessName))
		})
	}
}

// MissedCall texts the owner about a missed live dial and auto-replies to
// the caller when the number is addressable.
func (n *Notifier) MissedCall(ctx context.Context, ev MissedCall) {
	n.attempt("owner_sms", n.OwnerNumber, func() error {
		return n.SMS.SendSMS(ctx, n.OwnerNumber, n.missedText(ev))
	})
	n.attempt("owner_email", n.OwnerNumber, func() error {
		if n.Email == nil {
			return errSkipped
		}
		return n.Email.Send(ctx, "Missed call", n.missedText(ev))
	})
	if ev.CallerID != "" {
		n.attempt("caller_sms", ev.CallerID, func() error {
			return n.SMS.SendSMS(ctx, ev.CallerID,
				fmt.Sprintf("Sorry we missed your call to %s. Reply here with your suburb and the problem and we'll get back to you.", n.BusinessName))
		})
	}
}

// ForwardSMS relays an inbound text to the owner.
func (n *Notifier) ForwardSMS(ctx context.Context, from, body string) {
	msg := fmt.Sprintf("SMS from %s: %s", orUnknown(from), body)
	n.attempt("owner_sms", n.OwnerNumber, func() error {
		return n.SMS.SendSMS(ctx, n.OwnerNumber, msg)
	})
	n.attempt("owner_email", n.OwnerNumber, func() error {
		if n.Email == nil {
			return errSkipped
		}
		return n.Email.Send(ctx, "Inbound SMS", msg)
	})
}

var errSkipped = fmt.Errorf("channel not configured")

// attempt runs one channel, isolating its failure from the others.
func (n *Notifier) attempt(channel, target string, fn func() error) {
	err := fn()
	n.Dispatches.Record(Attempt{
		Channel: channel,
		Target:  target,
		At:      time.Now(),
		Err:     errString(err),
	})
	switch {
	case err == nil:
		n.Log.Info("notification sent", "channel", channel, "target", target)
	case err == errSkipped:
		n.Log.Debug("notification channel skipped", "channel", channel)
	default:
		n.Log.Error("notification failed", "channel", channel, "target", target, "err", err)
	}
}

func (n *Notifier) leadText(lead Lead) string {
	var b strings.Builder
	if lead.Urgent {
		b.WriteString("URGENT after-hours lead")
	} else {
		b.WriteString("After-hours lead")
	}
	if lead.Name != "" {
		fmt.Fprintf(&b, " from %s", lead.Name)
	}
	fmt.Fprintf(&b, "\nCaller: %s", orUnknown(lead.CallerID))
	loc := orUnknown(lead.Location)
	if lead.Location != "" && !lead.Confirmed {
		loc += " (unconfirmed)"
	}
	fmt.Fprintf(&b, "\nSuburb: %s", loc)
	fmt.Fprintf(&b, "\nIssue: %s", orUnknown(lead.Issue))
	return b.String()
}

func (n *Notifier) leadSpoken(lead Lead) string {
	loc := lead.Location
	if loc == "" {
		loc = "an unknown suburb"
	}
	return fmt.Sprintf("You have an urgent after-hours lead in %s. %s. Check your messages for the details.", loc, lead.Issue)
}

func (n *Notifier) missedText(ev MissedCall) string {
	reason := ev.DialStatus
	if strings.TrimSpace(ev.AnsweredBy) != "" && !strings.EqualFold(ev.AnsweredBy, "human") {
		reason = fmt.Sprintf("%s (answered by %s)", ev.DialStatus, ev.AnsweredBy)
	}
	return fmt.Sprintf("Missed call from %s (%s, %ds)", orUnknown(ev.CallerID), reason, ev.DurationSeconds)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

// FromOutcome builds a MissedCall event from classifier inputs.
func FromOutcome(callerID string, r outcome.DialResult) MissedCall {
	return MissedCall{
		CallerID:        callerID,
		DialStatus:      r.Status,
		DurationSeconds: r.DurationSeconds,
		AnsweredBy:      r.AnsweredBy,
	}
}
