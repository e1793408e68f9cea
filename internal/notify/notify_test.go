package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type fakeSMS struct {
	sent map[string]string
	fail map[string]bool
}

func newFakeSMS() *fakeSMS {
	return &fakeSMS{sent: map[string]string{}, fail: map[string]bool{}}
}

func (f *fakeSMS) SendSMS(_ context.Context, to, body string) error {
	if f.fail[to] {
		return errors.New("sms boom")
	}
	f.sent[to] = body
	return nil
}

type fakeVoice struct {
	calls map[string]string
	err   error
}

func (f *fakeVoice) PlaceCall(_ context.Context, to, message string) error {
	if f.err != nil {
		return f.err
	}
	if f.calls == nil {
		f.calls = map[string]string{}
	}
	f.calls[to] = message
	return nil
}

type fakeEmail struct {
	subjects []string
	err      error
}

func (f *fakeEmail) Send(_ context.Context, subject, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	return nil
}

func newNotifier(sms *fakeSMS, voice *fakeVoice, email EmailSender) *Notifier {
	return New(sms, voice, email, "+15550009999", "Vale Plumbing", slog.Default())
}

func TestAfterHoursLead_UrgentFansOutAllChannels(t *testing.T) {
	sms := newFakeSMS()
	voice := &fakeVoice{}
	email := &fakeEmail{}
	n := newNotifier(sms, voice, email)

	n.AfterHoursLead(context.Background(), Lead{
		CallerID:  "+15551234567",
		Location:  "Canley Vale",
		Confirmed: true,
		Issue:     "burst pipe",
		Urgent:    true,
	})

	if !strings.Contains(sms.sent["+15550009999"], "URGENT") {
		t.Fatalf("owner sms missing urgency: %q", sms.sent["+15550009999"])
	}
	if !strings.Contains(sms.sent["+15551234567"], "Vale Plumbing") {
		t.Fatalf("caller sms missing business name: %q", sms.sent["+15551234567"])
	}
	if len(email.subjects) != 1 {
		t.Fatalf("expected 1 email, got %d", len(email.subjects))
	}
	if !strings.Contains(voice.calls["+15550009999"], "Canley Vale") {
		t.Fatalf("voice escalation missing location: %q", voice.calls["+15550009999"])
	}
}

func TestAfterHoursLead_EmailFailureDoesNotBlockSMS(t *testing.T) {
	sms := newFakeSMS()
	n := newNotifier(sms, &fakeVoice{}, &fakeEmail{err: errors.New("smtp down")})

	n.AfterHoursLead(context.Background(), Lead{CallerID: "+1555", Issue: "leak", Urgent: false})

	if _, ok := sms.sent["+15550009999"]; !ok {
		t.Fatalf("owner sms must still be sent when email fails")
	}
	var failed bool
	for _, a := range n.Dispatches.Attempts() {
		if a.Channel == "owner_email" && a.Err != "" {
			failed = true
		}
	}
	if !failed {
		t.Fatalf("email failure must be recorded in the dispatch log")
	}
}

func TestAfterHoursLead_NonUrgentSkipsVoice(t *testing.T) {
	voice := &fakeVoice{}
	n := newNotifier(newFakeSMS(), voice, nil)

	n.AfterHoursLead(context.Background(), Lead{CallerID: "+1555", Issue: "quote for hot water system"})

	if len(voice.calls) != 0 {
		t.Fatalf("non-urgent lead must not place a voice call")
	}
}

func TestAfterHoursLead_WithheldCallerSkipsCallerSMS(t *testing.T) {
	sms := newFakeSMS()
	n := newNotifier(sms, &fakeVoice{}, nil)

	n.AfterHoursLead(context.Background(), Lead{CallerID: "", Issue: "leak"})

	if len(sms.sent) != 1 {
		t.Fatalf("expected only the owner sms, got %v", sms.sent)
	}
}

func TestMissedCall(t *testing.T) {
	sms := newFakeSMS()
	n := newNotifier(sms, &fakeVoice{}, nil)

	n.MissedCall(context.Background(), MissedCall{
		CallerID:        "+15551234567",
		DialStatus:      "no-answer",
		DurationSeconds: 0,
	})

	if !strings.Contains(sms.sent["+15550009999"], "Missed call from +15551234567") {
		t.Fatalf("owner missed-call sms: %q", sms.sent["+15550009999"])
	}
	if !strings.Contains(sms.sent["+15551234567"], "Sorry we missed your call") {
		t.Fatalf("caller auto-reply: %q", sms.sent["+15551234567"])
	}
}

func TestMissedCall_OwnerSMSFailureStillRepliesToCaller(t *testing.T) {
	sms := newFakeSMS()
	sms.fail["+15550009999"] = true
	n := newNotifier(sms, &fakeVoice{}, nil)

	n.MissedCall(context.Background(), MissedCall{CallerID: "+15551234567", DialStatus: "busy"})

	if _, ok := sms.sent["+15551234567"]; !ok {
		t.Fatalf("caller auto-reply must survive an owner-channel failure")
	}
}

func TestForwardSMS(t *testing.T) {
	sms := newFakeSMS()
	email := &fakeEmail{}
	n := newNotifier(sms, &fakeVoice{}, email)

	n.ForwardSMS(context.Background(), "+15551234567", "hot water gone")

	if !strings.Contains(sms.sent["+15550009999"], "hot water gone") {
		t.Fatalf("forwarded sms body: %q", sms.sent["+15550009999"])
	}
	if len(email.subjects) != 1 || email.subjects[0] != "Inbound SMS" {
		t.Fatalf("email subjects: %v", email.subjects)
	}
}
