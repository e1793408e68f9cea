package telephony

import (
	"net/http"
	"strconv"
	"strings"
)

// Webhook form parsing. Twilio sends application/x-www-form-urlencoded by
// default. Keep it minimal and provider-adapter-only; business logic
// (routing decisions, dialogue state) is not made here.

// VoiceForm captures the subset of inbound-voice webhook fields we care about.
type VoiceForm struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	Direction  string
	CallStatus string
	CallerName string
	FromCity   string
	FromState  string
}

func ParseVoiceForm(r *http.Request) (VoiceForm, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceForm{}, err
	}
	return VoiceForm{
		CallSid:    r.PostFormValue("CallSid"),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		Direction:  r.PostFormValue("Direction"),
		CallStatus: r.PostFormValue("CallStatus"),
		CallerName: r.PostFormValue("CallerName"),
		FromCity:   r.PostFormValue("FromCity"),
		FromState:  r.PostFormValue("FromState"),
	}, nil
}

// DialResultForm carries the dial-action callback fields for a concluded
// live-dial leg.
type DialResultForm struct {
	CallSid          string
	From             string
	DialCallStatus   string
	DialCallDuration int
	AnsweredBy       string
}

func ParseDialResultForm(r *http.Request) (DialResultForm, error) {
	if err := r.ParseForm(); err != nil {
		return DialResultForm{}, err
	}
	f := DialResultForm{
		CallSid:        r.PostFormValue("CallSid"),
		From:           normalizePhone(r.PostFormValue("From")),
		DialCallStatus: r.PostFormValue("DialCallStatus"),
		AnsweredBy:     r.PostFormValue("AnsweredBy"),
	}
	if v := strings.TrimSpace(r.PostFormValue("DialCallDuration")); v != "" {
		// Twilio sends whole seconds; an unparseable value stays zero.
		if n, err := strconv.Atoi(v); err == nil {
			f.DialCallDuration = n
		}
	}
	return f, nil
}

// SpeechForm carries one dialogue turn's transcription result. SpeechResult
// is empty when the caller said nothing before the capture timeout.
type SpeechForm struct {
	CallSid      string
	From         string
	SpeechResult string
	Confidence   float64
}

func ParseSpeechForm(r *http.Request) (SpeechForm, error) {
	if err := r.ParseForm(); err != nil {
		return SpeechForm{}, err
	}
	f := SpeechForm{
		CallSid:      r.PostFormValue("CallSid"),
		From:         normalizePhone(r.PostFormValue("From")),
		SpeechResult: strings.TrimSpace(r.PostFormValue("SpeechResult")),
	}
	if v := strings.TrimSpace(r.PostFormValue("Confidence")); v != "" {
		if c, err := strconv.ParseFloat(v, 64); err == nil {
			f.Confidence = c
		}
	}
	return f, nil
}

// SMSForm carries an inbound text message.
type SMSForm struct {
	MessageSid string
	From       string
	To         string
	Body       string
}

func ParseSMSForm(r *http.Request) (SMSForm, error) {
	if err := r.ParseForm(); err != nil {
		return SMSForm{}, err
	}
	return SMSForm{
		MessageSid: r.PostFormValue("MessageSid"),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		Body:       strings.TrimSpace(r.PostFormValue("Body")),
	}, nil
}

func normalizePhone(s string) string {
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return strings.TrimSpace(s)
}
