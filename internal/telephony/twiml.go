package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// TwiML is a minimal Twilio Markup Language response builder.
// It intentionally avoids any provider SDK dependency.
//
// Only include primitives we need at the adapter boundary: speak a prompt
// (Say or Play), gather speech, dial the forwarding number, send an SMS
// reply, hang up.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlPlay struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Nested        []any    `xml:",any"`
}

type twimlDial struct {
	XMLName  xml.Name `xml:"Dial"`
	Action   string   `xml:"action,attr,omitempty"`
	Timeout  int      `xml:"timeout,attr,omitempty"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Number   string   `xml:"Number,omitempty"`
}

type twimlSms struct {
	XMLName xml.Name `xml:"Sms"`
	Body    string   `xml:",chardata"`
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	URL     string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Response accumulates verbs in order.
type Response struct {
	verbs []any
}

func NewResponse() *Response { return &Response{} }

// Say queues spoken text using the platform's built-in voice.
func (r *Response) Say(text string) *Response {
	r.verbs = append(r.verbs, twimlSay{Text: text})
	return r
}

// Play queues a synthesized audio clip by URL.
func (r *Response) Play(url string) *Response {
	r.verbs = append(r.verbs, twimlPlay{URL: url})
	return r
}

// GatherOptions controls one speech-capture turn.
type GatherOptions struct {
	// Action is the URL invoked with the transcription.
	Action string
	// TimeoutSeconds is how long to wait for speech to begin.
	TimeoutSeconds int
	// Prompt rendered inside the Gather: a clip URL wins over text.
	PromptText string
	PromptURL  string
}

// GatherSpeech queues a speech gather. When the caller says nothing within
// the timeout, Twilio falls through to the verbs queued after the Gather.
func (r *Response) GatherSpeech(opts GatherOptions) *Response {
	g := twimlGather{
		Input:         "speech",
		Action:        opts.Action,
		Method:        "POST",
		Timeout:       opts.TimeoutSeconds,
		SpeechTimeout: "auto",
	}
	if g.Timeout <= 0 {
		g.Timeout = 8
	}
	if opts.PromptURL != "" {
		g.Nested = append(g.Nested, twimlPlay{URL: opts.PromptURL})
	} else if opts.PromptText != "" {
		g.Nested = append(g.Nested, twimlSay{Text: opts.PromptText})
	}
	r.verbs = append(r.verbs, g)
	return r
}

// Dial queues a live-dial to a PSTN number. Action receives the dial result
// (DialCallStatus, DialCallDuration, AnsweredBy) when the leg concludes.
func (r *Response) Dial(number, action, callerID string, timeoutSeconds int) *Response {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 20
	}
	r.verbs = append(r.verbs, twimlDial{
		Number:   number,
		Action:   action,
		CallerID: callerID,
		Timeout:  timeoutSeconds,
	})
	return r
}

// Sms queues an outbound text reply on a messaging response.
func (r *Response) Sms(body string) *Response {
	r.verbs = append(r.verbs, twimlSms{Body: body})
	return r
}

// Redirect queues a redirect to another TwiML document.
func (r *Response) Redirect(url string) *Response {
	r.verbs = append(r.verbs, twimlRedirect{URL: url})
	return r
}

// Hangup queues a clean call termination.
func (r *Response) Hangup() *Response {
	r.verbs = append(r.verbs, twimlHangup{})
	return r
}

// Render encodes the response document. An empty response renders as a bare
// <Response></Response>, which is valid and acknowledges without acting.
func (r *Response) Render() (string, error) {
	doc := twimlResponse{Verbs: r.verbs}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderOrApology renders r, substituting the safe apology document when
// encoding fails. The caller-facing channel must never surface a raw error.
func (r *Response) RenderOrApology() string {
	out, err := r.Render()
	if err == nil {
		return out
	}
	if out, err = Apology().Render(); err == nil {
		return out
	}
	return xml.Header + "<Response><Hangup></Hangup></Response>"
}

// Apology is the safe default returned on any internal failure.
func Apology() *Response {
	return NewResponse().
		Say("Sorry, we're having trouble taking your call right now. Please try again shortly.").
		Hangup()
}

// ValidateNumber rejects obviously un-dialable targets before they reach
// the provider.
func ValidateNumber(number string) error {
	n := strings.TrimSpace(number)
	if n == "" || strings.EqualFold(n, "anonymous") || strings.EqualFold(n, "unknown") {
		return errors.New("telephony: not an addressable number")
	}
	return nil
}
