package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"tradecall/internal/config"
	"tradecall/internal/dialog"
	"tradecall/internal/extract"
	"tradecall/internal/gazetteer"
	"tradecall/internal/hours"
	"tradecall/internal/notify"
	"tradecall/internal/outcome"
	"tradecall/internal/session"
	"tradecall/internal/urgency"

	"github.com/gin-gonic/gin"
)

type sentSMS struct {
	To   string
	Body string
}

type smsSpy struct {
	mu   sync.Mutex
	sent []sentSMS
}

func (s *smsSpy) SendSMS(_ context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentSMS{To: to, Body: body})
	return nil
}

func (s *smsSpy) all() []sentSMS {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentSMS(nil), s.sent...)
}

type voiceSpy struct {
	mu    sync.Mutex
	calls []sentSMS
}

func (v *voiceSpy) PlaceCall(_ context.Context, to, message string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, sentSMS{To: to, Body: message})
	return nil
}

type emailSpy struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (e *emailSpy) Send(_ context.Context, subject, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subjects = append(e.subjects, subject)
	return e.err
}

type synthStub struct {
	data []byte
	ct   string
	err  error
}

func (s synthStub) Synthesize(_ context.Context, _ string) ([]byte, string, error) {
	return s.data, s.ct, s.err
}

type fixture struct {
	router *gin.Engine
	sms    *smsSpy
	voice  *voiceSpy
	email  *emailSpy
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{}
	cfg.App.BusinessName = "Apex Plumbing"
	cfg.Twilio.OwnerNumber = "+61400000099"
	cfg.Twilio.ForwardNumber = "+61400000088"

	sms := &smsSpy{}
	voice := &voiceSpy{}
	email := &emailSpy{}
	log := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))

	notifier := notify.New(sms, voice, email, cfg.Twilio.OwnerNumber, cfg.App.BusinessName, log)
	store := session.NewMemoryStore(10 * time.Minute)
	machine := dialog.NewMachine(store, gazetteer.New(gazetteer.DefaultSuburbs),
		extract.Disabled{}, urgency.New(nil), notifier, log)

	tokens, err := session.NewTokenCodec("test-secret-0123456789", 10*time.Minute)
	if err != nil {
		t.Fatalf("token codec: %v", err)
	}

	f := &fixture{sms: sms, voice: voice, email: email}
	// Tuesday 10:00 UTC; the schedule below keeps weekdays open 07-17.
	f.now = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	sched := hours.Schedule{}
	for d := time.Monday; d <= time.Friday; d++ {
		sched[d] = []hours.Window{{Open: 7, Close: 17}}
	}

	h := Handlers{
		Cfg:      cfg,
		Schedule: sched,
		Location: time.UTC,
		Machine:  machine,
		Outcome:  outcome.Classifier{MinAnsweredSeconds: outcome.DefaultMinAnsweredSeconds},
		Notifier: notifier,
		Tokens:   tokens,
		Now:      func() time.Time { return f.now },
	}
	f.router = newRouter(h)
	return f
}

func newRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.GET("/healthz", h.Health)
	r.POST("/voice", h.Voice)
	r.POST("/post_dial", h.PostDial)
	r.POST(TurnPath, h.Turn)
	r.POST("/sms", h.SMS)
	r.GET("/audio", h.Audio)
	return r
}

func postForm(t *testing.T, r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}

var tokenRe = regexp.MustCompile(`t=([A-Za-z0-9._-]+)`)

func turnToken(t *testing.T, body string) string {
	t.Helper()
	m := tokenRe.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("no turn token in response: %s", body)
	}
	return m[1]
}

func TestVoiceDuringHoursDialsForward(t *testing.T) {
	f := newFixture(t)

	w := postForm(t, f.router, "/voice", url.Values{
		"CallSid": {"CA1"}, "From": {"+61400000001"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Dial") || !strings.Contains(body, "+61400000088") {
		t.Fatalf("expected dial to forward number, got: %s", body)
	}
	if !strings.Contains(body, `action="/post_dial"`) {
		t.Fatalf("dial missing result action: %s", body)
	}
	if !strings.Contains(body, "Connecting you now") {
		t.Fatalf("missing connect announcement: %s", body)
	}
}

func TestVoiceAfterHoursStartsDialogue(t *testing.T) {
	f := newFixture(t)
	f.now = time.Date(2026, 9, 1, 22, 0, 0, 0, time.UTC)

	w := postForm(t, f.router, "/voice", url.Values{
		"CallSid": {"CA1"}, "From": {"+61400000001"},
	})
	body := w.Body.String()
	if !strings.Contains(body, "closed at the moment") {
		t.Fatalf("missing after-hours greeting: %s", body)
	}
	if !strings.Contains(body, "<Gather") || !strings.Contains(body, "Which suburb are you in?") {
		t.Fatalf("expected suburb gather: %s", body)
	}
	turnToken(t, body)
}

func TestAfterHoursFlowCapturesUrgentLead(t *testing.T) {
	f := newFixture(t)
	f.now = time.Date(2026, 9, 1, 22, 0, 0, 0, time.UTC)
	f.email.err = errors.New("smtp down")

	w := postForm(t, f.router, "/voice", url.Values{
		"CallSid": {"CA1"}, "From": {"+61400000001"},
	})
	tok := turnToken(t, w.Body.String())

	w = postForm(t, f.router, TurnPath+"?t="+tok, url.Values{
		"CallSid": {"CA1"}, "From": {"+61400000001"},
		"SpeechResult": {"I'm in Canley Vale, my hot water heater is leaking everywhere"},
	})
	if !strings.Contains(w.Body.String(), "going wrong") {
		t.Fatalf("expected issue question: %s", w.Body.String())
	}
	tok = turnToken(t, w.Body.String())

	w = postForm(t, f.router, TurnPath+"?t="+tok, url.Values{
		"CallSid": {"CA1"}, "From": {"+61400000001"},
		"SpeechResult": {"a burst pipe is flooding the kitchen"},
	})
	if !strings.Contains(w.Body.String(), "emergency") {
		t.Fatalf("expected urgency question: %s", w.Body.String())
	}
	tok = turnToken(t, w.Body.String())

	w = postForm(t, f.router, TurnPath+"?t="+tok, url.Values{
		"CallSid": {"CA1"}, "From": {"+61400000001"},
		"SpeechResult": {"yes"},
	})
	final := w.Body.String()
	if !strings.Contains(final, "<Hangup") {
		t.Fatalf("final turn should hang up: %s", final)
	}

	texts := f.sms.all()
	var owner, caller bool
	for _, s := range texts {
		switch s.To {
		case "+61400000099":
			owner = true
			if !strings.Contains(s.Body, "Canley Vale") || !strings.Contains(s.Body, "URGENT") {
				t.Fatalf("owner text missing lead details: %q", s.Body)
			}
		case "+61400000001":
			caller = true
		}
	}
	if !owner || !caller {
		t.Fatalf("expected owner and caller texts, got %+v", texts)
	}
	if len(f.voice.calls) != 1 || f.voice.calls[0].To != "+61400000099" {
		t.Fatalf("urgent lead should ring the owner, got %+v", f.voice.calls)
	}
	// The broken email channel must not have blocked anything above.
	if len(f.email.subjects) != 1 {
		t.Fatalf("email attempts = %d, want 1", len(f.email.subjects))
	}
}

func TestTurnWithBadTokenRestartsDialogue(t *testing.T) {
	f := newFixture(t)
	f.now = time.Date(2026, 9, 1, 22, 0, 0, 0, time.UTC)

	w := postForm(t, f.router, TurnPath+"?t=not-a-token", url.Values{
		"CallSid": {"CA9"}, "From": {"+61400000002"},
		"SpeechResult": {"Cabramatta"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	// The fresh session consumes the utterance as the location answer.
	if !strings.Contains(w.Body.String(), "going wrong") {
		t.Fatalf("expected issue question after restart: %s", w.Body.String())
	}
}

func TestPostDialMissedNotifiesOwnerAndCaller(t *testing.T) {
	f := newFixture(t)

	w := postForm(t, f.router, "/post_dial", url.Values{
		"CallSid": {"CA2"}, "From": {"+61400000003"},
		"DialCallStatus": {"no-answer"}, "DialCallDuration": {"0"},
	})
	if !strings.Contains(w.Body.String(), "<Hangup") {
		t.Fatalf("post-dial should hang up: %s", w.Body.String())
	}

	texts := f.sms.all()
	if len(texts) != 2 {
		t.Fatalf("expected owner + caller texts, got %+v", texts)
	}
	var owner, caller bool
	for _, s := range texts {
		if s.To == "+61400000099" && strings.Contains(s.Body, "Missed call") {
			owner = true
		}
		if s.To == "+61400000003" {
			caller = true
		}
	}
	if !owner || !caller {
		t.Fatalf("missed-call texts wrong: %+v", texts)
	}
}

func TestPostDialAnsweredSendsNothing(t *testing.T) {
	f := newFixture(t)

	postForm(t, f.router, "/post_dial", url.Values{
		"CallSid": {"CA3"}, "From": {"+61400000004"},
		"DialCallStatus": {"completed"}, "DialCallDuration": {"45"},
	})
	if got := f.sms.all(); len(got) != 0 {
		t.Fatalf("answered call should notify nobody, got %+v", got)
	}
}

func TestVoiceMalformedFormRendersApology(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader("From=%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("apology must still be 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "having trouble taking your call") {
		t.Fatalf("expected apology document: %s", w.Body.String())
	}
}

func TestSMSForwardsAndAutoReplies(t *testing.T) {
	f := newFixture(t)

	w := postForm(t, f.router, "/sms", url.Values{
		"MessageSid": {"SM1"}, "From": {"+61400000005"},
		"Body": {"do you do gas fitting?"},
	})
	if !strings.Contains(w.Body.String(), "<Sms") || !strings.Contains(w.Body.String(), "Apex Plumbing") {
		t.Fatalf("expected auto-reply: %s", w.Body.String())
	}

	texts := f.sms.all()
	if len(texts) != 1 || texts[0].To != "+61400000099" ||
		!strings.Contains(texts[0].Body, "gas fitting") {
		t.Fatalf("forward wrong: %+v", texts)
	}
}

func TestAudioUnconfiguredIs404(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/audio?text=hello", nil)
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestAudioServesClipAndReportsBackendFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := Handlers{TTS: synthStub{data: []byte("mp3-bytes"), ct: "audio/mpeg"}}
	r := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/audio?text=hello", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "mp3-bytes" {
		t.Fatalf("clip not served: %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content type = %q", ct)
	}

	h.TTS = synthStub{err: errors.New("quota")}
	r = newRouter(h)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audio?text=hello", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}
