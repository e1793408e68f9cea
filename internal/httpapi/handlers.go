package httpapi

import (
	"net/http"
	"time"

	"tradecall/internal/config"
	"tradecall/internal/dialog"
	"tradecall/internal/hours"
	"tradecall/internal/notify"
	"tradecall/internal/outcome"
	"tradecall/internal/session"
	"tradecall/internal/speech"
	"tradecall/internal/telephony"
	"tradecall/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups the webhook handlers for dependency injection.
// Keep these thin: parse the provider form, call internal services, write
// a call-control document.
//
// Error rule for the voice routes: the upstream platform retries on 5xx
// and a live caller is on the line, so any internal failure renders the
// apology document with HTTP 200 instead of propagating.

type Handlers struct {
	Cfg config.Config

	Schedule hours.Schedule
	Location *time.Location

	Machine  *dialog.Machine
	Outcome  outcome.Classifier
	Notifier *notify.Notifier
	Tokens   *session.TokenCodec

	// TTS is nil when voice synthesis is not configured; prompts then use
	// the platform's built-in voice.
	TTS speech.Synthesizer

	Now func() time.Time
}

// TurnPath is the dialogue webhook route; turn action URLs point back at it.
const TurnPath = "/afterhours/turn"

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func writeTwiML(c *gin.Context, r *telephony.Response) {
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, r.RenderOrApology())
}

func apology(c *gin.Context) {
	writeTwiML(c, telephony.Apology())
}

// Health responds to the provider's liveness probe.
func (h Handlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Voice is the inbound-call entry point: live dial during business hours,
// the after-hours dialogue otherwise.
func (h Handlers) Voice(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := telephony.ParseVoiceForm(c.Request)
	if err != nil {
		log.Warn("voice webhook parse failed", "err", err)
		apology(c)
		return
	}

	if hours.Open(h.now(), h.Location, h.Schedule) {
		log.Info("routing to live dial", "call", form.CallSid)
		resp := telephony.NewResponse()
		h.speak(resp, "Thanks for calling "+h.Cfg.App.BusinessName+". Connecting you now.")
		resp.Dial(h.Cfg.Twilio.ForwardNumber, "/post_dial", "", 20)
		writeTwiML(c, resp)
		return
	}

	turn, err := h.Machine.Begin(c.Request.Context(), form.From)
	if err != nil {
		log.Error("after-hours dialogue start failed", "err", err)
		apology(c)
		return
	}
	greeting := "Thanks for calling " + h.Cfg.App.BusinessName +
		". We're closed at the moment, but I can take your details and have someone call you back."
	h.renderTurn(c, turn, greeting)
}

// Turn handles one after-hours dialogue round-trip. The correlation token
// rides the query string; an unusable token starts a fresh session.
func (h Handlers) Turn(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := telephony.ParseSpeechForm(c.Request)
	if err != nil {
		log.Warn("turn webhook parse failed", "err", err)
		apology(c)
		return
	}

	key, caller := "", form.From
	if tok := c.Query("t"); tok != "" {
		if k, cid, err := h.Tokens.Parse(tok, h.now()); err == nil {
			key = k
			if cid != "" {
				caller = cid
			}
		} else {
			log.Warn("turn token rejected, restarting session")
		}
	}

	turn, err := h.Machine.Resume(c.Request.Context(), key, caller, form.SpeechResult)
	if err != nil {
		log.Error("dialogue turn failed", "err", err)
		apology(c)
		return
	}
	h.renderTurn(c, turn, "")
}

// PostDial receives the live-dial result and triggers the missed-call flow.
func (h Handlers) PostDial(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := telephony.ParseDialResultForm(c.Request)
	if err != nil {
		log.Warn("post-dial webhook parse failed", "err", err)
		apology(c)
		return
	}

	result := outcome.DialResult{
		Status:          form.DialCallStatus,
		DurationSeconds: form.DialCallDuration,
		AnsweredBy:      form.AnsweredBy,
	}
	if h.Outcome.Classify(result) == outcome.Missed {
		log.Info("dial missed", "status", form.DialCallStatus, "answered_by", form.AnsweredBy)
		h.Notifier.MissedCall(c.Request.Context(), notify.FromOutcome(form.From, result))
	}

	writeTwiML(c, telephony.NewResponse().Hangup())
}

// SMS forwards an inbound text to the owner and auto-replies to the sender.
func (h Handlers) SMS(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := telephony.ParseSMSForm(c.Request)
	if err != nil {
		log.Warn("sms webhook parse failed", "err", err)
		writeTwiML(c, telephony.NewResponse())
		return
	}

	h.Notifier.ForwardSMS(c.Request.Context(), form.From, form.Body)

	writeTwiML(c, telephony.NewResponse().
		Sms("Thanks for your message — "+h.Cfg.App.BusinessName+" will get back to you shortly."))
}

// Audio proxies synthesized prompt audio for the call-control Play verb.
func (h Handlers) Audio(c *gin.Context) {
	if h.TTS == nil {
		c.String(http.StatusNotFound, "voice synthesis not configured")
		return
	}
	text := c.Query("text")
	audio, contentType, err := h.TTS.Synthesize(c.Request.Context(), text)
	if err != nil {
		logger.FromGin(c).Error("synthesis failed", "err", err)
		c.String(http.StatusBadGateway, "synthesis unavailable")
		return
	}
	c.Data(http.StatusOK, contentType, audio)
}

// renderTurn converts a dialogue turn into TwiML. Gathering turns chain to
// the next round-trip via a fresh correlation token; a silent caller falls
// through the Gather to the Redirect, which delivers the empty turn.
func (h Handlers) renderTurn(c *gin.Context, turn dialog.Turn, preamble string) {
	resp := telephony.NewResponse()
	if preamble != "" {
		h.speak(resp, preamble)
	}

	if turn.Done || turn.Session == nil {
		h.speak(resp, turn.Prompt)
		resp.Hangup()
		writeTwiML(c, resp)
		return
	}

	tok, err := h.Tokens.Mint(turn.Session, h.now())
	if err != nil {
		logger.FromGin(c).Error("token mint failed", "err", err)
		apology(c)
		return
	}
	action := TurnPath + "?t=" + tok

	opts := telephony.GatherOptions{Action: action, PromptText: turn.Prompt}
	if h.TTS != nil && h.Cfg.Speech.Enabled() {
		opts.PromptText = ""
		opts.PromptURL = speech.ClipURL(h.Cfg.Speech.PublicBaseURL, turn.Prompt)
	}
	resp.GatherSpeech(opts)
	resp.Redirect(action)
	writeTwiML(c, resp)
}

func (h Handlers) speak(resp *telephony.Response, text string) {
	if h.TTS != nil && h.Cfg.Speech.Enabled() {
		resp.Play(speech.ClipURL(h.Cfg.Speech.PublicBaseURL, text))
		return
	}
	resp.Say(text)
}
