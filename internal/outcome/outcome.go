package outcome

import "strings"

// Classifier decides whether a concluded live-dial attempt actually reached
// a person. Twilio reports voicemail pickups as "completed", so status alone
// is not trustworthy.
//
// Precedence (must be applied in this order):
//  1) AnsweredBy == "human"            -> Answered
//  2) AnsweredBy present, not "human"  -> Missed (machine/fax/unknown)
//  3) No AnsweredBy signal             -> Answered iff status is "completed"
//     and the leg lasted at least MinAnsweredSeconds. Short completed legs
//     are presumed voicemail-greeting pickups.
type Classifier struct {
	// MinAnsweredSeconds guards tier 3. Zero applies the default.
	MinAnsweredSeconds int
}

// DefaultMinAnsweredSeconds is tuned to skip typical voicemail greetings.
const DefaultMinAnsweredSeconds = 12

type Result string

const (
	Answered Result = "answered"
	Missed   Result = "missed"
)

// Dial statuses as Twilio reports them on the dial-action callback.
const (
	StatusCompleted = "completed"
	StatusNoAnswer  = "no-answer"
	StatusBusy      = "busy"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// DialResult carries the provider-supplied fields for one concluded attempt.
type DialResult struct {
	Status          string
	DurationSeconds int
	// AnsweredBy is Twilio AMD output: human, machine_start, fax, unknown.
	// Empty when AMD was not enabled for the leg.
	AnsweredBy string
}

func (c Classifier) Classify(r DialResult) Result {
	minSecs := c.MinAnsweredSeconds
	if minSecs <= 0 {
		minSecs = DefaultMinAnsweredSeconds
	}

	ab := strings.ToLower(strings.TrimSpace(r.AnsweredBy))
	if ab != "" {
		if ab == "human" {
			return Answered
		}
		return Missed
	}

	if r.Status == StatusCompleted && r.DurationSeconds >= minSecs {
		return Answered
	}
	return Missed
}
