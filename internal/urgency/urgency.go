package urgency

import "strings"

// Classifier decides whether a captured lead needs the urgent escalation path.
//
// Policy:
//  1) An explicit affirmative in the extractor's urgency field wins.
//  2) Otherwise any emergency keyword in the transcript marks it urgent.
//  3) Unsure or missing signals default to non-urgent. The false-negative
//     bias is deliberate: waking the owner for a dripping tap costs more
//     trust than a morning callback.
type Classifier struct {
	keywords []string
}

// DefaultKeywords covers the emergencies this trade actually gets called for.
// Substring matching makes "flood" cover "flooding" and "burst" cover
// "bursting".
var DefaultKeywords = []string{
	"urgent",
	"emergency",
	"flood",
	"burst",
	"gushing",
	"overflow",
	"can't stop",
	"cannot stop",
	"won't stop",
	"sewage",
}

func New(keywords []string) *Classifier {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(strings.TrimSpace(k))
	}
	return &Classifier{keywords: lowered}
}

// Classify combines the structured field from the extractor with the raw
// transcript. The transcript fallback exists because the extractor is
// optional and fallible.
func (c *Classifier) Classify(structured, transcript string) bool {
	if affirmative(structured) {
		return true
	}
	lower := strings.ToLower(transcript)
	for _, k := range c.keywords {
		if k != "" && strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// affirmative accepts only explicit yes-signals. "unsure", "maybe" and the
// empty string all fall through to the keyword scan.
func affirmative(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "urgent", "emergency":
		return true
	default:
		return false
	}
}
