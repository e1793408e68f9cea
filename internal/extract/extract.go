package extract

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Record is the best-effort structured read of a caller's transcript.
// Unknown fields are empty strings, never absent keys.
type Record struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Issue    string `json:"issue"`
	// Urgency is the model's tri-state read: yes, no or unsure.
	Urgency string `json:"urgency"`
}

// Extractor turns free text into a Record. Implementations must never
// return an error to callers: on any failure they degrade to Fallback.
type Extractor interface {
	Extract(ctx context.Context, transcript string, history []string) Record
}

// Fallback is the guaranteed-valid record used when extraction is
// unavailable or broken: the raw transcript becomes the issue.
func Fallback(transcript string) Record {
	return Record{Issue: transcript}
}

const systemPrompt = `You extract structured lead details from a transcribed phone call to a plumbing business.
Respond with ONLY a JSON object, no prose, with exactly these keys:
{"name": "", "location": "", "issue": "", "urgency": ""}
Use empty strings for anything the caller did not say.
"urgency" must be one of "yes", "no" or "unsure".`

// OpenAIExtractor calls a chat-completion endpoint with a fixed JSON-only
// instruction and salvages the first JSON object from the reply.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
	log    *slog.Logger
}

func NewOpenAI(apiKey, model, baseURL string, log *slog.Logger) *OpenAIExtractor {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIExtractor{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    log.With("component", "extract"),
	}
}

func (e *OpenAIExtractor) Extract(ctx context.Context, transcript string, history []string) Record {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	for _, h := range history {
		if strings.TrimSpace(h) == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser, Content: h,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: transcript,
	})

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Messages:    messages,
		Temperature: 0,
	})
	if err != nil {
		e.log.Warn("extraction request failed", "err", err)
		return Fallback(transcript)
	}
	if len(resp.Choices) == 0 {
		e.log.Warn("extraction returned no choices")
		return Fallback(transcript)
	}

	rec, ok := salvage(resp.Choices[0].Message.Content)
	if !ok {
		e.log.Warn("extraction reply not parseable", "reply_len", len(resp.Choices[0].Message.Content))
		return Fallback(transcript)
	}
	if strings.TrimSpace(rec.Issue) == "" {
		rec.Issue = transcript
	}
	return rec
}

// salvage pulls the first well-formed JSON object out of the reply, tolerating
// surrounding prose and markdown fences from verbose models.
func salvage(reply string) (Record, bool) {
	start := strings.IndexByte(reply, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(reply); i++ {
			c := reply[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					var rec Record
					if err := json.Unmarshal([]byte(reply[start:i+1]), &rec); err == nil {
						return rec, true
					}
					i = len(reply) // malformed candidate, try the next '{'
				}
			}
		}
		next := strings.IndexByte(reply[start+1:], '{')
		if next < 0 {
			break
		}
		start = start + 1 + next
	}
	return Record{}, false
}

// Disabled is used when no extraction credentials are configured.
// The dialogue still completes with raw-transcript leads.
type Disabled struct{}

func (Disabled) Extract(_ context.Context, transcript string, _ []string) Record {
	return Fallback(transcript)
}
