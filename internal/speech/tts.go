package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Synthesizer converts prompt text to playable audio. The voice platform
// fetches clips through the /audio proxy endpoint; when no synthesizer is
// configured the prompts fall back to the platform's built-in voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}

// ElevenLabs is a minimal client for the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	apiKey  string
	voiceID string

	baseURL    string
	httpClient *http.Client
}

const defaultElevenLabsBaseURL = "https://api.elevenlabs.io/v1"

func NewElevenLabs(apiKey, voiceID string) *ElevenLabs {
	return &ElevenLabs{
		apiKey:     apiKey,
		voiceID:    voiceID,
		baseURL:    defaultElevenLabsBaseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// WithBaseURL points the client at a test server.
func (e *ElevenLabs) WithBaseURL(base string) *ElevenLabs {
	e.baseURL = strings.TrimRight(base, "/")
	return e
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize returns MP3 bytes and their content type.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", fmt.Errorf("speech: empty text")
	}

	body, err := json.Marshal(synthesisRequest{Text: text, ModelID: "eleven_turbo_v2"})
	if err != nil {
		return nil, "", fmt.Errorf("speech: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s", e.baseURL, url.PathEscape(e.voiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("speech: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("speech: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, "", fmt.Errorf("speech: synthesis returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("speech: read audio: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "audio/mpeg"
	}
	return audio, ct, nil
}

// ClipURL builds the externally reachable /audio URL the call-control
// document points at for a given prompt.
func ClipURL(publicBaseURL, text string) string {
	return strings.TrimRight(publicBaseURL, "/") + "/audio?text=" + url.QueryEscape(text)
}
