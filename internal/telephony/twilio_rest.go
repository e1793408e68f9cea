package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RestClient is a minimal Twilio REST adapter for the two outbound
// operations this system performs: sending a text and placing the urgent
// voice callback. It deliberately covers nothing else.
type RestClient struct {
	accountSID string
	authToken  string
	from       string

	baseURL    string
	httpClient *http.Client
}

const defaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"

func NewRestClient(accountSID, authToken, from string) *RestClient {
	return &RestClient{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    defaultTwilioBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL points the client at a test server.
func (c *RestClient) WithBaseURL(base string) *RestClient {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// SendSMS sends body to the given number from the configured number.
func (c *RestClient) SendSMS(ctx context.Context, to, body string) error {
	if err := ValidateNumber(to); err != nil {
		return err
	}
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)
	return c.post(ctx, "Messages.json", form)
}

// PlaceCall rings the given number and speaks message when answered. The
// call-control document is passed inline so no callback URL is needed for
// this one-shot announcement.
func (c *RestClient) PlaceCall(ctx context.Context, to, message string) error {
	if err := ValidateNumber(to); err != nil {
		return err
	}
	twiml, err := NewResponse().Say(message).Hangup().Render()
	if err != nil {
		return fmt.Errorf("telephony: render call twiml: %w", err)
	}
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Twiml", twiml)
	return c.post(ctx, "Calls.json", form)
}

func (c *RestClient) post(ctx context.Context, resource string, form url.Values) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/%s", c.baseURL, c.accountSID, resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telephony: build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telephony: %s returned %d: %s", resource, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
