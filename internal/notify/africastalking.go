package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	africasTalkingLiveURL    = "https://api.africastalking.com/version1/messaging"
	africasTalkingSandboxURL = "https://api.sandbox.africastalking.com/version1/messaging"
)

type AfricasTalkingSender struct {
	username   string
	apiKey     string
	senderID   string
	endpoint   string
	httpClient *http.Client
}

// NewAfricasTalkingSender returns nil when username or apiKey is empty.
// The sandbox endpoint is used for the "sandbox" username unless endpoint
// overrides it.
func NewAfricasTalkingSender(username, apiKey, senderID, endpoint string) *AfricasTalkingSender {
	if username == "" || apiKey == "" {
		return nil
	}

	if endpoint == "" {
		endpoint = africasTalkingLiveURL
		if username == "sandbox" {
			endpoint = africasTalkingSandboxURL
		}
	}

	return &AfricasTalkingSender{
		username:   username,
		apiKey:     apiKey,
		senderID:   senderID,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type atResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			Number     string `json:"number"`
			Status     string `json:"status"`
			StatusCode int    `json:"statusCode"`
			MessageID  string `json:"messageId"`
			Cost       string `json:"cost"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

func (a *AfricasTalkingSender) SendSMS(ctx context.Context, to, msg string) (SendResult, error) {
	form := url.Values{}
	form.Set("username", a.username)
	form.Set("to", to)
	form.Set("message", msg)
	if a.senderID != "" {
		form.Set("from", a.senderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apiKey", a.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("africastalking request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return SendResult{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return SendResult{}, fmt.Errorf("africastalking error %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed atResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return SendResult{}, fmt.Errorf("decode response: %w", err)
	}

	recipients := parsed.SMSMessageData.Recipients
	if len(recipients) == 0 {
		return SendResult{}, fmt.Errorf("africastalking rejected message: %s", parsed.SMSMessageData.Message)
	}
	if r := recipients[0]; r.Status != "Success" {
		return SendResult{}, fmt.Errorf("africastalking delivery to %s: %s (%d)", r.Number, r.Status, r.StatusCode)
	}

	return SendResult{
		MessageID: recipients[0].MessageID,
		SentAt:    time.Now(),
	}, nil
}
