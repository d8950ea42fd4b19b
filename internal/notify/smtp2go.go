package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const SMTP2GOEndpoint = "https://api.smtp2go.com/v3/email/send"

// SMTP2GO delivers mail through the SMTP2GO HTTP API.
type SMTP2GO struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
}

func NewSMTP2GO(apiKey string) *SMTP2GO {
	if apiKey == "" {
		return nil
	}
	return &SMTP2GO{
		APIKey:   apiKey,
		Endpoint: SMTP2GOEndpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type smtp2goRequest struct {
	APIKey   string   `json:"api_key"`
	To       []string `json:"to"`
	Sender   string   `json:"sender"`
	Subject  string   `json:"subject"`
	TextBody string   `json:"text_body"`
}

type smtp2goResponse struct {
	RequestID string `json:"request_id"`
	Data      struct {
		Succeeded int    `json:"succeeded"`
		Failed    int    `json:"failed"`
		Error     string `json:"error"`
	} `json:"data"`
}

func (m *SMTP2GO) Send(ctx context.Context, msg Message) error {
	if m == nil || m.APIKey == "" {
		return errors.New("smtp2go disabled")
	}
	if len(msg.Recipients) == 0 {
		return ErrNoRecipients
	}
	payload, err := json.Marshal(smtp2goRequest{
		APIKey:   m.APIKey,
		To:       msg.Recipients,
		Sender:   msg.From,
		Subject:  msg.Subject,
		TextBody: msg.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var out smtp2goResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Data.Error != "" {
			return fmt.Errorf("smtp2go status %d: %s", resp.StatusCode, out.Data.Error)
		}
		return fmt.Errorf("smtp2go status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if out.Data.Failed > 0 {
		return fmt.Errorf("smtp2go rejected %d of %d recipients", out.Data.Failed, out.Data.Failed+out.Data.Succeeded)
	}
	return nil
}
