package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
)

// SMSConfig is the process-level SMS gateway configuration.
type SMSConfig struct {
	APIURL string
	APIKey string
	From   string
}

// SMSSender posts rendered messages to the SMS gateway's HTTP API.
type SMSSender struct {
	cfg    SMSConfig
	client *http.Client
}

func NewSMSSender(cfg SMSConfig) *SMSSender {
	return &SMSSender{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type smsRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

type smsResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

func (s *SMSSender) Send(ctx context.Context, msg Message) (*Result, error) {
	if s.cfg.APIURL == "" || s.cfg.APIKey == "" {
		return nil, fmt.Errorf("sms gateway: %w", ErrNotConfigured)
	}

	to := digitsOnly(msg.To)
	if to == "" {
		return nil, fmt.Errorf("recipient %q has no usable phone number", msg.To)
	}

	reqBody, err := json.Marshal(smsRequest{
		From:    s.cfg.From,
		To:      to,
		Message: msg.Body,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("sms gateway status %d body=%q", resp.StatusCode, string(body))
	}

	var sr smsResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("sms gateway decode: %w body=%q", err, string(body))
	}
	if sr.MessageID == "" {
		return nil, fmt.Errorf("sms gateway missing message_id body=%q", string(body))
	}

	return &Result{Channel: model.ChannelSMS, ProviderID: sr.MessageID}, nil
}
