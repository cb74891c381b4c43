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

// WhatsAppConfig is the process-level WhatsApp Business API configuration.
type WhatsAppConfig struct {
	APIURL string
	Token  string
}

// WhatsAppSender posts text messages to the WhatsApp Business API.
type WhatsAppSender struct {
	cfg    WhatsAppConfig
	client *http.Client
}

func NewWhatsAppSender(cfg WhatsAppConfig) *WhatsAppSender {
	return &WhatsAppSender{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type waTextBody struct {
	Body string `json:"body"`
}

type waRequest struct {
	To   string     `json:"to"`
	Type string     `json:"type"`
	Text waTextBody `json:"text"`
}

type waResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (s *WhatsAppSender) Send(ctx context.Context, msg Message) (*Result, error) {
	if s.cfg.APIURL == "" || s.cfg.Token == "" {
		return nil, fmt.Errorf("whatsapp api: %w", ErrNotConfigured)
	}

	to := digitsOnly(msg.To)
	if to == "" {
		return nil, fmt.Errorf("recipient %q has no usable phone number", msg.To)
	}

	reqBody, err := json.Marshal(waRequest{
		To:   to,
		Type: "text",
		Text: waTextBody{Body: msg.Body},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp api: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("whatsapp api status %d body=%q", resp.StatusCode, string(body))
	}

	var wr waResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, fmt.Errorf("whatsapp api decode: %w body=%q", err, string(body))
	}
	if len(wr.Messages) == 0 || wr.Messages[0].ID == "" {
		return nil, fmt.Errorf("whatsapp api missing message id body=%q", string(body))
	}

	return &Result{Channel: model.ChannelWhatsApp, ProviderID: wr.Messages[0].ID}, nil
}
