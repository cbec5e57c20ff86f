package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CloudSender sends messages through the WhatsApp Cloud API.
type CloudSender struct {
	apiURL        string
	phoneNumberID string
	token         string
	client        *http.Client
}

func NewCloudSender(apiURL, phoneNumberID, token string) *CloudSender {
	return &CloudSender{
		apiURL:        strings.TrimRight(apiURL, "/"),
		phoneNumberID: phoneNumberID,
		token:         token,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

type cloudTextMessage struct {
	MessagingProduct string    `json:"messaging_product"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             cloudText `json:"text"`
}

type cloudText struct {
	Body string `json:"body"`
}

func (s *CloudSender) SendText(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(cloudTextMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             cloudText{Body: body},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", s.apiURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp send to %s: status %d: %s", to, resp.StatusCode, snippet)
	}
	return nil
}
