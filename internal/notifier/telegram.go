package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/comeencasa/restaurant-api/pkg/httpclient"
)

// DefaultTelegramAPIURL is the Bot API base URL.
const DefaultTelegramAPIURL = "https://api.telegram.org"

// TelegramSender posts messages to a chat through the Bot API sendMessage
// method.
type TelegramSender struct {
	client *httpclient.CircuitBreakerClient
	apiURL string
	token  string
	chatID string
}

// NewTelegramSender returns a sender for chatID. An empty apiURL selects
// DefaultTelegramAPIURL.
func NewTelegramSender(client *httpclient.CircuitBreakerClient, apiURL, token, chatID string) *TelegramSender {
	if apiURL == "" {
		apiURL = DefaultTelegramAPIURL
	}
	return &TelegramSender{
		client: client,
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		chatID: chatID,
	}
}

func (s *TelegramSender) Name() string { return "telegram" }

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers msg. The bot token is part of the URL and is scrubbed from
// any returned error.
func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}

	resp, err := s.client.PostJSON(ctx, s.apiURL+"/bot"+s.token+"/sendMessage", sendMessageRequest{
		ChatID: s.chatID,
		Text:   text,
	})
	if err != nil {
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			return fmt.Errorf("telegram unavailable: %w", err)
		}
		return fmt.Errorf("telegram request failed: %s", s.redact(err.Error()))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var out botResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusOK || !out.OK {
		return fmt.Errorf("telegram rejected message: status %d: %s", resp.StatusCode, out.Description)
	}
	return nil
}

func (s *TelegramSender) redact(text string) string {
	if s.token == "" {
		return text
	}
	return strings.ReplaceAll(text, s.token, "<redacted>")
}
