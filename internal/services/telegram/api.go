package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Update is the subset of a Bot API update the bot reads.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

// Replier sends a chat message, optionally with a one-time reply keyboard.
type Replier interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard [][]string) error
}

// APIClient calls the Bot API sendMessage method.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewAPIClient(baseURL, token string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type keyboardButton struct {
	Text string `json:"text"`
}

type replyKeyboard struct {
	Keyboard        [][]keyboardButton `json:"keyboard"`
	ResizeKeyboard  bool               `json:"resize_keyboard"`
	OneTimeKeyboard bool               `json:"one_time_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64          `json:"chat_id"`
	Text        string         `json:"text"`
	ParseMode   string         `json:"parse_mode,omitempty"`
	ReplyMarkup *replyKeyboard `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *APIClient) SendMessage(ctx context.Context, chatID int64, text string, keyboard [][]string) error {
	body := sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "Markdown"}
	if len(keyboard) > 0 {
		kb := &replyKeyboard{ResizeKeyboard: true, OneTimeKeyboard: true}
		for _, row := range keyboard {
			buttons := make([]keyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, keyboardButton{Text: b})
			}
			kb.Keyboard = append(kb.Keyboard, buttons)
		}
		body.ReplyMarkup = kb
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal sendMessage: %w", err)
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		// l'URL contiene il token: non va nei log
		return fmt.Errorf("sendMessage request failed: %s", redact(err.Error(), c.token))
	}
	defer res.Body.Close()

	var out apiResponse
	_ = json.NewDecoder(res.Body).Decode(&out)
	if res.StatusCode != http.StatusOK || !out.OK {
		return fmt.Errorf("sendMessage: HTTP %d: %s", res.StatusCode, out.Description)
	}
	return nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}
