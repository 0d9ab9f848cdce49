package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"live-support/internal/config"
	"live-support/pkg/logger"
)

const (
	defaultAPIBaseURL = "https://api.telegram.org"
	requestTimeout    = 5 * time.Second
)

// Telegram sends messages to a single admin chat through the Bot API.
type Telegram struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
	codeTTL time.Duration
	log     *slog.Logger
}

// NewTelegram builds the client. codeTTL is quoted in OTP messages.
func NewTelegram(cfg config.TelegramConfig, codeTTL time.Duration, l *slog.Logger) *Telegram {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = defaultAPIBaseURL
	}
	return &Telegram{
		baseURL: base,
		token:   cfg.BotToken,
		chatID:  cfg.AdminChatID,
		client:  &http.Client{Timeout: requestTimeout},
		codeTTL: codeTTL,
		log:     logger.Component(l, "telegram"),
	}
}

func (t *Telegram) Configured() bool { return t.token != "" && t.chatID != "" }

func (t *Telegram) NotifyIncomingCall(ctx context.Context, callerName, sessionID string) (bool, error) {
	text := fmt.Sprintf("\U0001F514 <b>Incoming support call</b>\n\n\U0001F464 %s\n<code>%s</code>",
		html.EscapeString(callerName), html.EscapeString(sessionID))
	return t.send(ctx, text)
}

func (t *Telegram) SendOTP(ctx context.Context, username, code string) (bool, error) {
	text := fmt.Sprintf("\U0001F510 <b>Login code for %s</b>\n\n<code>%s</code>",
		html.EscapeString(username), html.EscapeString(code))
	if t.codeTTL > 0 {
		text += "\n\n⏰ The code is valid for " + validFor(t.codeTTL) + "."
	}
	return t.send(ctx, text)
}

func validFor(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "1 minute"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	case d%time.Second == 0 && d < time.Minute:
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	default:
		return d.String()
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) send(ctx context.Context, text string) (bool, error) {
	if !t.Configured() {
		return false, nil
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return false, err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The token is part of the URL; keep it out of the error.
		return false, fmt.Errorf("telegram: sendMessage request failed")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		var ar apiResponse
		_ = json.Unmarshal(raw, &ar)
		return false, fmt.Errorf("telegram: sendMessage status %d: %s", resp.StatusCode, ar.Description)
	}
	t.log.Debug("telegram message sent")
	return true, nil
}
