package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/config"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
)

const (
	telegramAPIBase = "https://api.telegram.org"
	defaultTimeout  = 20 * time.Second
)

// TelegramNotifier posts alerts through the Telegram Bot API.
type TelegramNotifier struct {
	httpClient     *http.Client
	logger         *slog.Logger
	token          string
	defaultChannel string
	apiBase        string
	publicBaseURL  string
}

// NewTelegramNotifier creates a notifier. Missing credentials are allowed;
// Notify then reports NotConfigured.
func NewTelegramNotifier(cfg config.NotificationConfig, publicBaseURL string, logger *slog.Logger) *TelegramNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	apiBase := strings.TrimRight(cfg.APIBaseURL, "/")
	if apiBase == "" {
		apiBase = telegramAPIBase
	}

	return &TelegramNotifier{
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger,
		token:          cfg.Token,
		defaultChannel: cfg.DefaultChannel,
		apiBase:        apiBase,
		publicBaseURL:  publicBaseURL,
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK bool `json:"ok"`
}

// Notify implements Notifier.
func (n *TelegramNotifier) Notify(ctx context.Context, listing model.Listing, profile model.Profile) Outcome {
	chat := profile.ChatID
	if chat == "" {
		chat = n.defaultChannel
	}
	if n.token == "" || chat == "" {
		return NotConfigured
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:                chat,
		Text:                  FormatMessage(listing, profile, n.publicBaseURL),
		DisableWebPagePreview: true,
	})
	if err != nil {
		n.logger.Error("failed to encode telegram message", "error", err)
		return Failed
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("failed to build telegram request", "error", err)
		return Failed
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		// The error text embeds the URL, which carries the bot token.
		n.logger.Warn("telegram send failed", "profile", profile.Name, "url", listing.URL,
			"error", strings.ReplaceAll(err.Error(), n.token, "***"))
		return Failed
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.logger.Warn("telegram rejected message", "profile", profile.Name, "status", resp.StatusCode)
		return Failed
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		n.logger.Warn("failed to read telegram response", "error", err)
		return Failed
	}

	var ack sendMessageResponse
	if err := json.Unmarshal(raw, &ack); err != nil {
		// HTTP success with an unreadable body still counts as delivered.
		n.logger.Debug("unparsable telegram response", "error", err)
		return Sent
	}
	if !ack.OK {
		n.logger.Warn("telegram did not acknowledge message", "profile", profile.Name, "body", string(raw))
		return Failed
	}
	return Sent
}
