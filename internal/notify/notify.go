// Package notify delivers operator alerts. Every alert is logged; Telegram
// delivery is added when credentials are configured.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fd1az/triarb-bot/internal/apperror"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/httpclient"
	"github.com/fd1az/triarb-bot/internal/logger"
)

// Level is the alert severity.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelCritical
	LevelEmergency
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "WARNING"
	case LevelCritical:
		return "CRITICAL"
	case LevelEmergency:
		return "EMERGENCY"
	default:
		return "INFO"
	}
}

// Notifier sends an alert.
type Notifier interface {
	Notify(ctx context.Context, level Level, msg string) error
}

// New builds the notifier chain for cfg.
func New(cfg config.NotificationConfig, log logger.LoggerInterface) (Notifier, error) {
	logN := NewLogNotifier(log)
	if !cfg.TelegramEnabled() {
		return logN, nil
	}

	tg, err := NewTelegramNotifier(cfg)
	if err != nil {
		return nil, err
	}
	return Multi{logN, tg}, nil
}

// LogNotifier writes alerts to the application log.
type LogNotifier struct {
	log logger.LoggerInterface
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log logger.LoggerInterface) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify logs msg at a level matching the alert severity.
func (n *LogNotifier) Notify(ctx context.Context, level Level, msg string) error {
	switch level {
	case LevelInfo:
		n.log.Infoc(ctx, 3, "alert", "level", level.String(), "message", msg)
	case LevelWarning:
		n.log.Warnc(ctx, 3, "alert", "level", level.String(), "message", msg)
	default:
		n.log.Errorc(ctx, 3, "alert", "level", level.String(), "message", msg)
	}
	return nil
}

// TelegramNotifier posts alerts to a Telegram chat through the bot API.
type TelegramNotifier struct {
	client httpclient.Client
	token  string
	chatID string
	now    func() time.Time
}

// NewTelegramNotifier creates a TelegramNotifier.
func NewTelegramNotifier(cfg config.NotificationConfig) (*TelegramNotifier, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("telegram"),
		httpclient.WithBaseURL(cfg.TelegramURL),
		httpclient.WithRequestTimeout(timeout),
	)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err),
			apperror.WithContext("telegram client"))
	}

	return &TelegramNotifier{
		client: client,
		token:  cfg.TelegramBotToken,
		chatID: cfg.TelegramChatID,
		now:    time.Now,
	}, nil
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Notify sends msg to the configured chat.
func (n *TelegramNotifier) Notify(ctx context.Context, level Level, msg string) error {
	body := sendMessageRequest{
		ChatID:                n.chatID,
		Text:                  fmt.Sprintf("*%s* - %s\n%s", level, n.now().UTC().Format(time.RFC3339), msg),
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	}

	_, err := n.client.NewRequestWithOptions(
		httpclient.WithResponseErrorHandler(func(status int, respBody []byte) error {
			if status != http.StatusOK {
				return apperror.New(apperror.CodeNotificationFailed,
					apperror.WithContext(fmt.Sprintf("telegram status %d: %s", status, respBody)))
			}
			return nil
		}),
	).SetBody(body).Post(ctx, "/bot"+n.token+"/sendMessage")
	if err != nil {
		return apperror.Wrap(err, apperror.CodeNotificationFailed, "telegram")
	}
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

// Notify calls every notifier.
func (m Multi) Notify(ctx context.Context, level Level, msg string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, level, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
