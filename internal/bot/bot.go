// Package bot connects the command router to Telegram through telebot.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/birthday-bot/internal/command"
	"github.com/Proton-105/birthday-bot/internal/domain"
	"github.com/Proton-105/birthday-bot/internal/health"
	"github.com/Proton-105/birthday-bot/pkg/config"
	"github.com/Proton-105/birthday-bot/pkg/logger"
)

const ModeWebhook = "webhook"

// Dispatcher routes a parsed command to its reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) (string, error)
}

// Gateway wraps telebot.Bot: text updates become command requests and
// replies go back to the originating chat.
type Gateway struct {
	telebot *telebot.Bot
	webhook *telebot.Webhook
	router  Dispatcher
	log     *slog.Logger

	running atomic.Bool
}

// Settings builds telebot settings from cfg. Handlers run synchronously, one
// update at a time. In webhook mode the webhook has no listen address; the
// gateway's handler is mounted on the application server.
func Settings(cfg config.BotConfig, log *slog.Logger) telebot.Settings {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token:       cfg.Token,
		Synchronous: true,
		OnError: func(err error, c telebot.Context) {
			attrs := []any{slog.Any("error", err)}
			if c != nil && c.Chat() != nil {
				attrs = append(attrs, slog.Int64("chat_id", c.Chat().ID))
			}
			log.Error("telegram update failed", attrs...)
		},
	}

	if cfg.Mode == ModeWebhook {
		settings.Poller = &telebot.Webhook{
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{Timeout: cfg.Timeout}
	}

	return settings
}

// New creates the telegram gateway for cfg.
func New(cfg config.BotConfig, router Dispatcher, log *slog.Logger) (*Gateway, error) {
	return NewWithSettings(Settings(cfg, log), router, log)
}

// NewWithSettings creates a gateway from explicit telebot settings.
func NewWithSettings(settings telebot.Settings, router Dispatcher, log *slog.Logger) (*Gateway, error) {
	if log == nil {
		log = slog.Default()
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	g := &Gateway{
		telebot: tb,
		router:  router,
		log:     log,
	}
	if wh, ok := settings.Poller.(*telebot.Webhook); ok {
		g.webhook = wh
	}

	if router != nil {
		tb.Handle(telebot.OnText, g.handleText)
	}

	return g, nil
}

// Start runs the telegram event loop. It blocks until Stop is called.
func (g *Gateway) Start() {
	g.log.Info("starting telegram bot", slog.Bool("webhook", g.webhook != nil))
	g.running.Store(true)
	g.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (g *Gateway) Stop() {
	g.log.Info("stopping telegram bot...")
	g.running.Store(false)
	g.telebot.Stop()
}

// WebhookHandler returns the webhook update handler, or nil in polling mode.
// Updates are processed inline; until Start is called, and after Stop, the
// handler answers 503 so Telegram redelivers.
func (g *Gateway) WebhookHandler() http.Handler {
	if g.webhook == nil {
		return nil
	}
	return http.HandlerFunc(g.serveWebhook)
}

func (g *Gateway) serveWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !g.running.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	var update telebot.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		g.log.Warn("cannot decode webhook update", slog.Any("error", err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	g.telebot.ProcessUpdate(update)
	w.WriteHeader(http.StatusOK)
}

func (g *Gateway) handleText(c telebot.Context) error {
	req, ok := command.Parse(c.Text())
	if !ok || c.Chat() == nil {
		return nil
	}

	req.ChatID = strconv.FormatInt(c.Chat().ID, 10)
	if msg := c.Message(); msg != nil {
		req.MessageID = msg.ID
	}
	if sender := c.Sender(); sender != nil {
		req.Sender = domain.Sender{
			UserName:  sender.Username,
			FirstName: sender.FirstName,
			LastName:  sender.LastName,
		}
	}

	ctx := logger.WithCorrelationID(context.Background(), "")
	reply, err := g.router.Dispatch(ctx, req)
	if err != nil {
		g.log.Error("command dispatch failed",
			slog.String("chat_id", req.ChatID),
			slog.String("command", req.Command),
			slog.Any("error", err),
		)
	}
	if reply == "" {
		return nil
	}

	if err := c.Send(reply); err != nil {
		return fmt.Errorf("send reply to chat %s: %w", req.ChatID, err)
	}
	return nil
}

// Send delivers text to chatID.
func (g *Gateway) Send(_ context.Context, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", chatID, err)
	}

	if _, err := g.telebot.Send(telebot.ChatID(id), text); err != nil {
		return fmt.Errorf("send message to chat %s: %w", chatID, err)
	}
	return nil
}

// SetCommands publishes the command menu.
func (g *Gateway) SetCommands() error {
	commands := make([]telebot.Command, 0, len(command.Descriptions))
	for _, d := range command.Descriptions {
		commands = append(commands, telebot.Command{Text: d.Name, Description: d.Description})
	}

	if err := g.telebot.SetCommands(commands); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}

// SetWebhook points Telegram at url.
func (g *Gateway) SetWebhook(url string) error {
	if url == "" {
		return errors.New("webhook url is empty")
	}

	wh := &telebot.Webhook{Endpoint: &telebot.WebhookEndpoint{PublicURL: url}}
	if err := g.telebot.SetWebhook(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes the webhook so the bot can poll again.
func (g *Gateway) DeleteWebhook() error {
	if err := g.telebot.RemoveWebhook(); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// HealthCheck asks Telegram who the bot is.
func (g *Gateway) HealthCheck(_ context.Context) error {
	if g == nil || g.telebot == nil || g.telebot.Me == nil {
		return health.ErrTelegramUnavailable
	}
	if _, err := g.telebot.Raw("getMe", nil); err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	return nil
}
