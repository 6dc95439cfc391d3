package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"oispurts/internal/config"
	apperrors "oispurts/internal/errors"
	"oispurts/internal/infrastructure"
)

// Bot long-polls the Telegram Bot API and answers every message and
// inline button press through Commands. Each update is handled in its own
// goroutine so a slow /refresh does not hold up other chats.
type Bot struct {
	api      *tgbotapi.BotAPI
	commands *Commands
	timeout  int
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// slogAdapter routes the library's own log lines into slog
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Println(v ...interface{}) {
	a.logger.Warn(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (a slogAdapter) Printf(format string, v ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, v...))
}

// New connects to the Bot API and verifies the token with getMe. client may
// be nil to use http.DefaultClient.
func New(cfg config.BotConfig, commands *Commands, client *http.Client, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = infrastructure.WithComponent(logger, "bot")

	if cfg.Token == "" {
		return nil, apperrors.NewConfigError("bot token is required when the bot is enabled", nil)
	}
	if client == nil {
		client = http.DefaultClient
	}

	if err := tgbotapi.SetLogger(slogAdapter{logger: logger}); err != nil {
		return nil, fmt.Errorf("set bot logger: %w", err)
	}

	endpoint := strings.TrimRight(cfg.APIURL, "/") + "/bot%s/%s"
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, apperrors.NewNetworkError("connect to bot API", err)
	}

	logger.Info("Telegram bot authorized", slog.String("username", api.Self.UserName))
	return &Bot{
		api:      api,
		commands: commands,
		timeout:  int(cfg.PollTimeout.Seconds()),
		logger:   logger,
	}, nil
}

// Run polls for updates until ctx is cancelled. It waits for in-flight
// replies before returning.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(u)

	b.logger.InfoContext(ctx, "Telegram bot polling started", slog.Int("poll_timeout", b.timeout))
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("Telegram bot stopped")
			return nil

		case update, ok := <-updates:
			if !ok {
				return nil
			}
			switch {
			case update.Message != nil:
				msg := update.Message
				b.wg.Add(1)
				go func() {
					defer b.wg.Done()
					b.handle(ctx, msg)
				}()
			case update.CallbackQuery != nil:
				press := update.CallbackQuery
				b.wg.Add(1)
				go func() {
					defer b.wg.Done()
					b.handleButton(ctx, press)
				}()
			}
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	ctx = infrastructure.WithTraceID(ctx, uuid.New().String())

	reply := b.commands.Handle(ctx, msg.Text)
	if reply == "" {
		return
	}

	var markup interface{}
	if HasKeyboard(msg.Text) {
		markup = inlineKeyboard(StartKeyboard)
	}
	b.send(ctx, msg.Chat.ID, reply, markup)
}

// handleButton acknowledges the press so the client stops its spinner,
// then replies in the chat the button was shown in
func (b *Bot) handleButton(ctx context.Context, press *tgbotapi.CallbackQuery) {
	ctx = infrastructure.WithTraceID(ctx, uuid.New().String())

	if _, err := b.api.Request(tgbotapi.NewCallback(press.ID, "")); err != nil {
		b.logger.WarnContext(ctx, "Failed to answer button press",
			slog.String("callback_id", press.ID),
			slog.String("error", err.Error()))
	}

	if press.Message == nil {
		return
	}
	reply := b.commands.HandleButton(ctx, press.Data)
	if reply == "" {
		return
	}
	b.send(ctx, press.Message.Chat.ID, reply, nil)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup interface{}) {
	out := tgbotapi.NewMessage(chatID, text)
	out.ParseMode = tgbotapi.ModeMarkdownV2
	out.DisableWebPagePreview = true
	if markup != nil {
		out.ReplyMarkup = markup
	}

	if _, err := b.api.Send(out); err != nil {
		b.logger.ErrorContext(ctx, "Failed to send reply",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()))
	}
}

func inlineKeyboard(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	markup := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}
		markup = append(markup, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(markup...)
}
