// Package telegram connects the game to the Telegram Bot API: it receives
// command updates by long polling and replies in the originating chat.
package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/cory-johannsen/growbot/internal/game/attempt"
	"github.com/cory-johannsen/growbot/internal/game/ranking"
)

// Sender delivers a request to the Bot API. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Game is the command core the handler drives.
type Game interface {
	Attempt(ctx context.Context, scopeID int64, p attempt.Player) (attempt.Outcome, error)
	Top(ctx context.Context, scopeID int64, n int) ([]ranking.Entry, error)
}

// Handler answers bot commands. It is safe for concurrent use when Game and
// Sender are.
type Handler struct {
	sender  Sender
	game    Game
	topSize int
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler creates a Handler that shows topSize leaderboard rows.
//
// Precondition: sender, game, and logger must be non-nil; topSize >= 1.
func NewHandler(sender Sender, game Game, topSize int, logger *zap.Logger) *Handler {
	return &Handler{
		sender:  sender,
		game:    game,
		topSize: topSize,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle dispatches one update. Updates that are not commands are ignored.
func (h *Handler) Handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}

	log := h.logger.With(
		zap.Int("update_id", update.UpdateID),
		zap.Int64("chat", msg.Chat.ID),
		zap.String("command", msg.Command()),
	)
	if msg.From != nil {
		log = log.With(zap.Int64("user", msg.From.ID))
	}

	switch msg.Command() {
	case "start", "help":
		h.reply(log, msg.Chat.ID, helpText)
	case "dick":
		h.handleAttempt(ctx, log, msg)
	case "top":
		h.handleTop(ctx, log, msg.Chat.ID)
	case "ping":
		h.handlePing(log, msg.Chat.ID)
	default:
		log.Debug("ignoring unknown command")
	}
}

func (h *Handler) handleAttempt(ctx context.Context, log *zap.Logger, msg *tgbotapi.Message) {
	if msg.From == nil {
		log.Debug("ignoring attempt without sender")
		return
	}
	name := displayName(msg.From)

	out, err := h.game.Attempt(ctx, msg.Chat.ID, attempt.Player{ID: msg.From.ID, Name: name})
	if err != nil {
		log.Error("attempt failed", zap.Error(err))
		h.reply(log, msg.Chat.ID, failureText)
		return
	}
	h.reply(log, msg.Chat.ID, AttemptText(Mention(msg.From.ID, name), out))
}

func (h *Handler) handleTop(ctx context.Context, log *zap.Logger, chatID int64) {
	entries, err := h.game.Top(ctx, chatID, h.topSize)
	if err != nil {
		log.Error("leaderboard failed", zap.Error(err))
		h.reply(log, chatID, failureText)
		return
	}
	h.reply(log, chatID, TopText(entries, h.topSize))
}

func (h *Handler) handlePing(log *zap.Logger, chatID int64) {
	start := h.now()
	sent, err := h.sender.Send(tgbotapi.NewMessage(chatID, pongText))
	if err != nil {
		log.Error("sending pong", zap.Error(err))
		return
	}
	api := h.now().Sub(start)
	total := h.now().Sub(start)

	edit := tgbotapi.NewEditMessageText(chatID, sent.MessageID, PingText(api.Milliseconds(), total.Milliseconds()))
	if _, err := h.sender.Send(edit); err != nil {
		log.Error("editing pong", zap.Error(err))
	}
}

func (h *Handler) reply(log *zap.Logger, chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	if _, err := h.sender.Send(m); err != nil {
		log.Error("sending reply", zap.Error(err))
	}
}

func displayName(u *tgbotapi.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.UserName
}
