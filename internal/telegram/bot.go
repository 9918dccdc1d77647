package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Updater is the long-polling half of the Bot API. *tgbotapi.BotAPI
// satisfies it.
type Updater interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot polls for updates and hands each one to its Handler on its own
// goroutine. Bot implements server.Service.
type Bot struct {
	updater     Updater
	handler     *Handler
	pollTimeout time.Duration
	logger      *zap.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
}

// NewAPI authenticates against the Bot API with token.
//
// Postcondition: Returns a connected client or a non-nil error.
func NewAPI(token string, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	logger.Info("authorized on telegram",
		zap.String("bot", api.Self.UserName),
		zap.Int64("bot_id", api.Self.ID),
	)
	return api, nil
}

// NewBot creates a Bot.
//
// Precondition: updater, handler, and logger must be non-nil.
func NewBot(updater Updater, handler *Handler, pollTimeout time.Duration, logger *zap.Logger) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		updater:     updater,
		handler:     handler,
		pollTimeout: pollTimeout,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Start receives updates until Stop is called. Start must be called at most
// once; it returns immediately when Stop has already run.
//
// Postcondition: Returns nil once the update channel is closed.
func (b *Bot) Start() error {
	defer close(b.done)

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout / time.Second)
	updates := b.updater.GetUpdatesChan(u)
	b.started = true
	b.mu.Unlock()

	b.logger.Info("bot polling for updates", zap.Int("timeout_seconds", u.Timeout))
	for update := range updates {
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			b.handler.Handle(b.ctx, update)
		}()
	}
	return nil
}

// Stop ends polling and waits for every update already received, including
// those delivered while the last long poll drains, to finish.
//
// Postcondition: No handler is running and none will start.
func (b *Bot) Stop() {
	b.mu.Lock()
	b.stopped = true
	started := b.started
	b.mu.Unlock()

	if started {
		b.updater.StopReceivingUpdates()
		<-b.done
	}
	b.inflight.Wait()
	b.cancel()
}
