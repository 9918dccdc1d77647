package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/growbot/internal/game/attempt"
	"github.com/cory-johannsen/growbot/internal/game/cooldown"
	"github.com/cory-johannsen/growbot/internal/game/ranking"
	"github.com/cory-johannsen/growbot/internal/storage/record"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

type MockGame struct {
	mock.Mock
}

func (m *MockGame) Attempt(ctx context.Context, scopeID int64, p attempt.Player) (attempt.Outcome, error) {
	args := m.Called(ctx, scopeID, p)
	return args.Get(0).(attempt.Outcome), args.Error(1)
}

func (m *MockGame) Top(ctx context.Context, scopeID int64, n int) ([]ranking.Entry, error) {
	args := m.Called(ctx, scopeID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ranking.Entry), args.Error(1)
}

func commandUpdate(chatID, userID int64, firstName, command string) tgbotapi.Update {
	text := "/" + command
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 10,
			From:      &tgbotapi.User{ID: userID, FirstName: firstName},
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
		},
	}
}

func htmlMessage(chatID int64, contains ...string) interface{} {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		m, ok := c.(tgbotapi.MessageConfig)
		if !ok || m.ChatID != chatID || m.ParseMode != tgbotapi.ModeHTML {
			return false
		}
		for _, s := range contains {
			if !strings.Contains(m.Text, s) {
				return false
			}
		}
		return true
	})
}

func newHandler(t *testing.T) (*Handler, *MockSender, *MockGame) {
	sender := &MockSender{}
	game := &MockGame{}
	return NewHandler(sender, game, 10, zaptest.NewLogger(t)), sender, game
}

func TestHandle_Help(t *testing.T) {
	h, sender, _ := newHandler(t)
	sender.On("Send", htmlMessage(5, "/dick", "/top", "/ping")).Return(tgbotapi.Message{}, nil).Once()

	h.Handle(context.Background(), commandUpdate(5, 1, "Alice", "help"))
	sender.AssertExpectations(t)
}

func TestHandle_AttemptApplied(t *testing.T) {
	h, sender, game := newHandler(t)
	out := attempt.Outcome{
		Attempted: true,
		Delta:     -4,
		Record:    record.PlayerRecord{Name: "Alice", Score: 6},
		Rank:      2,
		Next:      cooldown.Status{Remaining: 23*time.Hour + 59*time.Minute},
	}
	game.On("Attempt", mock.Anything, int64(-100), attempt.Player{ID: 7, Name: "Alice"}).Return(out, nil).Once()
	sender.On("Send", htmlMessage(-100,
		`<a href="tg://user?id=7">Alice</a>`,
		"shrank by 4 cm",
		"now 6 cm",
		"#2",
		"23 h 59 min",
	)).Return(tgbotapi.Message{}, nil).Once()

	h.Handle(context.Background(), commandUpdate(-100, 7, "Alice", "dick"))
	game.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestHandle_AttemptOnCooldown(t *testing.T) {
	h, sender, game := newHandler(t)
	out := attempt.Outcome{
		Record: record.PlayerRecord{Name: "Bob", Score: 12},
		Rank:   1,
		Next:   cooldown.Status{Remaining: 5*time.Hour + 30*time.Minute},
	}
	game.On("Attempt", mock.Anything, int64(3), attempt.Player{ID: 8, Name: "Bob"}).Return(out, nil).Once()
	sender.On("Send", htmlMessage(3, "is 12 cm", "#1", "5 h 30 min")).Return(tgbotapi.Message{}, nil).Once()

	h.Handle(context.Background(), commandUpdate(3, 8, "Bob", "dick"))
	sender.AssertExpectations(t)
}

func TestHandle_AttemptEscapesName(t *testing.T) {
	h, sender, game := newHandler(t)
	game.On("Attempt", mock.Anything, int64(3), attempt.Player{ID: 8, Name: "<b>x</b>"}).
		Return(attempt.Outcome{Attempted: true, Delta: 1, Rank: 1}, nil).Once()
	sender.On("Send", htmlMessage(3, "&lt;b&gt;x&lt;/b&gt;", "grew by 1 cm")).Return(tgbotapi.Message{}, nil).Once()

	h.Handle(context.Background(), commandUpdate(3, 8, "<b>x</b>", "dick"))
	sender.AssertExpectations(t)
}

func TestHandle_AttemptStorageFailure(t *testing.T) {
	h, sender, game := newHandler(t)
	game.On("Attempt", mock.Anything, int64(3), mock.Anything).
		Return(attempt.Outcome{}, errors.Join(record.ErrIO, errors.New("disk full"))).Once()
	sender.On("Send", htmlMessage(3, failureText)).Return(tgbotapi.Message{}, nil).Once()

	h.Handle(context.Background(), commandUpdate(3, 8, "Bob", "dick"))
	sender.AssertExpectations(t)
}

func TestHandle_TopEmpty(t *testing.T) {
	h, sender, game := newHandler(t)
	game.On("Top", mock.Anything, int64(9), 10).Return([]ranking.Entry{}, nil).Once()
	sender.On("Send", htmlMessage(9, "No players yet")).Return(tgbotapi.Message{}, nil).Once()

	h.Handle(context.Background(), commandUpdate(9, 1, "a", "top"))
	sender.AssertExpectations(t)
}

func TestHandle_TopListsEntries(t *testing.T) {
	h, sender, game := newHandler(t)
	entries := []ranking.Entry{
		{UserID: 2, Record: record.PlayerRecord{Name: "Zed", Score: 30}, Position: 1},
		{UserID: 1, Record: record.PlayerRecord{Name: "Amy", Score: -3}, Position: 2},
	}
	game.On("Top", mock.Anything, int64(9), 10).Return(entries, nil).Once()
	sender.On("Send", htmlMessage(9, "Top 10", "1. <b>Zed</b> (30 cm)", "2. <b>Amy</b> (-3 cm)")).
		Return(tgbotapi.Message{}, nil).Once()

	h.Handle(context.Background(), commandUpdate(9, 1, "a", "top"))
	sender.AssertExpectations(t)
}

func TestHandle_Ping(t *testing.T) {
	h, sender, _ := newHandler(t)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		m, ok := c.(tgbotapi.MessageConfig)
		return ok && m.Text == pongText
	})).Return(tgbotapi.Message{MessageID: 77}, nil).Once()
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		e, ok := c.(tgbotapi.EditMessageTextConfig)
		return ok && e.MessageID == 77 && e.ChatID == 4 && strings.HasPrefix(e.Text, "Pong! ") &&
			strings.Contains(e.Text, "(API RTT), total")
	})).Return(tgbotapi.Message{}, nil).Once()

	h.Handle(context.Background(), commandUpdate(4, 1, "a", "ping"))
	sender.AssertExpectations(t)
}

func TestHandle_IgnoresNonCommands(t *testing.T) {
	h, sender, game := newHandler(t)
	h.Handle(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 1}}})
	h.Handle(context.Background(), tgbotapi.Update{})
	h.Handle(context.Background(), commandUpdate(1, 1, "a", "unknown"))
	sender.AssertNotCalled(t, "Send", mock.Anything)
	game.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything, mock.Anything)
}

func TestDisplayNameFallsBackToUsername(t *testing.T) {
	assert.Equal(t, "alice", displayName(&tgbotapi.User{UserName: "alice"}))
	assert.Equal(t, "Alice", displayName(&tgbotapi.User{FirstName: "Alice", UserName: "alice"}))
}

func TestPingText(t *testing.T) {
	assert.Equal(t, "Pong! 12ms (API RTT), total 15ms", PingText(12, 15))
}

type fakeUpdater struct {
	ch      chan tgbotapi.Update
	once    sync.Once
	timeout int
}

func (f *fakeUpdater) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	f.timeout = cfg.Timeout
	return f.ch
}

func (f *fakeUpdater) StopReceivingUpdates() {
	f.once.Do(func() { close(f.ch) })
}

func TestBot_DispatchesUpdatesAndStops(t *testing.T) {
	h, sender, _ := newHandler(t)
	var sent sync.WaitGroup
	sent.Add(2)
	sender.On("Send", mock.Anything).Run(func(mock.Arguments) { sent.Done() }).Return(tgbotapi.Message{}, nil).Twice()

	up := &fakeUpdater{ch: make(chan tgbotapi.Update, 2)}
	bot := NewBot(up, h, 30*time.Second, zaptest.NewLogger(t))

	done := make(chan error, 1)
	go func() { done <- bot.Start() }()

	up.ch <- commandUpdate(1, 1, "a", "help")
	up.ch <- commandUpdate(2, 1, "a", "start")
	sent.Wait()

	bot.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
	assert.Equal(t, 30, up.timeout)
	sender.AssertExpectations(t)
}

// drainingUpdater behaves like a long poll that is still in flight when
// polling stops: one more update arrives after StopReceivingUpdates returns.
type drainingUpdater struct {
	ch   chan tgbotapi.Update
	late tgbotapi.Update
	once sync.Once
}

func (d *drainingUpdater) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return d.ch
}

func (d *drainingUpdater) StopReceivingUpdates() {
	d.once.Do(func() {
		go func() {
			time.Sleep(50 * time.Millisecond)
			d.ch <- d.late
			close(d.ch)
		}()
	})
}

func TestBot_StopWaitsForDrainedUpdates(t *testing.T) {
	h, sender, game := newHandler(t)
	var ctxErr error
	game.On("Attempt", mock.Anything, int64(6), mock.Anything).
		Run(func(args mock.Arguments) { ctxErr = args.Get(0).(context.Context).Err() }).
		Return(attempt.Outcome{Attempted: true, Delta: 1, Rank: 1}, nil).Once()
	sender.On("Send", htmlMessage(6, "grew by 1 cm")).Return(tgbotapi.Message{}, nil).Once()

	up := &drainingUpdater{ch: make(chan tgbotapi.Update, 1), late: commandUpdate(6, 2, "Eve", "dick")}
	bot := NewBot(up, h, 30*time.Second, zaptest.NewLogger(t))

	started := make(chan error, 1)
	go func() { started <- bot.Start() }()
	require.Eventually(t, func() bool {
		bot.mu.Lock()
		defer bot.mu.Unlock()
		return bot.started
	}, 2*time.Second, 5*time.Millisecond)

	bot.Stop()

	game.AssertExpectations(t)
	sender.AssertExpectations(t)
	assert.NoError(t, ctxErr)
	assert.Error(t, bot.ctx.Err())
	require.NoError(t, <-started)
}

func TestBot_StopBeforeStart(t *testing.T) {
	h, _, _ := newHandler(t)
	up := &fakeUpdater{ch: make(chan tgbotapi.Update)}
	bot := NewBot(up, h, time.Second, zaptest.NewLogger(t))

	bot.Stop()
	assert.NoError(t, bot.Start())
}

func TestNewAPI_EmptyToken(t *testing.T) {
	_, err := NewAPI("", zaptest.NewLogger(t))
	assert.Error(t, err)
}
