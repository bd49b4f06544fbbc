package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/birthday-bot/internal/domain"
	apperrors "github.com/Proton-105/birthday-bot/internal/errors"
	"github.com/Proton-105/birthday-bot/internal/idempotency"
	"github.com/Proton-105/birthday-bot/internal/ratelimit"
	"github.com/Proton-105/birthday-bot/internal/repository"
	"github.com/Proton-105/birthday-bot/internal/user"
	"github.com/Proton-105/birthday-bot/pkg/config"
)

const chatID = "42"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	router    *Router
	birthdays *repository.MemoryBirthdayStore
	users     *repository.MemoryUserStore
}

func newFixture(t *testing.T, today time.Time) *fixture {
	t.Helper()

	birthdays := repository.NewMemoryBirthdayStore()
	users := repository.NewMemoryUserStore()
	h := NewHandlers(birthdays, user.NewService(users, 0, testLogger()), testLogger())
	h.now = func() time.Time { return today }

	return &fixture{
		router:    NewDefaultRouter(h, apperrors.NewHandler(testLogger(), false), RouterOptions{}, testLogger()),
		birthdays: birthdays,
		users:     users,
	}
}

func (f *fixture) send(t *testing.T, text string) string {
	t.Helper()

	req, ok := Parse(text)
	require.True(t, ok, "not a command: %q", text)
	req.ChatID = chatID
	req.Sender = domain.Sender{UserName: "ann", FirstName: "Ann"}

	reply, err := f.router.Dispatch(context.Background(), req)
	require.NoError(t, err)
	return reply
}

func TestParse(t *testing.T) {
	testCases := []struct {
		text    string
		command string
		args    string
		ok      bool
	}{
		{text: "/add John Smith 01/02", command: "add", args: "John Smith 01/02", ok: true},
		{text: "/ADD@BirthdayBot  Ann 1/1 ", command: "add", args: "Ann 1/1", ok: true},
		{text: "/list", command: "list", ok: true},
		{text: "/get\nann", command: "get", args: "ann", ok: true},
		{text: "hello there", ok: false},
		{text: "/", ok: false},
		{text: "/@bot", ok: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.text, func(t *testing.T) {
			req, ok := Parse(tc.text)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.command, req.Command)
			assert.Equal(t, tc.args, req.Args)
		})
	}
}

func TestRouter_AddGetDelete(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	assert.Equal(t, "Birthday for John Smith was correctly set", f.send(t, "/add John  Smith 5/3/1990"))
	assert.Equal(t, "05/03/1990", f.send(t, "/get john smith"))
	assert.Equal(t, "05/03/1990", f.send(t, "/query JOHN SMITH"))

	assert.Equal(t, "Birthday for john smith was correctly set", f.send(t, "/set john smith 06/03"))
	assert.Equal(t, "06/03", f.send(t, "/get John Smith"))

	assert.Equal(t, "Birthday correctly deleted", f.send(t, "/delete John Smith"))
	assert.Equal(t, "No birthday found for John Smith", f.send(t, "/delete John Smith"))
	assert.Equal(t, "No birthday found for Nobody", f.send(t, "/get Nobody"))
}

func TestRouter_ValidationReplies(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	testCases := []struct {
		text  string
		reply string
	}{
		{text: "/add", reply: "Invalid input. Please use /add <name> <dd/mm(/yyyy)>"},
		{text: "/add Ann", reply: "Invalid input. Please use /add <name> <dd/mm(/yyyy)>"},
		{text: "/add Ann 2001-01-01", reply: "Invalid date format. Please use dd/mm or dd/mm/yyyy"},
		{text: "/add Ann 29/02/1991", reply: "Invalid date format. Please use dd/mm or dd/mm/yyyy"},
		{text: "/add Ann 32/01", reply: "Invalid date format. Please use dd/mm or dd/mm/yyyy"},
		{text: "/get", reply: "Invalid input. Please use /get <name>"},
		{text: "/delete   ", reply: "Invalid input. Please use /delete <name>"},
		{text: "/listupcoming soon", reply: "Invalid number of days. Please use /listupcoming <n>"},
		{text: "/listupcoming 366", reply: "Number of days must be between 0 and 365"},
		{text: "/listupcoming -1", reply: "Number of days must be between 0 and 365"},
		{text: "/setreminderhour", reply: "Invalid hour. Please use /setreminderhour <hour>"},
		{text: "/setreminderhour nine", reply: "Invalid hour. Please use /setreminderhour <hour>"},
		{text: "/setreminderhour 24", reply: "Hour must be between 0 and 23"},
		{text: "/unknown", reply: "Command not found"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.reply, f.send(t, tc.text))
		})
	}
}

func TestRouter_ListAndUpcoming(t *testing.T) {
	f := newFixture(t, time.Date(2026, 12, 25, 10, 0, 0, 0, time.UTC))

	assert.Equal(t, "No birthdays found", f.send(t, "/list"))
	assert.Equal(t, "No upcoming birthdays in the next 14 days", f.send(t, "/listupcoming"))

	f.send(t, "/add Ann 03/01")
	f.send(t, "/add Bob 25/12/1980")
	f.send(t, "/add Cid 08/01")
	f.send(t, "/add Dee 15/06")

	assert.Equal(t, "Ann - 03/01\nBob - 25/12/1980\nCid - 08/01\nDee - 15/06", f.send(t, "/query_all"))
	assert.Equal(t, "Bob - 25/12/1980\nAnn - 03/01", f.send(t, "/listupcoming"))
	assert.Equal(t, "Bob - 25/12/1980", f.send(t, "/listupcoming 0"))
	assert.Equal(t, "Bob - 25/12/1980\nAnn - 03/01\nCid - 08/01", f.send(t, "/listupcoming 15"))
}

func TestRouter_StartAndReminderHour(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	assert.Equal(t, HelpText(), f.send(t, "/start"))
	u, err := f.users.Get(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, 0, u.ReminderHour)
	assert.Equal(t, "ann", u.UserName)

	assert.Equal(t, "Reminder hour set to 9:00 UTC", f.send(t, "/setreminderhour 9"))
	f.send(t, "/start")
	u, err = f.users.Get(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, 9, u.ReminderHour)
}

func TestRouter_RejectedReminderHourKeepsStoredHour(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	assert.Equal(t, "Reminder hour set to 7:00 UTC", f.send(t, "/setreminderhour 7"))

	assert.Equal(t, "Hour must be between 0 and 23", f.send(t, "/setreminderhour 24"))
	assert.Equal(t, "Invalid hour. Please use /setreminderhour <hour>", f.send(t, "/setreminderhour 7pm"))

	u, err := f.users.Get(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, 7, u.ReminderHour)
}

func TestHelpText_ListsEveryCommand(t *testing.T) {
	help := HelpText()
	assert.Contains(t, help, "I can help you remember birthdays.\n")
	for _, d := range Descriptions {
		assert.Contains(t, help, "/"+d.Usage+" - "+d.Description+"\n")
	}
}

type mockBirthdayStore struct {
	mock.Mock
	repository.BirthdayStore
}

func (m *mockBirthdayStore) LoadByChat(ctx context.Context, chatID string) ([]domain.Birthday, error) {
	args := m.Called(ctx, chatID)
	birthdays, _ := args.Get(0).([]domain.Birthday)
	return birthdays, args.Error(1)
}

func TestRouter_StorageFailureKeepsServing(t *testing.T) {
	store := &mockBirthdayStore{}
	store.On("LoadByChat", mock.Anything, chatID).Return(nil, errors.New("connection refused")).Once()
	store.On("LoadByChat", mock.Anything, chatID).Return([]domain.Birthday{{Name: "Ann", Day: 1, Month: 2}}, nil).Once()

	h := NewHandlers(store, user.NewService(repository.NewMemoryUserStore(), 0, testLogger()), testLogger())
	router := NewDefaultRouter(h, apperrors.NewHandler(testLogger(), false), RouterOptions{}, testLogger())
	ctx := context.Background()

	reply, err := router.Dispatch(ctx, Request{ChatID: chatID, Command: "list"})
	require.NoError(t, err)
	assert.Equal(t, apperrors.GenericUserMessage, reply)

	reply, err = router.Dispatch(ctx, Request{ChatID: chatID, Command: "list"})
	require.NoError(t, err)
	assert.Equal(t, "Ann - 01/02", reply)
	store.AssertExpectations(t)
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	router := NewRouter(testLogger())
	router.Use(RecoveryMiddleware(testLogger(), apperrors.NewHandler(testLogger(), false)))
	router.Register("boom", func(context.Context, Request) (string, error) {
		panic("nil map")
	})

	reply, err := router.Dispatch(context.Background(), Request{ChatID: chatID, Command: "boom"})
	require.NoError(t, err)
	assert.Equal(t, apperrors.GenericUserMessage, reply)
}

func TestRouter_RateLimit(t *testing.T) {
	guard := ratelimit.NewGuard(ratelimit.NewMemoryLimiter(testLogger()), ratelimit.NewRules(config.RateLimitConfig{
		Enabled: true,
		PerChat: config.RateLimitRule{Limit: 2, Window: "1m"},
	}), testLogger())

	h := NewHandlers(repository.NewMemoryBirthdayStore(), user.NewService(repository.NewMemoryUserStore(), 0, testLogger()), testLogger())
	router := NewDefaultRouter(h, apperrors.NewHandler(testLogger(), false), RouterOptions{Guard: guard}, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		reply, err := router.Dispatch(ctx, Request{ChatID: chatID, Command: "list"})
		require.NoError(t, err)
		assert.Equal(t, "No birthdays found", reply)
	}

	reply, err := router.Dispatch(ctx, Request{ChatID: chatID, Command: "list"})
	require.NoError(t, err)
	assert.Equal(t, "Too many requests. Please slow down.", reply)

	reply, err = router.Dispatch(ctx, Request{ChatID: "7", Command: "list"})
	require.NoError(t, err)
	assert.Equal(t, "No birthdays found", reply)
}

func TestMetricLabel(t *testing.T) {
	assert.Equal(t, "add", metricLabel("add"))
	assert.Equal(t, "unknown", metricLabel("drop_tables"))
}

type memoryIdempotency struct {
	replies map[string]string
	calls   int
}

func (m *memoryIdempotency) Execute(ctx context.Context, key string, _ time.Duration, fn idempotency.Operation) (*idempotency.Result, error) {
	m.calls++
	if reply, ok := m.replies[key]; ok {
		return &idempotency.Result{Reply: reply, FromCache: true}, nil
	}
	reply, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	m.replies[key] = reply
	return &idempotency.Result{Reply: reply}, nil
}

func TestRouter_RedeliveredMessageRepliesOnce(t *testing.T) {
	store := repository.NewMemoryBirthdayStore()
	require.NoError(t, store.Store(context.Background(), chatID, domain.Birthday{Name: "Ann", Day: 1, Month: 2}))

	dedup := &memoryIdempotency{replies: map[string]string{}}
	h := NewHandlers(store, user.NewService(repository.NewMemoryUserStore(), 0, testLogger()), testLogger())
	router := NewDefaultRouter(h, apperrors.NewHandler(testLogger(), false), RouterOptions{
		Idempotency:    dedup,
		IdempotencyTTL: time.Hour,
	}, testLogger())
	ctx := context.Background()

	req := Request{ChatID: chatID, Command: "delete", Args: "Ann", MessageID: 10}
	for i := 0; i < 2; i++ {
		reply, err := router.Dispatch(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "Birthday correctly deleted", reply)
	}

	reply, err := router.Dispatch(ctx, Request{ChatID: chatID, Command: "delete", Args: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "No birthday found for Ann", reply)
	assert.Equal(t, 2, dedup.calls)
}
