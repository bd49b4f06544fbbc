package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/birthday-bot/internal/command"
	apperrors "github.com/Proton-105/birthday-bot/internal/errors"
	"github.com/Proton-105/birthday-bot/internal/repository"
	"github.com/Proton-105/birthday-bot/internal/user"
	"github.com/Proton-105/birthday-bot/pkg/config"
	"github.com/Proton-105/birthday-bot/pkg/logger"
)

const testToken = "123:abc"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type apiCall struct {
	method string
	params map[string]any
}

// fakeTelegram answers every Bot API method with an empty successful result.
func fakeTelegram(t *testing.T) (*httptest.Server, func() []apiCall) {
	t.Helper()

	var mu sync.Mutex
	var calls []apiCall

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&params)

		mu.Lock()
		calls = append(calls, apiCall{method: r.URL.Path[len("/bot"+testToken+"/"):], params: params})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"chat":{"id":42}}}`)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []apiCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]apiCall(nil), calls...)
	}
}

func newTestGateway(t *testing.T, url string, router Dispatcher) *Gateway {
	t.Helper()

	g, err := NewWithSettings(telebot.Settings{
		Token:   testToken,
		URL:     url,
		Offline: true,
	}, router, testLogger())
	require.NoError(t, err)
	return g
}

type routerFunc func(ctx context.Context, req command.Request) (string, error)

func (f routerFunc) Dispatch(ctx context.Context, req command.Request) (string, error) {
	return f(ctx, req)
}

type fakeContext struct {
	telebot.Context
	msg  *telebot.Message
	sent []string
}

func (c *fakeContext) Text() string              { return c.msg.Text }
func (c *fakeContext) Chat() *telebot.Chat       { return c.msg.Chat }
func (c *fakeContext) Sender() *telebot.User     { return c.msg.Sender }
func (c *fakeContext) Message() *telebot.Message { return c.msg }
func (c *fakeContext) Send(what interface{}, _ ...interface{}) error {
	c.sent = append(c.sent, what.(string))
	return nil
}

func TestGateway_HandleText(t *testing.T) {
	var got command.Request
	var correlationID string
	g := newTestGateway(t, "http://127.0.0.1:0", routerFunc(func(ctx context.Context, req command.Request) (string, error) {
		got = req
		correlationID = logger.CorrelationIDFromContext(ctx)
		return "Birthday for Ann was correctly set", nil
	}))

	c := &fakeContext{msg: &telebot.Message{
		ID:     7,
		Text:   "/add@birthday_bot Ann 01/02",
		Chat:   &telebot.Chat{ID: -1001},
		Sender: &telebot.User{Username: "ann", FirstName: "Ann", LastName: "Lee"},
	}}
	require.NoError(t, g.handleText(c))

	assert.Equal(t, command.Request{
		ChatID:    "-1001",
		Command:   "add",
		Args:      "Ann 01/02",
		MessageID: 7,
		Sender:    got.Sender,
	}, got)
	assert.Equal(t, "ann", got.Sender.UserName)
	assert.Equal(t, "Lee", got.Sender.LastName)
	assert.NotEmpty(t, correlationID)
	assert.Equal(t, []string{"Birthday for Ann was correctly set"}, c.sent)
}

func TestGateway_IgnoresPlainText(t *testing.T) {
	called := false
	g := newTestGateway(t, "http://127.0.0.1:0", routerFunc(func(context.Context, command.Request) (string, error) {
		called = true
		return "x", nil
	}))

	c := &fakeContext{msg: &telebot.Message{Text: "hello", Chat: &telebot.Chat{ID: 1}}}
	require.NoError(t, g.handleText(c))
	assert.False(t, called)
	assert.Empty(t, c.sent)
}

func TestGateway_SendAndCommands(t *testing.T) {
	srv, calls := fakeTelegram(t)
	g := newTestGateway(t, srv.URL, nil)

	require.NoError(t, g.Send(context.Background(), "42", "It's Ann's birthday today!"))
	assert.Error(t, g.Send(context.Background(), "not-a-chat", "hi"))

	require.NoError(t, g.SetCommands())
	require.NoError(t, g.SetWebhook("https://example.com/webhook"))
	require.NoError(t, g.DeleteWebhook())
	assert.Error(t, g.SetWebhook(""))

	recorded := calls()
	require.Len(t, recorded, 4)

	assert.Equal(t, "sendMessage", recorded[0].method)
	assert.Equal(t, "42", recorded[0].params["chat_id"])
	assert.Equal(t, "It's Ann's birthday today!", recorded[0].params["text"])

	assert.Equal(t, "setMyCommands", recorded[1].method)
	assert.Equal(t, "setWebhook", recorded[2].method)
	assert.Equal(t, "deleteWebhook", recorded[3].method)
}

func TestSettings_Modes(t *testing.T) {
	poll := Settings(config.BotConfig{Token: testToken, Mode: "poll"}, testLogger())
	assert.IsType(t, &telebot.LongPoller{}, poll.Poller)
	assert.True(t, poll.Synchronous)

	hook := Settings(config.BotConfig{Token: testToken, Mode: ModeWebhook, WebhookURL: "https://example.com/webhook"}, testLogger())
	wh, ok := hook.Poller.(*telebot.Webhook)
	require.True(t, ok)
	assert.Empty(t, wh.Listen)
	assert.Equal(t, "https://example.com/webhook", wh.Endpoint.PublicURL)
}

func gatewayFromConfig(t *testing.T, cfg config.BotConfig, birthdays repository.BirthdayStore) *Gateway {
	t.Helper()

	srv, _ := fakeTelegram(t)
	settings := Settings(cfg, testLogger())
	settings.URL = srv.URL
	settings.Offline = true

	h := command.NewHandlers(birthdays, user.NewService(repository.NewMemoryUserStore(), 0, testLogger()), testLogger())
	router := command.NewDefaultRouter(h, apperrors.NewHandler(testLogger(), false), command.RouterOptions{}, testLogger())

	g, err := NewWithSettings(settings, router, testLogger())
	require.NoError(t, err)
	return g
}

func textUpdate(id int, text string) telebot.Update {
	return telebot.Update{
		ID: id,
		Message: &telebot.Message{
			ID:     id,
			Text:   text,
			Chat:   &telebot.Chat{ID: 42},
			Sender: &telebot.User{ID: 7, FirstName: "Ann"},
		},
	}
}

func TestGateway_ProcessUpdateRunsHandlersInline(t *testing.T) {
	birthdays := repository.NewMemoryBirthdayStore()
	g := gatewayFromConfig(t, config.BotConfig{Token: testToken, Mode: "poll"}, birthdays)

	for i := 0; i < 200; i++ {
		g.telebot.ProcessUpdate(textUpdate(i+1, fmt.Sprintf("/add p%d 01/02", i)))
	}

	list, err := birthdays.LoadByChat(context.Background(), "42")
	require.NoError(t, err)
	assert.Len(t, list, 200)
}

func TestGateway_WebhookUnavailableUntilStarted(t *testing.T) {
	birthdays := repository.NewMemoryBirthdayStore()
	g := gatewayFromConfig(t, config.BotConfig{
		Token:      testToken,
		Mode:       ModeWebhook,
		WebhookURL: "https://example.com/webhook",
	}, birthdays)

	handler := g.WebhookHandler()
	require.NotNil(t, handler)

	post := func(body string) int {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
		return rec.Code
	}

	payload, err := json.Marshal(textUpdate(1, "/add Ann 01/02"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, post(string(payload)))

	g.running.Store(true)
	assert.Equal(t, http.StatusOK, post(string(payload)))
	assert.Equal(t, http.StatusBadRequest, post("{"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	got, err := birthdays.Get(context.Background(), "42", "ann")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ann", got.Name)

	g.running.Store(false)
	assert.Equal(t, http.StatusServiceUnavailable, post(string(payload)))
}

func TestGateway_NoWebhookHandlerWhenPolling(t *testing.T) {
	g := gatewayFromConfig(t, config.BotConfig{Token: testToken, Mode: "poll"}, repository.NewMemoryBirthdayStore())
	assert.Nil(t, g.WebhookHandler())
}
