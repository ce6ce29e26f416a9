package bot

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap/zaptest"

	"github.com/region23/desco-balance-bot/internal/bot/keyboard"
	"github.com/region23/desco-balance-bot/internal/bot/service"
	storagemodels "github.com/region23/desco-balance-bot/internal/storage/models"
	"github.com/region23/desco-balance-bot/internal/storage/sqlite"
	"github.com/region23/desco-balance-bot/pkg/errors"
)

const testChatID = 10

type apiCall struct {
	method string
	chatID string
	text   string
}

// fakeTelegram имитирует Bot API и записывает вызовы
type fakeTelegram struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	_ = r.ParseMultipartForm(1 << 20)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{
		method: method,
		chatID: r.FormValue("chat_id"),
		text:   r.FormValue("text"),
	})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "sendMessage":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":10,"type":"private"}}}`))
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func (f *fakeTelegram) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.method == "sendMessage" {
			out = append(out, c.text)
		}
	}
	return out
}

func (f *fakeTelegram) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

func (f *fakeTelegram) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type fakeChecker struct {
	checked   []*storagemodels.User
	refreshes int
}

func (c *fakeChecker) CheckNow(ctx context.Context, u *storagemodels.User) error {
	c.checked = append(c.checked, u)
	return nil
}

func (c *fakeChecker) Refresh(ctx context.Context) error {
	c.refreshes++
	return nil
}

type testEnv struct {
	dispatcher *Dispatcher
	bot        *tgbot.Bot
	telegram   *fakeTelegram
	store      *sqlite.SQLiteStorage
	checker    *fakeChecker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	telegram := &fakeTelegram{}
	srv := httptest.NewServer(telegram)
	t.Cleanup(srv.Close)

	b, err := tgbot.New("123:abc", tgbot.WithServerURL(srv.URL), tgbot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("bot.New: %v", err)
	}

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := zaptest.NewLogger(t)
	checker := &fakeChecker{}
	svc := service.NewService(service.NewMessenger(b, log), store, checker, 999, log)

	return &testEnv{
		dispatcher: NewDispatcher(svc),
		bot:        b,
		telegram:   telegram,
		store:      store,
		checker:    checker,
	}
}

func (e *testEnv) send(t *testing.T, text string) {
	t.Helper()
	e.dispatcher.HandleUpdate(context.Background(), e.bot, &models.Update{
		ID: 1,
		Message: &models.Message{
			Chat: models.Chat{ID: testChatID, Type: "private"},
			From: &models.User{ID: testChatID, FirstName: "Rahim", Username: "rahim"},
			Text: text,
		},
	})
}

func (e *testEnv) click(t *testing.T, data string) {
	t.Helper()
	e.dispatcher.HandleUpdate(context.Background(), e.bot, &models.Update{
		ID: 2,
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb1",
			From: models.User{ID: testChatID, FirstName: "Rahim"},
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{Chat: models.Chat{ID: testChatID}},
			},
			Data: data,
		},
	})
}

func (e *testEnv) user(t *testing.T) *storagemodels.User {
	t.Helper()
	u, err := e.store.GetUser(context.Background(), testChatID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	return u
}

func lastMessage(t *testing.T, e *testEnv) string {
	t.Helper()
	msgs := e.telegram.messages()
	if len(msgs) == 0 {
		t.Fatalf("no messages sent")
	}
	return msgs[len(msgs)-1]
}

func TestHandleUpdate_AutoRegistersAndStarts(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, "/start")

	u := env.user(t)
	if u.FirstName != "Rahim" || u.Username != "rahim" {
		t.Errorf("profile not captured: %+v", u)
	}
	if !strings.Contains(lastMessage(t, env), "Welcome to DESCO Balance Check Bot") {
		t.Errorf("unexpected greeting: %q", lastMessage(t, env))
	}
}

func TestHandleUpdate_Account(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, "/account 12345678 -")
	u := env.user(t)
	if u.AccountNo != "12345678" || u.MeterNo != "" {
		t.Errorf("account not saved: %+v", u)
	}
	if env.checker.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", env.checker.refreshes)
	}
	if !strings.Contains(lastMessage(t, env), "Account details saved") {
		t.Errorf("unexpected reply: %q", lastMessage(t, env))
	}

	env.send(t, "/account - -")
	if env.user(t).AccountNo != "12345678" {
		t.Errorf("empty identifiers must be rejected")
	}
	if env.checker.refreshes != 1 {
		t.Errorf("rejected update must not refresh schedules")
	}

	env.send(t, "/start@desco_bot")
	if !strings.Contains(lastMessage(t, env), "Welcome back") {
		t.Errorf("registered user should be welcomed back: %q", lastMessage(t, env))
	}
}

func TestHandleUpdate_Times(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, "/times 21:30, 9:00")
	if got := env.user(t).NotificationTimes; !reflect.DeepEqual(got, []string{"09:00", "21:30"}) {
		t.Errorf("NotificationTimes = %v", got)
	}
	if env.checker.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", env.checker.refreshes)
	}

	env.send(t, "/times soon")
	if !strings.Contains(lastMessage(t, env), "Invalid format") {
		t.Errorf("expected format error, got %q", lastMessage(t, env))
	}
	if env.checker.refreshes != 1 {
		t.Errorf("invalid input must not refresh schedules")
	}
}

func TestHandleUpdate_ThresholdAndHourly(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, "/hourly 50")
	u := env.user(t)
	if !u.HourlyEnabled || u.Threshold != 50 {
		t.Errorf("hourly not enabled: %+v", u)
	}

	env.send(t, "/threshold 0")
	if env.user(t).HourlyEnabled {
		t.Errorf("threshold 0 must disable hourly alerts")
	}

	env.send(t, "/hourly 75")
	env.send(t, "/hourly 0")
	if u := env.user(t); u.HourlyEnabled {
		t.Errorf("/hourly 0 must disable hourly alerts: %+v", u)
	}
	if !strings.Contains(lastMessage(t, env), "Hourly alerts disabled") {
		t.Errorf("unexpected reply: %q", lastMessage(t, env))
	}

	env.send(t, "/threshold -3")
	if env.user(t).Threshold != 0 {
		t.Errorf("negative threshold must be rejected")
	}
}

func TestHandleUpdate_SubscriptionToggle(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, "/subscribe")
	if !strings.Contains(lastMessage(t, env), "/account") {
		t.Errorf("subscribe without account should point to /account: %q", lastMessage(t, env))
	}

	env.send(t, "/account 123")
	env.send(t, "/subscribe")
	if !strings.Contains(lastMessage(t, env), "Current Status: <b>OFF</b>") {
		t.Errorf("unexpected subscription status: %q", lastMessage(t, env))
	}

	env.click(t, keyboard.CallbackToggleSubscription)
	if !env.user(t).Subscribed {
		t.Fatalf("toggle should subscribe the user")
	}
	if env.telegram.count("answerCallbackQuery") != 1 {
		t.Errorf("callback query must be answered")
	}
	if !strings.Contains(lastMessage(t, env), "08:00, 16:00") {
		t.Errorf("confirmation should list notification times: %q", lastMessage(t, env))
	}

	env.click(t, keyboard.CallbackToggleSubscription)
	if env.user(t).Subscribed {
		t.Errorf("second toggle should unsubscribe")
	}
}

func TestHandleUpdate_Balance(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, "/balance")
	if len(env.checker.checked) != 0 {
		t.Fatalf("no check expected without saved account")
	}

	env.send(t, "/balance 555 -")
	if len(env.checker.checked) != 1 || env.checker.checked[0].AccountNo != "555" {
		t.Fatalf("one-off check not performed: %+v", env.checker.checked)
	}
	if env.user(t).AccountNo != "" {
		t.Errorf("one-off check must not save the account")
	}

	env.send(t, "/account 777")
	env.telegram.reset()
	env.send(t, "/balance")
	if lastMessage(t, env) != "Choose an option:" {
		t.Errorf("expected saved-account prompt, got %q", lastMessage(t, env))
	}

	env.click(t, keyboard.CallbackUseSaved)
	if len(env.checker.checked) != 2 || env.checker.checked[1].AccountNo != "777" {
		t.Errorf("saved account not checked: %+v", env.checker.checked)
	}
}

func TestHandleUpdate_Stop(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, "/account 123")
	env.click(t, keyboard.CallbackToggleSubscription)
	refreshes := env.checker.refreshes

	env.send(t, "/stop")

	if _, err := env.store.GetUser(context.Background(), testChatID); !stderrors.Is(err, errors.ErrUserNotFound) {
		t.Errorf("user must be deleted, GetUser error = %v", err)
	}
	if env.checker.refreshes != refreshes+1 {
		t.Errorf("deletion must refresh schedules")
	}
	if !strings.Contains(lastMessage(t, env), "have been deleted") {
		t.Errorf("unexpected reply: %q", lastMessage(t, env))
	}

	env.send(t, "/me")
	if u := env.user(t); u.AccountNo != "" || u.Subscribed {
		t.Errorf("returning user must start from defaults: %+v", u)
	}
}

func TestHandleUpdate_Default(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, "hello there")
	if !strings.Contains(lastMessage(t, env), "/help") {
		t.Errorf("default reply should mention /help: %q", lastMessage(t, env))
	}

	env.send(t, "/help")
	if !strings.Contains(lastMessage(t, env), "/threshold") {
		t.Errorf("help should list preference commands")
	}
}
