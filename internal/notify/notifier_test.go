package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name string
	err  error
	mu   sync.Mutex
	sent []string
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, title)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func TestNotifierFiltersEvents(t *testing.T) {
	rec := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{rec}, []string{" redeem_success ", "redeem_failed"}, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(context.Background(), "redeem_success", "ok", "body"))
	require.NoError(t, n.Notify(context.Background(), "redeem_partial", "skipped", "body"))
	require.NoError(t, n.NotifyAll(context.Background(), "startup", "body"))

	assert.Equal(t, []string{"ok", "startup"}, rec.sent)
	assert.True(t, n.Allows("redeem_failed"))
	assert.False(t, n.Allows("redeem_partial"))
}

func TestNotifierEmptyEventsAllowsAll(t *testing.T) {
	rec := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{rec}, nil, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
	assert.Len(t, rec.sent, 1)
}

func TestNotifierContinuesPastFailingSender(t *testing.T) {
	boom := errors.New("boom")
	bad := &recordingSender{name: "bad", err: boom}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, slog.New(slog.DiscardHandler))

	err := n.NotifyAll(context.Background(), "t", "m")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.sent, 1)
}

func TestSenders(t *testing.T) {
	assert.Empty(t, Senders("", "", ""))
	assert.Empty(t, Senders("token", "", ""))

	got := Senders("token", "chat", "https://discord.example/hook")
	require.Len(t, got, 2)
	assert.Equal(t, "telegram", got[0].Name())
	assert.Equal(t, "discord", got[1].Name())

	assert.False(t, NewNotifier(nil, nil, slog.New(slog.DiscardHandler)).Enabled())
}

func TestDiscordSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "Redeemed", "epoch 12"))
	assert.Equal(t, "**Redeemed**\nepoch 12", got["content"])
}

func TestDiscordSenderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord: unexpected status 429")
}

func TestTelegramSender(t *testing.T) {
	var path string
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("123:abc", "-42", WithTelegramAPI(srv.URL+"/"))
	require.NoError(t, s.Send(context.Background(), "Redeem failed", "epoch 13"))

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "-42", got["chat_id"])
	assert.Equal(t, "*Redeem failed*\nepoch 13", got["text"])
	assert.Equal(t, "Markdown", got["parse_mode"])
}
