package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeBotAPI) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"raffles","username":"raffles_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		f.mu.Lock()
		f.messages = append(f.messages, r.FormValue("chat_id")+":"+r.FormValue("text"))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func TestNotifier_Notify(t *testing.T) {
	t.Parallel()

	fake := &fakeBotAPI{}
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer srv.Close()

	n, err := NewNotifierWithEndpoint("TOKEN", srv.URL+"/bot%s/%s", srv.Client(), 42)
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), "New purchase"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "42:New purchase", fake.messages[0])
}

func TestNotifier_NoChat(t *testing.T) {
	t.Parallel()

	fake := &fakeBotAPI{}
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer srv.Close()

	n, err := NewNotifierWithEndpoint("TOKEN", srv.URL+"/bot%s/%s", srv.Client(), 0)
	require.NoError(t, err)
	assert.ErrorIs(t, n.Notify(context.Background(), "hello"), ErrNoAdminChat)
}
