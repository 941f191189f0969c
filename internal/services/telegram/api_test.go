package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_SendMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/", "123:abc", time.Second)
	require.NoError(t, c.SendMessage(context.Background(), 42, "hi", [][]string{{"A", "B"}}))

	assert.InDelta(t, 42, got["chat_id"], 0)
	assert.Equal(t, "hi", got["text"])
	markup, ok := got["reply_markup"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, markup["one_time_keyboard"])
	rows := markup["keyboard"].([]any)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], 2)
}

func TestAPIClient_NoKeyboard(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	require.NoError(t, NewAPIClient(srv.URL, "t", time.Second).SendMessage(context.Background(), 1, "x", nil))
	_, has := got["reply_markup"]
	assert.False(t, has)
}

func TestAPIClient_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	err := NewAPIClient(srv.URL, "t", time.Second).SendMessage(context.Background(), 1, "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, `Post "https://api/bot***/sendMessage": EOF`, redact(`Post "https://api/bot123:abc/sendMessage": EOF`, "123:abc"))
}
