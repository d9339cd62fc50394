// ABOUTME: Tests for the backend REST handlers
// ABOUTME: Drives the full handler chain over httptest with an in-memory store

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flareos/flareforge/internal/config"
	"github.com/flareos/flareforge/internal/logging"
	"github.com/flareos/flareforge/internal/model"
	"github.com/flareos/flareforge/internal/store"
)

type testServer struct {
	*Server
	url   string
	store *store.MockStore
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = ":memory:"
	for _, m := range mutate {
		m(cfg)
	}

	ms := store.NewMockStore()
	srv := New(cfg, ms, logging.Discard())
	srv.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	ids := 0
	srv.newID = func() string {
		ids++
		return fmt.Sprintf("srv-%d", ids)
	}

	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		srv.dedupe.Close()
	})
	return &testServer{Server: srv, url: hs.URL, store: ms}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			r = strings.NewReader(s)
		} else {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			r = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequestWithContext(t.Context(), method, ts.url+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ts.store.SetPingErr(assert.AnError)
	resp = ts.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSendMessage_CreatesThread(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/chats/send", model.SendRequest{
		Device:  "dev-1",
		Message: "  Hello there, this is a fairly long first message  ",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[model.ThreadResponse](t, resp)
	require.NotNil(t, body.Thread)
	assert.Equal(t, "srv-1", body.Thread.ID)
	assert.Equal(t, "Hello there, this is a fairly ", body.Thread.Title)
	require.Len(t, body.Thread.Messages, 2)
	assert.Equal(t, model.RoleUser, body.Thread.Messages[0].Role)
	assert.Equal(t, "Hello there, this is a fairly long first message", body.Thread.Messages[0].Content)
	assert.Equal(t, "Echo: Hello there, this is a fairly long first message", body.Thread.Messages[1].Content)
	assert.Equal(t, int64(1_700_000_000_000), body.Thread.Messages[1].TS)
}

func TestSendMessage_UsesClientThreadID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/chats/send", model.SendRequest{
		Device: "dev-1", ThreadID: "client-thread", Message: "one",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/chats/send", model.SendRequest{
		Device: "dev-1", ThreadID: "client-thread", Message: "two",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[model.ThreadResponse](t, resp)
	assert.Equal(t, "client-thread", body.Thread.ID)
	assert.Equal(t, "one", body.Thread.Title)
	require.Len(t, body.Thread.Messages, 4)
	assert.Equal(t, "two", body.Thread.Messages[2].Content)
}

func TestSendMessage_DuplicateMessageID(t *testing.T) {
	ts := newTestServer(t)
	req := model.SendRequest{Device: "dev-1", Message: "only once", MessageID: "m-1"}

	first := decodeBody[model.ThreadResponse](t, ts.do(t, http.MethodPost, "/api/chats/send", req))
	second := decodeBody[model.ThreadResponse](t, ts.do(t, http.MethodPost, "/api/chats/send", req))

	assert.Equal(t, first.Thread.ID, second.Thread.ID)
	assert.Len(t, second.Thread.Messages, 2)

	// The same message id from another device is a different send.
	req.Device = "dev-2"
	other := decodeBody[model.ThreadResponse](t, ts.do(t, http.MethodPost, "/api/chats/send", req))
	assert.NotEqual(t, first.Thread.ID, other.Thread.ID)
}

func TestSendMessage_DuplicateAfterThreadDeleted(t *testing.T) {
	ts := newTestServer(t)
	req := model.SendRequest{Device: "dev-1", ThreadID: "t1", Message: "hi", MessageID: "m-1"}

	ts.do(t, http.MethodPost, "/api/chats/send", req)
	resp := ts.do(t, http.MethodDelete, "/api/chats/dev-1/t1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	body := decodeBody[model.ThreadResponse](t, ts.do(t, http.MethodPost, "/api/chats/send", req))
	assert.Equal(t, "t1", body.Thread.ID)
	assert.Len(t, body.Thread.Messages, 2)
}

func TestSendMessage_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		body    any
		wantErr string
	}{
		{"invalid json", "{", "invalid JSON body"},
		{"missing device", model.SendRequest{Message: "hi"}, "device is required"},
		{"missing message", model.SendRequest{Device: "d"}, "message is required"},
		{"blank message", model.SendRequest{Device: "d", Message: "   "}, "message is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/api/chats/send", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeBody[model.ErrorResponse](t, resp)
			assert.Contains(t, body.Error, tt.wantErr)
		})
	}
}

func TestListThreads(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/chats/dev-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw := decodeBody[map[string]json.RawMessage](t, resp)
	assert.JSONEq(t, `[]`, string(raw["threads"]))

	ts.do(t, http.MethodPost, "/api/chats/send", model.SendRequest{Device: "dev-1", Message: "hi"})
	ts.do(t, http.MethodPost, "/api/chats/send", model.SendRequest{Device: "dev-2", Message: "other"})

	body := decodeBody[model.ThreadsResponse](t, ts.do(t, http.MethodGet, "/api/chats/dev-1", nil))
	require.NotNil(t, body.Threads)
	require.Len(t, *body.Threads, 1)
	assert.Equal(t, "hi", (*body.Threads)[0].Title)
}

func TestDeleteThread_NotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodDelete, "/api/chats/dev-1/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "thread not found", decodeBody[model.ErrorResponse](t, resp).Error)
}

func TestMemory_Lifecycle(t *testing.T) {
	ts := newTestServer(t)

	_, err := ts.store.SetMemory(t.Context(), "dev-1", model.MemoryItem{Key: "old", Value: "v", TS: 5})
	require.NoError(t, err)

	resp := ts.do(t, http.MethodPost, "/api/memory", model.MemoryRequest{Device: "dev-1", Key: " name ", Value: "Ada"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	item := decodeBody[model.MemoryItemResponse](t, resp)
	assert.Equal(t, "name", item.Item.Key)
	assert.Equal(t, int64(1_700_000_000_000), item.Item.TS)

	item = decodeBody[model.MemoryItemResponse](t, ts.do(t, http.MethodPost, "/api/memory",
		model.MemoryRequest{Device: "dev-1", Key: "old", Value: "new"}))
	assert.Equal(t, "new", item.Item.Value)
	assert.Equal(t, int64(5), item.Item.TS)

	item = decodeBody[model.MemoryItemResponse](t, ts.do(t, http.MethodPost, "/api/memory",
		model.MemoryRequest{Device: "dev-1", Key: "name", Value: "Grace"}))
	assert.Equal(t, "Grace", item.Item.Value)
	assert.Equal(t, int64(1_700_000_000_000), item.Item.TS)

	list := decodeBody[model.MemoryResponse](t, ts.do(t, http.MethodGet, "/api/memory/dev-1", nil))
	require.Len(t, *list.Items, 2)
	assert.Equal(t, "name", (*list.Items)[0].Key)

	resp = ts.do(t, http.MethodDelete, "/api/memory/dev-1/name", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodDelete, "/api/memory/dev-1/name", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMemory_BlankKey(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/memory", model.MemoryRequest{Device: "dev-1", Key: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestKeys(t *testing.T) {
	ts := newTestServer(t)

	got := decodeBody[model.KeysResponse](t, ts.do(t, http.MethodGet, "/api/keys/dev-1", nil))
	assert.NotNil(t, got.Providers)
	assert.Empty(t, got.Providers)

	resp := ts.do(t, http.MethodPost, "/api/keys", model.KeysRequest{
		Device:    "dev-1",
		Providers: map[string]string{"openai": "sk-123"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got = decodeBody[model.KeysResponse](t, ts.do(t, http.MethodGet, "/api/keys/dev-1", nil))
	assert.Equal(t, map[string]string{"openai": "sk-123"}, got.Providers)

	resp = ts.do(t, http.MethodPost, "/api/keys", map[string]any{"device": "dev-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeBody[model.ErrorResponse](t, resp).Error, "providers is required")
}

func TestCode(t *testing.T) {
	ts := newTestServer(t)

	got := decodeBody[model.CodeResponse](t, ts.do(t, http.MethodGet, "/api/code/dev-1", nil))
	require.NotNil(t, got.HTML)
	assert.Empty(t, *got.HTML)

	resp := ts.do(t, http.MethodPost, "/api/code", model.CodeRequest{Device: "dev-1", HTML: "<h1>hi</h1>"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got = decodeBody[model.CodeResponse](t, ts.do(t, http.MethodGet, "/api/code/dev-1", nil))
	assert.Equal(t, "<h1>hi</h1>", *got.HTML)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	})

	req, err := http.NewRequestWithContext(t.Context(), http.MethodOptions, ts.url+"/api/memory", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Metrics.Enabled = true
	})

	ts.do(t, http.MethodPost, "/api/chats/send", model.SendRequest{Device: "dev-1", Message: "hi", MessageID: "m"})
	ts.do(t, http.MethodPost, "/api/chats/send", model.SendRequest{Device: "dev-1", Message: "hi", MessageID: "m"})

	resp := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `flareforge_chat_sends_total{result="applied"} 1`)
	assert.Contains(t, text, `flareforge_chat_sends_total{result="duplicate"} 1`)
	assert.Contains(t, text, `route="POST /api/chats/send"`)
	assert.NotContains(t, text, "dev-1")
}

func TestMetrics_DisabledByDefault(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
