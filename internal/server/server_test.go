package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/shopflow/graph"
	"github.com/dshills/shopflow/graph/store"
	"github.com/dshills/shopflow/internal/app"
	"github.com/dshills/shopflow/internal/config"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.Provider = "mock"
	a, err := app.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return NewHandler(a, a.Registry, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t)
	rr := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode(t, rr)["status"])
}

func TestThreadLifecycle(t *testing.T) {
	h := newTestHandler(t)

	rr := do(t, h, http.MethodPost, "/v1/order/threads", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	id, _ := decode(t, rr)["thread_id"].(string)
	_, err := uuid.Parse(id)
	require.NoError(t, err, "thread id %q", id)

	rr = do(t, h, http.MethodPost, "/v1/order/threads/"+id+"/messages", `{"text": "find phones"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	turn := decode(t, rr)
	assert.Equal(t, id, turn["thread_id"])
	assert.Equal(t, "confirm_selection", turn["pending"])

	rr = do(t, h, http.MethodGet, "/v1/order/threads/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "confirm_selection", decode(t, rr)["pending_step"])

	rr = do(t, h, http.MethodGet, "/v1/order/threads", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{id}, decode(t, rr)["threads"])

	rr = do(t, h, http.MethodDelete, "/v1/order/threads/"+id, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/order/threads/"+id, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "shopflow_turns_total")
}

func TestCreateThreadWithFirstMessage(t *testing.T) {
	h := newTestHandler(t)

	rr := do(t, h, http.MethodPost, "/v1/listing/threads", `{"text": "list a phone"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	turn := decode(t, rr)
	assert.Equal(t, "confirm", turn["pending"])
	assert.NotEmpty(t, turn["thread_id"])
}

func TestBadRequests(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown workflow", http.MethodPost, "/v1/refunds/threads", "", http.StatusNotFound},
		{"empty text", http.MethodPost, "/v1/order/threads/t1/messages", `{"text": ""}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/v1/order/threads/t1/messages", `{`, http.StatusBadRequest},
		{"missing thread", http.MethodGet, "/v1/order/threads/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode(t, rr)["error"])
		})
	}
}

type stubRunner struct {
	sendErr error
	listErr error
}

func (s stubRunner) Name() string { return "stub" }

func (s stubRunner) Send(context.Context, string, string) (app.Result, error) {
	return app.Result{}, s.sendErr
}

func (s stubRunner) Inspect(context.Context, string) (any, error) { return nil, store.ErrNotFound }

func (s stubRunner) Reset(context.Context, string) error { return nil }

func (s stubRunner) Threads(context.Context) ([]string, error) { return nil, s.listErr }

type stubWorkflows struct{ run app.Runner }

func (s stubWorkflows) Runner(string) (app.Runner, error) { return s.run, nil }

func TestErrorStatuses(t *testing.T) {
	run := stubRunner{
		sendErr: &graph.EngineError{Message: "acquire thread lock", Code: graph.CodeLockFailed},
		listErr: graph.ErrListUnsupported,
	}
	h := NewHandler(stubWorkflows{run}, nil, nil)

	rr := do(t, h, http.MethodPost, "/v1/stub/threads/t1/messages", `{"text": "hi"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/stub/threads", "")
	assert.Equal(t, http.StatusNotImplemented, rr.Code)

	rr = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
