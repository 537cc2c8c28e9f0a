package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/config"
	"github.com/copilotgw/gateway/internal/registry"
	_ "github.com/copilotgw/gateway/internal/translator/register"
	"github.com/copilotgw/gateway/internal/upstream"
)

func newRelayTestBase(t *testing.T, upstreamHandler http.HandlerFunc) (*Base, func()) {
	t.Helper()
	srv := httptest.NewServer(upstreamHandler)

	catalog := registry.NewCatalog()
	catalog.Load([]registry.Model{
		{ID: "gpt-5", SupportedEndpoints: []string{"/responses"}},
		{ID: "gpt-5-chat", SupportedEndpoints: []string{"/chat/completions"}},
	})

	store := config.NewStore(&config.Config{Upstream: config.Upstream{BaseURL: srv.URL, APIKey: "sk-test"}})
	client := upstream.NewClient(store.Get())
	base := NewBase(store, catalog, client)
	return base, srv.Close
}

func newGinTestContext(method, path string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, strings.NewReader(body))
	return c, w
}

func TestRelay_NonStreamRoutesToResponsesUpstream(t *testing.T) {
	base, closeSrv := newRelayTestBase(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("path = %q, want /responses", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"id": "resp_1",
			"model": "gpt-5",
			"output": [{"type": "message", "content": [{"type": "output_text", "text": "hi"}]}],
			"usage": {"input_tokens": 5, "output_tokens": 2}
		}`))
	})
	defer closeSrv()

	body := `{"model":"gpt-5","messages":[{"role":"user","content":"hi"}]}`
	c, w := newGinTestContext(http.MethodPost, "/v1/messages", body)

	base.Relay(c, "anthropic", "gpt-5", []byte(body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	result := gjson.Parse(w.Body.String())
	if got := result.Get("content.0.text").String(); got != "hi" {
		t.Errorf("content.0.text = %q, want hi: %s", got, w.Body.String())
	}
}

func TestRelay_NonStreamRoutesToChatCompletionsUpstream(t *testing.T) {
	base, closeSrv := newRelayTestBase(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-5-chat",
			"choices": [{"message": {"role": "assistant", "content": "hi"}, "finish_reason": "stop"}]
		}`))
	})
	defer closeSrv()

	body := `{"model":"gpt-5-chat","messages":[{"role":"user","content":"hi"}]}`
	c, w := newGinTestContext(http.MethodPost, "/v1/messages", body)

	base.Relay(c, "anthropic", "gpt-5-chat", []byte(body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := gjson.Get(w.Body.String(), "content.0.text").String(); got != "hi" {
		t.Errorf("content.0.text = %q, want hi: %s", got, w.Body.String())
	}
}

func TestRelayResponsesPassthrough_RejectsUnsupportedModel(t *testing.T) {
	base, closeSrv := newRelayTestBase(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("upstream should not be called for an unsupported model")
	})
	defer closeSrv()

	body := `{"model":"gpt-5-chat"}`
	c, w := newGinTestContext(http.MethodPost, "/v1/responses", body)

	base.RelayResponsesPassthrough(c, "gpt-5-chat", []byte(body))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRelay_UpstreamErrorPropagatesStatus(t *testing.T) {
	base, closeSrv := newRelayTestBase(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("down"))
	})
	defer closeSrv()

	body := `{"model":"gpt-5","messages":[{"role":"user","content":"hi"}]}`
	c, w := newGinTestContext(http.MethodPost, "/v1/messages", body)

	base.Relay(c, "anthropic", "gpt-5", []byte(body))

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestRelay_StreamForwardsSSEFrames(t *testing.T) {
	base, closeSrv := newRelayTestBase(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		_, _ = w.Write([]byte(`data: {"type":"response.created","response":{"id":"resp_1","model":"gpt-5"}}` + "\n\n"))
		_, _ = w.Write([]byte(`data: {"type":"response.output_text.delta","output_index":0,"content_index":0,"delta":"hi"}` + "\n\n"))
		_, _ = w.Write([]byte(`data: {"type":"response.completed","response":{"status":"completed"}}` + "\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
	})
	defer closeSrv()

	body := `{"model":"gpt-5","stream":true,"messages":[{"role":"user","content":"hi"}]}`
	c, w := newGinTestContext(http.MethodPost, "/v1/messages", body)

	base.Relay(c, "anthropic", "gpt-5", []byte(body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	out := w.Body.String()
	if !strings.Contains(out, "event: message_start") {
		t.Errorf("expected a message_start SSE event in output, got: %s", out)
	}
	if !strings.Contains(out, "event: message_stop") {
		t.Errorf("expected a message_stop SSE event in output, got: %s", out)
	}
}

func TestRelay_StreamFinalizesWhenUpstreamClosesWithoutCompletion(t *testing.T) {
	base, closeSrv := newRelayTestBase(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		_, _ = w.Write([]byte(`data: {"id":"chatcmpl-1","model":"gpt-5-chat","choices":[{"delta":{"content":"hi"}}]}` + "\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
		// Upstream connection drops before a finish_reason chunk arrives.
	})
	defer closeSrv()

	body := `{"model":"gpt-5-chat","stream":true,"messages":[{"role":"user","content":"hi"}]}`
	c, w := newGinTestContext(http.MethodPost, "/v1/messages", body)

	base.Relay(c, "anthropic", "gpt-5-chat", []byte(body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	out := w.Body.String()
	wantOrder := []string{"event: message_start", "event: content_block_start", "event: content_block_stop", "event: error"}
	lastIdx := -1
	for _, want := range wantOrder {
		idx := strings.Index(out, want)
		if idx == -1 {
			t.Fatalf("expected %q in output, got: %s", want, out)
		}
		if idx < lastIdx {
			t.Errorf("expected %q to appear after previous event, got out-of-order output: %s", want, out)
		}
		lastIdx = idx
	}
}
