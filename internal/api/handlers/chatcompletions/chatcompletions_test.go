package chatcompletions

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/api/handlers"
	"github.com/copilotgw/gateway/internal/config"
	"github.com/copilotgw/gateway/internal/registry"
	_ "github.com/copilotgw/gateway/internal/translator/register"
	"github.com/copilotgw/gateway/internal/upstream"
)

func TestHandler_Completions_ReadsModelAndRelays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	catalog := registry.NewCatalog()
	catalog.Load([]registry.Model{{ID: "gpt-5-chat", SupportedEndpoints: []string{"/chat/completions"}}})
	store := config.NewStore(&config.Config{Upstream: config.Upstream{BaseURL: srv.URL, APIKey: "sk-test"}})
	client := upstream.NewClient(store.Get())
	h := New(handlers.NewBase(store, catalog, client))

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"model":"gpt-5-chat","messages":[{"role":"user","content":"hi"}]}`
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))

	h.Completions(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := gjson.Get(w.Body.String(), "choices.0.message.content").String(); got != "hi" {
		t.Errorf("content = %q, want hi: %s", got, w.Body.String())
	}
}
