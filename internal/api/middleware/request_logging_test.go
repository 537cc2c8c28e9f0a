package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/copilotgw/gateway/internal/logging"
)

func TestTranscriptLoggingMiddleware_DisabledIsNoOp(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	logger := logging.NewFileTranscriptLogger(false, dir)

	router := gin.New()
	router.Use(TranscriptLoggingMiddleware(logger))
	router.POST("/v1/messages", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"model":"gpt-5"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no log files written while disabled, found %d", len(entries))
	}
}

func TestTranscriptLoggingMiddleware_LogsNonStreamingResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	logger := logging.NewFileTranscriptLogger(true, dir)

	router := gin.New()
	router.Use(TranscriptLoggingMiddleware(logger))
	router.POST("/v1/messages", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": "resp_1"})
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"model":"gpt-5"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 log file, got %d", len(entries))
	}
	data, _ := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	content := string(data)
	if !strings.Contains(content, `{"model":"gpt-5"}`) {
		t.Errorf("expected request body captured in log: %s", content)
	}
	if !strings.Contains(content, "resp_1") {
		t.Errorf("expected response body captured in log: %s", content)
	}
}

func TestTranscriptLoggingMiddleware_LogsStreamingResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	logger := logging.NewFileTranscriptLogger(true, dir)

	router := gin.New()
	router.Use(TranscriptLoggingMiddleware(logger))
	router.POST("/v1/messages", func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Status(http.StatusOK)
		_, _ = c.Writer.WriteString("event: message_start\n\n")
		c.Writer.Flush()
		_, _ = c.Writer.WriteString("event: message_stop\n\n")
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"model":"gpt-5","stream":true}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "event: message_start") {
		t.Fatalf("expected SSE body written to the client response: %s", w.Body.String())
	}
}
