// Package usage provides usage tracking and logging functionality for the
// gateway. It includes plugins for monitoring per-request token consumption
// derived from the translated responses, for observability purposes.
package usage

import (
	"context"
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Record describes one completed request's resource consumption, assembled
// by the routing layer after a non-stream response is translated or a stream
// closes.
type Record struct {
	Model            string `json:"model"`
	ClientDialect    string `json:"client_dialect"`
	UpstreamDialect  string `json:"upstream_dialect"`
	InputTokens      int64  `json:"input_tokens"`
	OutputTokens     int64  `json:"output_tokens"`
	CacheReadTokens  int64  `json:"cache_read_tokens"`
	CacheWriteTokens int64  `json:"cache_write_tokens"`
	Stream           bool   `json:"stream"`
	Initiator        string `json:"initiator"`
}

// Plugin receives every completed usage Record.
type Plugin interface {
	HandleUsage(ctx context.Context, record Record)
}

var (
	mu      sync.RWMutex
	plugins []Plugin
)

// RegisterPlugin adds a plugin to the process-wide list notified on every
// usage Record.
func RegisterPlugin(p Plugin) {
	mu.Lock()
	plugins = append(plugins, p)
	mu.Unlock()
}

// Publish notifies all registered plugins of a completed Record.
func Publish(ctx context.Context, record Record) {
	mu.RLock()
	defer mu.RUnlock()
	for _, p := range plugins {
		p.HandleUsage(ctx, record)
	}
}

func init() {
	RegisterPlugin(NewLoggerPlugin())
}

// LoggerPlugin outputs every usage record to the application log.
type LoggerPlugin struct{}

// NewLoggerPlugin constructs a new logger plugin instance.
func NewLoggerPlugin() *LoggerPlugin { return &LoggerPlugin{} }

// HandleUsage implements Plugin. It marshals the record to JSON and logs it
// at debug level for observability purposes.
func (p *LoggerPlugin) HandleUsage(_ context.Context, record Record) {
	data, _ := json.Marshal(record)
	log.Debug(string(data))
}
