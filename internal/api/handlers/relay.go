package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/constant"
	"github.com/copilotgw/gateway/internal/routing"
	"github.com/copilotgw/gateway/internal/translator"
	"github.com/copilotgw/gateway/internal/upstream"
	"github.com/copilotgw/gateway/internal/usage"
)

// Relay runs the full request lifecycle for a client dialect that supports
// both upstream dialects: translate the request, pick an upstream per the
// model catalog, forward it, and translate the response back, streaming or
// not per the client's "stream" field.
func (b *Base) Relay(c *gin.Context, clientDialect, model string, body []byte) {
	upstreamDialect := routing.ChooseUpstreamDialect(b.Catalog, model)
	b.relayTo(c, clientDialect, upstreamDialect, model, body)
}

// RelayResponsesPassthrough implements the /v1/responses handler: the
// upstream dialect is always Responses, and a model that doesn't support it
// is a 4xx, not a ChatCompletions fallback.
func (b *Base) RelayResponsesPassthrough(c *gin.Context, model string, body []byte) {
	if !b.Catalog.SupportsResponses(model) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"type": "invalid_request_error", "message": "model does not support the Responses endpoint: " + model},
		})
		return
	}
	b.relayTo(c, constant.Responses, constant.Responses, model, body)
}

func (b *Base) relayTo(c *gin.Context, clientDialect, upstreamDialect, model string, body []byte) {
	ctx := c.Request.Context()
	stream := gjson.GetBytes(body, "stream").Bool()

	translatedBody := translator.Request(clientDialect, upstreamDialect, model, body, stream)
	opts := upstream.Options{
		Vision:    routing.DeriveVision(translatedBody),
		Initiator: routing.DeriveInitiator(translatedBody),
	}

	var (
		nonStreamBody []byte
		chunks        <-chan upstream.Chunk
		err           error
	)
	if upstreamDialect == constant.Responses {
		nonStreamBody, chunks, err = b.Upstream.CreateResponses(ctx, translatedBody, stream, opts)
	} else {
		nonStreamBody, chunks, err = b.Upstream.CreateChatCompletions(ctx, translatedBody, stream, opts)
	}
	if err != nil {
		writeUpstreamError(c, err)
		return
	}

	if !stream {
		var param any
		out := translator.ResponseNonStream(clientDialect, upstreamDialect, ctx, model, body, translatedBody, nonStreamBody, &param)
		publishUsage(ctx, model, clientDialect, upstreamDialect, false, opts.Initiator, gjson.Parse(out))
		c.Data(http.StatusOK, "application/json", []byte(out))
		return
	}

	relayStream(c, ctx, clientDialect, upstreamDialect, model, body, translatedBody, chunks, opts)
}

func relayStream(c *gin.Context, ctx context.Context, clientDialect, upstreamDialect, model string, originalBody, translatedBody []byte, chunks <-chan upstream.Chunk, opts upstream.Options) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	var param any
	completed := false

	for chunk := range chunks {
		if chunk.Err != nil {
			log.Warnf("upstream stream error: %v", chunk.Err)
			break
		}
		events := translator.Response(clientDialect, upstreamDialect, ctx, model, originalBody, translatedBody, chunk.Line, &param)
		for _, ev := range events {
			_, _ = c.Writer.WriteString(ev)
		}
		if len(events) > 0 && flusher != nil {
			flusher.Flush()
		}
		if gjson.GetBytes(chunk.Line, "type").String() == "response.completed" ||
			gjson.GetBytes(chunk.Line, "choices.0.finish_reason").Exists() {
			completed = true
		}
	}

	if !completed {
		for _, ev := range translator.Finalize(clientDialect, upstreamDialect, &param) {
			_, _ = c.Writer.WriteString(ev)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	publishUsage(ctx, model, clientDialect, upstreamDialect, true, opts.Initiator, gjson.Result{})
}

func writeUpstreamError(c *gin.Context, err error) {
	if statusErr, ok := err.(*upstream.StatusError); ok {
		c.Data(statusErr.Code, "application/json", []byte(statusErr.Body))
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"type": "api_error", "message": err.Error()}})
}

func publishUsage(ctx context.Context, model, clientDialect, upstreamDialect string, stream bool, initiator string, translated gjson.Result) {
	record := usage.Record{
		Model:           model,
		ClientDialect:   clientDialect,
		UpstreamDialect: upstreamDialect,
		Stream:          stream,
		Initiator:       initiator,
	}
	if translated.Exists() {
		record.InputTokens = translated.Get("usage.input_tokens").Int()
		record.OutputTokens = translated.Get("usage.output_tokens").Int()
		if v := translated.Get("usage.cache_read_input_tokens"); v.Exists() {
			record.CacheReadTokens = v.Int()
		}
		if v := translated.Get("usage.cache_creation_input_tokens"); v.Exists() {
			record.CacheWriteTokens = v.Int()
		}
	}
	usage.Publish(ctx, record)
}
