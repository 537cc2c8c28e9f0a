// Package translator holds the process-wide registry of dialect translators.
// Each translation direction (client dialect -> upstream dialect) registers its
// request and response transforms here at package-init time; the HTTP handlers
// and the routing layer never import a specific translator package directly,
// they look it up by dialect pair.
package translator

import (
	"context"

	log "github.com/sirupsen/logrus"

	sdktranslator "github.com/copilotgw/gateway/sdk/translator"
)

var (
	requests  map[string]map[string]sdktranslator.RequestTransform
	responses map[string]map[string]sdktranslator.ResponseTransform
)

func init() {
	requests = make(map[string]map[string]sdktranslator.RequestTransform)
	responses = make(map[string]map[string]sdktranslator.ResponseTransform)
}

// Register associates a (clientDialect, upstreamDialect) pair with the request
// and response transforms that translate between them.
func Register(from, to string, request sdktranslator.RequestTransform, response sdktranslator.ResponseTransform) {
	log.Debugf("registering translator from %s to %s", from, to)
	if _, ok := requests[from]; !ok {
		requests[from] = make(map[string]sdktranslator.RequestTransform)
	}
	requests[from][to] = request

	if _, ok := responses[from]; !ok {
		responses[from] = make(map[string]sdktranslator.ResponseTransform)
	}
	responses[from][to] = response
}

// NeedConvert reports whether a registered translator exists for the pair.
// A false result means the two dialects are identical and the payload can be
// forwarded unmodified.
func NeedConvert(from, to string) bool {
	_, ok := responses[from][to]
	return ok
}

// Request translates a client request payload into the upstream dialect. If no
// translator is registered for the pair, the payload is returned unmodified
// (the pass-through case, e.g. Responses client -> Responses upstream).
func Request(from, to, modelName string, rawJSON []byte, stream bool) []byte {
	if t, ok := requests[from][to]; ok {
		return t(modelName, rawJSON, stream)
	}
	return rawJSON
}

// Response translates one upstream streaming frame into zero or more
// client-shaped frames, threading the per-stream translation state in param.
func Response(from, to string, ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	if t, ok := responses[from][to]; ok {
		return t.Stream(ctx, modelName, originalRequestRawJSON, requestRawJSON, rawJSON, param)
	}
	return []string{string(rawJSON)}
}

// ResponseNonStream translates a complete upstream response into the client dialect.
func ResponseNonStream(from, to string, ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	if t, ok := responses[from][to]; ok {
		return t.NonStream(ctx, modelName, originalRequestRawJSON, requestRawJSON, rawJSON, param)
	}
	return string(rawJSON)
}

// Finalize notifies a stateful stream translator that the upstream stream
// closed without a completion event, giving it a chance to emit a synthetic
// terminal event. Returns nil if the pair has no Finalize hook registered.
func Finalize(from, to string, param *any) []string {
	if t, ok := responses[from][to]; ok && t.Finalize != nil {
		return t.Finalize(param)
	}
	return nil
}
