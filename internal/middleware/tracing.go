package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
	webhookPrefix   = "/api/v1/webhooks/"
	maxWebhookPeek  = 64 << 10
)

type requestIDKey struct{}

// Tracing tags every request with an ID that is echoed in X-Request-ID and
// attached to the request logger. Gateway webhooks are tagged with the
// gateway's own event_id or query_id so a redelivery logs under the same ID
// as the first attempt. Otherwise a sane caller-supplied X-Request-ID wins,
// then the active trace ID, then a fresh UUID.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r)
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func requestID(r *http.Request) string {
	if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, webhookPrefix) {
		if id := gatewayEventID(r); id != "" {
			return "gw-" + id
		}
	}
	if id := r.Header.Get(requestIDHeader); validRequestID(id) {
		return id
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.New().String()
}

// gatewayEventID reads the identifier from a webhook body and restores the
// body for the handler. Bodies larger than the peek window are left alone.
func gatewayEventID(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookPeek+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	if err != nil || len(head) > maxWebhookPeek {
		return ""
	}

	var ids struct {
		EventID string `json:"event_id"`
		QueryID string `json:"query_id"`
	}
	if json.Unmarshal(head, &ids) != nil {
		return ""
	}
	for _, id := range []string{ids.EventID, ids.QueryID} {
		if validRequestID(id) {
			return id
		}
	}
	return ""
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
