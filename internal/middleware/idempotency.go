package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/josh-kwaku/starbridge/internal/auth"
	"github.com/josh-kwaku/starbridge/internal/handler"
	"github.com/josh-kwaku/starbridge/internal/logging"
	"github.com/josh-kwaku/starbridge/internal/repository"
)

type idempotencyRepository interface {
	Get(ctx context.Context, key, caller string) (*repository.IdempotencyCacheEntry, error)
	Set(ctx context.Context, entry *repository.IdempotencyCacheEntry) error
}

const (
	idempotencyTTL       = 24 * time.Hour
	maxIdempotentBody    = 1 << 20
	replayedHeader       = "X-Idempotent-Replayed"
	idempotencyKeyHeader = "Idempotency-Key"
)

// Idempotency makes a state-changing route safe to retry. A request repeated
// with the same Idempotency-Key by the same caller gets the first response
// back without reaching the handler. The fingerprint covers the route pattern
// and the JSON body in canonical form, so reordered fields still match. A
// duplicate that arrives while the first is running is turned away with 409.
// 5xx responses are not stored.
func Idempotency(repo idempotencyRepository) func(http.Handler) http.Handler {
	g := &idempotencyGuard{repo: repo, running: make(map[string]struct{})}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(next, w, r)
		})
	}
}

type idempotencyGuard struct {
	repo idempotencyRepository

	mu      sync.Mutex
	running map[string]struct{}
}

func (g *idempotencyGuard) serve(next http.Handler, w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
		next.ServeHTTP(w, r)
		return
	}

	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" {
		handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		handler.RespondAppError(w, handler.ErrMissingToken, nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody))
	if err != nil {
		handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	log := logging.FromContext(r.Context()).With("idempotency_key", key)
	fingerprint := requestFingerprint(r, body)

	cached, err := g.repo.Get(r.Context(), key, claims.Subject)
	if err != nil {
		log.Error("idempotency cache lookup failed", "error", err)
		handler.RespondAppError(w, handler.ErrInternalError, nil)
		return
	}
	if cached != nil {
		g.replay(w, cached, fingerprint, log)
		return
	}

	slot := claims.Subject + "\x00" + key
	if !g.begin(slot) {
		handler.RespondAppError(w, handler.ErrIdempotencyInFlight, nil)
		return
	}
	defer g.end(slot)

	rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
	next.ServeHTTP(rec, r)
	if rec.statusCode >= http.StatusInternalServerError {
		return
	}

	now := time.Now().UTC()
	entry := &repository.IdempotencyCacheEntry{
		Key:          key,
		Caller:       claims.Subject,
		RequestHash:  fingerprint,
		StatusCode:   rec.statusCode,
		ResponseBody: rec.body.Bytes(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(idempotencyTTL),
	}
	// The response is already sent; a lost entry only means a retry runs again.
	if err := g.repo.Set(context.WithoutCancel(r.Context()), entry); err != nil {
		log.Error("idempotency cache store failed", "error", err)
	}
}

func (g *idempotencyGuard) replay(w http.ResponseWriter, cached *repository.IdempotencyCacheEntry, fingerprint string, log *slog.Logger) {
	if cached.RequestHash != fingerprint {
		handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(cached.StatusCode)
	if _, err := w.Write(cached.ResponseBody); err != nil {
		log.Error("failed to write idempotent replay", "error", err)
	}
}

func (g *idempotencyGuard) begin(slot string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.running[slot]; busy {
		return false
	}
	g.running[slot] = struct{}{}
	return true
}

func (g *idempotencyGuard) end(slot string) {
	g.mu.Lock()
	delete(g.running, slot)
	g.mu.Unlock()
}

// requestFingerprint hashes the matched route pattern, the concrete path and
// the body. JSON bodies are re-encoded first, which sorts object keys and
// drops insignificant whitespace.
func requestFingerprint(r *http.Request, body []byte) string {
	route := r.Pattern
	if route == "" {
		route = r.Method + " " + r.URL.Path
	}

	h := sha256.New()
	io.WriteString(h, route)
	h.Write([]byte{0})
	io.WriteString(h, r.URL.Path)
	h.Write([]byte{0})
	h.Write(canonicalJSON(body))
	return hex.EncodeToString(h.Sum(nil))
}

func canonicalJSON(body []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return body
	}
	out, err := json.Marshal(v)
	if err != nil {
		return body
	}
	return out
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
