package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clinbrief/clinbrief/internal/metrics"
	"github.com/clinbrief/clinbrief/internal/models"
)

// statusRecorder captures the response status for logging and auditing.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogger logs one line per request with method, path, status, and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// clientLimiter enforces a per-client request rate. Limiters are keyed by
// client IP and idle entries are swept periodically so the map stays bounded.
type clientLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientEntry
	limit    rate.Limit
	burst    int
	lastSeen time.Duration
}

type clientEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newClientLimiter(requestsPerMinute, burst int) *clientLimiter {
	cl := &clientLimiter{
		clients:  make(map[string]*clientEntry),
		limit:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
		lastSeen: 5 * time.Minute,
	}
	go cl.sweep()
	return cl
}

func (cl *clientLimiter) allow(clientIP string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	entry, ok := cl.clients[clientIP]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.clients[clientIP] = entry
	}
	entry.seen = time.Now()
	return entry.limiter.Allow()
}

func (cl *clientLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cl.mu.Lock()
		for ip, entry := range cl.clients {
			if time.Since(entry.seen) > cl.lastSeen {
				delete(cl.clients, ip)
			}
		}
		cl.mu.Unlock()
	}
}

func (cl *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !cl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// auditTopic carries the request topic from a handler back to the audit
// middleware, which runs on both sides of the handler.
type auditTopic struct {
	mu    sync.Mutex
	topic string
}

type auditTopicKey struct{}

func setAuditTopic(ctx context.Context, topic string) {
	if at, ok := ctx.Value(auditTopicKey{}).(*auditTopic); ok {
		at.mu.Lock()
		at.topic = topic
		at.mu.Unlock()
	}
}

// audit writes one audit trail entry per API request. Audit write failures
// are logged, never surfaced to the client.
func (s *Server) audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		at := &auditTopic{}
		ctx := context.WithValue(r.Context(), auditTopicKey{}, at)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(ctx))

		at.mu.Lock()
		topic := at.topic
		at.mu.Unlock()
		entry := &models.AuditEntry{
			ID:         uuid.New().String(),
			Timestamp:  start,
			RequestID:  r.Header.Get("X-Request-ID"),
			Endpoint:   r.URL.Path,
			Method:     r.Method,
			Topic:      topic,
			Status:     rec.status,
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err := s.storage.CreateAuditEntry(r.Context(), entry); err != nil {
			s.logger.Warn("audit write failed", zap.Error(err))
		}
	})
}
