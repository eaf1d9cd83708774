// Package adminserver exposes the worker's own operational HTTP surface:
// liveness/readiness probes, Prometheus metrics, and a read-only queue-depth
// admin endpoint. JD/Resume/Score CRUD stays with the external backend;
// this surface only reports on the worker process itself.
package adminserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/argon2"

	"github.com/kreeda/resumatch/internal/config"
	"github.com/kreeda/resumatch/internal/observability"
	"github.com/kreeda/resumatch/internal/queue"
)

// Server serves the worker's health/readiness/metrics/admin routes.
type Server struct {
	cfg     config.Config
	rdb     *redis.Client
	handler http.Handler
}

// New builds a Server. Admin routes are gated behind HTTP basic auth only
// when cfg.AdminEnabled(); otherwise /admin/queues is open, matching a
// single-operator deployment with no credentials configured.
func New(cfg config.Config, rdb *redis.Client) *Server {
	s := &Server{cfg: cfg, rdb: rdb}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	r.Use(httprate.LimitByIP(60, time.Minute))
	r.Use(observability.HTTPMetricsMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/admin/queues", s.handleQueues)
	})

	s.handler = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz pings Redis, the only infrastructure dependency this
// process owns a connection to (the backend and LLM service are remote
// collaborators checked per-call, not here).
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if s.rdb == nil {
		http.Error(w, "redis not configured", http.StatusServiceUnavailable)
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		http.Error(w, "redis unreachable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type queueDepth struct {
	Queue      string `json:"queue"`
	Queued     int64  `json:"queued"`
	Processing int64  `json:"processing"`
	DLQ        int64  `json:"dlq"`
}

// handleQueues reports current depth/in-flight/DLQ size for the three
// named queues, the operator-facing view of the three worker pools.
func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	names := []string{queue.NameJD, queue.NameResume, queue.NameRanking}
	out := make([]queueDepth, 0, len(names))
	for _, name := range names {
		queued, processing, dlq, err := queue.QueueDepths(r.Context(), s.rdb, name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		out = append(out, queueDepth{Queue: name, Queued: queued, Processing: processing, DLQ: dlq})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// requireAdmin enforces HTTP basic auth using argon2id-derived key
// comparison when admin credentials are configured; it is a no-op
// otherwise (single-operator deployments with no ADMIN_* env set).
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	if !s.cfg.AdminEnabled() {
		return next
	}
	expectedUser := []byte(s.cfg.AdminUsername)
	expectedKey := derive(s.cfg.AdminPassword, s.cfg.AdminSessionSecret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		gotKey := derive(pass, s.cfg.AdminSessionSecret)
		userOK := subtle.ConstantTimeCompare([]byte(user), expectedUser) == 1
		passOK := subtle.ConstantTimeCompare(gotKey, expectedKey) == 1
		if !userOK || !passOK {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// derive runs argon2id over password keyed by salt, giving a fixed-length
// comparison key without ever comparing raw passwords directly.
func derive(password, salt string) []byte {
	return argon2.IDKey([]byte(password), []byte(salt), 3, 64*1024, 2, 32)
}
