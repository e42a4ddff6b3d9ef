// Package proxy is the HTTP front of the gateway. Sandboxed containers call
// it instead of running git and gh with credentials of their own.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jibsandbox/jib-gateway/internal/auth"
	"github.com/jibsandbox/jib-gateway/internal/denial"
	"github.com/jibsandbox/jib-gateway/internal/gateway"
	"github.com/jibsandbox/jib-gateway/internal/model"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

// Config holds HTTP server configuration.
type Config struct {
	// Addr is host:port. Port 0 picks a free port.
	Addr    string
	Version string
	Logger  *slog.Logger
}

// Server serves the gateway API. Every route except health requires the
// shared bearer secret and is charged against the rate limiter.
type Server struct {
	cfg    Config
	gw     *gateway.Gateway
	auth   *auth.Authenticator
	logger *slog.Logger

	mu  sync.Mutex
	ln  net.Listener
	srv *http.Server
}

// NewServer creates a Server for gw.
func NewServer(gw *gateway.Gateway, authn *auth.Authenticator, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{cfg: cfg, gw: gw, auth: authn, logger: cfg.Logger}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverer)
	r.Use(s.requestID)
	r.Get("/api/v1/health", s.handleHealth)

	api := chi.NewRouter()
	api.Use(s.authenticate)
	api.With(s.limit(model.OpPush)).Post("/git/push", s.handlePush)
	api.With(s.limit(model.OpPRCreate)).Post("/gh/pr/create", s.handlePRCreate)
	api.With(s.limit(model.OpPRComment)).Post("/gh/pr/comment", s.prHandler(s.gw.PRComment))
	api.With(s.limit(model.OpPREdit)).Post("/gh/pr/edit", s.prHandler(s.gw.PREdit))
	api.With(s.limit(model.OpPRClose)).Post("/gh/pr/close", s.prHandler(s.gw.PRClose))
	api.With(s.limit(model.OpPRMerge)).Post("/gh/pr/merge", s.prHandler(s.gw.PRMerge))
	api.With(s.limit(model.OpExecute)).Post("/gh/execute", s.handleExecute)
	api.With(s.limit(model.OpFork)).Post("/fork", s.handleFork)
	r.Mount("/api/v1", api)
	return r
}

// Start begins listening. Blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http api listening", "addr", ln.Addr().String())
	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Addr returns the bound address once Start is listening, else the
// configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.srv.Addr
}

// Response is the JSON envelope of every reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		ctx := gateway.WithTransport(gateway.WithRequestID(r.Context(), id), "http")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("handler panic", "path", r.URL.Path, "panic", fmt.Sprint(v))
				d := denial.Format(model.KindPolicyViolation, "", "")
				writeJSON(w, http.StatusInternalServerError, Response{
					Message: "internal error",
					Data:    map[string]any{"reason": d.Reason, "hints": d.Hints},
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Verify(r.Header.Get("Authorization")); err != nil {
			s.logger.Warn("authentication failed",
				"path", r.URL.Path, "remote", r.RemoteAddr, "error", err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="jib-gateway"`)
			writeJSON(w, http.StatusUnauthorized, Response{Message: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limit(op model.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rl, refused := s.gw.Admit(r.Context(), op)
			if refused != nil {
				secs := int(rl.RetryAfter.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeJSON(w, http.StatusTooManyRequests, Response{
					Message: rl.Reason,
					Data: map[string]any{
						"scope":               rl.Scope,
						"limit":               rl.Limit,
						"current":             rl.Current,
						"retry_after_seconds": secs,
						"request_id":          refused.RequestID,
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// decode reads a JSON body into v, replying 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

// writeOutcome maps an Outcome to status and envelope.
func writeOutcome(w http.ResponseWriter, o *gateway.Outcome) {
	data := map[string]any{"request_id": o.RequestID, "operation": string(o.Operation)}
	if o.Repository != "" {
		data["repository"] = o.Repository
	}
	if o.Exec != nil {
		data["stdout"] = o.Exec.Stdout
		data["stderr"] = o.Exec.Stderr
		data["exit_code"] = o.Exec.ExitCode
	}

	switch {
	case errors.Is(o.Err, gateway.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, Response{Message: o.Err.Error(), Data: data})
	case errors.Is(o.Err, gateway.ErrExecFailed):
		writeJSON(w, http.StatusBadGateway, Response{Message: o.Err.Error(), Data: data})
	case o.Err != nil:
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal error", Data: data})
	case !o.Result.Allowed:
		msg := o.Result.Reason
		if o.Denial != nil {
			data["reason"] = string(o.Denial.Reason)
			data["hints"] = o.Denial.Hints
			msg = o.Denial.Message
		}
		if len(o.Result.Details) > 0 {
			data["details"] = o.Result.Details
		}
		writeJSON(w, http.StatusForbidden, Response{Message: msg, Data: data})
	default:
		writeJSON(w, http.StatusOK, Response{Success: true, Message: o.Result.Reason, Data: data})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.gw.Health(r.Context(), s.cfg.Version)
	status := http.StatusOK
	if h.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, Response{Success: h.Status == "ok", Message: h.Status, Data: h})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req gateway.PushRequest
	if decode(w, r, &req) {
		writeOutcome(w, s.gw.Push(r.Context(), req))
	}
}

func (s *Server) handlePRCreate(w http.ResponseWriter, r *http.Request) {
	var req gateway.PRCreateRequest
	if decode(w, r, &req) {
		writeOutcome(w, s.gw.PRCreate(r.Context(), req))
	}
}

func (s *Server) prHandler(op func(context.Context, gateway.PRRequest) *gateway.Outcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.PRRequest
		if decode(w, r, &req) {
			writeOutcome(w, op(r.Context(), req))
		}
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req gateway.ExecuteRequest
	if decode(w, r, &req) {
		writeOutcome(w, s.gw.Execute(r.Context(), req))
	}
}

func (s *Server) handleFork(w http.ResponseWriter, r *http.Request) {
	var req gateway.ForkRequest
	if decode(w, r, &req) {
		writeOutcome(w, s.gw.Fork(r.Context(), req))
	}
}
