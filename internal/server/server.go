package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"reelforge/internal/compositor"
	"reelforge/internal/history"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/recorder"
	"reelforge/internal/services"
)

// Backend is the run lifecycle the server drives. *app.App satisfies it.
type Backend interface {
	Generate(ctx context.Context, req pipeline.Request, style compositor.Style, observer pipeline.Observer) (history.Record, error)
	Regenerate(ctx context.Context, rec history.Record, index int) (history.Record, error)
	Lookup(ctx context.Context, id string) (history.Record, error)
	Record(ctx context.Context, rec history.Record, style compositor.Style, progress recorder.ProgressFunc) (recorder.Recording, error)
	Style(override compositor.Style) compositor.Style
}

// History lists and clears stored runs.
type History interface {
	List(ctx context.Context) ([]history.Record, error)
	Clear(ctx context.Context) (int64, error)
}

// Options configures a Server.
type Options struct {
	Bind string
	// Token, when set, is required as a bearer token on every /api route
	// except the health check.
	Token string
	// Defaults returns the base request for a script.
	Defaults func(script string) pipeline.Request
	Logger   *slog.Logger
	Now      func() time.Time
	NewRunID func() string
}

// Server is the HTTP API.
type Server struct {
	backend  Backend
	history  History
	opts     Options
	logger   *slog.Logger
	runs     *registry
	baseCtx  context.Context
	cancel   context.CancelFunc
	listener net.Listener
	server   *http.Server
}

// New builds a server. Call Start to listen or use Handler directly.
func New(backend Backend, hist History, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	if opts.Defaults == nil {
		opts.Defaults = func(script string) pipeline.Request { return pipeline.Request{Script: script} }
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		backend: backend,
		history: hist,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "api"),
		runs:    newRegistry(0),
		baseCtx: baseCtx,
		cancel:  cancel,
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, s.requestLogger)

	r.Get("/api/healthz", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Route("/api/runs", func(r chi.Router) {
			r.Post("/", s.handleStartRun)
			r.Get("/{id}", s.handleGetRun)
			r.Delete("/{id}", s.handleCancelRun)
			r.Post("/{id}/images/{index}/regenerate", s.handleRegenerate)
			r.Post("/{id}/recording", s.handleRecording)
		})
		r.Route("/api/history", func(r chi.Router) {
			r.Get("/", s.handleListHistory)
			r.Delete("/", s.handleClearHistory)
		})
	})
	return r
}

// Start listens on opts.Bind and serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.opts.Bind)
	if bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop cancels in-flight runs and shuts the listener down.
func (s *Server) Stop() {
	s.runs.cancelAll()
	s.cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = services.WithRequestID(ctx, id)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Int64("bytes", int64(ww.BytesWritten())),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

// auth validates bearer tokens. If the token is empty, every request passes.
func (s *Server) auth(next http.Handler) http.Handler {
	token := strings.TrimSpace(s.opts.Token)
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
