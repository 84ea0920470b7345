// Package web serves the single page UI and a JSON API on top of the demo
// controller. Templates and the intro text are embedded in the binary.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/YuminosukeSato/atomgo/demo"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/pkg/log"
)

// DefaultMaxUploadBytes caps a request body when ServerConfig leaves it unset
const DefaultMaxUploadBytes = 32 << 20

// ServerConfig holds the configuration of the web server.
type ServerConfig struct {
	Controller     *demo.Controller
	Logger         log.Logger
	MaxUploadBytes int64
}

// Server is the HTTP handler of the UI.
type Server struct {
	ctrl      *demo.Controller
	logger    log.Logger
	pages     *renderer
	maxUpload int64
	router    chi.Router
}

// NewServer parses the embedded templates and sets up routing.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Controller == nil {
		return nil, errors.New("web: controller must not be nil")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}
	s := &Server{
		ctrl:      cfg.Controller,
		logger:    log.OrDefault(cfg.Logger, "web"),
		pages:     pages,
		maxUpload: cfg.MaxUploadBytes,
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// buildRouter constructs the chi router with all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.With(middleware.RequestSize(s.maxUpload)).Post("/run", s.handleRun)
	r.With(middleware.RequestSize(s.maxUpload)).Post("/api/run", s.handleAPIRun)
	return r
}

// requestID assigns a UUID to requests that arrive without X-Request-Id, so
// middleware.RequestID picks it up instead of its counter based ids.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(middleware.RequestIDHeader) == "" {
			r.Header.Set(middleware.RequestIDHeader, uuid.NewString())
		}
		w.Header().Set(middleware.RequestIDHeader, r.Header.Get(middleware.RequestIDHeader))
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs every request through the project logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("Handled request",
			log.HTTPMethodKey, r.Method,
			log.HTTPPathKey, r.URL.Path,
			log.HTTPStatusKey, ww.Status(),
			log.RequestIDKey, middleware.GetReqID(r.Context()),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	})
}
