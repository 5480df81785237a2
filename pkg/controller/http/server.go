package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jowin03/Slack-NVD-Integration/pkg/utils/logging"
	"github.com/jowin03/Slack-NVD-Integration/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
)

type Server struct {
	router             *chi.Mux
	interactionHandler *SlackInteractionHandler
	signingSecret      string
}

type Options func(*Server)

// WithSigningSecret enables Slack signature verification on the webhook
// routes. Leaving it unset is only acceptable for local testing.
func WithSigningSecret(secret string) Options {
	return func(s *Server) {
		s.signingSecret = secret
	}
}

func New(interactionHandler *SlackInteractionHandler, opts ...Options) (*Server, error) {
	if interactionHandler == nil {
		return nil, goerr.New("interaction handler is required")
	}

	r := chi.NewRouter()

	s := &Server{
		router:             r,
		interactionHandler: interactionHandler,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	// Slack webhook endpoints - no auth, protected by signature verification
	r.Route("/hooks/slack", func(r chi.Router) {
		if s.signingSecret != "" {
			r.Use(SlackSignatureMiddleware(s.signingSecret))
		}

		r.Post("/interaction", s.interactionHandler.ServeHTTP)
	})

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	safe.Write(r.Context(), w, []byte(`{"status":"ok"}`))
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
