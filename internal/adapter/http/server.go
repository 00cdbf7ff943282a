package http

import (
	"net/http"
	"time"

	"github.com/librasign/signcheck/internal/adapter/http/middleware"
	"github.com/librasign/signcheck/internal/adapter/http/ratelimit"
)

type Server struct {
	mux         *http.ServeMux
	handler     http.Handler
	handlers    *Handlers
	authSvc     AuthService
	rateLimiter *ratelimit.LoginRateLimiter
	behindProxy bool
}

func NewServer(authSvc AuthService, submissions SubmissionService, results ResultService, maxSizeMB int, behindProxy bool) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		handlers:    NewHandlers(submissions, results, maxSizeMB),
		authSvc:     authSvc,
		rateLimiter: ratelimit.NewLoginRateLimiter(5, 15*time.Minute, 30*time.Minute),
		behindProxy: behindProxy,
	}

	s.registerRoutes()
	s.handler = middleware.Logging(middleware.Recover(middleware.SecurityHeaders(s.mux)))

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/auth/login", LoginHandler(s.authSvc, s.rateLimiter, s.behindProxy))

	s.mux.HandleFunc("POST /api/recognition/check-action", AuthMiddleware(s.authSvc, s.handlers.CheckAction()))
	s.mux.HandleFunc("GET /api/recognition/jobs/{id}", AuthMiddleware(s.authSvc, s.handlers.JobStatus()))

	s.mux.HandleFunc("GET /healthz", s.handlers.Health())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
