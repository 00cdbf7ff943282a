package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/librasign/signcheck/internal/adapter/http/ratelimit"
	"github.com/librasign/signcheck/internal/domain"
	"github.com/librasign/signcheck/internal/infrastructure/logger"
)

type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error)
	ValidateToken(ctx context.Context, token string) (*domain.User, error)
}

type contextKey int

const userContextKey contextKey = iota

// AuthMiddleware resolves the bearer token to a user and stores it in the
// request context.
func AuthMiddleware(authSvc AuthService, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		user, err := authSvc.ValidateToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}

// userFrom returns the authenticated user set by AuthMiddleware.
func userFrom(r *http.Request) *domain.User {
	user, _ := r.Context().Value(userContextKey).(*domain.User)
	return user
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func LoginHandler(authSvc AuthService, limiter *ratelimit.LoginRateLimiter, behindProxy bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientID(r, behindProxy)
		if allowed, retryAfter := limiter.Check(client); !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		token, expiresAt, err := authSvc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			logger.Warn.Printf("failed login for %s from %s", logger.SanitizeForLog(req.Username), client)
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		limiter.Reset(client)
		writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
	}
}

// clientID identifies the caller for rate limiting. X-Forwarded-For is only
// trusted when the server is deployed behind a reverse proxy.
func clientID(r *http.Request, behindProxy bool) string {
	if behindProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			parts := strings.Split(fwd, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
