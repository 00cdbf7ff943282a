package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/librasign/signcheck/internal/domain"
	"github.com/librasign/signcheck/internal/infrastructure/logger"
	"github.com/librasign/signcheck/internal/port"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidCreds = errors.New("invalid credentials")
)

// AuthService is the identity-verification capability: it turns credentials
// into signed bearer tokens and bearer tokens back into a caller identity.
type AuthService struct {
	users         port.UserStore
	secretKey     []byte
	tokenLifetime time.Duration
}

func NewAuthService(users port.UserStore, secretKey string, tokenLifetime time.Duration) *AuthService {
	return &AuthService{
		users:         users,
		secretKey:     []byte(secretKey),
		tokenLifetime: tokenLifetime,
	}
}

// Bootstrap creates the initial user when the store is empty, so a fresh
// deployment is usable without a registration flow.
func (s *AuthService) Bootstrap(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}

	hasUser, err := s.users.HasUser(ctx)
	if err != nil {
		return fmt.Errorf("check users: %w", err)
	}
	if hasUser {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.users.CreateUser(ctx, username, string(hash)); err != nil {
		return fmt.Errorf("create bootstrap user: %w", err)
	}
	logger.Info.Printf("bootstrap user %s created", logger.SanitizeForLog(username))
	return nil
}

// Login verifies credentials and issues an HS256 token with the user id as
// subject.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		return "", time.Time{}, ErrInvalidCreds
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCreds
	}

	expiresAt := time.Now().Add(s.tokenLifetime)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.ID, 10),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// ValidateToken resolves a bearer token to its user.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*domain.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}
