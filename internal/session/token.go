package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"pos-backoffice/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrSessionEnded = errors.New("session has ended")
)

// Claims binds a token to one session of this process.
type Claims struct {
	SessionID uuid.UUID   `json:"sid"`
	UserID    int64       `json:"uid"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs tokens the terminal presents on every request. A token
// is only honoured while its session is the current one.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

func (t *TokenIssuer) Issue(s *Session) (string, error) {
	claims := &Claims{
		SessionID: s.ID,
		UserID:    s.User.ID,
		Role:      s.User.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", s.User.ID),
			IssuedAt:  jwt.NewNumericDate(s.StartedAt),
			ExpiresAt: jwt.NewNumericDate(s.StartedAt.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Validate parses tokenString and checks it belongs to the current session
// of sessions.
func (t *TokenIssuer) Validate(tokenString string, sessions *Context) (*Session, error) {
	claims, err := t.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	current, ok := sessions.Current()
	if !ok || current.ID != claims.SessionID {
		return nil, ErrSessionEnded
	}
	return current, nil
}
