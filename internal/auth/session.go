package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"facedesk/internal/model"
)

var (
	ErrNoSession      = errors.New("no backend session")
	ErrSessionExpired = errors.New("backend session expired")
)

// Claims is the payload of the backend's auth_token cookie.
type Claims struct {
	UserID model.ID `json:"user_id"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}

// Session describes who the kiosk is acting as on the backend.
type Session struct {
	UserID    model.ID  `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ParseSession reads a backend session token. With a signing key the HS256
// signature is verified; without one the claims are only decoded, since the
// kiosk does not normally share the backend secret. Expiry is enforced in
// both cases.
func ParseSession(tokenStr, key string, now time.Time) (Session, error) {
	if tokenStr == "" {
		return Session{}, ErrNoSession
	}

	claims := &Claims{}
	if key == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return Session{}, fmt.Errorf("decode session token: %w", err)
		}
	} else {
		parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(key), nil
		}, jwt.WithTimeFunc(func() time.Time { return now }))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return Session{}, ErrSessionExpired
			}
			return Session{}, fmt.Errorf("verify session token: %w", err)
		}
		if !parsed.Valid {
			return Session{}, errors.New("invalid session token")
		}
	}

	s := Session{UserID: claims.UserID, Email: claims.Email}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
		if !now.Before(s.ExpiresAt) {
			return Session{}, ErrSessionExpired
		}
	}
	return s, nil
}

// IssueSession signs a token in the backend's format. The kiosk never needs
// this in production; it exists for local stand-in backends and tests.
func IssueSession(userID model.ID, email, key string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}
