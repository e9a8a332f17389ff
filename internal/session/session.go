package session

import (
	"context"
	"fmt"
	"time"

	"bikemetro/models"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the persisted authenticated identity.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *models.Profile
}

// Authenticated reports whether the session carries both a token and a user.
func (s Session) Authenticated() bool {
	return s.AccessToken != "" && s.User != nil
}

// Store persists the session under fixed namespaced keys.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	SetAccessToken(ctx context.Context, token string) error
	RefreshToken(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

type Keys struct {
	Token   string
	Refresh string
	User    string
}

func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = "@bikemetro"
	}
	return Keys{
		Token:   prefix + "_token",
		Refresh: prefix + "_refresh_token",
		User:    prefix + "_user",
	}
}

func (k Keys) All() []string {
	return []string{k.Token, k.Refresh, k.User}
}

// Claims holds the parts of an access token the client cares about.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// ParseClaims decodes an access token without verifying its signature.
// The server remains the only authority on token validity.
func ParseClaims(token string) (Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Claims{}, fmt.Errorf("ParseClaims: %w", err)
	}

	var c Claims
	for _, key := range []string{"user_id", "sub"} {
		if v, ok := claims[key]; ok && v != nil {
			c.UserID = fmt.Sprint(v)
			break
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}
