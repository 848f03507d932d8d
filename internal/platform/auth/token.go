// Package auth supplies the bearer token used against the messaging server.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/core/logging"
)

// LoadFunc returns the raw token, or "" when none is configured.
type LoadFunc func() (string, error)

// Source hands out the configured token while it is usable. JWTs are checked
// for expiry without verifying their signature; opaque tokens pass through.
type Source struct {
	load LoadFunc
	now  func() time.Time
	log  zerolog.Logger
}

// NewSource creates a Source reading tokens from load on every call, so an
// updated token file is picked up without a restart.
func NewSource(load LoadFunc) *Source {
	return &Source{
		load: load,
		now:  time.Now,
		log:  logging.Component("auth"),
	}
}

// Static returns a Source for a fixed token.
func Static(token string) *Source {
	return NewSource(func() (string, error) { return token, nil })
}

// Token returns the token, or "" when it is missing or expired.
func (s *Source) Token(_ context.Context) (string, error) {
	raw, err := s.load()
	if err != nil {
		return "", err
	}
	if raw == "" {
		return "", nil
	}

	if exp, ok := Expiry(raw); ok && !s.now().Before(exp) {
		s.log.Debug().Time("expired_at", exp).Msg("token expired, treating as signed out")
		return "", nil
	}
	return raw, nil
}

// Expiry reads the exp claim of a JWT. ok is false for opaque tokens and
// tokens without an expiry.
func Expiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
