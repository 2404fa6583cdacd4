package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// PrincipalClaims is the subset of token claims the messaging service uses.
type PrincipalClaims struct {
	Subject           string
	Issuer            string
	Audience          []string
	PreferredUsername string
	Email             string
	Name              string
	ExpiresAt         time.Time
	IssuedAt          time.Time
}

// KeycloakValidator checks RS256 tokens against a refreshed JWKS.
type KeycloakValidator struct {
	issuer    string
	audience  string
	jwksURL   string
	clockSkew time.Duration
	refresh   time.Duration
	log       zerolog.Logger

	jwks    atomic.Pointer[keyfunc.JWKS]
	healthy atomic.Bool
}

const (
	jwksRetryInterval   = time.Second
	jwksRetryMaxBackoff = 10 * time.Second
	jwksRetryTimeout    = 2 * time.Minute
)

func NewKeycloakValidator(
	ctx context.Context,
	jwksURL, issuer, audience string,
	refresh, clockSkew time.Duration,
	log zerolog.Logger,
) (*KeycloakValidator, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}

	v := &KeycloakValidator{
		issuer:    issuer,
		audience:  audience,
		jwksURL:   jwksURL,
		clockSkew: clockSkew,
		refresh:   refresh,
		log:       log.With().Str("component", "jwks").Logger(),
	}
	if err := v.fetch(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

// fetch loads the JWKS, retrying with exponential backoff until the deadline.
func (v *KeycloakValidator) fetch(ctx context.Context) error {
	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   v.refresh,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			v.healthy.Store(err == nil)
			if err != nil {
				v.log.Error().Err(err).Msg("jwks refresh failed")
			}
		},
	}

	deadline := time.Now().Add(jwksRetryTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	backoff := jwksRetryInterval
	for attempt := 1; ; attempt++ {
		jwks, err := keyfunc.Get(v.jwksURL, options)
		if err == nil {
			v.jwks.Store(jwks)
			v.healthy.Store(true)
			return nil
		}

		v.log.Warn().Err(err).Str("jwks_url", v.jwksURL).Int("attempt", attempt).Msg("jwks fetch failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("fetch jwks: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("fetch jwks: %w", err)
		}
		backoff = min(backoff*2, jwksRetryMaxBackoff)
	}
}

// Validate parses rawToken and returns its principal.
func (v *KeycloakValidator) Validate(_ context.Context, rawToken string) (*PrincipalClaims, error) {
	jwks := v.jwks.Load()
	if jwks == nil {
		return nil, errors.New("jwks not initialised")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithLeeway(v.clockSkew),
	)
	token, err := parser.ParseWithClaims(rawToken, jwt.MapClaims{}, jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return principalFromClaims(claims, v.issuer, v.audience)
}

// Ready reports whether the last JWKS fetch succeeded.
func (v *KeycloakValidator) Ready() bool {
	return v.jwks.Load() != nil && v.healthy.Load()
}

func principalFromClaims(claims jwt.MapClaims, issuer, audience string) (*PrincipalClaims, error) {
	iss := claimString(claims["iss"])
	if issuer != "" && iss != issuer {
		return nil, fmt.Errorf("issuer mismatch %s", iss)
	}

	audiences, err := claimAudiences(claims["aud"])
	if err != nil {
		return nil, err
	}
	if audience != "" && len(audiences) > 0 && !contains(audiences, audience) {
		return nil, errors.New("audience mismatch")
	}

	sub := claimString(claims["sub"])
	if sub == "" {
		return nil, errors.New("sub claim missing")
	}

	return &PrincipalClaims{
		Subject:           sub,
		Issuer:            iss,
		Audience:          audiences,
		PreferredUsername: claimString(claims["preferred_username"]),
		Email:             claimString(claims["email"]),
		Name:              claimString(claims["name"]),
		ExpiresAt:         numericTime(claims["exp"]),
		IssuedAt:          numericTime(claims["iat"]),
	}, nil
}

func claimAudiences(raw any) ([]string, error) {
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{val}, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("aud claim unsupported type %T", val)
	}
}

func numericTime(value any) time.Time {
	switch t := value.(type) {
	case float64:
		return time.Unix(int64(t), 0).UTC()
	case int64:
		return time.Unix(t, 0).UTC()
	case json.Number:
		if unix, err := t.Int64(); err == nil {
			return time.Unix(unix, 0).UTC()
		}
	}
	return time.Time{}
}

func claimString(value any) string {
	s, _ := value.(string)
	return s
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
