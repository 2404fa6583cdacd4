package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"moveon-server/services/messaging-api/internal/config"
	"moveon-server/services/messaging-api/internal/infrastructure/metrics"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

const (
	// ContextUserID is the gin context key holding the authenticated user id.
	ContextUserID = "user_id"
	// ContextPrincipal holds *PrincipalClaims when a bearer token was validated.
	ContextPrincipal = "principal_claims"

	accessTokenQuery = "access_token"
)

// TokenValidator validates a raw bearer token.
type TokenValidator interface {
	Validate(ctx context.Context, rawToken string) (*PrincipalClaims, error)
}

// Validator resolves the caller's identity for every /v1 request.
type Validator struct {
	enabled bool
	tokens  TokenValidator
	log     zerolog.Logger
}

// NewValidator fetches the JWKS when auth is enabled.
func NewValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Validator, error) {
	log = log.With().Str("component", "auth").Logger()
	if !cfg.AuthEnabled {
		log.Warn().Msg("auth disabled, trusting X-User-ID headers")
		return &Validator{log: log}, nil
	}

	keycloak, err := NewKeycloakValidator(
		ctx,
		cfg.AuthJWKSURL,
		cfg.AuthIssuer,
		cfg.AuthAudience,
		5*time.Minute,
		time.Minute,
		log,
	)
	if err != nil {
		return nil, err
	}
	return NewValidatorWithTokens(keycloak, log), nil
}

// NewValidatorWithTokens builds an enabled validator around tokens.
func NewValidatorWithTokens(tokens TokenValidator, log zerolog.Logger) *Validator {
	return &Validator{enabled: true, tokens: tokens, log: log}
}

// Middleware resolves the user from gateway headers or a bearer token and
// stores it under ContextUserID. Browsers opening a websocket may pass the
// token as ?access_token=.
func (v *Validator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := gatewayUserID(c); userID != "" {
			metrics.RecordAuth("gateway", "success")
			c.Set(ContextUserID, userID)
			c.Next()
			return
		}

		if !v.enabled {
			metrics.RecordAuth("none", "failure")
			abortUnauthorized(c, "missing user identity")
			return
		}

		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			raw = strings.TrimSpace(c.Query(accessTokenQuery))
		}
		if raw == "" {
			metrics.RecordAuth("jwt", "failure")
			abortUnauthorized(c, "missing bearer token")
			return
		}
		if strings.HasPrefix(raw, "sk_") {
			metrics.RecordAuth("api_key", "failure")
			v.log.Debug().Msg("api key presented without gateway headers")
			abortUnauthorized(c, "invalid token")
			return
		}

		claims, err := v.tokens.Validate(c.Request.Context(), raw)
		if err != nil {
			metrics.RecordAuth("jwt", "failure")
			v.log.Debug().Err(err).Msg("jwt validation failed")
			abortUnauthorized(c, "invalid token")
			return
		}

		metrics.RecordAuth("jwt", "success")
		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextPrincipal, claims)
		c.Next()
	}
}

// UserID returns the authenticated user id stored by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// gatewayUserID reads identity headers injected by the API gateway after it
// validated an API key.
func gatewayUserID(c *gin.Context) string {
	if userID := strings.TrimSpace(c.GetHeader("X-User-ID")); userID != "" {
		return userID
	}
	if subject := strings.TrimSpace(c.GetHeader("X-User-Subject")); subject != "" {
		return subject
	}
	if strings.TrimSpace(c.GetHeader("X-Credential-Identifier")) != "" {
		if customID := strings.TrimSpace(c.GetHeader("X-Consumer-Custom-ID")); customID != "" {
			return customID
		}
		return strings.TrimSpace(c.GetHeader("X-Consumer-ID"))
	}
	return ""
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abortUnauthorized(c *gin.Context, message string) {
	platformerrors.WriteUnauthorized(c, message)
	c.Abort()
}
