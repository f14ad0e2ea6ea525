package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"resale-market/internal/config"
	"resale-market/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

var (
	ErrMissingSubject = errors.New("token has no subject")
	ErrNoVerifierKey  = errors.New("no token verification key configured")
)

// IdentityResolver maps a verified external identity to an internal user
type IdentityResolver interface {
	Resolve(ctx context.Context, identity domain.ExternalIdentity) (*domain.User, error)
}

// TokenVerifier checks identity-provider bearer tokens. An RSA public key
// selects RS256; otherwise tokens must be HS256 signed with the shared secret.
type TokenVerifier struct {
	key     interface{}
	options []jwt.ParserOption
}

// NewTokenVerifier builds a verifier from configuration
func NewTokenVerifier(cfg config.AuthConfig) (*TokenVerifier, error) {
	v := &TokenVerifier{}

	switch {
	case cfg.PublicKeyPEM != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("failed to parse identity provider public key: %w", err)
		}
		v.key = key
		v.options = append(v.options, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	case cfg.HMACSecret != "":
		v.key = []byte(cfg.HMACSecret)
		v.options = append(v.options, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	default:
		return nil, ErrNoVerifierKey
	}

	v.options = append(v.options, jwt.WithExpirationRequired())
	if cfg.Issuer != "" {
		v.options = append(v.options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.options = append(v.options, jwt.WithAudience(cfg.Audience))
	}

	return v, nil
}

// Verify validates the token and extracts the caller's external identity
func (v *TokenVerifier) Verify(tokenString string) (domain.ExternalIdentity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, v.options...)
	if err != nil {
		return domain.ExternalIdentity{}, err
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return domain.ExternalIdentity{}, ErrMissingSubject
	}

	identity := domain.ExternalIdentity{Subject: subject}
	identity.Email, _ = claims["email"].(string)
	identity.Name, _ = claims["name"].(string)
	return identity, nil
}

// AuthMiddleware validates bearer tokens and puts the internal user id and
// role into the request context
func AuthMiddleware(verifier *TokenVerifier, resolver IdentityResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			identity, err := verifier.Verify(parts[1])
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, jwt.ErrTokenExpired) {
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				} else {
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			user, err := resolver.Resolve(r.Context(), identity)
			if err != nil {
				RespondWithAppError(w, r, logger, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
			ctx = context.WithValue(ctx, UserRoleKey, user.Role)

			logger.Debug("User authenticated",
				zap.String("user_id", user.ID.String()),
				zap.String("role", user.Role),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(UserRoleKey).(string)
	return role, ok
}
