package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// LocalIssuer is the issuer of tokens signed with JWT_SECRET
const LocalIssuer = "lumbarong-api"

// LocalClaims are the claims of a locally issued HS256 token
type LocalClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueLocalToken signs a token for subject with role, valid for ttl
func IssueLocalToken(secret, subject, role string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret is not configured")
	}
	now := time.Now()
	claims := LocalClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    LocalIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseLocalToken verifies an HS256 token and returns its claims
func ParseLocalToken(secret, tokenString string) (*LocalClaims, error) {
	claims := &LocalClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(LocalIssuer),
		jwt.WithLeeway(time.Minute),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	if err := (CustomClaims{Role: claims.Role}).Validate(context.Background()); err != nil {
		return nil, err
	}
	return claims, nil
}

// EnsureValidLocalToken validates HS256 bearer tokens and fills the same context keys as EnsureValidToken
func EnsureValidLocalToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c.Request)
		if err != nil {
			log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("Missing bearer token")
			writeInvalidToken(c.Writer)
			c.Abort()
			return
		}

		claims, err := ParseLocalToken(secret, tokenString)
		if err != nil {
			log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("Encountered error while validating JWT")
			writeInvalidToken(c.Writer)
			c.Abort()
			return
		}

		validated := &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{
				Issuer:  claims.Issuer,
				Subject: claims.Subject,
			},
			CustomClaims: &CustomClaims{Role: claims.Role},
		}
		if claims.ExpiresAt != nil {
			validated.RegisteredClaims.Expiry = claims.ExpiresAt.Unix()
		}
		setAuthContext(c, validated, tokenString)
		c.Next()
	}
}

// bearerToken reads the token from the Authorization header, falling back to the
// access_token query parameter browsers use for WebSocket upgrades
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, nil
		}
		return "", errors.New("authorization header is missing")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", fmt.Errorf("authorization header format must be Bearer {token}")
	}
	return parts[1], nil
}
