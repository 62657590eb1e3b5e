package testutil

import (
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/lumbarong/lumbarong-api/middleware"
)

// MockValidatedClaims creates validated claims carrying a subject, role and scopes
func MockValidatedClaims(subject, role string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  middleware.LocalIssuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
			Role:  role,
		},
	}
}

// SetMockAuthContext populates c the way the authentication middleware does
func SetMockAuthContext(c *gin.Context, subject, role, accessToken string) {
	c.Set(middleware.ContextUserID, subject)
	c.Set(middleware.ContextAccessToken, accessToken)
	c.Set(middleware.ContextValidatedClaims, MockValidatedClaims(subject, role, nil))
}

// MockAuthMiddleware authenticates every request as subject with role
func MockAuthMiddleware(subject, role, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetMockAuthContext(c, subject, role, accessToken)
		c.Next()
	}
}
