package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
	"github.com/noah-isme/stars-api/pkg/logger"
	"github.com/noah-isme/stars-api/pkg/response"
)

// ContextClaimsKey is the gin context key storing access token claims.
const ContextClaimsKey = "accessClaims"

type tokenValidator interface {
	ValidateToken(token string) (*models.AccessClaims, error)
}

// JWT protects routes by requiring a valid bearer token. The token subject
// becomes the acting username.
func JWT(tokens tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(logger.UsernameKey, claims.Username())
		c.Next()
	}
}
