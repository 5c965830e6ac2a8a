package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/stars-api/internal/middleware"
	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
	"github.com/noah-isme/stars-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.AccessClaims {
	value, exists := c.Get(middleware.ContextClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.AccessClaims)
	if !ok {
		return nil
	}
	return claims
}

// actingUsername resolves the caller, writing a 401 when no identity is present.
func actingUsername(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.Username() == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return claims.Username(), true
}

func refFromPath(c *gin.Context) models.CourseRef {
	return models.NewCourseRef(c.Param("course"), c.Param("index"))
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if value, err := strconv.Atoi(c.Query(key)); err == nil {
		return value
	}
	return fallback
}
