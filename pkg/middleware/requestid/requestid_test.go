package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newRouter(seen *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		*seen = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return r
}

func TestMiddlewareAssignsID(t *testing.T) {
	var seen string
	w := httptest.NewRecorder()
	newRouter(&seen).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(HeaderKey))
}

func TestMiddlewareInboundIDs(t *testing.T) {
	cases := map[string]bool{
		uuid.NewString():        true,
		"gw-7f3a_01.retry":      true,
		"not a uuid":            false,
		"<script>":              false,
		strings.Repeat("a", 65): false,
	}
	for id, kept := range cases {
		var seen string
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderKey, id)
		w := httptest.NewRecorder()
		newRouter(&seen).ServeHTTP(w, req)

		if kept {
			assert.Equal(t, id, w.Header().Get(HeaderKey))
		} else {
			assert.NotEqual(t, id, w.Header().Get(HeaderKey))
		}
		assert.Equal(t, w.Header().Get(HeaderKey), seen)
	}
}
