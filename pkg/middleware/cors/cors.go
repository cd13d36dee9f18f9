package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
)

// Origins is a normalised allow-list. An empty list allows every origin.
type Origins map[string]struct{}

// NewOrigins builds an allow-list from configured origins.
func NewOrigins(allowed []string) Origins {
	set := make(Origins, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return set
}

// Allows reports whether the origin may call the API.
func (o Origins) Allows(origin string) bool {
	if len(o) == 0 {
		return true
	}
	_, ok := o[strings.TrimRight(origin, "/")]
	return ok
}

// New returns the CORS middleware for the REST surface.
func New(allowedOrigins []string) gin.HandlerFunc {
	origins := NewOrigins(allowedOrigins)
	allowAll := len(origins) == 0

	return func(c *gin.Context) {
		h := c.Writer.Header()
		origin := c.GetHeader("Origin")
		switch {
		case origin != "" && origins.Allows(origin):
			h.Set("Access-Control-Allow-Origin", origin)
		case origin == "" && allowAll:
			h.Set("Access-Control-Allow-Origin", "*")
		}

		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
