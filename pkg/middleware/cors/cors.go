package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Policy describes which browser origins may call the API.
type Policy struct {
	// Origins is the allow list. Empty means any origin without credentials.
	Origins []string
	Methods []string
	Headers []string
	// Expose lists response headers readable by scripts. Downloads need Content-Disposition.
	Expose []string
	MaxAge string
}

// DefaultPolicy allows the read, generate and export endpoints.
func DefaultPolicy(origins []string) Policy {
	return Policy{
		Origins: origins,
		Methods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		Headers: []string{"Content-Type", "X-Requested-With", "X-Request-ID"},
		Expose:  []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:  "600",
	}
}

// New returns a CORS middleware enforcing DefaultPolicy for allowedOrigins.
func New(allowedOrigins []string) gin.HandlerFunc {
	return WithPolicy(DefaultPolicy(allowedOrigins))
}

// WithPolicy returns a CORS middleware for p. Preflight requests end with 204.
func WithPolicy(p Policy) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(p.Origins))
	for _, origin := range p.Origins {
		allowed[normalize(origin)] = struct{}{}
	}
	wildcard := len(allowed) == 0
	methods := strings.Join(p.Methods, ", ")
	headers := strings.Join(p.Headers, ", ")
	expose := strings.Join(p.Expose, ", ")

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		switch {
		case wildcard:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := allowed[normalize(origin)]; ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)
		if expose != "" {
			h.Set("Access-Control-Expose-Headers", expose)
		}
		if p.MaxAge != "" {
			h.Set("Access-Control-Max-Age", p.MaxAge)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}
