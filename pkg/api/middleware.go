package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// tenantHeader is the oauth2-proxy-style header identifying the calling
// tenant, mirroring how the teacher identifies the calling user from
// X-Forwarded-User/X-Forwarded-Email rather than a bespoke auth scheme.
const tenantHeader = "X-Tenant-ID"

// requireTenant rejects any request with no tenant header and stores the
// tenant ID on the context for handlers to read via tenantID(c).
func requireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.GetHeader(tenantHeader)
		if tenant == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": tenantHeader + " header is required"})
			return
		}
		c.Set("tenant_id", tenant)
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	v, _ := c.Get("tenant_id")
	s, _ := v.(string)
	return s
}

// enforceTenantParam aborts with 403 if the :tenantId path parameter
// does not match the caller's authenticated tenant, so a tenant can
// never address another tenant's billing data by guessing an ID.
func enforceTenantParam(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Param(param) != tenantID(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "tenant mismatch"})
			return
		}
		c.Next()
	}
}

// securityHeaders sets standard defensive response headers on every
// response, matching the teacher's blanket security-header middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}
