package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/c3po-initiative/dhroxy-frontend-example/pkg/external"
)

// CredentialPassthrough attaches the inbound X-Sundhed-* headers to the request
// context so upstream calls made while serving the request carry them.
func CredentialPassthrough() gin.HandlerFunc {
	return func(c *gin.Context) {
		if creds := external.CredentialsFromRequest(c.Request.Header); len(creds) > 0 {
			c.Request = c.Request.WithContext(external.WithCredentials(c.Request.Context(), creds))
		}
		c.Next()
	}
}
