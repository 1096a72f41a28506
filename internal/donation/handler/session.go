package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/donationcore/internal/fault"
	"github.com/jmerrifield20/donationcore/internal/identity"
)

const sessionClaimsKey = "donation_session_claims"

// RequireSession returns a Gin middleware that enforces a valid session
// Bearer token issued by sessions. On success the claims are available
// through SessionFrom.
func RequireSession(sessions *identity.SessionIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		tokenStr = strings.TrimSpace(tokenStr)
		if !ok || tokenStr == "" {
			abortUnauthorized(c, "Bearer session token required")
			return
		}

		claims, err := sessions.Verify(tokenStr)
		if err != nil {
			abortUnauthorized(c, "invalid or expired session token")
			return
		}

		c.Set(sessionClaimsKey, claims)
		c.Next()
	}
}

// SessionFrom returns the claims stored by RequireSession, or nil.
func SessionFrom(c *gin.Context) *identity.SessionClaims {
	v, _ := c.Get(sessionClaimsKey)
	claims, _ := v.(*identity.SessionClaims)
	return claims
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="donationcore"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": msg,
		"code":  fault.CodeUnauthorized,
	})
}
