package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/937bb/937cms-sub001/internal/logging"
)

const CtxClaimsKey = "auth_claims"

// AuthMiddleware requires a valid, unrevoked operator bearer token. Rejected
// tokens are logged in redacted form only.
func AuthMiddleware(tokens TokenService, revoked *Revocations, log *logrus.Entry) gin.HandlerFunc {
	if log == nil {
		log = logging.Discard()
	}
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := tokens.Parse(raw)
		if err == nil && revoked != nil && revoked.Revoked(claims.ID) {
			err = ErrRevoked
		}
		if err != nil {
			log.WithFields(logrus.Fields{
				"token":  logging.RedactToken(raw),
				"path":   c.Request.URL.Path,
				"remote": c.ClientIP(),
			}).WithError(err).Warn("rejected bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// MustGetClaims returns the claims stored by AuthMiddleware, or nil on
// routes it does not guard.
func MustGetClaims(c *gin.Context) *Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
