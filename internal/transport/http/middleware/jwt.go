package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studybot/internal/pkg/jwtutil"
	"studybot/internal/transport/http/response"
)

const (
	ContextUserIDKey = "user_id"
	ContextEmailKey  = "email"
)

// AuthJWT requires a valid "Bearer <token>" header and stores the caller's
// id and email on the context.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			unauthorized(c, msg)
			return
		}

		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil || claims.UserID == 0 {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextEmailKey, claims.Email)
		c.Next()
	}
}

func bearerToken(header string) (string, string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization scheme"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

func unauthorized(c *gin.Context, msg string) {
	response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, msg)
	c.Abort()
}
