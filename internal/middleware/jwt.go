package middleware

import (
	"net/http"
	"strings"

	"turnero/internal/service"

	"github.com/gin-gonic/gin"
)

// AccessVerifier turns a bearer token into an operator identity.
type AccessVerifier interface {
	VerifyAccess(token string) (*service.OperatorInfo, error)
}

// JWTMiddleware rejects requests without a valid access token and puts the
// operator into the request context.
func JWTMiddleware(verifier AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			tokenString = strings.TrimSpace(token)
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing"})
			return
		}

		op, err := verifier.VerifyAccess(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Request = c.Request.WithContext(service.WithOperator(c.Request.Context(), op))
		c.Next()
	}
}
