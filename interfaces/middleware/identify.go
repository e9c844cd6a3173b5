package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Identify is the non-aborting variant of Auth for browser-navigated routes.
// The token may ride the Authorization header or a token query param; an
// absent or invalid token just leaves user_id unset so the handler can
// redirect to login instead of replying 401.
func Identify(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString := ctx.Query("token")
		if tokenString == "" {
			if auth := ctx.Request.Header.Get("Authorization"); auth != "" {
				if parts := strings.SplitN(auth, "Bearer ", 2); len(parts) == 2 {
					tokenString = parts[1]
				}
			}
		}
		if tokenString != "" {
			if claims, token, err := getClaim(tokenString, secretKey); err == nil && token.Valid && claims.Issuer != "" {
				ctx.Set("user_id", claims.Issuer)
				ctx.Set("user_name", claims.UserName)
			}
		}
		ctx.Next()
	}
}
