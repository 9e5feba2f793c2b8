package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const contextUserKey = "user"

// AuthMiddleware validates the bearer token against the identity provider
// and resolves the caller into a local user, stored in the gin context.
func AuthMiddleware(idp IdentityProvider, users *UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing Authorization header"})
			c.Abort()
			return
		}

		// Expect: "Bearer token"
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			c.Abort()
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		active, err := idp.Introspect(c.Request.Context(), tokenString)
		if err != nil || !active {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// Introspection vouched for the token; decode the claims locally
		// instead of a second userinfo round trip.
		info, err := claimsFromToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		user, err := users.ResolveOrCreate(c.Request.Context(), info)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Could not resolve user"})
			c.Abort()
			return
		}

		c.Set(contextUserKey, user)
		c.Next()
	}
}

func claimsFromToken(tokenString string) (Userinfo, error) {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		return Userinfo{}, err
	}

	info := Userinfo{}
	if sub, ok := claims["sub"].(string); ok {
		info.Sub = sub
	}
	if username, ok := claims["preferred_username"].(string); ok {
		info.PreferredUsername = username
	}
	if email, ok := claims["email"].(string); ok {
		info.Email = email
	}
	return info, nil
}

// currentUser fetches the user AuthMiddleware stored in the context.
func currentUser(c *gin.Context) (*User, bool) {
	value, exists := c.Get(contextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*User)
	return user, ok
}
