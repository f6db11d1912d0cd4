package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/daqring/internal/auth"
	"github.com/pccr10001/daqring/internal/model"
	"github.com/pccr10001/daqring/internal/repository"
	"github.com/pccr10001/daqring/pkg/logger"
)

// bearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on websocket upgrades, so a token query parameter is
// accepted for GET requests.
func bearerToken(c *gin.Context) (token, problem string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if t := c.Query("token"); t != "" && c.Request.Method == http.MethodGet {
			return t, ""
		}
		return "", "Authorization header required"
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", "Authorization header format must be Bearer {token}"
	}
	return token, ""
}

// AuthMiddleware validates the JWT and loads the user it names. The user,
// its ID and role are stored on the context.
func AuthMiddleware(users *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": problem})
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			logger.Log.Debugf("Rejected token from %s: %v", c.ClientIP(), err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token: " + err.Error()})
			return
		}

		user, err := users.FindByID(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}

		c.Set("user", user)
		c.Set("userID", user.ID)
		c.Set("role", user.Role)
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := c.Get("role"); role != model.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}
