package router

import (
	"net/http"

	"github.com/coralcommerce/dispatcher/controllers"
	"github.com/coralcommerce/dispatcher/models"

	"github.com/gin-gonic/gin"
)

// Authorizer blocks access to protected routes when user is not active.
func Authorizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := controllers.GetUserLogged(c)
		if !ok {
			controllers.RespondError(c, "unauthorized", http.StatusUnauthorized)
			c.Abort()
			return
		}

		if user.Status == models.USER_STATUS_BLOCKED {
			controllers.RespondError(c, "account blocked", http.StatusForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
