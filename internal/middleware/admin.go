package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/util"
)

// RequireAdmin must run after RequireAuth; it checks the role of the user row
// RequireAuth loaded, so a demotion takes effect on the next request.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := util.GetUserIDFromContext(c); !ok {
			c.Abort()
			return
		}

		if !util.IsAdmin(c) {
			util.RespondForbidden(c, "admin access required")
			return
		}

		c.Next()
	}
}
