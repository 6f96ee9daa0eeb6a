package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/auth"
	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/util"
)

// TokenValidator resolves a bearer token to the current user row
type TokenValidator interface {
	ValidateToken(tokenString string) (*models.User, error)
}

// BearerToken reads "Authorization: Bearer <token>", falling back to ?token=
// for websocket handshakes where browsers can't set headers.
func BearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return c.Query("token")
}

// SetUser stores the authenticated user under the context keys handlers read
func SetUser(c *gin.Context, user *models.User) {
	c.Set("user", user)
	c.Set("user_id", user.ID)
	c.Set("user_role", user.Role)
}

// RequireAuth rejects requests without a valid token. Tokens of banned users are
// refused with 403 ACCOUNT_SUSPENDED even though their signature is valid.
func RequireAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			util.RespondUnauthorized(c, "no token provided")
			return
		}

		user, err := validator.ValidateToken(token)
		if err != nil {
			respondAuthError(c, err)
			return
		}

		SetUser(c, user)
		c.Next()
	}
}

// OptionalAuth lets guests through and attaches the user when a valid token is present.
// A bad or expired token is treated as a guest; a banned user's token is still refused.
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		user, err := validator.ValidateToken(token)
		switch {
		case err == nil:
			SetUser(c, user)
		case errors.Is(err, auth.ErrAccountSuspended):
			respondAuthError(c, err)
			return
		default:
			logger.Log.Debug("ignoring invalid token on optional-auth route")
		}
		c.Next()
	}
}

func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrAccountSuspended):
		util.RespondWithAPIError(c, apierrors.AccountSuspended())
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUserNotFound):
		util.RespondUnauthorized(c, "invalid token")
	default:
		util.RespondWithError(c, err)
	}
}
