package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/auth"
	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/util"
)

func authError(err error) error {
	switch {
	case errors.Is(err, auth.ErrUserExists):
		return apierrors.Conflict("email already registered").WithField("email")
	case errors.Is(err, auth.ErrUsernameExists):
		return apierrors.Conflict("username already taken").WithField("username")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apierrors.Unauthorized("invalid email or password")
	case errors.Is(err, auth.ErrAccountSuspended):
		return apierrors.AccountSuspended()
	}
	return err
}

// Register creates an account and returns a token
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.auth.RegisterNativeUser(req)
	if err != nil {
		util.RespondWithError(c, authError(err))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login exchanges email and password for a token
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.auth.LoginNativeUser(req)
	if err != nil {
		util.RespondWithError(c, authError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated user
// GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
