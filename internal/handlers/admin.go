package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/moderation"
	"github.com/seiixin/gunwadex/internal/util"
)

// AdminListUsers lists users, filterable by query, role and ban state
// GET /api/v1/admin/users?q=&role=&banned=true|false
func (h *Handlers) AdminListUsers(c *gin.Context) {
	page := util.ParsePage(c)
	filter := moderation.UserFilter{Query: c.Query("q")}

	if raw := c.Query("role"); raw != "" {
		role, ok := models.ParseRole(raw)
		if !ok {
			util.RespondValidationError(c, "role", "role must be user, author or admin")
			return
		}
		filter.Role = role
	}
	if raw := c.Query("banned"); raw != "" {
		banned, err := strconv.ParseBool(raw)
		if err != nil {
			util.RespondValidationError(c, "banned", "banned must be true or false")
			return
		}
		filter.Banned = &banned
	}

	users, total, err := h.moderation.ListUsers(c.Request.Context(), filter, page)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondList(c, users, total, page)
}

// AdminBanUser bans a user
// POST /api/v1/admin/users/:id/ban
func (h *Handlers) AdminBanUser(c *gin.Context) {
	adminID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	user, err := h.moderation.Ban(c.Request.Context(), adminID, c.Param("id"), req.Reason)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// AdminUnbanUser lifts a ban
// POST /api/v1/admin/users/:id/unban
func (h *Handlers) AdminUnbanUser(c *gin.Context) {
	adminID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	user, err := h.moderation.Unban(c.Request.Context(), adminID, c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// AdminSetRole changes a user's role
// PUT /api/v1/admin/users/:id/role
func (h *Handlers) AdminSetRole(c *gin.Context) {
	adminID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	role, valid := models.ParseRole(req.Role)
	if !valid {
		util.RespondValidationError(c, "role", "role must be user, author or admin")
		return
	}

	user, err := h.moderation.SetRole(c.Request.Context(), adminID, c.Param("id"), role)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// AdminHideComment hides a comment from public listings
// POST /api/v1/admin/comments/:id/hide
func (h *Handlers) AdminHideComment(c *gin.Context) {
	comment, err := h.moderation.HideComment(c.Request.Context(), c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

// AdminUnhideComment restores a hidden comment
// POST /api/v1/admin/comments/:id/unhide
func (h *Handlers) AdminUnhideComment(c *gin.Context) {
	comment, err := h.moderation.UnhideComment(c.Request.Context(), c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

// AdminDeleteComment soft-deletes any comment
// DELETE /api/v1/admin/comments/:id
func (h *Handlers) AdminDeleteComment(c *gin.Context) {
	adminID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	if err := h.moderation.DeleteComment(c.Request.Context(), adminID, c.Param("id")); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}

// AdminStats returns dashboard counters
// GET /api/v1/admin/stats
func (h *Handlers) AdminStats(c *gin.Context) {
	stats, err := h.moderation.Stats(c.Request.Context())
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
