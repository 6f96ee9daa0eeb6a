package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/comments"
	"github.com/seiixin/gunwadex/internal/util"
)

// ListComments returns visible top-level comments on a target
// GET /api/v1/comments?target_type=&target_id=
func (h *Handlers) ListComments(c *gin.Context) {
	ref, ok := targetFromQuery(c)
	if !ok {
		return
	}
	page := util.ParsePage(c)

	list, total, err := h.comments.List(c.Request.Context(), ref, page)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondList(c, list, total, page)
}

// GetReplies returns replies to a comment, oldest first
// GET /api/v1/comments/:id/replies
func (h *Handlers) GetReplies(c *gin.Context) {
	page := util.ParsePage(c)
	replies, total, err := h.comments.Replies(c.Request.Context(), c.Param("id"), page)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondList(c, replies, total, page)
}

// CreateComment comments on a target, or replies when parent_id is set
// POST /api/v1/comments
func (h *Handlers) CreateComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		TargetType string `json:"target_type" binding:"required"`
		TargetID   string `json:"target_id" binding:"required"`
		ParentID   string `json:"parent_id"`
		Body       string `json:"body"`
	}
	if !bindJSON(c, &req) {
		return
	}
	ref, ok := parseTarget(c, req.TargetType, req.TargetID)
	if !ok {
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), userID, comments.CreateInput{
		Target:   ref,
		ParentID: req.ParentID,
		Body:     req.Body,
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// UpdateComment edits the caller's own comment within the edit window
// PUT /api/v1/comments/:id
func (h *Handlers) UpdateComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.comments.Update(c.Request.Context(), userID, c.Param("id"), req.Body)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

// DeleteComment soft-deletes a comment. Authors and admins may delete.
// DELETE /api/v1/comments/:id
func (h *Handlers) DeleteComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	if err := h.comments.Delete(c.Request.Context(), userID, util.IsAdmin(c), c.Param("id")); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}
