package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/engagement"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/util"
)

type targetRequest struct {
	TargetType string `json:"target_type" binding:"required"`
	TargetID   string `json:"target_id" binding:"required"`
}

// TrackView counts a view of a story, episode or article. Guests are
// identified by client IP.
// POST /api/v1/views/track
func (h *Handlers) TrackView(c *gin.Context) {
	var req targetRequest
	if !bindJSON(c, &req) {
		return
	}
	ref, ok := parseTarget(c, req.TargetType, req.TargetID)
	if !ok {
		return
	}

	userID, _ := util.OptionalUserID(c)
	res, err := h.engagement.TrackView(c.Request.Context(), engagement.ViewInput{
		Target:    ref,
		UserID:    userID,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ToggleLike likes a target or removes the caller's like
// POST /api/v1/reactions/like
func (h *Handlers) ToggleLike(c *gin.Context) {
	h.toggle(c, h.engagement.ToggleReaction, "liked")
}

// ToggleFavorite favorites a target or removes the favorite
// POST /api/v1/favorites/toggle
func (h *Handlers) ToggleFavorite(c *gin.Context) {
	h.toggle(c, h.engagement.ToggleFavorite, "favorited")
}

func (h *Handlers) toggle(c *gin.Context, fn func(ctx context.Context, userID string, ref models.TargetRef) (engagement.ToggleResult, error), activeKey string) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req targetRequest
	if !bindJSON(c, &req) {
		return
	}
	ref, ok := parseTarget(c, req.TargetType, req.TargetID)
	if !ok {
		return
	}

	res, err := fn(c.Request.Context(), userID, ref)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{activeKey: res.Active, "count": res.Count})
}

// ListFavorites returns the caller's favorites, newest first
// GET /api/v1/favorites
func (h *Handlers) ListFavorites(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	page := util.ParsePage(c)

	items, total, err := h.engagement.Favorites(c.Request.Context(), userID, page)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondList(c, items, total, page)
}

// RateStory stores the caller's 1..5 rating of a story
// POST /api/v1/ratings
func (h *Handlers) RateStory(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req struct {
		StoryID string `json:"story_id" binding:"required"`
		Value   int    `json:"value"`
	}
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.engagement.Rate(c.Request.Context(), userID, req.StoryID, req.Value)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// EngagementStatus returns whether the caller liked, favorited or rated a target
// GET /api/v1/engagement?target_type=&target_id=
func (h *Handlers) EngagementStatus(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	ref, ok := targetFromQuery(c)
	if !ok {
		return
	}

	st, err := h.engagement.Status(c.Request.Context(), userID, ref)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
