package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/content"
	"github.com/seiixin/gunwadex/internal/util"
)

// AdminCreateCategory creates a category
// POST /api/v1/admin/categories
func (h *Handlers) AdminCreateCategory(c *gin.Context) {
	var req content.CategoryInput
	if !bindJSON(c, &req) {
		return
	}
	cat, err := h.content.CreateCategory(c.Request.Context(), req)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": cat})
}

// AdminUpdateCategory renames or describes a category
// PUT /api/v1/admin/categories/:id
func (h *Handlers) AdminUpdateCategory(c *gin.Context) {
	var req content.CategoryInput
	if !bindJSON(c, &req) {
		return
	}
	cat, err := h.content.UpdateCategory(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": cat})
}

// AdminDeleteCategory deletes a category and detaches its stories
// DELETE /api/v1/admin/categories/:id
func (h *Handlers) AdminDeleteCategory(c *gin.Context) {
	if err := h.content.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "category deleted"})
}

// AdminCreateStory creates a story authored by the caller
// POST /api/v1/admin/stories
func (h *Handlers) AdminCreateStory(c *gin.Context) {
	adminID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req content.StoryInput
	if !bindJSON(c, &req) {
		return
	}
	story, err := h.content.CreateStory(c.Request.Context(), adminID, req)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"story": story})
}

// AdminUpdateStory edits a story
// PUT /api/v1/admin/stories/:id
func (h *Handlers) AdminUpdateStory(c *gin.Context) {
	var req content.StoryInput
	if !bindJSON(c, &req) {
		return
	}
	story, err := h.content.UpdateStory(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"story": story})
}

// AdminDeleteStory soft-deletes a story and its episodes
// DELETE /api/v1/admin/stories/:id
func (h *Handlers) AdminDeleteStory(c *gin.Context) {
	if err := h.content.DeleteStory(c.Request.Context(), c.Param("id")); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "story deleted"})
}

// AdminCreateEpisode adds an episode to a story
// POST /api/v1/admin/stories/:id/episodes
func (h *Handlers) AdminCreateEpisode(c *gin.Context) {
	var req content.EpisodeInput
	if !bindJSON(c, &req) {
		return
	}
	ep, err := h.content.CreateEpisode(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"episode": ep})
}

// AdminUpdateEpisode edits an episode; a non-null assets list replaces its pages
// PUT /api/v1/admin/episodes/:id
func (h *Handlers) AdminUpdateEpisode(c *gin.Context) {
	var req content.EpisodeInput
	if !bindJSON(c, &req) {
		return
	}
	ep, err := h.content.UpdateEpisode(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"episode": ep})
}

// AdminDeleteEpisode deletes an episode and its pages
// DELETE /api/v1/admin/episodes/:id
func (h *Handlers) AdminDeleteEpisode(c *gin.Context) {
	if err := h.content.DeleteEpisode(c.Request.Context(), c.Param("id")); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "episode deleted"})
}

// AdminCreateArticle creates an article authored by the caller
// POST /api/v1/admin/articles
func (h *Handlers) AdminCreateArticle(c *gin.Context) {
	adminID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req content.ArticleInput
	if !bindJSON(c, &req) {
		return
	}
	article, err := h.content.CreateArticle(c.Request.Context(), adminID, req)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"article": article})
}

// AdminUpdateArticle edits an article
// PUT /api/v1/admin/articles/:id
func (h *Handlers) AdminUpdateArticle(c *gin.Context) {
	var req content.ArticleInput
	if !bindJSON(c, &req) {
		return
	}
	article, err := h.content.UpdateArticle(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"article": article})
}

// AdminDeleteArticle soft-deletes an article
// DELETE /api/v1/admin/articles/:id
func (h *Handlers) AdminDeleteArticle(c *gin.Context) {
	if err := h.content.DeleteArticle(c.Request.Context(), c.Param("id")); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "article deleted"})
}
