package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/content"
	"github.com/seiixin/gunwadex/internal/util"
)

// ListStories returns published stories, filterable by category and author
// GET /api/v1/stories?category=&author=&sort=latest|popular|top_rated
func (h *Handlers) ListStories(c *gin.Context) {
	page := util.ParsePage(c)
	filter := content.StoryFilter{
		Category: c.Query("category"),
		Author:   c.Query("author"),
		Sort:     c.Query("sort"),
	}

	stories, total, err := h.content.ListStories(c.Request.Context(), filter, page)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondList(c, stories, total, page)
}

// GetStory returns a published story with its published episodes
// GET /api/v1/stories/:slug
func (h *Handlers) GetStory(c *gin.Context) {
	story, err := h.content.StoryBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"story": story})
}

// GetEpisode returns one episode with its pages and prev/next numbers
// GET /api/v1/stories/:slug/episodes/:number
func (h *Handlers) GetEpisode(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		util.RespondValidationError(c, "number", "episode number must be a positive integer")
		return
	}

	detail, err := h.content.Episode(c.Request.Context(), c.Param("slug"), number)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ListArticles returns published articles, newest first
// GET /api/v1/articles
func (h *Handlers) ListArticles(c *gin.Context) {
	page := util.ParsePage(c)
	articles, total, err := h.content.ListArticles(c.Request.Context(), page)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondList(c, articles, total, page)
}

// GetArticle returns a published article
// GET /api/v1/articles/:slug
func (h *Handlers) GetArticle(c *gin.Context) {
	article, err := h.content.ArticleBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"article": article})
}

// ListCategories returns every category with its published story count
// GET /api/v1/categories
func (h *Handlers) ListCategories(c *gin.Context) {
	cats, err := h.content.Categories(c.Request.Context())
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

// GetCategory returns a category and a page of its stories
// GET /api/v1/categories/:slug
func (h *Handlers) GetCategory(c *gin.Context) {
	page := util.ParsePage(c)
	res, err := h.content.CategoryBySlug(c.Request.Context(), c.Param("slug"), c.Query("sort"), page)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetAuthor returns an author's public page
// GET /api/v1/authors/:username
func (h *Handlers) GetAuthor(c *gin.Context) {
	res, err := h.content.Author(c.Request.Context(), c.Param("username"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetCommunity returns recent comments and top stories
// GET /api/v1/community
func (h *Handlers) GetCommunity(c *gin.Context) {
	res, err := h.content.Community(c.Request.Context())
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
