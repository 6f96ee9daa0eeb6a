package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/util"
)

// Search finds published stories and articles
// GET /api/v1/search?q=
func (h *Handlers) Search(c *gin.Context) {
	res, err := h.search.Search(c.Request.Context(), c.Query("q"), util.ParsePage(c))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
