package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/seiixin/gunwadex/internal/auth"
	"github.com/seiixin/gunwadex/internal/chat"
	"github.com/seiixin/gunwadex/internal/comments"
	"github.com/seiixin/gunwadex/internal/contact"
	"github.com/seiixin/gunwadex/internal/content"
	"github.com/seiixin/gunwadex/internal/engagement"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/moderation"
	"github.com/seiixin/gunwadex/internal/search"
	"github.com/seiixin/gunwadex/internal/util"
	"gorm.io/gorm"
)

// Services bundles everything the HTTP layer calls into
type Services struct {
	DB         *gorm.DB
	Auth       *auth.Service
	Content    *content.Service
	Comments   *comments.Service
	Engagement *engagement.Service
	Chat       *chat.Service
	Contact    *contact.Service
	Moderation *moderation.Service
	Search     *search.Service
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	db         *gorm.DB
	auth       *auth.Service
	content    *content.Service
	comments   *comments.Service
	engagement *engagement.Service
	chat       *chat.Service
	contact    *contact.Service
	moderation *moderation.Service
	search     *search.Service
}

// NewHandlers creates a new handlers instance
func NewHandlers(s Services) *Handlers {
	return &Handlers{
		db:         s.DB,
		auth:       s.Auth,
		content:    s.Content,
		comments:   s.Comments,
		engagement: s.Engagement,
		chat:       s.Chat,
		contact:    s.Contact,
		moderation: s.Moderation,
		search:     s.Search,
	}
}

// listResponse is the envelope of every paginated list
type listResponse struct {
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

func respondList(c *gin.Context, items interface{}, total int64, page util.Page) {
	c.JSON(http.StatusOK, listResponse{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// targetFromQuery reads ?target_type=&target_id= and answers 422 on failure
func targetFromQuery(c *gin.Context) (models.TargetRef, bool) {
	return parseTarget(c, c.Query("target_type"), c.Query("target_id"))
}

func parseTarget(c *gin.Context, kind, id string) (models.TargetRef, bool) {
	if strings.TrimSpace(id) == "" {
		util.RespondValidationError(c, "target_id", "target_id is required")
		return models.TargetRef{}, false
	}
	ref, err := models.ParseTargetRef(kind, id)
	if err != nil {
		util.RespondWithError(c, err)
		return models.TargetRef{}, false
	}
	return ref, true
}

// bindJSON binds the request body. Failed binding tags answer 422 naming the
// first bad field; malformed JSON answers 400.
func bindJSON(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		util.RespondValidationError(c, snakeCase(fe.Field()), fmt.Sprintf("failed %q validation", fe.Tag()))
		return false
	}
	util.RespondBadRequest(c, err.Error())
	return false
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
