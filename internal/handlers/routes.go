package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/config"
	"github.com/seiixin/gunwadex/internal/middleware"
	"github.com/seiixin/gunwadex/internal/websocket"
)

// RouteConfig carries what RegisterRoutes needs besides the handlers.
// A zero limit disables that rate limit.
type RouteConfig struct {
	Tokens    middleware.TokenValidator
	Limits    config.LimitsConfig
	WebSocket *websocket.Handler
}

func limit(scope string, perMinute int) gin.HandlersChain {
	if perMinute <= 0 {
		return nil
	}
	return gin.HandlersChain{middleware.RateLimit(middleware.PerMinute(scope, perMinute))}
}

func chain(mw gin.HandlersChain, h gin.HandlerFunc) []gin.HandlerFunc {
	return append(append(gin.HandlersChain{}, mw...), h)
}

// NewEngine returns a gin engine that reads client IPs from forwarding
// headers only when the peer is one of trustedProxies. Views and rate limits
// are keyed by that IP.
func NewEngine(trustedProxies []string) (*gin.Engine, error) {
	r := gin.New()
	if len(trustedProxies) == 0 {
		trustedProxies = nil
	}
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	return r, nil
}

// RegisterRoutes mounts /health and the /api/v1 tree on r
func (h *Handlers) RegisterRoutes(r *gin.Engine, rc RouteConfig) {
	requireAuth := middleware.RequireAuth(rc.Tokens)
	optionalAuth := middleware.OptionalAuth(rc.Tokens)

	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	api.Use(limit("default", rc.Limits.DefaultPerMinute)...)
	api.GET("/health", h.Health)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.GET("/me", requireAuth, h.Me)
	}

	// Public content
	api.GET("/stories", h.ListStories)
	api.GET("/stories/:slug", h.GetStory)
	api.GET("/stories/:slug/episodes/:number", h.GetEpisode)
	api.GET("/articles", h.ListArticles)
	api.GET("/articles/:slug", h.GetArticle)
	api.GET("/categories", h.ListCategories)
	api.GET("/categories/:slug", h.GetCategory)
	api.GET("/authors/:username", h.GetAuthor)
	api.GET("/community", h.GetCommunity)
	api.GET("/search", h.Search)

	comments := api.Group("/comments")
	{
		comments.GET("", h.ListComments)
		comments.GET("/:id/replies", h.GetReplies)
		comments.POST("", requireAuth, h.CreateComment)
		comments.PUT("/:id", requireAuth, h.UpdateComment)
		comments.DELETE("/:id", requireAuth, h.DeleteComment)
	}

	api.POST("/views/track", chain(append(limit("views", rc.Limits.ViewsPerMinute), optionalAuth), h.TrackView)...)

	api.GET("/contact", h.GetContact)
	api.POST("/contact/send", chain(limit("contact", rc.Limits.ContactPerMinute), h.SendContact)...)

	// Engagement
	engaged := api.Group("", requireAuth)
	{
		engaged.POST("/reactions/like", h.ToggleLike)
		engaged.POST("/favorites/toggle", h.ToggleFavorite)
		engaged.GET("/favorites", h.ListFavorites)
		engaged.POST("/ratings", h.RateStory)
		engaged.GET("/engagement", h.EngagementStatus)
	}

	chat := api.Group("/chat", requireAuth)
	{
		chat.GET("/conversations", h.ListConversations)
		chat.POST("/conversations", h.StartConversation)
		chat.GET("/conversations/:id", h.GetConversation)
		chat.DELETE("/conversations/:id", h.DeleteConversation)
		chat.POST("/conversations/:id/messages", h.SendMessage)
		chat.DELETE("/messages/:id", h.DeleteMessage)
		chat.GET("/messages/:id/attachment", h.DownloadAttachment)
	}

	if rc.WebSocket != nil {
		api.GET("/ws", requireAuth, rc.WebSocket.HandleWebSocket)
	}

	admin := api.Group("/admin", requireAuth, middleware.RequireAdmin())
	{
		admin.GET("/stats", h.AdminStats)

		admin.GET("/users", h.AdminListUsers)
		admin.POST("/users/:id/ban", h.AdminBanUser)
		admin.POST("/users/:id/unban", h.AdminUnbanUser)
		admin.PUT("/users/:id/role", h.AdminSetRole)

		admin.POST("/comments/:id/hide", h.AdminHideComment)
		admin.POST("/comments/:id/unhide", h.AdminUnhideComment)
		admin.DELETE("/comments/:id", h.AdminDeleteComment)

		admin.GET("/chat/conversations", h.AdminListConversations)
		admin.GET("/chat/conversations/:id", h.AdminGetConversation)
		admin.POST("/chat/conversations/:id/messages", h.AdminReply)
		admin.POST("/chat/conversations/:id/close", h.AdminCloseConversation)
		admin.POST("/chat/conversations/:id/reopen", h.AdminReopenConversation)
		admin.GET("/chat/unread-count", h.AdminUnreadCount)

		admin.GET("/contact-settings", h.AdminGetContactSettings)
		admin.PUT("/contact-settings", h.AdminUpdateContactSettings)

		admin.POST("/categories", h.AdminCreateCategory)
		admin.PUT("/categories/:id", h.AdminUpdateCategory)
		admin.DELETE("/categories/:id", h.AdminDeleteCategory)
		admin.POST("/stories", h.AdminCreateStory)
		admin.PUT("/stories/:id", h.AdminUpdateStory)
		admin.DELETE("/stories/:id", h.AdminDeleteStory)
		admin.POST("/stories/:id/episodes", h.AdminCreateEpisode)
		admin.PUT("/episodes/:id", h.AdminUpdateEpisode)
		admin.DELETE("/episodes/:id", h.AdminDeleteEpisode)
		admin.POST("/articles", h.AdminCreateArticle)
		admin.PUT("/articles/:id", h.AdminUpdateArticle)
		admin.DELETE("/articles/:id", h.AdminDeleteArticle)

		if rc.WebSocket != nil {
			admin.GET("/ws/stats", rc.WebSocket.HandleStats)
		}
	}
}
