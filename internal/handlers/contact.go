package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/contact"
	"github.com/seiixin/gunwadex/internal/util"
)

// GetContact returns the public contact details
// GET /api/v1/contact
func (h *Handlers) GetContact(c *gin.Context) {
	settings, err := h.contact.Settings(c.Request.Context())
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings.Public())
}

// SendContact mails a contact form submission
// POST /api/v1/contact/send
func (h *Handlers) SendContact(c *gin.Context) {
	var req contact.SendInput
	if !bindJSON(c, &req) {
		return
	}

	if err := h.contact.Send(c.Request.Context(), req); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Your message has been sent."})
}

// AdminGetContactSettings returns the full settings row
// GET /api/v1/admin/contact-settings
func (h *Handlers) AdminGetContactSettings(c *gin.Context) {
	settings, err := h.contact.Settings(c.Request.Context())
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// AdminUpdateContactSettings edits the settings row
// PUT /api/v1/admin/contact-settings
func (h *Handlers) AdminUpdateContactSettings(c *gin.Context) {
	var req contact.SettingsUpdate
	if !bindJSON(c, &req) {
		return
	}

	settings, err := h.contact.UpdateSettings(c.Request.Context(), req)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}
