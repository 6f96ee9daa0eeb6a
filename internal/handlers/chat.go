package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/chat"
	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/util"
)

// multipart overhead allowed on top of the attachment itself
const maxChatFormOverhead = 1 << 20

// readAttachment returns the optional "attachment" file of a multipart form.
// The caller must close the returned file.
func readAttachment(c *gin.Context) (*chat.Attachment, multipart.File, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, chat.MaxAttachmentSize+maxChatFormOverhead)

	header, err := c.FormFile("attachment")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, nil
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, apierrors.PayloadTooLarge("attachment exceeds 10 MB")
		}
		return nil, nil, apierrors.BadRequest("invalid multipart form").WithDetails(err.Error())
	}

	f, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open attachment: %w", err)
	}
	return &chat.Attachment{Filename: header.Filename, Size: header.Size, Body: f}, f, nil
}

func userSender(id string) chat.Sender {
	return chat.Sender{UserID: id, Role: models.SenderUser}
}

func adminSender(id string) chat.Sender {
	return chat.Sender{UserID: id, Role: models.SenderAdmin}
}

// ListConversations returns the caller's support conversations
// GET /api/v1/chat/conversations
func (h *Handlers) ListConversations(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	page := util.ParsePage(c)

	list, total, err := h.chat.List(c.Request.Context(), userID, page)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondList(c, list, total, page)
}

// StartConversation opens a conversation with its first message
// POST /api/v1/chat/conversations (multipart: subject, body, attachment)
func (h *Handlers) StartConversation(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	att, file, err := readAttachment(c)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if file != nil {
		defer file.Close()
	}

	conv, msg, err := h.chat.Start(c.Request.Context(), userID, c.PostForm("subject"), c.PostForm("body"), att)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": conv, "message": msg})
}

// GetConversation returns a conversation with its messages and marks it read
// GET /api/v1/chat/conversations/:id
func (h *Handlers) GetConversation(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	conv, err := h.chat.Get(c.Request.Context(), userSender(userID), c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// DeleteConversation removes the caller's conversation and its attachments
// DELETE /api/v1/chat/conversations/:id
func (h *Handlers) DeleteConversation(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	if err := h.chat.DeleteConversation(c.Request.Context(), userID, c.Param("id")); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "conversation deleted"})
}

// SendMessage posts to the caller's conversation
// POST /api/v1/chat/conversations/:id/messages (multipart: body, attachment)
func (h *Handlers) SendMessage(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	h.sendMessage(c, userSender(userID))
}

func (h *Handlers) sendMessage(c *gin.Context, sender chat.Sender) {
	att, file, err := readAttachment(c)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if file != nil {
		defer file.Close()
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), sender, c.Param("id"), c.PostForm("body"), att)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// DeleteMessage removes one of the caller's messages
// DELETE /api/v1/chat/messages/:id
func (h *Handlers) DeleteMessage(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	if err := h.chat.DeleteMessage(c.Request.Context(), userID, c.Param("id")); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
}

// DownloadAttachment streams a message attachment to the conversation owner or an admin
// GET /api/v1/chat/messages/:id/attachment
func (h *Handlers) DownloadAttachment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	viewer := userSender(userID)
	if util.IsAdmin(c) {
		viewer = adminSender(userID)
	}

	msg, rc, err := h.chat.OpenAttachment(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	defer rc.Close()

	contentType := msg.AttachmentMIME
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, msg.AttachmentSize, contentType, rc, map[string]string{
		"Content-Disposition": "attachment; filename=" + strconv.Quote(msg.AttachmentName),
	})
}

// AdminListConversations returns every conversation
// GET /api/v1/admin/chat/conversations?unread=true&status=open|closed
func (h *Handlers) AdminListConversations(c *gin.Context) {
	page := util.ParsePage(c)
	filter := chat.AdminFilter{UnreadOnly: c.Query("unread") == "true"}
	switch status := models.ConversationStatus(c.Query("status")); status {
	case "", models.ConversationOpen, models.ConversationClosed:
		filter.Status = status
	default:
		util.RespondValidationError(c, "status", "status must be open or closed")
		return
	}

	list, total, err := h.chat.AdminList(c.Request.Context(), filter, page)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondList(c, list, total, page)
}

// AdminGetConversation returns any conversation and marks it read for admins
// GET /api/v1/admin/chat/conversations/:id
func (h *Handlers) AdminGetConversation(c *gin.Context) {
	adminID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	conv, err := h.chat.Get(c.Request.Context(), adminSender(adminID), c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// AdminReply answers a conversation; replying re-opens a closed one
// POST /api/v1/admin/chat/conversations/:id/messages (multipart: body, attachment)
func (h *Handlers) AdminReply(c *gin.Context) {
	adminID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	h.sendMessage(c, adminSender(adminID))
}

// AdminCloseConversation closes a conversation
// POST /api/v1/admin/chat/conversations/:id/close
func (h *Handlers) AdminCloseConversation(c *gin.Context) {
	h.setConversationStatus(c, models.ConversationClosed)
}

// AdminReopenConversation re-opens a closed conversation
// POST /api/v1/admin/chat/conversations/:id/reopen
func (h *Handlers) AdminReopenConversation(c *gin.Context) {
	h.setConversationStatus(c, models.ConversationOpen)
}

func (h *Handlers) setConversationStatus(c *gin.Context, status models.ConversationStatus) {
	conv, err := h.chat.SetStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// AdminUnreadCount returns how many conversations admins have not read
// GET /api/v1/admin/chat/unread-count
func (h *Handlers) AdminUnreadCount(c *gin.Context) {
	n, err := h.chat.UnreadCount(c.Request.Context())
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}
