package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"

	"github.com/seiixin/gunwadex/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatForm(t require.TestingT, fields map[string]string, filename string, file []byte) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("attachment", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (suite *HandlersTestSuite) postForm(path string, fields map[string]string, filename string, file []byte, u *models.User) (int, []byte) {
	body, contentType := chatForm(suite.T(), fields, filename, file)
	req := newRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := suite.send(req, u)
	return w.Code, w.Body.Bytes()
}

type startResponse struct {
	Conversation models.ChatConversation `json:"conversation"`
	Message      models.ChatMessage      `json:"message"`
}

func (suite *HandlersTestSuite) TestChatConversationWithAttachment() {
	t := suite.T()
	png := []byte("\x89PNG\r\n\x1a\nfake image bytes")

	code, raw := suite.postForm("/api/v1/chat/conversations",
		map[string]string{"subject": "Broken page", "body": "Episode 3 will not load"},
		"screenshot.png", png, suite.alice)
	require.Equal(t, http.StatusCreated, code, string(raw))

	var started startResponse
	require.NoError(t, jsonUnmarshal(raw, &started))
	assert.Equal(t, "screenshot.png", started.Message.AttachmentName)
	assert.EqualValues(t, len(png), started.Message.AttachmentSize)
	convPath := "/api/v1/chat/conversations/" + started.Conversation.ID
	attPath := "/api/v1/chat/messages/" + started.Message.ID + "/attachment"

	w := suite.do(http.MethodGet, attPath, nil, suite.alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, png, w.Body.Bytes())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `"screenshot.png"`)

	assert.Equal(t, http.StatusForbidden, suite.do(http.MethodGet, attPath, nil, suite.bob).Code)
	assert.Equal(t, http.StatusOK, suite.do(http.MethodGet, attPath, nil, suite.admin).Code)
	assert.Equal(t, http.StatusForbidden, suite.do(http.MethodGet, convPath, nil, suite.bob).Code)

	w = suite.do(http.MethodGet, "/api/v1/admin/chat/unread-count", nil, suite.admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unread":1}`, w.Body.String())

	code, raw = suite.postForm("/api/v1/admin/chat/conversations/"+started.Conversation.ID+"/messages",
		map[string]string{"body": "Fixed, thanks for the report"}, "", nil, suite.admin)
	require.Equal(t, http.StatusCreated, code, string(raw))

	w = suite.do(http.MethodGet, "/api/v1/admin/chat/unread-count", nil, suite.admin)
	assert.JSONEq(t, `{"unread":0}`, w.Body.String())

	w = suite.do(http.MethodGet, "/api/v1/chat/conversations", nil, suite.alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unread":true`)

	w = suite.do(http.MethodGet, convPath, nil, suite.alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Fixed, thanks for the report")
}

func (suite *HandlersTestSuite) TestChatValidationAndClose() {
	t := suite.T()

	code, _ := suite.postForm("/api/v1/chat/conversations",
		map[string]string{"subject": "Virus", "body": "see file"}, "payload.exe", []byte("MZ"), suite.alice)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = suite.postForm("/api/v1/chat/conversations", map[string]string{"subject": "Empty"}, "", nil, suite.alice)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, raw := suite.postForm("/api/v1/chat/conversations",
		map[string]string{"subject": "Billing", "body": "Question about support tiers"}, "", nil, suite.alice)
	require.Equal(t, http.StatusCreated, code, string(raw))
	var started startResponse
	require.NoError(t, jsonUnmarshal(raw, &started))
	id := started.Conversation.ID

	assert.Equal(t, http.StatusOK, suite.do(http.MethodPost, "/api/v1/admin/chat/conversations/"+id+"/close", nil, suite.admin).Code)
	code, _ = suite.postForm("/api/v1/chat/conversations/"+id+"/messages", map[string]string{"body": "hello?"}, "", nil, suite.alice)
	assert.Equal(t, http.StatusConflict, code)

	w := suite.do(http.MethodGet, "/api/v1/admin/chat/conversations?status=closed", nil, suite.admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)
	assert.Equal(t, http.StatusUnprocessableEntity,
		suite.do(http.MethodGet, "/api/v1/admin/chat/conversations?status=archived", nil, suite.admin).Code)

	assert.Equal(t, http.StatusOK, suite.do(http.MethodPost, "/api/v1/admin/chat/conversations/"+id+"/reopen", nil, suite.admin).Code)
	code, _ = suite.postForm("/api/v1/chat/conversations/"+id+"/messages", map[string]string{"body": "thanks"}, "", nil, suite.alice)
	assert.Equal(t, http.StatusCreated, code)

	assert.Equal(t, http.StatusForbidden, suite.do(http.MethodDelete, "/api/v1/chat/messages/"+started.Message.ID, nil, suite.bob).Code)
	assert.Equal(t, http.StatusOK, suite.do(http.MethodDelete, "/api/v1/chat/messages/"+started.Message.ID, nil, suite.alice).Code)
	assert.Equal(t, http.StatusOK, suite.do(http.MethodDelete, "/api/v1/chat/conversations/"+id, nil, suite.alice).Code)
	assert.Equal(t, http.StatusNotFound, suite.do(http.MethodGet, "/api/v1/chat/conversations/"+id, nil, suite.alice).Code)
}
