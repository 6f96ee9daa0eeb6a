package comments

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/seiixin/gunwadex/internal/database/dbtest"
	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type CommentServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *Service
	author  *models.User
	reader  *models.User
	story   *models.Story
}

func (suite *CommentServiceTestSuite) SetupTest() {
	suite.db = dbtest.Open(suite.T())
	suite.service = NewService(suite.db)
	suite.author = dbtest.CreateUser(suite.T(), suite.db, "author", models.RoleAuthor)
	suite.reader = dbtest.CreateUser(suite.T(), suite.db, "reader", models.RoleUser)
	suite.story = dbtest.CreateStory(suite.T(), suite.db, suite.author, "Harbor Lights")
}

func (suite *CommentServiceTestSuite) ref() models.TargetRef {
	return models.TargetRef{Kind: models.TargetStory, ID: suite.story.ID}
}

func (suite *CommentServiceTestSuite) comment(userID, body, parentID string) *models.Comment {
	c, err := suite.service.Create(context.Background(), userID, CreateInput{Target: suite.ref(), Body: body, ParentID: parentID})
	require.NoError(suite.T(), err)
	return c
}

func (suite *CommentServiceTestSuite) commentCount() int {
	var s models.Story
	require.NoError(suite.T(), suite.db.First(&s, "id = ?", suite.story.ID).Error)
	return s.CommentCount
}

func requireField(t *testing.T, err error, field string) {
	t.Helper()
	apiErr, ok := apierrors.AsAPIError(err)
	require.True(t, ok, "expected APIError, got %v", err)
	assert.Equal(t, field, apiErr.Field)
}

func (suite *CommentServiceTestSuite) TestCreateValidatesBody() {
	t := suite.T()
	ctx := context.Background()

	_, err := suite.service.Create(ctx, suite.reader.ID, CreateInput{Target: suite.ref(), Body: "   "})
	requireField(t, err, "body")

	_, err = suite.service.Create(ctx, suite.reader.ID, CreateInput{Target: suite.ref(), Body: strings.Repeat("a", MaxBodyLength+1)})
	requireField(t, err, "body")

	c := suite.comment(suite.reader.ID, "  great start  ", "")
	assert.Equal(t, "great start", c.Body)
	require.NotNil(t, c.Author)
	assert.Equal(t, "reader", c.Author.Username)
	assert.Equal(t, 1, suite.commentCount())
}

func (suite *CommentServiceTestSuite) TestCreateRejectsBadTargets() {
	t := suite.T()
	ctx := context.Background()

	_, err := suite.service.Create(ctx, suite.reader.ID, CreateInput{Target: models.TargetRef{Kind: "video", ID: "x"}, Body: "hi"})
	assert.ErrorIs(t, err, models.ErrUnknownTargetKind)

	_, err = suite.service.Create(ctx, suite.reader.ID, CreateInput{Target: models.TargetRef{Kind: models.TargetComment, ID: "x"}, Body: "hi"})
	requireField(t, err, "target_type")

	_, err = suite.service.Create(ctx, suite.reader.ID, CreateInput{Target: models.TargetRef{Kind: models.TargetStory, ID: "nope"}, Body: "hi"})
	apiErr, ok := apierrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.ErrNotFound, apiErr.Code)
}

func (suite *CommentServiceTestSuite) TestRepliesFlattenToTopLevel() {
	t := suite.T()
	top := suite.comment(suite.author.ID, "top", "")
	reply := suite.comment(suite.reader.ID, "reply", top.ID)
	nested := suite.comment(suite.author.ID, "reply to reply", reply.ID)

	require.NotNil(t, nested.ParentID)
	assert.Equal(t, top.ID, *nested.ParentID)

	other := dbtest.CreateArticle(t, suite.db, suite.author, "Elsewhere")
	_, err := suite.service.Create(context.Background(), suite.reader.ID, CreateInput{
		Target:   models.TargetRef{Kind: models.TargetArticle, ID: other.ID},
		ParentID: top.ID,
		Body:     "wrong thread",
	})
	requireField(t, err, "parent_id")

	replies, total, err := suite.service.Replies(context.Background(), top.ID, util.NewPage(0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, replies, 2)
	assert.Equal(t, "reply", replies[0].Body, "replies are oldest first")
}

func (suite *CommentServiceTestSuite) TestRepliesNeedVisibleParent() {
	t := suite.T()
	ctx := context.Background()

	deleted := suite.comment(suite.author.ID, "going away", "")
	require.NoError(t, suite.service.Delete(ctx, suite.author.ID, false, deleted.ID))
	_, err := suite.service.Create(ctx, suite.reader.ID, CreateInput{Target: suite.ref(), ParentID: deleted.ID, Body: "too late"})
	requireField(t, err, "parent_id")

	hidden := suite.comment(suite.author.ID, "hidden root", "")
	reply := suite.comment(suite.reader.ID, "visible reply", hidden.ID)
	_, err = suite.service.SetHidden(ctx, hidden.ID, true)
	require.NoError(t, err)

	_, err = suite.service.Create(ctx, suite.reader.ID, CreateInput{Target: suite.ref(), ParentID: hidden.ID, Body: "hello?"})
	requireField(t, err, "parent_id")
	_, err = suite.service.Create(ctx, suite.reader.ID, CreateInput{Target: suite.ref(), ParentID: reply.ID, Body: "thread is hidden"})
	requireField(t, err, "parent_id")
}

func (suite *CommentServiceTestSuite) TestDraftTargetsTakeNoComments() {
	t := suite.T()
	ctx := context.Background()
	require.NoError(t, suite.db.Model(suite.story).Update("status", models.StatusDraft).Error)

	_, err := suite.service.Create(ctx, suite.reader.ID, CreateInput{Target: suite.ref(), Body: "first!"})
	apiErr, ok := apierrors.AsAPIError(err)
	require.True(t, ok, "expected APIError, got %v", err)
	assert.Equal(t, apierrors.ErrNotFound, apiErr.Code)
	assert.Zero(t, suite.commentCount())
}

func (suite *CommentServiceTestSuite) TestListNewestFirstWithReplyCounts() {
	t := suite.T()
	first := suite.comment(suite.reader.ID, "first", "")
	time.Sleep(5 * time.Millisecond)
	second := suite.comment(suite.reader.ID, "second", "")
	suite.comment(suite.author.ID, "reply", first.ID)

	hidden := suite.comment(suite.reader.ID, "spam", "")
	_, err := suite.service.SetHidden(context.Background(), hidden.ID, true)
	require.NoError(t, err)

	list, total, err := suite.service.List(context.Background(), suite.ref(), util.NewPage(10, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, 1, list[1].ReplyCount)

	page, _, err := suite.service.List(context.Background(), suite.ref(), util.NewPage(1, 1))
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}

func (suite *CommentServiceTestSuite) TestUpdateOwnershipAndWindow() {
	t := suite.T()
	ctx := context.Background()
	c := suite.comment(suite.reader.ID, "typo", "")

	_, err := suite.service.Update(ctx, suite.author.ID, c.ID, "hijack")
	apiErr, ok := apierrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.ErrForbidden, apiErr.Code)

	updated, err := suite.service.Update(ctx, suite.reader.ID, c.ID, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", updated.Body)
	assert.NotNil(t, updated.EditedAt)

	suite.service.now = func() time.Time { return c.CreatedAt.Add(EditWindow + time.Second) }
	_, err = suite.service.Update(ctx, suite.reader.ID, c.ID, "too late")
	apiErr, ok = apierrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.ErrForbidden, apiErr.Code)
}

func (suite *CommentServiceTestSuite) TestDeleteSoftDeletes() {
	t := suite.T()
	ctx := context.Background()
	c := suite.comment(suite.reader.ID, "regret", "")
	mine := suite.comment(suite.author.ID, "keep", "")
	require.Equal(t, 2, suite.commentCount())

	err := suite.service.Delete(ctx, suite.author.ID, false, c.ID)
	apiErr, ok := apierrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.ErrForbidden, apiErr.Code)

	require.NoError(t, suite.service.Delete(ctx, suite.reader.ID, false, c.ID))
	require.NoError(t, suite.service.Delete(ctx, suite.reader.ID, false, c.ID), "second delete is a no-op")

	got, err := suite.service.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, models.DeletedCommentBody, got.Body)
	assert.Equal(t, 1, suite.commentCount())

	admin := dbtest.CreateUser(t, suite.db, "admin", models.RoleAdmin)
	require.NoError(t, suite.service.Delete(ctx, admin.ID, true, mine.ID))
	assert.Equal(t, 0, suite.commentCount())
}

func (suite *CommentServiceTestSuite) TestRecent() {
	t := suite.T()
	suite.comment(suite.reader.ID, "one", "")
	time.Sleep(5 * time.Millisecond)
	last := suite.comment(suite.reader.ID, "two", "")

	recent, err := suite.service.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, last.ID, recent[0].ID)
}

func TestCommentServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CommentServiceTestSuite))
}
