package engagement

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/seiixin/gunwadex/internal/cache"
	"github.com/seiixin/gunwadex/internal/database/dbtest"
	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type EngagementServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *Service
	clock   time.Time
	reader  *models.User
	author  *models.User
	story   *models.Story
}

func (suite *EngagementServiceTestSuite) SetupTest() {
	suite.db = dbtest.Open(suite.T())
	suite.service = NewService(suite.db, nil)
	suite.clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	suite.service.now = func() time.Time { return suite.clock }

	suite.author = dbtest.CreateUser(suite.T(), suite.db, "author", models.RoleAuthor)
	suite.reader = dbtest.CreateUser(suite.T(), suite.db, "reader", models.RoleUser)
	suite.story = dbtest.CreateStory(suite.T(), suite.db, suite.author, "Night Market")
}

func (suite *EngagementServiceTestSuite) storyRef() models.TargetRef {
	return models.TargetRef{Kind: models.TargetStory, ID: suite.story.ID}
}

func (suite *EngagementServiceTestSuite) reload() *models.Story {
	var s models.Story
	require.NoError(suite.T(), suite.db.First(&s, "id = ?", suite.story.ID).Error)
	return &s
}

func (suite *EngagementServiceTestSuite) TestToggleReactionTwiceRestoresState() {
	t := suite.T()
	ctx := context.Background()

	res, err := suite.service.ToggleReaction(ctx, suite.reader.ID, suite.storyRef())
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, 1, res.Count)

	var rows int64
	suite.db.Model(&models.Reaction{}).Count(&rows)
	assert.Equal(t, int64(1), rows)

	res, err = suite.service.ToggleReaction(ctx, suite.reader.ID, suite.storyRef())
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Equal(t, 0, res.Count)

	suite.db.Model(&models.Reaction{}).Count(&rows)
	assert.Equal(t, int64(0), rows)
	assert.Equal(t, 0, suite.reload().LikeCount)
}

func (suite *EngagementServiceTestSuite) TestToggleReactionOnComment() {
	t := suite.T()
	comment := models.Comment{
		AuthorID:   suite.author.ID,
		TargetType: models.TargetStory,
		TargetID:   suite.story.ID,
		Body:       "first",
	}
	require.NoError(t, suite.db.Create(&comment).Error)

	res, err := suite.service.ToggleReaction(context.Background(), suite.reader.ID,
		models.TargetRef{Kind: models.TargetComment, ID: comment.ID})
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, 1, res.Count)
}

func (suite *EngagementServiceTestSuite) TestLikeCountNeverNegative() {
	t := suite.T()
	// a like row with a stale zero counter
	require.NoError(t, suite.db.Create(&models.Reaction{
		UserID: suite.reader.ID, TargetType: models.TargetStory, TargetID: suite.story.ID,
	}).Error)

	res, err := suite.service.ToggleReaction(context.Background(), suite.reader.ID, suite.storyRef())
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Equal(t, 0, res.Count)
}

func (suite *EngagementServiceTestSuite) TestToggleRejectsUnknownAndMissingTargets() {
	t := suite.T()
	ctx := context.Background()

	_, err := suite.service.ToggleReaction(ctx, suite.reader.ID, models.TargetRef{Kind: "podcast", ID: suite.story.ID})
	assert.ErrorIs(t, err, models.ErrUnknownTargetKind)

	_, err = suite.service.ToggleReaction(ctx, suite.reader.ID, models.TargetRef{Kind: models.TargetStory, ID: "missing"})
	apiErr, ok := apierrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.ErrNotFound, apiErr.Code)

	comment := models.TargetRef{Kind: models.TargetComment, ID: "x"}
	_, err = suite.service.ToggleFavorite(ctx, suite.reader.ID, comment)
	apiErr, ok = apierrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "target_type", apiErr.Field)
}

func (suite *EngagementServiceTestSuite) TestToggleFavorite() {
	t := suite.T()
	ctx := context.Background()
	article := dbtest.CreateArticle(t, suite.db, suite.author, "Field Notes")
	ref := models.TargetRef{Kind: models.TargetArticle, ID: article.ID}

	res, err := suite.service.ToggleFavorite(ctx, suite.reader.ID, ref)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: true, Count: 1}, res)

	res, err = suite.service.ToggleFavorite(ctx, suite.reader.ID, ref)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: false, Count: 0}, res)
}

func (suite *EngagementServiceTestSuite) TestRateOverwrites() {
	t := suite.T()
	ctx := context.Background()
	other := dbtest.CreateUser(t, suite.db, "other", models.RoleUser)

	res, err := suite.service.Rate(ctx, suite.reader.ID, suite.story.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.InDelta(t, 2.0, res.Average, 0.001)

	res, err = suite.service.Rate(ctx, suite.reader.ID, suite.story.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.InDelta(t, 5.0, res.Average, 0.001)

	res, err = suite.service.Rate(ctx, other.ID, suite.story.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.InDelta(t, 4.5, res.Average, 0.001)

	var rows int64
	suite.db.Model(&models.Rating{}).Where("user_id = ?", suite.reader.ID).Count(&rows)
	assert.Equal(t, int64(1), rows)

	story := suite.reload()
	assert.Equal(t, 2, story.RatingCount)
	assert.InDelta(t, 4.5, story.RatingAvg, 0.001)
}

func (suite *EngagementServiceTestSuite) TestRateValidatesRange() {
	t := suite.T()
	for _, v := range []int{0, 6, -1} {
		_, err := suite.service.Rate(context.Background(), suite.reader.ID, suite.story.ID, v)
		apiErr, ok := apierrors.AsAPIError(err)
		require.True(t, ok, "value %d", v)
		assert.Equal(t, "value", apiErr.Field)
	}
}

func (suite *EngagementServiceTestSuite) TestTrackViewWindowByIP() {
	t := suite.T()
	ctx := context.Background()
	view := ViewInput{Target: suite.storyRef(), IP: "203.0.113.7", UserAgent: "test"}

	res, err := suite.service.TrackView(ctx, view)
	require.NoError(t, err)
	assert.Equal(t, ViewResult{Counted: true, ViewCount: 1}, res)

	suite.clock = suite.clock.Add(10 * time.Minute)
	res, err = suite.service.TrackView(ctx, view)
	require.NoError(t, err)
	assert.Equal(t, ViewResult{Counted: false, ViewCount: 1}, res)

	other := view
	other.IP = "198.51.100.2"
	res, err = suite.service.TrackView(ctx, other)
	require.NoError(t, err)
	assert.True(t, res.Counted)
	assert.Equal(t, 2, res.ViewCount)

	suite.clock = suite.clock.Add(ViewWindow)
	res, err = suite.service.TrackView(ctx, view)
	require.NoError(t, err)
	assert.True(t, res.Counted)
	assert.Equal(t, 3, res.ViewCount)
}

func (suite *EngagementServiceTestSuite) TestTrackViewByUserIgnoresIP() {
	t := suite.T()
	ctx := context.Background()

	_, err := suite.service.TrackView(ctx, ViewInput{Target: suite.storyRef(), UserID: suite.reader.ID, IP: "10.0.0.1"})
	require.NoError(t, err)
	res, err := suite.service.TrackView(ctx, ViewInput{Target: suite.storyRef(), UserID: suite.reader.ID, IP: "10.0.0.2"})
	require.NoError(t, err)
	assert.False(t, res.Counted)

	// a guest on the same IP is a different identity
	res, err = suite.service.TrackView(ctx, ViewInput{Target: suite.storyRef(), IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.True(t, res.Counted)
}

func (suite *EngagementServiceTestSuite) TestTrackViewRejectsComments() {
	_, err := suite.service.TrackView(context.Background(), ViewInput{
		Target: models.TargetRef{Kind: models.TargetComment, ID: "c"},
		IP:     "10.0.0.1",
	})
	apiErr, ok := apierrors.AsAPIError(err)
	require.True(suite.T(), ok)
	assert.Equal(suite.T(), "target_type", apiErr.Field)
}

func (suite *EngagementServiceTestSuite) TestTrackViewRedisGuard() {
	t := suite.T()
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rc := cache.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	suite.service.redis = rc

	view := ViewInput{Target: suite.storyRef(), IP: "203.0.113.9"}
	res, err := suite.service.TrackView(ctx, view)
	require.NoError(t, err)
	assert.True(t, res.Counted)
	assert.True(t, mr.Exists("view:story:"+suite.story.ID+":ip:203.0.113.9"))

	res, err = suite.service.TrackView(ctx, view)
	require.NoError(t, err)
	assert.False(t, res.Counted)

	// the database still decides once the guard key is gone
	mr.FlushAll()
	res, err = suite.service.TrackView(ctx, view)
	require.NoError(t, err)
	assert.False(t, res.Counted)
}

func (suite *EngagementServiceTestSuite) TestTrackViewReleasesGuardWhenNotRecorded() {
	t := suite.T()
	ctx := context.Background()
	mr := miniredis.RunT(t)
	suite.service.redis = cache.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	view := ViewInput{Target: suite.storyRef(), IP: "203.0.113.10"}
	key := "view:story:" + suite.story.ID + ":ip:203.0.113.10"

	require.NoError(t, suite.db.Migrator().DropTable(&models.StoryView{}))
	_, err := suite.service.TrackView(ctx, view)
	require.Error(t, err)
	assert.False(t, mr.Exists(key))

	require.NoError(t, suite.db.AutoMigrate(&models.StoryView{}))
	res, err := suite.service.TrackView(ctx, view)
	require.NoError(t, err)
	assert.True(t, res.Counted)
	assert.Equal(t, 1, res.ViewCount)
	assert.True(t, mr.Exists(key))
}

func (suite *EngagementServiceTestSuite) assertNotFound(err error) {
	apiErr, ok := apierrors.AsAPIError(err)
	require.True(suite.T(), ok, "expected APIError, got %v", err)
	assert.Equal(suite.T(), apierrors.ErrNotFound, apiErr.Code)
}

func (suite *EngagementServiceTestSuite) TestDraftTargetsAreNotFound() {
	t := suite.T()
	ctx := context.Background()

	episode := dbtest.CreateEpisode(t, suite.db, suite.story, 1)
	article := dbtest.CreateArticle(t, suite.db, suite.author, "Draft Notes")
	require.NoError(t, suite.db.Model(article).Update("status", models.StatusDraft).Error)
	require.NoError(t, suite.db.Model(suite.story).Update("status", models.StatusDraft).Error)

	story := suite.storyRef()
	ep := models.TargetRef{Kind: models.TargetEpisode, ID: episode.ID}
	art := models.TargetRef{Kind: models.TargetArticle, ID: article.ID}

	_, err := suite.service.TrackView(ctx, ViewInput{Target: story, IP: "10.0.0.7"})
	suite.assertNotFound(err)
	_, err = suite.service.ToggleReaction(ctx, suite.reader.ID, story)
	suite.assertNotFound(err)
	_, err = suite.service.ToggleFavorite(ctx, suite.reader.ID, art)
	suite.assertNotFound(err)
	_, err = suite.service.Rate(ctx, suite.reader.ID, suite.story.ID, 5)
	suite.assertNotFound(err)
	_, err = suite.service.Status(ctx, suite.reader.ID, art)
	suite.assertNotFound(err)

	// a published episode of a draft story stays hidden
	_, err = suite.service.ToggleReaction(ctx, suite.reader.ID, ep)
	suite.assertNotFound(err)

	reloaded := suite.reload()
	assert.Zero(t, reloaded.ViewCount)
	assert.Zero(t, reloaded.LikeCount)
	assert.Zero(t, reloaded.RatingCount)
	var views int64
	require.NoError(t, suite.db.Model(&models.StoryView{}).Count(&views).Error)
	assert.Zero(t, views)

	require.NoError(t, suite.db.Model(suite.story).Update("status", models.StatusPublished).Error)
	res, err := suite.service.ToggleReaction(ctx, suite.reader.ID, ep)
	require.NoError(t, err)
	assert.True(t, res.Active)
}

func (suite *EngagementServiceTestSuite) TestStatus() {
	t := suite.T()
	ctx := context.Background()

	_, err := suite.service.ToggleReaction(ctx, suite.reader.ID, suite.storyRef())
	require.NoError(t, err)
	_, err = suite.service.Rate(ctx, suite.reader.ID, suite.story.ID, 3)
	require.NoError(t, err)

	st, err := suite.service.Status(ctx, suite.reader.ID, suite.storyRef())
	require.NoError(t, err)
	assert.True(t, st.Liked)
	assert.False(t, st.Favorited)
	require.NotNil(t, st.Rating)
	assert.Equal(t, 3, *st.Rating)
	assert.Equal(t, 1, st.LikeCount)

	guest, err := suite.service.Status(ctx, "", suite.storyRef())
	require.NoError(t, err)
	assert.False(t, guest.Liked)
	assert.Nil(t, guest.Rating)
	assert.Equal(t, 1, guest.LikeCount)
}

func (suite *EngagementServiceTestSuite) TestFavoritesList() {
	t := suite.T()
	ctx := context.Background()
	article := dbtest.CreateArticle(t, suite.db, suite.author, "Studio Diary")
	gone := dbtest.CreateStory(t, suite.db, suite.author, "Withdrawn")

	for _, ref := range []models.TargetRef{
		suite.storyRef(),
		{Kind: models.TargetArticle, ID: article.ID},
		{Kind: models.TargetStory, ID: gone.ID},
	} {
		_, err := suite.service.ToggleFavorite(ctx, suite.reader.ID, ref)
		require.NoError(t, err)
	}
	require.NoError(t, suite.db.Delete(gone).Error)

	items, total, err := suite.service.Favorites(ctx, suite.reader.ID, util.NewPage(20, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 2, "deleted targets are skipped")

	titles := []string{items[0].Title, items[1].Title}
	assert.ElementsMatch(t, []string{"Night Market", "Studio Diary"}, titles)

	items, _, err = suite.service.Favorites(ctx, suite.author.ID, util.NewPage(20, 0))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEngagementServiceTestSuite(t *testing.T) {
	suite.Run(t, new(EngagementServiceTestSuite))
}
