// Package engagement implements likes, favorites, ratings and view tracking
// over the polymorphic content targets.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/seiixin/gunwadex/internal/cache"
	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/metrics"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/targets"
	"github.com/seiixin/gunwadex/internal/telemetry"
	"github.com/seiixin/gunwadex/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ViewWindow is the rolling window in which repeat views of a target by the
// same identity are not counted
const ViewWindow = 30 * time.Minute

// Service owns every engagement write
type Service struct {
	db    *gorm.DB
	redis *cache.RedisClient
	now   func() time.Time
}

// NewService creates the engagement service. redis may be nil.
func NewService(db *gorm.DB, redis *cache.RedisClient) *Service {
	return &Service{
		db:    db,
		redis: redis,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ToggleResult is returned by ToggleReaction and ToggleFavorite
type ToggleResult struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
}

// RatingResult is the caller's rating and the story aggregate after the write
type RatingResult struct {
	Value   int     `json:"value"`
	Average float64 `json:"rating_avg"`
	Count   int     `json:"rating_count"`
}

// ViewInput identifies a view. UserID wins over IP when set.
type ViewInput struct {
	Target    models.TargetRef
	UserID    string
	IP        string
	UserAgent string
}

// ViewResult reports whether the view was counted
type ViewResult struct {
	Counted   bool `json:"counted"`
	ViewCount int  `json:"view_count"`
}

// Status is the caller's engagement state on one target
type Status struct {
	Liked         bool `json:"liked"`
	Favorited     bool `json:"favorited"`
	Rating        *int `json:"rating,omitempty"`
	LikeCount     int  `json:"like_count"`
	FavoriteCount int  `json:"favorite_count"`
}

func requireKind(set models.TargetSet, ref models.TargetRef, verb string) error {
	if !ref.Kind.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownTargetKind, ref.Kind)
	}
	if !set.Allows(ref.Kind) {
		return apierrors.ValidationError("target_type", fmt.Sprintf("%s cannot be %s", ref.Kind, verb))
	}
	if ref.ID == "" {
		return apierrors.ValidationError("target_id", "is required")
	}
	return nil
}

// ToggleReaction likes the target, or removes the like if one exists
func (s *Service) ToggleReaction(ctx context.Context, userID string, ref models.TargetRef) (res ToggleResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "engagement.toggle_reaction",
		append(telemetry.TargetAttrs(string(ref.Kind), ref.ID), telemetry.UserAttr(userID))...)
	defer func() { telemetry.EndSpan(span, err) }()

	if err = requireKind(models.Reactable, ref, "liked"); err != nil {
		return res, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := targets.Exists(tx, ref); err != nil {
			return err
		}

		var existing models.Reaction
		err := tx.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, ref.Kind, ref.ID).
			Take(&existing).Error
		switch {
		case err == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return fmt.Errorf("delete reaction: %w", err)
			}
			res.Active = false
			return targets.Adjust(tx, ref, targets.LikeCount, -1)
		case errors.Is(err, gorm.ErrRecordNotFound):
			r := models.Reaction{UserID: userID, TargetType: ref.Kind, TargetID: ref.ID}
			if err := tx.Create(&r).Error; err != nil {
				return err
			}
			res.Active = true
			return targets.Adjust(tx, ref, targets.LikeCount, 1)
		default:
			return fmt.Errorf("find reaction: %w", err)
		}
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// a concurrent request inserted the same like first
		res.Active, err = true, nil
	}
	if err != nil {
		return res, err
	}

	res.Count, err = targets.Count(s.db.WithContext(ctx), ref, targets.LikeCount)
	recordToggle("reaction", ref.Kind, res.Active)
	return res, err
}

// ToggleFavorite bookmarks the target, or removes the bookmark
func (s *Service) ToggleFavorite(ctx context.Context, userID string, ref models.TargetRef) (res ToggleResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "engagement.toggle_favorite",
		append(telemetry.TargetAttrs(string(ref.Kind), ref.ID), telemetry.UserAttr(userID))...)
	defer func() { telemetry.EndSpan(span, err) }()

	if err = requireKind(models.Favoritable, ref, "favorited"); err != nil {
		return res, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := targets.Exists(tx, ref); err != nil {
			return err
		}

		var existing models.Favorite
		err := tx.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, ref.Kind, ref.ID).
			Take(&existing).Error
		switch {
		case err == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return fmt.Errorf("delete favorite: %w", err)
			}
			res.Active = false
			return targets.Adjust(tx, ref, targets.FavoriteCount, -1)
		case errors.Is(err, gorm.ErrRecordNotFound):
			f := models.Favorite{UserID: userID, TargetType: ref.Kind, TargetID: ref.ID}
			if err := tx.Create(&f).Error; err != nil {
				return err
			}
			res.Active = true
			return targets.Adjust(tx, ref, targets.FavoriteCount, 1)
		default:
			return fmt.Errorf("find favorite: %w", err)
		}
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		res.Active, err = true, nil
	}
	if err != nil {
		return res, err
	}

	res.Count, err = targets.Count(s.db.WithContext(ctx), ref, targets.FavoriteCount)
	recordToggle("favorite", ref.Kind, res.Active)
	return res, err
}

func recordToggle(kind string, target models.TargetKind, active bool) {
	state := "off"
	if active {
		state = "on"
	}
	metrics.Get().EngagementTogglesTotal.WithLabelValues(kind, string(target), state).Inc()
}

// Rate stores the user's 1..5 rating of a story, overwriting any previous one,
// and recomputes the story's rating aggregate
func (s *Service) Rate(ctx context.Context, userID, storyID string, value int) (res RatingResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "engagement.rate",
		append(telemetry.TargetAttrs(string(models.TargetStory), storyID), telemetry.UserAttr(userID))...)
	defer func() { telemetry.EndSpan(span, err) }()

	if value < 1 || value > 5 {
		return res, apierrors.ValidationError("value", "must be between 1 and 5")
	}
	ref := models.TargetRef{Kind: models.TargetStory, ID: storyID}
	if storyID == "" {
		return res, apierrors.ValidationError("story_id", "is required")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := targets.Exists(tx, ref); err != nil {
			return err
		}

		rating := models.Rating{UserID: userID, StoryID: storyID, Value: value}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "story_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"value": value, "updated_at": s.now()}),
		}).Create(&rating).Error
		if err != nil {
			return fmt.Errorf("upsert rating: %w", err)
		}

		var agg struct {
			Avg   float64
			Count int
		}
		if err := tx.Model(&models.Rating{}).
			Select("COALESCE(AVG(value), 0) AS avg, COUNT(*) AS count").
			Where("story_id = ?", storyID).
			Scan(&agg).Error; err != nil {
			return fmt.Errorf("aggregate ratings: %w", err)
		}

		res = RatingResult{Value: value, Average: math.Round(agg.Avg*100) / 100, Count: agg.Count}
		return tx.Model(&models.Story{}).Where("id = ?", storyID).UpdateColumns(map[string]interface{}{
			"rating_avg":   res.Average,
			"rating_count": res.Count,
		}).Error
	})
	if err != nil {
		return RatingResult{}, err
	}

	metrics.Get().RatingsTotal.Inc()
	return res, nil
}

func viewIdentity(in ViewInput) (string, error) {
	if in.UserID != "" {
		return "u:" + in.UserID, nil
	}
	if in.IP != "" {
		return "ip:" + in.IP, nil
	}
	return "", apierrors.BadRequest("cannot identify viewer")
}

func viewGuardKey(ref models.TargetRef, identity string) string {
	return fmt.Sprintf("view:%s:%s:%s", ref.Kind, ref.ID, identity)
}

// TrackView records a view unless the same identity viewed the target within
// ViewWindow. Redis, when present, short-circuits repeats; the views table
// decides otherwise.
func (s *Service) TrackView(ctx context.Context, in ViewInput) (res ViewResult, err error) {
	ref := in.Target
	ctx, span := telemetry.StartSpan(ctx, "engagement.track_view", telemetry.TargetAttrs(string(ref.Kind), ref.ID)...)
	defer func() { telemetry.EndSpan(span, err) }()

	if err = requireKind(models.Viewable, ref, "viewed"); err != nil {
		return res, err
	}
	identity, err := viewIdentity(in)
	if err != nil {
		return res, err
	}

	db := s.db.WithContext(ctx)
	if err = targets.Exists(db, ref); err != nil {
		return res, err
	}

	if s.redis != nil {
		key := viewGuardKey(ref, identity)
		fresh, rerr := s.redis.SetNX(ctx, key, "1", ViewWindow)
		if rerr != nil {
			logger.Log.Warn("View guard unavailable, using database only",
				logger.WithTarget(string(ref.Kind), ref.ID), zap.Error(rerr))
		} else if !fresh {
			return s.suppressed(db, ref)
		} else {
			// a view that was never recorded must not hold the window
			defer func() {
				if err != nil && !res.Counted {
					s.releaseGuard(ctx, ref, key)
				}
			}()
		}
	}

	now := s.now()
	q := db.Model(&models.StoryView{}).
		Where("target_type = ? AND target_id = ? AND viewed_at > ?", ref.Kind, ref.ID, now.Add(-ViewWindow))
	if in.UserID != "" {
		q = q.Where("user_id = ?", in.UserID)
	} else {
		q = q.Where("user_id IS NULL AND ip_address = ?", in.IP)
	}
	var recent int64
	if err = q.Count(&recent).Error; err != nil {
		return res, fmt.Errorf("check recent views: %w", err)
	}
	if recent > 0 {
		return s.suppressed(db, ref)
	}

	view := models.StoryView{
		TargetType: ref.Kind,
		TargetID:   ref.ID,
		IPAddress:  in.IP,
		UserAgent:  in.UserAgent,
		ViewedAt:   now,
	}
	if in.UserID != "" {
		uid := in.UserID
		view.UserID = &uid
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&view).Error; err != nil {
			return fmt.Errorf("insert view: %w", err)
		}
		return targets.Adjust(tx, ref, targets.ViewCount, 1)
	})
	if err != nil {
		return res, err
	}

	metrics.Get().ViewsTotal.WithLabelValues(string(ref.Kind), "counted").Inc()
	res.Counted = true
	res.ViewCount, err = targets.Count(db, ref, targets.ViewCount)
	return res, err
}

func (s *Service) releaseGuard(ctx context.Context, ref models.TargetRef, key string) {
	if err := s.redis.Del(context.WithoutCancel(ctx), key); err != nil {
		logger.Log.Warn("Failed to release view guard",
			logger.WithTarget(string(ref.Kind), ref.ID), zap.Error(err))
	}
}

func (s *Service) suppressed(db *gorm.DB, ref models.TargetRef) (ViewResult, error) {
	metrics.Get().ViewsTotal.WithLabelValues(string(ref.Kind), "suppressed").Inc()
	n, err := targets.Count(db, ref, targets.ViewCount)
	return ViewResult{Counted: false, ViewCount: n}, err
}

// Status reports whether userID liked or favorited the target, and their
// rating when the target is a story
func (s *Service) Status(ctx context.Context, userID string, ref models.TargetRef) (*Status, error) {
	if err := requireKind(models.Reactable, ref, "inspected"); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if err := targets.Exists(db, ref); err != nil {
		return nil, err
	}

	st := &Status{}
	var err error
	if st.LikeCount, err = targets.Count(db, ref, targets.LikeCount); err != nil {
		return nil, err
	}
	if models.Favoritable.Allows(ref.Kind) {
		if st.FavoriteCount, err = targets.Count(db, ref, targets.FavoriteCount); err != nil {
			return nil, err
		}
	}
	if userID == "" {
		return st, nil
	}

	var n int64
	if err := db.Model(&models.Reaction{}).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, ref.Kind, ref.ID).
		Count(&n).Error; err != nil {
		return nil, err
	}
	st.Liked = n > 0

	if models.Favoritable.Allows(ref.Kind) {
		if err := db.Model(&models.Favorite{}).
			Where("user_id = ? AND target_type = ? AND target_id = ?", userID, ref.Kind, ref.ID).
			Count(&n).Error; err != nil {
			return nil, err
		}
		st.Favorited = n > 0
	}

	if ref.Kind == models.TargetStory {
		var r models.Rating
		err := db.Where("user_id = ? AND story_id = ?", userID, ref.ID).Take(&r).Error
		switch {
		case err == nil:
			st.Rating = &r.Value
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}
	return st, nil
}

// FavoriteItem is one entry of a user's favorites page
type FavoriteItem struct {
	Kind        models.TargetKind `json:"target_type"`
	ID          string            `json:"target_id"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	CoverURL    string            `json:"cover_url"`
	FavoritedAt time.Time         `json:"favorited_at"`
}

// Favorites lists what userID favorited, newest first. Favorites whose
// target has since been deleted are skipped.
func (s *Service) Favorites(ctx context.Context, userID string, page util.Page) ([]FavoriteItem, int64, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.Favorite{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var favs []models.Favorite
	if err := q.Order("created_at DESC, id").Limit(page.Limit).Offset(page.Offset).Find(&favs).Error; err != nil {
		return nil, 0, err
	}

	var storyIDs, articleIDs []string
	for _, f := range favs {
		switch f.TargetType {
		case models.TargetStory:
			storyIDs = append(storyIDs, f.TargetID)
		case models.TargetArticle:
			articleIDs = append(articleIDs, f.TargetID)
		}
	}

	type card struct{ title, slug, cover string }
	cards := make(map[models.TargetRef]card, len(favs))
	if len(storyIDs) > 0 {
		var stories []models.Story
		if err := db.Select("id", "title", "slug", "cover_url").Where("id IN ?", storyIDs).Find(&stories).Error; err != nil {
			return nil, 0, err
		}
		for _, st := range stories {
			cards[models.TargetRef{Kind: models.TargetStory, ID: st.ID}] = card{st.Title, st.Slug, st.CoverURL}
		}
	}
	if len(articleIDs) > 0 {
		var articles []models.Article
		if err := db.Select("id", "title", "slug", "cover_url").Where("id IN ?", articleIDs).Find(&articles).Error; err != nil {
			return nil, 0, err
		}
		for _, a := range articles {
			cards[models.TargetRef{Kind: models.TargetArticle, ID: a.ID}] = card{a.Title, a.Slug, a.CoverURL}
		}
	}

	items := make([]FavoriteItem, 0, len(favs))
	for _, f := range favs {
		c, ok := cards[f.Target()]
		if !ok {
			continue
		}
		items = append(items, FavoriteItem{
			Kind:        f.TargetType,
			ID:          f.TargetID,
			Title:       c.title,
			Slug:        c.slug,
			CoverURL:    c.cover,
			FavoritedAt: f.CreatedAt,
		})
	}
	return items, total, nil
}
