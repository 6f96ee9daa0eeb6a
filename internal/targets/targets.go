// Package targets resolves polymorphic (kind, id) references and maintains
// the cached counter columns on the rows they point at.
package targets

import (
	"errors"
	"fmt"

	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Counter columns that can be adjusted
const (
	LikeCount     = "like_count"
	FavoriteCount = "favorite_count"
	ViewCount     = "view_count"
	CommentCount  = "comment_count"
)

var counterColumns = map[models.TargetKind]map[string]bool{
	models.TargetStory:   {LikeCount: true, FavoriteCount: true, ViewCount: true, CommentCount: true},
	models.TargetEpisode: {LikeCount: true, ViewCount: true, CommentCount: true},
	models.TargetArticle: {LikeCount: true, FavoriteCount: true, ViewCount: true, CommentCount: true},
	models.TargetComment: {LikeCount: true},
}

// ErrUnsupportedCounter means the column does not exist on the target's table
var ErrUnsupportedCounter = errors.New("unsupported counter for target kind")

// scope selects the target row only while it is publicly visible: live
// comments, and published content whose episodes belong to a published story.
func scope(tx *gorm.DB, ref models.TargetRef) *gorm.DB {
	q := tx.Table(ref.Kind.TableName()).Where("id = ?", ref.ID)
	switch ref.Kind {
	case models.TargetComment:
		return q.Where("is_deleted = ?", false)
	case models.TargetEpisode:
		q = q.Where("story_id IN (?)", tx.Session(&gorm.Session{NewDB: true}).
			Table(models.TargetStory.TableName()).Select("id").
			Where("status = ? AND deleted_at IS NULL", models.StatusPublished))
	}
	return q.Where("status = ? AND deleted_at IS NULL", models.StatusPublished)
}

// Exists returns a 404 APIError when the referenced row is missing, deleted or
// not published
func Exists(tx *gorm.DB, ref models.TargetRef) error {
	if !ref.Kind.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownTargetKind, ref.Kind)
	}
	var n int64
	if err := scope(tx, ref).Count(&n).Error; err != nil {
		return fmt.Errorf("check %s: %w", ref, err)
	}
	if n == 0 {
		return apierrors.NotFound(string(ref.Kind))
	}
	return nil
}

func checkColumn(ref models.TargetRef, column string) error {
	if !counterColumns[ref.Kind][column] {
		return fmt.Errorf("%w: %s.%s", ErrUnsupportedCounter, ref.Kind, column)
	}
	return nil
}

// Adjust adds delta to the counter without letting it go below zero
func Adjust(tx *gorm.DB, ref models.TargetRef, column string, delta int) error {
	if err := checkColumn(ref, column); err != nil {
		return err
	}

	var expr clause.Expr
	if delta >= 0 {
		expr = gorm.Expr(column+" + ?", delta)
	} else {
		expr = gorm.Expr("CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END", delta, delta)
	}

	if err := tx.Table(ref.Kind.TableName()).Where("id = ?", ref.ID).UpdateColumn(column, expr).Error; err != nil {
		return fmt.Errorf("adjust %s %s: %w", ref, column, err)
	}
	return nil
}

// Count reads the current cached counter
func Count(tx *gorm.DB, ref models.TargetRef, column string) (int, error) {
	if err := checkColumn(ref, column); err != nil {
		return 0, err
	}
	var n int
	err := tx.Table(ref.Kind.TableName()).Select(column).Where("id = ?", ref.ID).Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("read %s %s: %w", ref, column, err)
	}
	return n, nil
}
