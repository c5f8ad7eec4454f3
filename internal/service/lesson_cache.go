package service

import (
	"context"
	"time"

	"github.com/notebridge/notebridge-api/internal/models"
)

// Catalog cache key layout. Three regions cover the read paths: the
// public active listing, single lessons by id, and per-teacher listings.
const (
	cacheKeyActiveLessons   = "lessons:all-active"
	cacheKeyLessonPrefix    = "lessons:id:"
	cacheKeyTeacherPrefix   = "lessons:teacher:"
	cacheKeyAllTeachersGlob = "lessons:teacher:*"
)

// LessonCache coordinates the catalog cache regions so that every write
// path leaves them coherent with the database. Cache trouble is never
// fatal: failed reads fall through to the loader and failed writes or
// evictions are logged and swallowed, leaving the TTL as the backstop.
type LessonCache struct {
	cache *CacheService
	ttl   time.Duration
}

// NewLessonCache constructs the catalog cache coordinator.
func NewLessonCache(cache *CacheService, ttl time.Duration) *LessonCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LessonCache{cache: cache, ttl: ttl}
}

func lessonKey(id string) string {
	return cacheKeyLessonPrefix + id
}

func teacherKey(teacherID string) string {
	return cacheKeyTeacherPrefix + teacherID
}

// ActiveLessons serves the public listing through the cache, loading
// from the database on a miss and backfilling the region.
func (c *LessonCache) ActiveLessons(ctx context.Context, load func(context.Context) ([]models.Lesson, error)) ([]models.Lesson, error) {
	var cached []models.Lesson
	if hit, err := c.cache.Get(ctx, cacheKeyActiveLessons, &cached); err == nil && hit {
		return cached, nil
	}

	lessons, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, cacheKeyActiveLessons, lessons, c.ttl) //nolint:errcheck
	return lessons, nil
}

// Lesson serves a single lesson through its cache region.
func (c *LessonCache) Lesson(ctx context.Context, id string, load func(context.Context) (*models.Lesson, error)) (*models.Lesson, error) {
	var cached models.Lesson
	if hit, err := c.cache.Get(ctx, lessonKey(id), &cached); err == nil && hit {
		return &cached, nil
	}

	lesson, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, lessonKey(id), lesson, c.ttl) //nolint:errcheck
	return lesson, nil
}

// TeacherLessons serves a teacher's active listing through its region.
func (c *LessonCache) TeacherLessons(ctx context.Context, teacherID string, load func(context.Context) ([]models.Lesson, error)) ([]models.Lesson, error) {
	var cached []models.Lesson
	if hit, err := c.cache.Get(ctx, teacherKey(teacherID), &cached); err == nil && hit {
		return cached, nil
	}

	lessons, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, teacherKey(teacherID), lessons, c.ttl) //nolint:errcheck
	return lessons, nil
}

// InvalidateAfterCreate evicts the listings a new lesson appears in.
// The by-id region needs nothing: the id did not exist before.
func (c *LessonCache) InvalidateAfterCreate(ctx context.Context, teacherID string) {
	c.cache.Delete(ctx, cacheKeyActiveLessons) //nolint:errcheck
	c.cache.Delete(ctx, teacherKey(teacherID)) //nolint:errcheck
}

// InvalidateAfterChange refreshes the by-id entry with the updated
// lesson and evicts the listings that embed it. Used when the acting
// teacher is known to be the lesson's owner, so only that teacher's
// region can be stale.
func (c *LessonCache) InvalidateAfterChange(ctx context.Context, lesson *models.Lesson) {
	c.cache.Set(ctx, lessonKey(lesson.ID), lesson, c.ttl) //nolint:errcheck
	c.cache.Delete(ctx, cacheKeyActiveLessons)            //nolint:errcheck
	c.cache.Delete(ctx, teacherKey(lesson.TeacherID))     //nolint:errcheck
}

// InvalidateBroad refreshes the by-id entry and evicts every teacher
// region along with the active listing. Admin writes take this path:
// an admin update may reassign the lesson to another teacher, and a
// narrow eviction would leave the previous owner's region stale.
func (c *LessonCache) InvalidateBroad(ctx context.Context, lesson *models.Lesson) {
	c.cache.Set(ctx, lessonKey(lesson.ID), lesson, c.ttl) //nolint:errcheck
	c.cache.Delete(ctx, cacheKeyActiveLessons)            //nolint:errcheck
	c.cache.Invalidate(ctx, cacheKeyAllTeachersGlob)      //nolint:errcheck
}

// InvalidateAfterDelete evicts every region that could still carry the
// removed lesson.
func (c *LessonCache) InvalidateAfterDelete(ctx context.Context, id string) {
	c.cache.Delete(ctx, lessonKey(id))               //nolint:errcheck
	c.cache.Delete(ctx, cacheKeyActiveLessons)       //nolint:errcheck
	c.cache.Invalidate(ctx, cacheKeyAllTeachersGlob) //nolint:errcheck
}
