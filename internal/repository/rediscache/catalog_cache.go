package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	courseKeyPrefix   = "catalog:course:"
	scheduleKeyPrefix = "catalog:schedule:"
	diplomaKeyPrefix  = "catalog:diploma:"

	// Catalog records are read-mostly; a short TTL keeps price edits
	// visible within minutes without hitting Postgres per purchase.
	defaultCacheTTL = 5 * time.Minute
)

// Client wraps a Redis connection used for catalog caching.
type Client struct {
	client *redis.Client
	log    *logger.Logger
}

// NewClient connects to Redis and verifies the connection.
func NewClient(addr, password string, db int, log *logger.Logger) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", addr)
	return &Client{client: client, log: log}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// CachedCatalog decorates the catalog stores with a read-through Redis
// cache. Cache failures fall back to the underlying store silently.
type CachedCatalog struct {
	courses   repository.CourseStore
	schedules repository.ScheduleStore
	diplomas  repository.DiplomaStore
	cache     *Client
	log       *logger.Logger
}

// NewCachedCatalog wraps the given stores with caching.
func NewCachedCatalog(courses repository.CourseStore, schedules repository.ScheduleStore, diplomas repository.DiplomaStore, cache *Client, log *logger.Logger) *CachedCatalog {
	return &CachedCatalog{
		courses:   courses,
		schedules: schedules,
		diplomas:  diplomas,
		cache:     cache,
		log:       log,
	}
}

// GetCourse returns a course, from cache when possible
func (c *CachedCatalog) GetCourse(ctx context.Context, courseID string) (domain.Course, error) {
	var course domain.Course
	if c.lookup(ctx, courseKeyPrefix+courseID, &course) {
		return course, nil
	}

	course, err := c.courses.GetCourse(ctx, courseID)
	if err != nil {
		return domain.Course{}, err
	}
	c.store(ctx, courseKeyPrefix+courseID, course)
	return course, nil
}

// GetSchedule returns a delivery schedule, from cache when possible
func (c *CachedCatalog) GetSchedule(ctx context.Context, scheduleID string) (domain.CourseSchedule, error) {
	var schedule domain.CourseSchedule
	if c.lookup(ctx, scheduleKeyPrefix+scheduleID, &schedule) {
		return schedule, nil
	}

	schedule, err := c.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return domain.CourseSchedule{}, err
	}
	c.store(ctx, scheduleKeyPrefix+scheduleID, schedule)
	return schedule, nil
}

// GetDiploma returns a digital diploma, from cache when possible
func (c *CachedCatalog) GetDiploma(ctx context.Context, diplomaID string) (domain.DigitalDiploma, error) {
	var diploma domain.DigitalDiploma
	if c.lookup(ctx, diplomaKeyPrefix+diplomaID, &diploma) {
		return diploma, nil
	}

	diploma, err := c.diplomas.GetDiploma(ctx, diplomaID)
	if err != nil {
		return domain.DigitalDiploma{}, err
	}
	c.store(ctx, diplomaKeyPrefix+diplomaID, diploma)
	return diploma, nil
}

func (c *CachedCatalog) lookup(ctx context.Context, key string, dest any) bool {
	data, err := c.cache.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warnw("Redis lookup failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warnw("Failed to decode cached record", "key", key, "error", err)
		return false
	}
	return true
}

func (c *CachedCatalog) store(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warnw("Failed to encode record for cache", "key", key, "error", err)
		return
	}
	if err := c.cache.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		c.log.Warnw("Failed to cache record", "key", key, "error", err)
	}
}
