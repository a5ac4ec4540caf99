// Package cache keeps a Redis read model of scenarios. Postgres stays the
// source of truth; entries are dropped whenever a scenario event is published.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/events"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ScenarioCache caches scenario rows as JSON
type ScenarioCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewScenarioCache creates a cache on an existing client
func NewScenarioCache(rdb *redis.Client, ttl time.Duration) *ScenarioCache {
	return &ScenarioCache{rdb: rdb, ttl: ttl}
}

// Connect parses a redis:// URL and verifies the server answers
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// Get returns the cached scenario. A miss or a broken entry returns false.
func (c *ScenarioCache) Get(ctx context.Context, id uuid.UUID) (*entities.Scenario, bool) {
	data, err := c.rdb.Get(ctx, scenarioKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).WithField("scenarioID", id).Warn("Scenario cache read failed")
		}
		return nil, false
	}

	var scenario entities.Scenario
	if err := json.Unmarshal(data, &scenario); err != nil {
		c.Invalidate(ctx, id)
		return nil, false
	}
	return &scenario, true
}

// Set stores the scenario for the configured TTL
func (c *ScenarioCache) Set(ctx context.Context, scenario *entities.Scenario) {
	data, err := json.Marshal(scenario)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, scenarioKey(scenario.ID), data, c.ttl).Err(); err != nil {
		log.WithError(err).WithField("scenarioID", scenario.ID).Warn("Scenario cache write failed")
	}
}

// Invalidate drops the cached scenario
func (c *ScenarioCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.rdb.Del(ctx, scenarioKey(id)).Err(); err != nil {
		log.WithError(err).WithField("scenarioID", id).Warn("Scenario cache invalidation failed")
	}
}

// HandleEvent is a local event handler that invalidates the scenario an event touches
func (c *ScenarioCache) HandleEvent(ctx context.Context, event events.Event) error {
	scenarioEvent, ok := event.(events.ScenarioEvent)
	if !ok {
		return nil
	}
	c.Invalidate(ctx, scenarioEvent.ScenarioRef())
	return nil
}

func scenarioKey(id uuid.UUID) string { return fmt.Sprintf("scenario:%s", id) }
