// internal/store/cache.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"support-pipeline/internal/common/logger"
)

const decisionKeyPrefix = "decision:"

// DecisionCache keeps recent decision snapshots in Redis so status
// reads do not hit Postgres.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewDecisionCache(client *redis.Client, ttl time.Duration, log logger.Logger) *DecisionCache {
	return &DecisionCache{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "decision-cache"}),
	}
}

// Put stores the snapshot under its application ID.
func (c *DecisionCache) Put(ctx context.Context, snapshot *DecisionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, decisionKeyPrefix+snapshot.ApplicationID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Get returns the cached snapshot, or (nil, nil) on a miss.
func (c *DecisionCache) Get(ctx context.Context, applicationID string) (*DecisionSnapshot, error) {
	data, err := c.client.Get(ctx, decisionKeyPrefix+applicationID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var snapshot DecisionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		// A corrupt entry is treated as a miss and dropped so the next
		// Put starts clean.
		c.logger.Warn("corrupt cache entry", map[string]interface{}{
			"applicationId": applicationID,
		})
		if delErr := c.Invalidate(ctx, applicationID); delErr != nil {
			c.logger.Warn("corrupt cache entry not dropped", map[string]interface{}{
				"applicationId": applicationID,
				"error":         delErr.Error(),
			})
		}
		return nil, nil
	}
	return &snapshot, nil
}

// Invalidate drops the cached snapshot for an application.
func (c *DecisionCache) Invalidate(ctx context.Context, applicationID string) error {
	return c.client.Del(ctx, decisionKeyPrefix+applicationID).Err()
}
