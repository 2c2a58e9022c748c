package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/tpa-platform/pricing-engine/internal/types"
)

const rulesNamespace = "rules"

// Cached decorates a Store with a Redis snapshot cache for rule rows,
// keyed by (procedureId, priceListId). Cached entries are the raw rows,
// never date-filtered, so validity windows are still applied per call.
// Rule CRUD invalidates the affected keys. Cache failures degrade to the
// inner store; only the inner store is authoritative.
type Cached struct {
	Store
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCached wraps the inner store with a Redis rule cache.
func NewCached(inner Store, client redis.UniversalClient, ttl time.Duration) *Cached {
	return &Cached{Store: inner, client: client, ttl: ttl}
}

func rulesKey(procedureID, priceListID int64) string {
	return fmt.Sprintf("%s:%d:%d", rulesNamespace, procedureID, priceListID)
}

func (c *Cached) RulesFor(ctx context.Context, procedureID, priceListID int64) ([]types.Rule, error) {
	key := rulesKey(procedureID, priceListID)

	payload, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var cached []types.Rule
		if err := json.Unmarshal([]byte(payload), &cached); err == nil {
			return cached, nil
		}
		log.WithField("key", key).Warn("Malformed cache entry; refetching from store")
	} else if err != redis.Nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("Rule cache read failed")
	}

	ruleSet, err := c.Store.RulesFor(ctx, procedureID, priceListID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(ruleSet); err == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("Rule cache write failed")
		}
	}
	return ruleSet, nil
}

func (c *Cached) CreateRule(ctx context.Context, r types.Rule) (types.Rule, error) {
	created, err := c.Store.CreateRule(ctx, r)
	if err != nil {
		return types.Rule{}, err
	}
	c.invalidate(ctx, created.ProcedureID, created.PriceListID)
	return created, nil
}

func (c *Cached) UpdateRule(ctx context.Context, r types.Rule) (types.Rule, error) {
	// The rule may move between (procedure, price list) pairs; invalidate
	// the old key as well.
	old, err := c.Store.GetRule(ctx, r.ID)
	if err != nil {
		return types.Rule{}, err
	}

	updated, err := c.Store.UpdateRule(ctx, r)
	if err != nil {
		return types.Rule{}, err
	}
	c.invalidate(ctx, old.ProcedureID, old.PriceListID)
	c.invalidate(ctx, updated.ProcedureID, updated.PriceListID)
	return updated, nil
}

func (c *Cached) DeleteRule(ctx context.Context, id int64) error {
	old, err := c.Store.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if err := c.Store.DeleteRule(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, old.ProcedureID, old.PriceListID)
	return nil
}

func (c *Cached) invalidate(ctx context.Context, procedureID, priceListID int64) {
	key := rulesKey(procedureID, priceListID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("Rule cache invalidation failed")
	}
}
