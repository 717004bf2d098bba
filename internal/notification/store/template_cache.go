package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"healthfinance/internal/notification/models"
	platformredis "healthfinance/internal/platform/redis"
)

// CachedTemplates is a read-through redis cache in front of a template store.
// Template content changes rarely but is read on every templated notification,
// so a short TTL keeps the store quiet without a separate invalidation path.
// Cache failures degrade to store reads and never fail the request.
type CachedTemplates struct {
	next   templateSource
	client *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type templateSource interface {
	GetByName(ctx context.Context, name string) (*models.Template, error)
	Create(ctx context.Context, tpl *models.Template) error
	List(ctx context.Context) ([]*models.Template, error)
}

// NewCachedTemplates wraps next with a redis cache. A nil client disables
// caching and the wrapper becomes a pass-through.
func NewCachedTemplates(next templateSource, client *platformredis.Client, ttl time.Duration, logger *slog.Logger) *CachedTemplates {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedTemplates{next: next, client: client, ttl: ttl, logger: logger}
}

// Create writes through to the store and drops any cached entry under the
// same name, so a re-created name is never served stale.
func (c *CachedTemplates) Create(ctx context.Context, tpl *models.Template) error {
	if err := c.next.Create(ctx, tpl); err != nil {
		return err
	}
	if c.client != nil {
		if err := c.client.Del(ctx, "notification:template:"+tpl.TemplateName).Err(); err != nil && c.logger != nil {
			c.logger.WarnContext(ctx, "template cache invalidation failed", "template", tpl.TemplateName, "error", err)
		}
	}
	return nil
}

// List always reads the store; the cache only covers by-name resolution.
func (c *CachedTemplates) List(ctx context.Context) ([]*models.Template, error) {
	return c.next.List(ctx)
}

func (c *CachedTemplates) GetByName(ctx context.Context, name string) (*models.Template, error) {
	if c.client == nil {
		return c.next.GetByName(ctx, name)
	}

	key := "notification:template:" + name
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var tpl models.Template
		if err := json.Unmarshal(raw, &tpl); err == nil {
			return &tpl, nil
		}
		// Corrupt entry: fall through to the store and overwrite below.
	} else if !errors.Is(err, goredis.Nil) && c.logger != nil {
		c.logger.WarnContext(ctx, "template cache read failed", "template", name, "error", err)
	}

	tpl, err := c.next.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(tpl); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.WarnContext(ctx, "template cache write failed", "template", name, "error", err)
		}
	}
	return tpl, nil
}
