// internal/directory/directory.go

// Package directory resolves agent ids to display profiles. PostgreSQL
// is the source of truth; a Redis cache in front keeps the hot lookups
// (every log entry and notification denormalizes a name) off the
// database.
package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "handoff-coordinator/internal/common/errors"
	"handoff-coordinator/internal/common/logger"
	"handoff-coordinator/internal/models"
)

type Directory struct {
	db     *sql.DB
	cache  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func New(db *sql.DB, cache *redis.Client, ttl time.Duration, log logger.Logger) *Directory {
	return &Directory{
		db:     db,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "directory"}),
	}
}

func cacheKey(agentID string) string {
	return "directory:agent:" + agentID
}

// Lookup returns the profile for an agent id, from cache when warm.
// Cache failures fall through to the database.
func (d *Directory) Lookup(ctx context.Context, agentID string) (*models.AgentProfile, error) {
	if d.cache != nil {
		raw, err := d.cache.Get(ctx, cacheKey(agentID)).Bytes()
		if err == nil {
			var profile models.AgentProfile
			if err := json.Unmarshal(raw, &profile); err == nil {
				return &profile, nil
			}
		} else if err != redis.Nil {
			d.logger.Warn("directory cache read failed", map[string]interface{}{
				"agent_id": agentID,
				"error":    err,
			})
		}
	}

	row := d.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, is_licensed
		FROM agents
		WHERE id = $1`,
		agentID,
	)

	var profile models.AgentProfile
	err := row.Scan(&profile.ID, &profile.DisplayName, &profile.Email, &profile.IsLicensed)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewProfileNotFoundError(agentID)
	}
	if err != nil {
		return nil, apperrors.NewStoreReadFailedError("agents", err)
	}

	d.fillCache(ctx, &profile)
	return &profile, nil
}

// DisplayName is the common case: a best-effort name for log and
// notification denormalization. An unknown agent resolves to the raw
// id so writes are never blocked on the directory.
func (d *Directory) DisplayName(ctx context.Context, agentID string) string {
	profile, err := d.Lookup(ctx, agentID)
	if err != nil {
		d.logger.Warn("agent name not resolved, using id", map[string]interface{}{
			"agent_id": agentID,
			"error":    err,
		})
		return agentID
	}
	return profile.DisplayName
}

func (d *Directory) fillCache(ctx context.Context, profile *models.AgentProfile) {
	if d.cache == nil {
		return
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, cacheKey(profile.ID), raw, d.ttl).Err(); err != nil {
		d.logger.Warn("directory cache write failed", map[string]interface{}{
			"agent_id": profile.ID,
			"error":    err,
		})
	}
}

// Invalidate drops an agent's cached profile after an upstream change.
func (d *Directory) Invalidate(ctx context.Context, agentID string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Del(ctx, cacheKey(agentID)).Err(); err != nil {
		d.logger.Warn("directory cache invalidation failed", map[string]interface{}{
			"agent_id": agentID,
			"error":    err,
		})
	}
}
