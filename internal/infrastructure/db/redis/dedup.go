package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bibliora/library-system/internal/core/domain"
)

const dedupTTL = time.Hour

// AuditDedup guards the audit pipeline against recording the same event
// twice when a worker retries after a transient store failure.
// Key format: audit:<entity_type>:<entity_id>:<action>:<unix_timestamp>
type AuditDedup struct {
	client *redis.Client
}

// NewAuditDedup creates an AuditDedup wrapping the given Redis client.
func NewAuditDedup(client *redis.Client) *AuditDedup {
	return &AuditDedup{client: client}
}

// Seen reports whether this exact audit event has already been recorded.
func (d *AuditDedup) Seen(ctx context.Context, e domain.AuditEvent) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(e)).Result()
	if err != nil {
		return false, fmt.Errorf("audit dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records that this event has been written (expires after dedupTTL).
func (d *AuditDedup) Mark(ctx context.Context, e domain.AuditEvent) error {
	return d.client.Set(ctx, d.key(e), "1", dedupTTL).Err()
}

func (d *AuditDedup) key(e domain.AuditEvent) string {
	return fmt.Sprintf("audit:%s:%s:%s:%d", e.EntityType, e.EntityID, e.Action, e.OccurredAt.Unix())
}
