package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bibliora/library-system/internal/core/domain"
	"github.com/bibliora/library-system/internal/core/ports"
)

// AuditRepository persists audit events to the audit_events collection. The
// async pipeline drains into it; nothing in the core ever reads it back.
type AuditRepository struct {
	col *mongo.Collection
}

// NewAuditRepository creates an AuditRepository.
func NewAuditRepository(db *mongo.Database) ports.AuditStore {
	return &AuditRepository{col: db.Collection("audit_events")}
}

// InsertEvent appends one audit record.
func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuditEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"action":      event.Action,
		"entity_type": event.EntityType,
		"entity_id":   event.EntityID,
		"payload":     event.Payload,
		"actor":       event.Actor,
		"occurred_at": event.OccurredAt.UTC(),
		"recorded_at": time.Now().UTC(),
	}

	_, err := r.col.InsertOne(ctx, doc)
	return err
}
