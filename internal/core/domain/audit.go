package domain

import "time"

// Audit actions recorded after successful mutations.
const (
	AuditCreate = "create"
	AuditUpdate = "update"
	AuditDelete = "delete"
)

// Audit entity types.
const (
	EntityBookCopy    = "book_copy"
	EntityLibraryCard = "library_card"
)

// AuditEvent is the fire-and-forget record published after a successful
// create/update/delete. Publishing failures are logged, never propagated, and
// never roll back the persisted change.
type AuditEvent struct {
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Payload    string    `json:"payload,omitempty"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
}
