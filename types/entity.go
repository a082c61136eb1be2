// Package types provides common types used across Cadence.
package types

// Entity carries record timestamps for all Cadence entities.
// Timestamps are unix seconds read from the ledger clock, never the host
// clock, so that stored history lines up with billing schedules.
type Entity struct {
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// NewEntity creates a new Entity stamped at now.
func NewEntity(now int64) Entity {
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp to now.
func (e *Entity) Touch(now int64) {
	e.UpdatedAt = now
}

// Age returns how many seconds before now the entity was created.
func (e Entity) Age(now int64) int64 {
	return now - e.CreatedAt
}
