// Package entity holds the columns every mutable record carries.
package entity

import (
	"time"

	"stockledger/internal/core/id"
)

// BaseEntity is the key plus the optimistic-lock counter. Repositories
// update WHERE version = $n and bump it on success.
type BaseEntity struct {
	ID      id.ID `db:"id" json:"id"`
	Version int   `db:"version" json:"version"`
}

// NewBaseEntity starts a record at version 1 with a fresh UUIDv7.
func NewBaseEntity() BaseEntity {
	return BaseEntity{ID: id.New(), Version: 1}
}

type Timestamps struct {
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewTimestamps sets both fields to the same UTC instant.
func NewTimestamps() Timestamps {
	now := time.Now().UTC()
	return Timestamps{CreatedAt: now, UpdatedAt: now}
}

func (t *Timestamps) Touch() {
	t.UpdatedAt = time.Now().UTC()
}
