// Package id issues the keys of stock items, ledger events, audit and outbox rows.
package id

import "github.com/google/uuid"

type ID = uuid.UUID

// New returns a UUIDv7 so keys of ledger rows grow with time. It falls back
// to a random v4 if the v7 clock source fails.
func New() ID {
	if v, err := uuid.NewV7(); err == nil {
		return v
	}
	return uuid.New()
}

// Parse accepts the canonical and the braced/urn forms.
func Parse(s string) (ID, error) { return uuid.Parse(s) }

func Nil() ID { return uuid.Nil }

func IsNil(v ID) bool { return v == uuid.Nil }
