package postgres

import (
	"errors"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"stockledger/internal/core/apperror"
)

const uniqueViolation = "23505"

// Builder is squirrel with $n placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// OrderBy validates a client sort key ("qty", "-occurred_at", "+name")
// against allowed and renders the ORDER BY term. Empty input gives fallback.
func OrderBy(orderBy, fallback string, allowed ...string) (string, error) {
	key := strings.TrimSpace(orderBy)
	if key == "" {
		return fallback, nil
	}
	dir := " ASC"
	if rest, desc := strings.CutPrefix(key, "-"); desc {
		key, dir = rest, " DESC"
	} else {
		key = strings.TrimPrefix(key, "+")
	}
	if !slices.Contains(allowed, key) {
		return "", apperror.NewValidation("invalid orderBy").
			WithDetail("orderBy", orderBy).
			WithDetail("allowed", allowed)
	}
	return key + dir, nil
}

// IsUniqueViolation reports SQLSTATE 23505, e.g. a duplicate item code.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
