package catalog_repo

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalog"
)

func newTestRepo() *ItemRepo {
	return NewItemRepo(nil)
}

func TestItemRepo_UpdateQuery_OptimisticLock(t *testing.T) {
	repo := newTestRepo()
	item := catalog.NewStockItem("A1", "Kopi", types.MustMoney("60"), types.MustMoney("100"), 10)
	item.Version = 4

	sql, args, err := repo.updateQuery(item).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "UPDATE stock_items SET "))
	assert.Contains(t, sql, "version = version + 1")
	assert.True(t, strings.HasSuffix(sql, fmt.Sprintf("WHERE id = $%d AND version = $%d", len(args)-1, len(args))), sql)
	assert.NotContains(t, sql, "code =")
	assert.NotContains(t, sql, "created_at =")
	assert.Equal(t, item.ID, args[len(args)-2])
	assert.Equal(t, 4, args[len(args)-1])
}

func TestItemRepo_InsertQuery_AllColumns(t *testing.T) {
	repo := newTestRepo()
	item := catalog.NewStockItem("A1", "Kopi", types.MustMoney("60"), types.MustMoney("100"), 10)

	sql, args, err := repo.insertQuery(item).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO stock_items ("))
	assert.Len(t, args, len(repo.cols))
}

func TestItemRepo_ListQuery(t *testing.T) {
	repo := newTestRepo()

	tests := []struct {
		name     string
		filter   catalog.ListFilter
		wantTail string
		wantArgs int
	}{
		{
			name:     "defaults",
			filter:   catalog.ListFilter{ListFilter: domain.ListFilter{Limit: 50}},
			wantTail: "FROM stock_items ORDER BY code ASC LIMIT 50",
		},
		{
			name: "search status and desc order",
			filter: catalog.ListFilter{
				ListFilter: domain.ListFilter{Search: "kop", OrderBy: "-current_qty", Limit: 10, Offset: 20},
				Status:     catalog.StatusActive,
			},
			wantTail: "FROM stock_items WHERE (name ILIKE $1 OR code ILIKE $2) AND status = $3 ORDER BY current_qty DESC LIMIT 10 OFFSET 20",
			wantArgs: 3,
		},
		{
			name:     "category",
			filter:   catalog.ListFilter{ListFilter: domain.ListFilter{Limit: 5}, Category: "drinks"},
			wantTail: "FROM stock_items WHERE category = $1 ORDER BY code ASC LIMIT 5",
			wantArgs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := repo.listQuery(tt.filter)
			require.NoError(t, err)

			sql, args, err := q.ToSql()
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(sql, tt.wantTail), sql)
			assert.Len(t, args, tt.wantArgs)
		})
	}
}

func TestItemRepo_ListQuery_RejectsUnknownOrder(t *testing.T) {
	_, err := newTestRepo().listQuery(catalog.ListFilter{ListFilter: domain.ListFilter{OrderBy: "1; DROP TABLE x"}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
