package catalog

import (
	"context"

	"stockledger/internal/domain"
)

// ListFilter narrows ListItems.
type ListFilter struct {
	domain.ListFilter

	Category string
	Status   Status
}

// Repository persists stock items.
type Repository interface {
	// Create inserts a new item. A code collision yields apperror CodeDuplicate.
	Create(ctx context.Context, item *StockItem) error

	// GetByCode returns the item or apperror CodeNotFound.
	GetByCode(ctx context.Context, code string) (*StockItem, error)

	// GetByCodeForUpdate is GetByCode with a row lock held until the
	// surrounding transaction ends. Must be called inside a transaction.
	GetByCodeForUpdate(ctx context.Context, code string) (*StockItem, error)

	// Update writes every mutable column when the stored version still
	// equals item.Version, then bumps item.Version. A stale version yields
	// apperror CodeConcurrentModification.
	Update(ctx context.Context, item *StockItem) error

	// Delete removes the item row.
	Delete(ctx context.Context, code string) error

	// ExistsByCode checks if an item with the code exists.
	ExistsByCode(ctx context.Context, code string) (bool, error)

	// List returns a page of items.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockItem], error)
}

// LedgerReferences tells whether ledger events still point at an item code.
type LedgerReferences interface {
	HasEvents(ctx context.Context, itemCode string) (bool, error)
}

// CodeGenerator allocates item codes when the caller leaves code empty.
type CodeGenerator interface {
	NextItemCode(ctx context.Context) (string, error)
}
