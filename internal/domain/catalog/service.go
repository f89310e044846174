package catalog

import (
	"context"
	"fmt"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/pkg/logger"
)

const entityName = "stock item"

// ServiceConfig wires the catalog service.
type ServiceConfig struct {
	Repo      Repository
	Refs      LedgerReferences
	Codes     CodeGenerator // optional
	TxManager tx.Manager
	Events    domain.EventPublisher // optional
	Audit     domain.Auditor        // optional
}

// Service manages the item catalog. Quantities and aggregates are out of its
// reach; only the consistency engine moves them.
type Service struct {
	repo   Repository
	refs   LedgerReferences
	codes  CodeGenerator
	txm    tx.Manager
	events domain.EventPublisher
	audit  domain.Auditor
	hooks  *domain.HookRegistry[*StockItem]
}

// NewService creates the catalog service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:   cfg.Repo,
		refs:   cfg.Refs,
		codes:  cfg.Codes,
		txm:    cfg.TxManager,
		events: cfg.Events,
		audit:  cfg.Audit,
		hooks:  domain.NewHookRegistry[*StockItem](),
	}
	if s.events == nil {
		s.events = domain.NopPublisher{}
	}
	if s.audit == nil {
		s.audit = domain.NopAuditor{}
	}

	s.hooks.On(domain.BeforeCreate, s.assignCode, s.validate, s.checkCodeUnique)
	s.hooks.On(domain.BeforeUpdate, s.validate)
	s.hooks.On(domain.BeforeDelete, s.checkNoLedgerHistory)

	return s
}

// CreateInput describes a new item.
type CreateInput struct {
	Code       string
	Name       string
	Category   string
	Status     Status
	UnitCost   types.Money
	UnitPrice  types.Money
	OpeningQty int64
}

// UpdateInput carries the editable fields; nil means unchanged.
type UpdateInput struct {
	Name      *string
	Category  *string
	Status    *Status
	UnitCost  *types.Money
	UnitPrice *types.Money

	// ExpectedVersion, when set, must match the stored version.
	ExpectedVersion *int
}

// Create adds an item to the catalog.
func (s *Service) Create(ctx context.Context, in CreateInput) (*StockItem, error) {
	item := NewStockItem(in.Code, in.Name, in.UnitCost, in.UnitPrice, in.OpeningQty)
	item.Category = strings.TrimSpace(in.Category)
	if in.Status != "" {
		item.Status = in.Status
	}

	if err := s.hooks.Run(ctx, domain.BeforeCreate, item); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, item); err != nil {
			return fmt.Errorf("create stock item: %w", err)
		}
		if err := s.audit.Record(ctx, domain.AggregateStockItem, item.ID, domain.AuditCreate, nil, item); err != nil {
			return fmt.Errorf("audit stock item: %w", err)
		}
		return s.events.Publish(ctx, domain.Event{
			AggregateType: domain.AggregateStockItem,
			AggregateID:   item.ID,
			EventType:     domain.EventItemCreated,
			Payload:       item,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock item created", "code", item.Code, "opening_qty", item.OpeningQty)
	return item, nil
}

// Get returns one item by code.
func (s *Service) Get(ctx context.Context, code string) (*StockItem, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns a page of items.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockItem], error) {
	filter.Normalize()
	if filter.Status != "" && !filter.Status.IsValid() {
		return domain.ListResult[*StockItem]{}, apperror.NewValidation("unknown status filter").
			WithDetail("status", filter.Status)
	}
	return s.repo.List(ctx, filter)
}

// Update edits descriptive and pricing fields. A price or cost change only
// affects aggregates recomputed by later sales.
func (s *Service) Update(ctx context.Context, code string, in UpdateInput) (*StockItem, error) {
	var updated *StockItem

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		item, err := s.repo.GetByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != item.Version {
			return apperror.NewConcurrentModification(entityName, code).
				WithDetail("expected_version", *in.ExpectedVersion).
				WithDetail("actual_version", item.Version)
		}

		before := *item
		applyUpdate(item, in)

		if err := s.hooks.Run(ctx, domain.BeforeUpdate, item); err != nil {
			return err
		}
		item.Touch()
		if err := s.repo.Update(ctx, item); err != nil {
			return fmt.Errorf("update stock item: %w", err)
		}
		if err := s.audit.Record(ctx, domain.AggregateStockItem, item.ID, domain.AuditUpdate, before, item); err != nil {
			return fmt.Errorf("audit stock item: %w", err)
		}
		updated = item
		return s.events.Publish(ctx, domain.Event{
			AggregateType: domain.AggregateStockItem,
			AggregateID:   item.ID,
			EventType:     domain.EventItemUpdated,
			Payload:       item,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock item updated", "code", updated.Code, "version", updated.Version)
	return updated, nil
}

// Delete removes an item that has no ledger history.
func (s *Service) Delete(ctx context.Context, code string) error {
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		item, err := s.repo.GetByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		if err := s.hooks.Run(ctx, domain.BeforeDelete, item); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, item.Code); err != nil {
			return fmt.Errorf("delete stock item: %w", err)
		}
		if err := s.audit.Record(ctx, domain.AggregateStockItem, item.ID, domain.AuditDelete, item, nil); err != nil {
			return fmt.Errorf("audit stock item: %w", err)
		}
		return s.events.Publish(ctx, domain.Event{
			AggregateType: domain.AggregateStockItem,
			AggregateID:   item.ID,
			EventType:     domain.EventItemDeleted,
			Payload:       map[string]any{"code": item.Code},
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "stock item deleted", "code", code)
	return nil
}

func applyUpdate(item *StockItem, in UpdateInput) {
	if in.Name != nil {
		item.Name = strings.TrimSpace(*in.Name)
	}
	if in.Category != nil {
		item.Category = strings.TrimSpace(*in.Category)
	}
	if in.Status != nil {
		item.Status = *in.Status
	}
	if in.UnitPrice != nil {
		item.UnitPrice = *in.UnitPrice
	}
	if in.UnitCost != nil {
		item.UnitCost = *in.UnitCost
		item.OpeningValue = types.MulQty(item.UnitCost, item.OpeningQty)
	}
}

// --- hooks ---

func (s *Service) assignCode(ctx context.Context, item *StockItem) error {
	if item.Code != "" || s.codes == nil {
		return nil
	}
	code, err := s.codes.NextItemCode(ctx)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("generate item code: %w", err))
	}
	item.Code = code
	return nil
}

func (s *Service) validate(ctx context.Context, item *StockItem) error {
	return item.Validate(ctx)
}

func (s *Service) checkCodeUnique(ctx context.Context, item *StockItem) error {
	exists, err := s.repo.ExistsByCode(ctx, item.Code)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if exists {
		return apperror.NewDuplicate(entityName, "code", item.Code)
	}
	return nil
}

func (s *Service) checkNoLedgerHistory(ctx context.Context, item *StockItem) error {
	if s.refs == nil {
		return nil
	}
	has, err := s.refs.HasEvents(ctx, item.Code)
	if err != nil {
		return fmt.Errorf("check ledger references: %w", err)
	}
	if has {
		return apperror.NewConflict("stock item has ledger history and cannot be deleted").
			WithDetail("code", item.Code)
	}
	return nil
}
