package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
)

// Service provides report generation operations.
type Service struct {
	repo Repository
	txm  tx.ReadOnlyManager
}

// NewService creates a new reports service. txm may be nil, in which case
// the two reads of a summary are not pinned to one snapshot.
func NewService(repo Repository, txm tx.ReadOnlyManager) *Service {
	return &Service{repo: repo, txm: txm}
}

// SalesSummary buckets sales and receipts by day, month or year.
func (s *Service) SalesSummary(ctx context.Context, filter SalesFilter) (*SalesSummary, error) {
	if filter.Granularity == "" {
		filter.Granularity = GranularityDay
	}
	if !filter.Granularity.IsValid() {
		return nil, apperror.NewValidation("granularity must be day, month or year").
			WithDetail("granularity", filter.Granularity)
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, apperror.NewValidation("from must be before to").
			WithDetail("from", filter.From).
			WithDetail("to", filter.To)
	}

	var sales []SalesRow
	var receipts []ReceiptRow
	read := func(ctx context.Context) error {
		var err error
		if sales, err = s.repo.SalesByPeriod(ctx, filter); err != nil {
			return fmt.Errorf("sales by period: %w", err)
		}
		if receipts, err = s.repo.ReceiptsByPeriod(ctx, filter); err != nil {
			return fmt.Errorf("receipts by period: %w", err)
		}
		return nil
	}

	var err error
	if s.txm != nil {
		err = s.txm.ReadOnly(ctx, read)
	} else {
		err = read(ctx)
	}
	if err != nil {
		return nil, err
	}

	return merge(filter, sales, receipts), nil
}

// Dashboard returns headline stock figures.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	d, err := s.repo.Dashboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	return d, nil
}

func merge(filter SalesFilter, sales []SalesRow, receipts []ReceiptRow) *SalesSummary {
	buckets := make(map[time.Time]*SalesPeriod)
	bucket := func(t time.Time) *SalesPeriod {
		key := filter.Granularity.Truncate(t)
		p, ok := buckets[key]
		if !ok {
			p = &SalesPeriod{Period: key, Revenue: types.Zero(), Profit: types.Zero()}
			buckets[key] = p
		}
		return p
	}

	for _, r := range sales {
		p := bucket(r.Period)
		p.SaleCount += r.SaleCount
		p.QtySold += r.QtySold
		p.Revenue = p.Revenue.Add(r.Revenue)
		p.Profit = p.Profit.Add(r.Profit)
	}
	for _, r := range receipts {
		bucket(r.Period).QtyReceived += r.QtyReceived
	}

	summary := &SalesSummary{
		Granularity:  filter.Granularity,
		From:         filter.From,
		To:           filter.To,
		ItemCode:     filter.ItemCode,
		Periods:      make([]SalesPeriod, 0, len(buckets)),
		TotalRevenue: types.Zero(),
		TotalProfit:  types.Zero(),
	}
	for _, p := range buckets {
		summary.Periods = append(summary.Periods, *p)
		summary.TotalSaleCount += p.SaleCount
		summary.TotalQtySold += p.QtySold
		summary.TotalQtyReceived += p.QtyReceived
		summary.TotalRevenue = summary.TotalRevenue.Add(p.Revenue)
		summary.TotalProfit = summary.TotalProfit.Add(p.Profit)
	}
	sort.Slice(summary.Periods, func(i, j int) bool {
		return summary.Periods[i].Period.Before(summary.Periods[j].Period)
	})
	return summary
}
