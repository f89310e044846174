package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/reports"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// ReportService produces the summaries served under /reports.
type ReportService interface {
	SalesSummary(ctx context.Context, filter reports.SalesFilter) (*reports.SalesSummary, error)
	Dashboard(ctx context.Context) (*reports.Dashboard, error)
}

// ReportsHandler handles HTTP requests for reports.
type ReportsHandler struct {
	*BaseHandler
	service ReportService
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service ReportService) *ReportsHandler {
	return &ReportsHandler{BaseHandler: base, service: service}
}

// Sales handles GET /reports/sales.
func (h *ReportsHandler) Sales(c *gin.Context) {
	var q dto.SalesReportQuery
	if !h.BindQuery(c, &q) {
		return
	}
	from, ok := h.ParseTimeParam(c, "from", q.From)
	if !ok {
		return
	}
	to, ok := h.ParseTimeParam(c, "to", q.To)
	if !ok {
		return
	}

	summary, err := h.service.SalesSummary(c.Request.Context(), reports.SalesFilter{
		Granularity: reports.Granularity(q.Granularity),
		From:        from,
		To:          to,
		ItemCode:    q.ItemCode,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, summary)
}

// Dashboard handles GET /reports/dashboard.
func (h *ReportsHandler) Dashboard(c *gin.Context) {
	d, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}
