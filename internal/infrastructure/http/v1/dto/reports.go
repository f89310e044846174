package dto

// SalesReportQuery is the query of GET /reports/sales.
type SalesReportQuery struct {
	Granularity string `form:"granularity" binding:"omitempty,oneof=day month year"`
	From        string `form:"from"`
	To          string `form:"to"`
	ItemCode    string `form:"itemCode"`
}
