package dto

import (
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalog"
)

// ItemListQuery filters GET /items.
type ItemListQuery struct {
	ListQuery
	Category string `form:"category"`
	Status   string `form:"status" binding:"omitempty,oneof=active inactive"`
}

// CreateItemRequest is the body of POST /items. An empty code is generated.
type CreateItemRequest struct {
	Code       string         `json:"code" binding:"max=64"`
	Name       string         `json:"name" binding:"required,max=200"`
	Category   string         `json:"category" binding:"max=100"`
	Status     string         `json:"status" binding:"omitempty,oneof=active inactive"`
	UnitCost   types.Money    `json:"unitCost"`
	UnitPrice  types.Money    `json:"unitPrice"`
	OpeningQty types.Quantity `json:"openingQty"`
}

// ToInput converts the request into a catalog input.
func (r CreateItemRequest) ToInput() catalog.CreateInput {
	return catalog.CreateInput{
		Code:       r.Code,
		Name:       r.Name,
		Category:   r.Category,
		Status:     catalog.Status(r.Status),
		UnitCost:   r.UnitCost,
		UnitPrice:  r.UnitPrice,
		OpeningQty: r.OpeningQty.Int64(),
	}
}

// UpdateItemRequest is the body of PUT /items/:code. Omitted fields keep
// their value; quantities cannot be edited here.
type UpdateItemRequest struct {
	Name      *string      `json:"name" binding:"omitempty,max=200"`
	Category  *string      `json:"category" binding:"omitempty,max=100"`
	Status    *string      `json:"status" binding:"omitempty,oneof=active inactive"`
	UnitCost  *types.Money `json:"unitCost"`
	UnitPrice *types.Money `json:"unitPrice"`
	Version   *int         `json:"version"`
}

// ToInput converts the request into a catalog input.
func (r UpdateItemRequest) ToInput() catalog.UpdateInput {
	in := catalog.UpdateInput{
		Name:            r.Name,
		Category:        r.Category,
		UnitCost:        r.UnitCost,
		UnitPrice:       r.UnitPrice,
		ExpectedVersion: r.Version,
	}
	if r.Status != nil {
		s := catalog.Status(*r.Status)
		in.Status = &s
	}
	return in
}

// ItemResponse is a stock item with its derived stock indicators.
type ItemResponse struct {
	*catalog.StockItem
	StockValue types.Money `json:"stockValue"`
	LowStock   bool        `json:"lowStock"`
	OutOfStock bool        `json:"outOfStock"`
}

// FromItem builds the response for one item.
func FromItem(item *catalog.StockItem) ItemResponse {
	return ItemResponse{
		StockItem:  item,
		StockValue: item.StockValue(),
		LowStock:   item.IsLowStock(),
		OutOfStock: item.IsOutOfStock(),
	}
}
