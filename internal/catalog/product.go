package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"vtsecommerce/salesadmin/internal/validation"
)

// Product is a sellable item. Prices are kept to two decimal places.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	StockQuantity int             `json:"stock_quantity"`
	CategoryID    int64           `json:"category_id"`
	IsActive      bool            `json:"is_active"`
}

type ProductInput struct {
	Name          string          `json:"name" validate:"required,max=100"`
	Description   string          `json:"description" validate:"max=1000"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	CategoryID    int64           `json:"category_id" validate:"gt=0"`
	IsActive      *bool           `json:"is_active"`
}

// ProductFilter narrows List. Zero values match everything.
type ProductFilter struct {
	CategoryID int64
	ActiveOnly bool
}

func (f ProductFilter) matches(p Product) bool {
	if f.CategoryID > 0 && p.CategoryID != f.CategoryID {
		return false
	}
	return !f.ActiveOnly || p.IsActive
}

func normalizeProduct(in ProductInput) (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.CostPrice.IsNegative() {
		return in, fmt.Errorf("%w: cost_price must not be negative", ErrInvalidInput)
	}
	if in.SellingPrice.IsNegative() {
		return in, fmt.Errorf("%w: selling_price must not be negative", ErrInvalidInput)
	}
	in.CostPrice = in.CostPrice.Round(2)
	in.SellingPrice = in.SellingPrice.Round(2)
	return in, nil
}

func (in ProductInput) product(id int64) Product {
	return Product{
		ID:            id,
		Name:          in.Name,
		Description:   in.Description,
		CostPrice:     in.CostPrice,
		SellingPrice:  in.SellingPrice,
		StockQuantity: in.StockQuantity,
		CategoryID:    in.CategoryID,
		IsActive:      activeOrDefault(in.IsActive),
	}
}
