// Package sales records sales invoices and their line items.
package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a posted sale. Monetary fields are rounded to two places.
type Invoice struct {
	ID              int64           `json:"id"`
	Number          string          `json:"invoice_number"`
	CustomerID      int64           `json:"customer_id"`
	InvoiceDate     time.Time       `json:"invoice_date"`
	SubTotal        decimal.Decimal `json:"sub_total"`
	ItemDiscount    decimal.Decimal `json:"item_discount"`
	InvoiceDiscount decimal.Decimal `json:"invoice_discount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	Total           decimal.Decimal `json:"total"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	Lines           []Line          `json:"lines,omitempty"`
}

// Line is one product on an invoice. ProductName is captured when the
// invoice is created so later renames do not rewrite history.
type Line struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type CreateInput struct {
	CustomerID      int64           `json:"customer_id" validate:"gt=0"`
	InvoiceDate     *time.Time      `json:"invoice_date"`
	InvoiceDiscount decimal.Decimal `json:"invoice_discount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	Lines           []LineInput     `json:"lines" validate:"min=1,dive"`
}

// LineInput omits UnitPrice to bill the product's current selling price.
type LineInput struct {
	ProductID int64            `json:"product_id" validate:"gt=0"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Discount  decimal.Decimal  `json:"discount"`
}

// Filter narrows List. A zero CustomerID matches every invoice.
type Filter struct {
	CustomerID int64
}

type Summary struct {
	InvoiceCount int64           `json:"invoice_count"`
	TotalSales   decimal.Decimal `json:"total_sales"`
}
