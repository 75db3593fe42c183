package sales

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// pricedProduct is the slice of a catalog product an invoice line needs.
type pricedProduct struct {
	Name         string
	SellingPrice decimal.Decimal
}

// draft describes an invoice before it is numbered and stored.
type draft struct {
	customerID int64
	date       time.Time
	createdBy  int64
	number     string
	now        time.Time
}

// price computes line and header totals. Each line total is
// quantity*unit - discount, and the invoice total is the sum of line totals
// less the invoice discount plus tax.
func price(in CreateInput, products map[int64]pricedProduct, d draft) (Invoice, error) {
	if in.InvoiceDiscount.IsNegative() {
		return Invoice{}, fmt.Errorf("%w: invoice_discount must not be negative", ErrInvalidInput)
	}
	if in.TaxAmount.IsNegative() {
		return Invoice{}, fmt.Errorf("%w: tax_amount must not be negative", ErrInvalidInput)
	}

	inv := Invoice{
		Number:          d.number,
		CustomerID:      d.customerID,
		InvoiceDate:     d.date,
		SubTotal:        decimal.Zero,
		ItemDiscount:    decimal.Zero,
		InvoiceDiscount: in.InvoiceDiscount.Round(2),
		TaxAmount:       in.TaxAmount.Round(2),
		CreatedBy:       d.createdBy,
		CreatedAt:       d.now,
		Lines:           make([]Line, 0, len(in.Lines)),
	}
	for i, li := range in.Lines {
		p, ok := products[li.ProductID]
		if !ok {
			return Invoice{}, fmt.Errorf("%w: lines[%d] product %d is not available", ErrInvalidInput, i, li.ProductID)
		}
		unit := p.SellingPrice
		if li.UnitPrice != nil {
			unit = *li.UnitPrice
		}
		unit = unit.Round(2)
		if unit.IsNegative() {
			return Invoice{}, fmt.Errorf("%w: lines[%d].unit_price must not be negative", ErrInvalidInput, i)
		}
		discount := li.Discount.Round(2)
		if discount.IsNegative() {
			return Invoice{}, fmt.Errorf("%w: lines[%d].discount must not be negative", ErrInvalidInput, i)
		}
		gross := unit.Mul(decimal.NewFromInt(int64(li.Quantity)))
		if discount.GreaterThan(gross) {
			return Invoice{}, fmt.Errorf("%w: lines[%d].discount exceeds the line amount", ErrInvalidInput, i)
		}
		inv.Lines = append(inv.Lines, Line{
			ProductID:   li.ProductID,
			ProductName: p.Name,
			Quantity:    li.Quantity,
			UnitPrice:   unit,
			Discount:    discount,
			LineTotal:   gross.Sub(discount),
		})
		inv.SubTotal = inv.SubTotal.Add(gross)
		inv.ItemDiscount = inv.ItemDiscount.Add(discount)
	}

	inv.Total = inv.SubTotal.Sub(inv.ItemDiscount).Sub(inv.InvoiceDiscount).Add(inv.TaxAmount)
	if inv.Total.IsNegative() {
		return Invoice{}, fmt.Errorf("%w: invoice_discount exceeds the invoice amount", ErrInvalidInput)
	}
	return inv, nil
}
