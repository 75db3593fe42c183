package sales

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const foreignKeyViolation = "23503"

// PostgresRepository stores invoices in sales_invoices and their lines in
// sales_invoice_items. Deleting an invoice cascades to its lines.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresRepository{db: db}, nil
}

const invoiceColumns = `id, invoice_number, customer_id, invoice_date, sub_total, item_discount, invoice_discount, tax_amount, total, created_by, created_at`

// Create inserts the header and all lines in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Invoice{}, fmt.Errorf("begin invoice tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const header = `
INSERT INTO sales_invoices (invoice_number, customer_id, invoice_date, sub_total, item_discount, invoice_discount, tax_amount, total, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`
	err = tx.QueryRowContext(ctx, header,
		inv.Number, inv.CustomerID, inv.InvoiceDate,
		inv.SubTotal, inv.ItemDiscount, inv.InvoiceDiscount, inv.TaxAmount, inv.Total,
		inv.CreatedBy, inv.CreatedAt,
	).Scan(&inv.ID)
	if err != nil {
		return Invoice{}, mapWriteError("insert invoice", err)
	}

	const line = `
INSERT INTO sales_invoice_items (invoice_id, product_id, product_name, quantity, unit_price, item_discount, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`
	lines := make([]Line, len(inv.Lines))
	for i, l := range inv.Lines {
		l.InvoiceID = inv.ID
		err := tx.QueryRowContext(ctx, line,
			l.InvoiceID, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice, l.Discount, l.LineTotal,
		).Scan(&l.ID)
		if err != nil {
			return Invoice{}, mapWriteError("insert invoice line", err)
		}
		lines[i] = l
	}
	inv.Lines = lines

	if err := tx.Commit(); err != nil {
		return Invoice{}, fmt.Errorf("commit invoice: %w", err)
	}
	return inv, nil
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Invoice, error) {
	q := `SELECT ` + invoiceColumns + ` FROM sales_invoices`
	var args []any
	if f.CustomerID > 0 {
		q += ` WHERE customer_id = $1`
		args = append(args, f.CustomerID)
	}
	q += ` ORDER BY invoice_date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	out := make([]Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (Invoice, error) {
	q := `SELECT ` + invoiceColumns + ` FROM sales_invoices WHERE id = $1`
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, fmt.Errorf("get invoice: %w", err)
	}

	const lq = `
SELECT id, invoice_id, product_id, product_name, quantity, unit_price, item_discount, line_total
FROM sales_invoice_items
WHERE invoice_id = $1
ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, lq, id)
	if err != nil {
		return Invoice{}, fmt.Errorf("list invoice lines: %w", err)
	}
	defer rows.Close()

	inv.Lines = make([]Line, 0)
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.Discount, &l.LineTotal); err != nil {
			return Invoice{}, fmt.Errorf("scan invoice line: %w", err)
		}
		inv.Lines = append(inv.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return Invoice{}, fmt.Errorf("iterate invoice lines: %w", err)
	}
	return inv, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sales_invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete invoice rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	const q = `SELECT COUNT(*), COALESCE(SUM(total), 0) FROM sales_invoices`
	if err := r.db.QueryRowContext(ctx, q).Scan(&s.InvoiceCount, &s.TotalSales); err != nil {
		return Summary{}, fmt.Errorf("summarize invoices: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.Number, &inv.CustomerID, &inv.InvoiceDate,
		&inv.SubTotal, &inv.ItemDiscount, &inv.InvoiceDiscount, &inv.TaxAmount, &inv.Total,
		&inv.CreatedBy, &inv.CreatedAt,
	)
	return inv, err
}

// mapWriteError turns a foreign key failure, such as a product deleted while
// the invoice was being priced, into an input error.
func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == foreignKeyViolation {
		return fmt.Errorf("%w: %s", ErrInvalidInput, pqErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}
