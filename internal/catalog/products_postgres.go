package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PGProductService stores products in the products table. Category existence
// and invoice references are enforced by foreign keys.
type PGProductService struct {
	db *sql.DB
}

func NewPGProductService(db *sql.DB) (*PGProductService, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PGProductService{db: db}, nil
}

const productColumns = `id, name, description, cost_price, selling_price, stock_quantity, category_id, is_active`

func (s *PGProductService) Create(ctx context.Context, in ProductInput) (Product, error) {
	in, err := normalizeProduct(in)
	if err != nil {
		return Product{}, err
	}

	const q = `
INSERT INTO products (name, description, cost_price, selling_price, stock_quantity, category_id, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`
	p := in.product(0)
	err = s.db.QueryRowContext(ctx, q,
		p.Name, nullString(p.Description), p.CostPrice, p.SellingPrice, p.StockQuantity, p.CategoryID, p.IsActive,
	).Scan(&p.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Product{}, ErrUnknownCategory
		}
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (s *PGProductService) List(ctx context.Context, f ProductFilter) ([]Product, error) {
	var (
		where []string
		args  []any
	)
	if f.CategoryID > 0 {
		args = append(args, f.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if f.ActiveOnly {
		where = append(where, "is_active = TRUE")
	}
	q := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY name ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func (s *PGProductService) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	q := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *PGProductService) Update(ctx context.Context, id int64, in ProductInput) (Product, error) {
	in, err := normalizeProduct(in)
	if err != nil {
		return Product{}, err
	}
	if id <= 0 {
		return Product{}, ErrNotFound
	}

	const q = `
UPDATE products
SET name = $2,
	description = $3,
	cost_price = $4,
	selling_price = $5,
	stock_quantity = $6,
	category_id = $7,
	is_active = $8
WHERE id = $1`
	p := in.product(id)
	res, err := s.db.ExecContext(ctx, q,
		id, p.Name, nullString(p.Description), p.CostPrice, p.SellingPrice, p.StockQuantity, p.CategoryID, p.IsActive,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Product{}, ErrUnknownCategory
		}
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Product{}, fmt.Errorf("read update affected rows: %w", err)
	}
	if affected == 0 {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (s *PGProductService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: product %d is on an invoice", ErrInUse, id)
		}
		return fmt.Errorf("delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read delete affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p    Product
		desc sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &desc, &p.CostPrice, &p.SellingPrice, &p.StockQuantity, &p.CategoryID, &p.IsActive)
	if err != nil {
		return Product{}, err
	}
	p.Description = desc.String
	return p, nil
}
