package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const foreignKeyViolation = "23503"

// PGService stores customers in the customers table.
type PGService struct {
	db *sql.DB
}

func NewPGService(db *sql.DB) (*PGService, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PGService{db: db}, nil
}

const customerColumns = `id, name, email, phone, address, notes, is_active`

func (s *PGService) Create(ctx context.Context, in Input) (Customer, error) {
	in, err := normalize(in)
	if err != nil {
		return Customer{}, err
	}

	const q = `
INSERT INTO customers (name, email, phone, address, notes, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	c := in.customer(0)
	err = s.db.QueryRowContext(ctx, q,
		c.Name, nullString(c.Email), nullString(c.Phone), nullString(c.Address), nullString(c.Notes), c.IsActive,
	).Scan(&c.ID)
	if err != nil {
		return Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return c, nil
}

func (s *PGService) List(ctx context.Context, f Filter) ([]Customer, error) {
	q := `SELECT ` + customerColumns + ` FROM customers`
	if f.ActiveOnly {
		q += ` WHERE is_active = TRUE`
	}
	q += ` ORDER BY name ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	out := make([]Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return out, nil
}

func (s *PGService) Get(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, ErrNotFound
	}
	q := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	c, err := scanCustomer(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (s *PGService) Update(ctx context.Context, id int64, in Input) (Customer, error) {
	in, err := normalize(in)
	if err != nil {
		return Customer{}, err
	}
	if id <= 0 {
		return Customer{}, ErrNotFound
	}

	const q = `
UPDATE customers
SET name = $2,
	email = $3,
	phone = $4,
	address = $5,
	notes = $6,
	is_active = $7
WHERE id = $1`
	c := in.customer(id)
	res, err := s.db.ExecContext(ctx, q,
		id, c.Name, nullString(c.Email), nullString(c.Phone), nullString(c.Address), nullString(c.Notes), c.IsActive,
	)
	if err != nil {
		return Customer{}, fmt.Errorf("update customer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Customer{}, fmt.Errorf("read update affected rows: %w", err)
	}
	if affected == 0 {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (s *PGService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return ErrInUse
		}
		return fmt.Errorf("delete customer: %w", err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (Customer, error) {
	var (
		c                            Customer
		email, phone, address, notes sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &email, &phone, &address, &notes, &c.IsActive); err != nil {
		return Customer{}, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.Address = address.String
	c.Notes = notes.String
	return c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
