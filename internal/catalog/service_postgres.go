package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const foreignKeyViolation = "23503"

// PGService stores categories in the categories table created by the
// 0003_categories migration.
type PGService struct {
	db *sql.DB
}

func NewPGService(db *sql.DB) (*PGService, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PGService{db: db}, nil
}

func (s *PGService) Create(ctx context.Context, in Input) (Category, error) {
	in, err := normalize(in)
	if err != nil {
		return Category{}, err
	}

	const q = `
INSERT INTO categories (name, description, is_active)
VALUES ($1, $2, $3)
RETURNING id`
	c := Category{Name: in.Name, Description: in.Description, IsActive: in.active()}
	if err := s.db.QueryRowContext(ctx, q, c.Name, nullString(c.Description), c.IsActive).Scan(&c.ID); err != nil {
		return Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (s *PGService) List(ctx context.Context) ([]Category, error) {
	const q = `
SELECT id, name, description, is_active
FROM categories
ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (s *PGService) Get(ctx context.Context, id int64) (Category, error) {
	if id <= 0 {
		return Category{}, ErrNotFound
	}
	const q = `
SELECT id, name, description, is_active
FROM categories
WHERE id = $1`
	c, err := scanCategory(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Category{}, ErrNotFound
		}
		return Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *PGService) Update(ctx context.Context, id int64, in Input) (Category, error) {
	in, err := normalize(in)
	if err != nil {
		return Category{}, err
	}
	if id <= 0 {
		return Category{}, ErrNotFound
	}

	const q = `
UPDATE categories
SET name = $2,
	description = $3,
	is_active = $4
WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id, in.Name, nullString(in.Description), in.active())
	if err != nil {
		return Category{}, fmt.Errorf("update category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Category{}, fmt.Errorf("read update affected rows: %w", err)
	}
	if affected == 0 {
		return Category{}, ErrNotFound
	}
	return Category{ID: id, Name: in.Name, Description: in.Description, IsActive: in.active()}, nil
}

func (s *PGService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: category %d has products", ErrInUse, id)
		}
		return fmt.Errorf("delete category: %w", err)
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

func scanCategory(row rowScanner) (Category, error) {
	var (
		c    Category
		desc sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &desc, &c.IsActive); err != nil {
		return Category{}, err
	}
	c.Description = desc.String
	return c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}
