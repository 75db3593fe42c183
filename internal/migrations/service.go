// Package migrations applies the embedded schema files in name order and
// records each one in the migration_applied table.
package migrations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed sql/*.sql
var embedded embed.FS

type FileInfo struct {
	Name     string `json:"name"`
	Checksum string `json:"checksum"`
}

type Status struct {
	Name            string `json:"name"`
	Checksum        string `json:"checksum"`
	Applied         bool   `json:"applied"`
	AppliedAt       string `json:"applied_at,omitempty"`
	ChecksumChanged bool   `json:"checksum_changed,omitempty"`
}

type appliedRecord struct {
	AppliedAt time.Time
	Checksum  string
}

type appliedStore interface {
	EnsureSchema(ctx context.Context) error
	Load(ctx context.Context) (map[string]appliedRecord, error)
	Apply(ctx context.Context, f FileInfo, body string, appliedAt time.Time) error
}

type Service struct {
	source  fs.FS
	dir     string
	store   appliedStore
	log     *slog.Logger
	nowFunc func() time.Time
}

// NewServiceWithPostgres returns a service over the embedded migration files.
func NewServiceWithPostgres(db *sql.DB, logger *slog.Logger) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return newService(embedded, "sql", &pgAppliedStore{db: db}, logger), nil
}

func newService(source fs.FS, dir string, store appliedStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:  source,
		dir:     dir,
		store:   store,
		log:     logger,
		nowFunc: time.Now,
	}
}

func (s *Service) List() ([]FileInfo, error) {
	entries, err := fs.ReadDir(s.source, s.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		body, err := fs.ReadFile(s.source, path.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, FileInfo{Name: e.Name(), Checksum: checksum(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Service) Status(ctx context.Context) ([]Status, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	if err := s.store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	applied, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(files))
	for _, f := range files {
		st := Status{Name: f.Name, Checksum: f.Checksum}
		if rec, ok := applied[f.Name]; ok {
			st.Applied = true
			st.AppliedAt = rec.AppliedAt.UTC().Format(time.RFC3339)
			st.ChecksumChanged = rec.Checksum != "" && rec.Checksum != f.Checksum
		}
		out = append(out, st)
	}
	return out, nil
}

// Apply runs every migration not yet recorded and returns the names applied.
// Files already applied are skipped even when their checksum changed; the
// drift is logged and visible through Status.
func (s *Service) Apply(ctx context.Context) ([]string, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	if err := s.store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	applied, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, f := range files {
		if rec, ok := applied[f.Name]; ok {
			if rec.Checksum != "" && rec.Checksum != f.Checksum {
				s.log.Warn("applied migration changed on disk", "name", f.Name)
			}
			continue
		}
		body, err := fs.ReadFile(s.source, path.Join(s.dir, f.Name))
		if err != nil {
			return done, fmt.Errorf("read migration %s: %w", f.Name, err)
		}
		if err := s.store.Apply(ctx, f, string(body), s.nowFunc().UTC()); err != nil {
			return done, fmt.Errorf("apply migration %s: %w", f.Name, err)
		}
		s.log.Info("migration applied", "name", f.Name)
		done = append(done, f.Name)
	}
	return done, nil
}

type pgAppliedStore struct {
	db *sql.DB
}

func (s *pgAppliedStore) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS migration_applied (
	name TEXT PRIMARY KEY,
	checksum TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure migration_applied schema: %w", err)
	}
	return nil
}

func (s *pgAppliedStore) Load(ctx context.Context) (map[string]appliedRecord, error) {
	const q = `SELECT name, checksum, applied_at FROM migration_applied`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query migration state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]appliedRecord)
	for rows.Next() {
		var (
			name string
			rec  appliedRecord
		)
		if err := rows.Scan(&name, &rec.Checksum, &rec.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan migration state: %w", err)
		}
		out[name] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration state: %w", err)
	}
	return out, nil
}

// Apply executes the migration body and records it in one transaction.
func (s *pgAppliedStore) Apply(ctx context.Context, f FileInfo, body string, appliedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	const q = `
INSERT INTO migration_applied (name, checksum, applied_at)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET checksum = EXCLUDED.checksum, applied_at = EXCLUDED.applied_at`
	if _, err := tx.ExecContext(ctx, q, f.Name, f.Checksum, appliedAt); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
