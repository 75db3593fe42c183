package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// UsageFunc reports whether a record is referenced elsewhere and must not be
// deleted.
type UsageFunc func(ctx context.Context, id int64) (bool, error)

// ProductService keeps products in memory next to a category Service,
// optionally mirrored to a JSON file. Deleting a category that still has
// products fails with ErrInUse.
type ProductService struct {
	categories *Service
	stateFile  string

	mu       sync.RWMutex
	nextID   int64
	products map[int64]Product
	inUse    UsageFunc
}

func NewProductService(categories *Service) (*ProductService, error) {
	if categories == nil {
		return nil, fmt.Errorf("category service is required")
	}
	s := &ProductService{
		categories: categories,
		nextID:     1,
		products:   make(map[int64]Product),
	}
	categories.mu.Lock()
	categories.products = s
	categories.mu.Unlock()
	return s, nil
}

func NewProductServiceWithFile(categories *Service, stateFile string) (*ProductService, error) {
	stateFile = strings.TrimSpace(stateFile)
	if stateFile == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	s, err := NewProductService(categories)
	if err != nil {
		return nil, err
	}
	s.stateFile = stateFile
	if err := s.loadState(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetUsageCheck installs the check Delete consults before removing a product.
func (s *ProductService) SetUsageCheck(fn UsageFunc) {
	s.mu.Lock()
	s.inUse = fn
	s.mu.Unlock()
}

func (s *ProductService) Create(ctx context.Context, in ProductInput) (Product, error) {
	in, err := normalizeProduct(in)
	if err != nil {
		return Product{}, err
	}
	if err := s.requireCategory(ctx, in.CategoryID); err != nil {
		return Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := in.product(s.nextID)
	s.products[p.ID] = p
	if err := s.persistLocked(); err != nil {
		delete(s.products, p.ID)
		return Product{}, err
	}
	s.nextID++
	return p, nil
}

func (s *ProductService) List(_ context.Context, f ProductFilter) ([]Product, error) {
	s.mu.RLock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if f.matches(p) {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()

	sortProducts(out)
	return out, nil
}

func (s *ProductService) Get(_ context.Context, id int64) (Product, error) {
	s.mu.RLock()
	p, ok := s.products[id]
	s.mu.RUnlock()
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, id int64, in ProductInput) (Product, error) {
	in, err := normalizeProduct(in)
	if err != nil {
		return Product{}, err
	}
	if err := s.requireCategory(ctx, in.CategoryID); err != nil {
		return Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	updated := in.product(id)
	s.products[id] = updated
	if err := s.persistLocked(); err != nil {
		s.products[id] = prev
		return Product{}, err
	}
	return updated, nil
}

func (s *ProductService) Delete(ctx context.Context, id int64) error {
	s.mu.RLock()
	_, ok := s.products[id]
	inUse := s.inUse
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if inUse != nil {
		used, err := inUse(ctx, id)
		if err != nil {
			return fmt.Errorf("check product usage: %w", err)
		}
		if used {
			return fmt.Errorf("%w: product %d is on an invoice", ErrInUse, id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.products[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.products, id)
	if err := s.persistLocked(); err != nil {
		s.products[id] = prev
		return err
	}
	return nil
}

func (s *ProductService) requireCategory(ctx context.Context, id int64) error {
	if _, err := s.categories.Get(ctx, id); err != nil {
		return ErrUnknownCategory
	}
	return nil
}

func (s *ProductService) hasCategory(categoryID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.CategoryID == categoryID {
			return true
		}
	}
	return false
}

func (s *ProductService) loadState() error {
	b, err := os.ReadFile(s.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read product state: %w", err)
	}
	if len(b) == 0 {
		return nil
	}
	var decoded []Product
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("decode product state: %w", err)
	}
	for _, p := range decoded {
		if p.ID <= 0 {
			continue
		}
		s.products[p.ID] = p
		if p.ID >= s.nextID {
			s.nextID = p.ID + 1
		}
	}
	return nil
}

func (s *ProductService) persistLocked() error {
	if s.stateFile == "" {
		return nil
	}
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode product state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0o755); err != nil {
		return fmt.Errorf("mkdir product state dir: %w", err)
	}
	if err := os.WriteFile(s.stateFile, b, 0o644); err != nil {
		return fmt.Errorf("write product state: %w", err)
	}
	return nil
}

func sortProducts(out []Product) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
}
