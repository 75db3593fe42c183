package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"vtsecommerce/salesadmin/internal/validation"
)

var (
	ErrNotFound        = errors.New("catalog record not found")
	ErrInvalidInput    = errors.New("invalid catalog input")
	ErrInUse           = errors.New("catalog record is still referenced")
	ErrUnknownCategory = fmt.Errorf("%w: category does not exist", ErrInvalidInput)
)

// Service keeps categories in memory, optionally mirrored to a JSON file.
type Service struct {
	stateFile string

	mu         sync.RWMutex
	nextID     int64
	categories map[int64]Category

	// products is set when a ProductService is built on top of this one.
	products *ProductService
}

func NewService() *Service {
	return &Service{
		nextID:     1,
		categories: make(map[int64]Category),
	}
}

func NewServiceWithFile(stateFile string) (*Service, error) {
	s := NewService()
	s.stateFile = strings.TrimSpace(stateFile)
	if s.stateFile == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	if err := s.loadState(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) Create(_ context.Context, in Input) (Category, error) {
	in, err := normalize(in)
	if err != nil {
		return Category{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := Category{
		ID:          s.nextID,
		Name:        in.Name,
		Description: in.Description,
		IsActive:    in.active(),
	}
	s.categories[c.ID] = c
	if err := s.persistLocked(); err != nil {
		delete(s.categories, c.ID)
		return Category{}, err
	}
	s.nextID++
	return c, nil
}

func (s *Service) List(_ context.Context) ([]Category, error) {
	s.mu.RLock()
	out := make([]Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Service) Get(_ context.Context, id int64) (Category, error) {
	s.mu.RLock()
	c, ok := s.categories[id]
	s.mu.RUnlock()
	if !ok {
		return Category{}, ErrNotFound
	}
	return c, nil
}

func (s *Service) Update(_ context.Context, id int64, in Input) (Category, error) {
	in, err := normalize(in)
	if err != nil {
		return Category{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.categories[id]
	if !ok {
		return Category{}, ErrNotFound
	}
	updated := Category{ID: id, Name: in.Name, Description: in.Description, IsActive: in.active()}
	s.categories[id] = updated
	if err := s.persistLocked(); err != nil {
		s.categories[id] = prev
		return Category{}, err
	}
	return updated, nil
}

func (s *Service) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.categories[id]
	if !ok {
		return ErrNotFound
	}
	if s.products != nil && s.products.hasCategory(id) {
		return fmt.Errorf("%w: category %d has products", ErrInUse, id)
	}
	delete(s.categories, id)
	if err := s.persistLocked(); err != nil {
		s.categories[id] = prev
		return err
	}
	return nil
}

func (s *Service) loadState() error {
	b, err := os.ReadFile(s.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read category state: %w", err)
	}
	if len(b) == 0 {
		return nil
	}
	var decoded []Category
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("decode category state: %w", err)
	}
	for _, c := range decoded {
		if c.ID <= 0 {
			continue
		}
		s.categories[c.ID] = c
		if c.ID >= s.nextID {
			s.nextID = c.ID + 1
		}
	}
	return nil
}

func (s *Service) persistLocked() error {
	if s.stateFile == "" {
		return nil
	}
	out := make([]Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode category state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0o755); err != nil {
		return fmt.Errorf("mkdir category state dir: %w", err)
	}
	if err := os.WriteFile(s.stateFile, b, 0o644); err != nil {
		return fmt.Errorf("write category state: %w", err)
	}
	return nil
}

func normalize(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return in, nil
}
