package customer

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
	ErrNotFound     = errors.New("customer not found")
	ErrInvalidInput = errors.New("invalid customer input")
	ErrInUse        = errors.New("customer has invoices")
)

// UsageFunc reports whether a customer is referenced by other records.
type UsageFunc func(ctx context.Context, id int64) (bool, error)

// Service keeps customers in memory, optionally mirrored to a JSON file.
type Service struct {
	stateFile string

	mu        sync.RWMutex
	nextID    int64
	customers map[int64]Customer
	inUse     UsageFunc
}

func NewService() *Service {
	return &Service{
		nextID:    1,
		customers: make(map[int64]Customer),
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

func (s *Service) SetUsageCheck(fn UsageFunc) {
	s.mu.Lock()
	s.inUse = fn
	s.mu.Unlock()
}

func (s *Service) Create(_ context.Context, in Input) (Customer, error) {
	in, err := normalize(in)
	if err != nil {
		return Customer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := in.customer(s.nextID)
	s.customers[c.ID] = c
	if err := s.persistLocked(); err != nil {
		delete(s.customers, c.ID)
		return Customer{}, err
	}
	s.nextID++
	return c, nil
}

func (s *Service) List(_ context.Context, f Filter) ([]Customer, error) {
	s.mu.RLock()
	out := make([]Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if f.ActiveOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Service) Get(_ context.Context, id int64) (Customer, error) {
	s.mu.RLock()
	c, ok := s.customers[id]
	s.mu.RUnlock()
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (s *Service) Update(_ context.Context, id int64, in Input) (Customer, error) {
	in, err := normalize(in)
	if err != nil {
		return Customer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	updated := in.customer(id)
	s.customers[id] = updated
	if err := s.persistLocked(); err != nil {
		s.customers[id] = prev
		return Customer{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	s.mu.RLock()
	_, ok := s.customers[id]
	inUse := s.inUse
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if inUse != nil {
		used, err := inUse(ctx, id)
		if err != nil {
			return fmt.Errorf("check customer usage: %w", err)
		}
		if used {
			return ErrInUse
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.customers[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.customers, id)
	if err := s.persistLocked(); err != nil {
		s.customers[id] = prev
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
		return fmt.Errorf("read customer state: %w", err)
	}
	if len(b) == 0 {
		return nil
	}
	var decoded []Customer
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("decode customer state: %w", err)
	}
	for _, c := range decoded {
		if c.ID <= 0 {
			continue
		}
		s.customers[c.ID] = c
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
	out := make([]Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode customer state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0o755); err != nil {
		return fmt.Errorf("mkdir customer state dir: %w", err)
	}
	if err := os.WriteFile(s.stateFile, b, 0o600); err != nil {
		return fmt.Errorf("write customer state: %w", err)
	}
	return nil
}

func normalize(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := validation.Struct(in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return in, nil
}
