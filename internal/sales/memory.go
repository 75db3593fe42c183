package sales

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryRepository keeps invoices in memory, optionally mirrored to a JSON
// file. It also answers the product and customer usage checks the catalog
// and customer services consult before deleting.
type MemoryRepository struct {
	stateFile string

	mu         sync.RWMutex
	nextID     int64
	nextLineID int64
	invoices   map[int64]Invoice
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID:     1,
		nextLineID: 1,
		invoices:   make(map[int64]Invoice),
	}
}

func NewMemoryRepositoryWithFile(stateFile string) (*MemoryRepository, error) {
	r := NewMemoryRepository()
	r.stateFile = strings.TrimSpace(stateFile)
	if r.stateFile == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	if err := r.loadState(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MemoryRepository) Create(_ context.Context, inv Invoice) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.invoices {
		if existing.Number == inv.Number {
			return Invoice{}, fmt.Errorf("invoice number %s already exists", inv.Number)
		}
	}

	nextLineID := r.nextLineID
	inv.ID = r.nextID
	lines := make([]Line, len(inv.Lines))
	for i, l := range inv.Lines {
		l.ID = nextLineID
		l.InvoiceID = inv.ID
		lines[i] = l
		nextLineID++
	}
	inv.Lines = lines

	r.invoices[inv.ID] = inv
	if err := r.persistLocked(); err != nil {
		delete(r.invoices, inv.ID)
		return Invoice{}, err
	}
	r.nextID++
	r.nextLineID = nextLineID
	return copyInvoice(inv), nil
}

// List returns invoice headers, newest invoice date first.
func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Invoice, error) {
	r.mu.RLock()
	out := make([]Invoice, 0, len(r.invoices))
	for _, inv := range r.invoices {
		if f.CustomerID > 0 && inv.CustomerID != f.CustomerID {
			continue
		}
		inv.Lines = nil
		out = append(out, inv)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].InvoiceDate.Equal(out[j].InvoiceDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].InvoiceDate.After(out[j].InvoiceDate)
	})
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (Invoice, error) {
	r.mu.RLock()
	inv, ok := r.invoices[id]
	r.mu.RUnlock()
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return copyInvoice(inv), nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.invoices[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.invoices, id)
	if err := r.persistLocked(); err != nil {
		r.invoices[id] = prev
		return err
	}
	return nil
}

func (r *MemoryRepository) Summary(_ context.Context) (Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := Summary{TotalSales: decimal.Zero}
	for _, inv := range r.invoices {
		sum.InvoiceCount++
		sum.TotalSales = sum.TotalSales.Add(inv.Total)
	}
	return sum, nil
}

// ProductReferenced reports whether any invoice line bills the product.
func (r *MemoryRepository) ProductReferenced(_ context.Context, productID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inv := range r.invoices {
		for _, l := range inv.Lines {
			if l.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

// CustomerReferenced reports whether any invoice is billed to the customer.
func (r *MemoryRepository) CustomerReferenced(_ context.Context, customerID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inv := range r.invoices {
		if inv.CustomerID == customerID {
			return true, nil
		}
	}
	return false, nil
}

func copyInvoice(inv Invoice) Invoice {
	inv.Lines = append([]Line(nil), inv.Lines...)
	return inv
}

func (r *MemoryRepository) loadState() error {
	b, err := os.ReadFile(r.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read invoice state: %w", err)
	}
	if len(b) == 0 {
		return nil
	}
	var decoded []Invoice
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("decode invoice state: %w", err)
	}
	for _, inv := range decoded {
		if inv.ID <= 0 {
			continue
		}
		r.invoices[inv.ID] = inv
		if inv.ID >= r.nextID {
			r.nextID = inv.ID + 1
		}
		for _, l := range inv.Lines {
			if l.ID >= r.nextLineID {
				r.nextLineID = l.ID + 1
			}
		}
	}
	return nil
}

func (r *MemoryRepository) persistLocked() error {
	if r.stateFile == "" {
		return nil
	}
	out := make([]Invoice, 0, len(r.invoices))
	for _, inv := range r.invoices {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode invoice state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.stateFile), 0o755); err != nil {
		return fmt.Errorf("mkdir invoice state dir: %w", err)
	}
	if err := os.WriteFile(r.stateFile, b, 0o600); err != nil {
		return fmt.Errorf("write invoice state: %w", err)
	}
	return nil
}
