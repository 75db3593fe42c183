package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"vtsecommerce/salesadmin/internal/catalog"
	"vtsecommerce/salesadmin/internal/customer"
	"vtsecommerce/salesadmin/internal/validation"
)

var (
	ErrNotFound        = errors.New("invoice not found")
	ErrInvalidInput    = errors.New("invalid invoice input")
	ErrUnknownCustomer = fmt.Errorf("%w: customer does not exist or is inactive", ErrInvalidInput)
)

// Repository persists invoices. Create stores the header and every line
// together or not at all.
type Repository interface {
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	List(ctx context.Context, f Filter) ([]Invoice, error)
	Get(ctx context.Context, id int64) (Invoice, error)
	Delete(ctx context.Context, id int64) error
	Summary(ctx context.Context) (Summary, error)
}

type ProductReader interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
}

type CustomerReader interface {
	Get(ctx context.Context, id int64) (customer.Customer, error)
}

type ServiceConfig struct {
	Products  ProductReader
	Customers CustomerReader
	Logger    *slog.Logger
}

type Service struct {
	repo      Repository
	products  ProductReader
	customers CustomerReader
	log       *slog.Logger
	nowFunc   func() time.Time
	numberFn  func(time.Time) string
}

func NewService(repo Repository, cfg ServiceConfig) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("invoice repository is required")
	}
	if cfg.Products == nil {
		return nil, fmt.Errorf("product reader is required")
	}
	if cfg.Customers == nil {
		return nil, fmt.Errorf("customer reader is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		products:  cfg.Products,
		customers: cfg.Customers,
		log:       logger,
		nowFunc:   time.Now,
		numberFn:  invoiceNumber,
	}, nil
}

// invoiceNumber is INV-<timestamp>-<8 hex>; the suffix keeps two invoices
// posted in the same second apart.
func invoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "INV-" + now.UTC().Format("20060102150405") + "-" + suffix
}

// Create prices and stores a new invoice billed by createdBy. The customer
// and every product must exist and be active.
func (s *Service) Create(ctx context.Context, in CreateInput, createdBy int64) (Invoice, error) {
	if createdBy <= 0 {
		return Invoice{}, fmt.Errorf("%w: created_by is required", ErrInvalidInput)
	}
	if err := validation.Struct(in); err != nil {
		return Invoice{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	c, err := s.customers.Get(ctx, in.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return Invoice{}, ErrUnknownCustomer
		}
		return Invoice{}, fmt.Errorf("load customer: %w", err)
	}
	if !c.IsActive {
		return Invoice{}, ErrUnknownCustomer
	}

	products := make(map[int64]pricedProduct, len(in.Lines))
	for _, li := range in.Lines {
		if _, seen := products[li.ProductID]; seen {
			continue
		}
		p, err := s.products.Get(ctx, li.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				continue
			}
			return Invoice{}, fmt.Errorf("load product %d: %w", li.ProductID, err)
		}
		if !p.IsActive {
			continue
		}
		products[li.ProductID] = pricedProduct{Name: p.Name, SellingPrice: p.SellingPrice}
	}

	now := s.nowFunc().UTC()
	date := now
	if in.InvoiceDate != nil && !in.InvoiceDate.IsZero() {
		date = in.InvoiceDate.UTC()
	}
	inv, err := price(in, products, draft{
		customerID: c.ID,
		date:       date,
		createdBy:  createdBy,
		number:     s.numberFn(now),
		now:        now,
	})
	if err != nil {
		return Invoice{}, err
	}

	stored, err := s.repo.Create(ctx, inv)
	if err != nil {
		return Invoice{}, err
	}
	s.log.Info("invoice created",
		slog.Int64("invoice_id", stored.ID),
		slog.String("invoice_number", stored.Number),
		slog.Int64("customer_id", stored.CustomerID),
		slog.Int("lines", len(stored.Lines)),
		slog.String("total", stored.Total.StringFixed(2)),
	)
	return stored, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Invoice, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	if id <= 0 {
		return Invoice{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("invoice deleted", slog.Int64("invoice_id", id))
	return nil
}

// Summary reports the invoice count and the sum of invoice totals.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	return s.repo.Summary(ctx)
}
