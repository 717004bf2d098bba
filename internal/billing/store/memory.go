// Package store provides invoice and payment persistence: an in-memory
// implementation for tests and a PostgreSQL implementation for production.
package store

import (
	"context"
	"sort"
	"sync"

	"healthfinance/internal/billing/models"
	id "healthfinance/pkg/domain"
	"healthfinance/pkg/platform/sentinel"
)

// InvoiceMemory is a mutex-guarded in-memory invoice store.
type InvoiceMemory struct {
	mu       sync.RWMutex
	invoices map[id.InvoiceID]*models.Invoice
}

// NewInvoiceMemory creates an empty in-memory invoice store.
func NewInvoiceMemory() *InvoiceMemory {
	return &InvoiceMemory{invoices: make(map[id.InvoiceID]*models.Invoice)}
}

func (s *InvoiceMemory) Create(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.invoices[inv.ID]; exists {
		return sentinel.ErrConflict
	}
	s.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (s *InvoiceMemory) Get(_ context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[invoiceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneInvoice(inv), nil
}

// GetForUpdate behaves like Get; serialization is provided by the MemoryTx
// runner's lock, which the caller holds for the whole transaction.
func (s *InvoiceMemory) GetForUpdate(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	return s.Get(ctx, invoiceID)
}

func (s *InvoiceMemory) Update(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.invoices[inv.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (s *InvoiceMemory) ListByPatient(_ context.Context, patientID id.PatientID) ([]*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Invoice
	for _, inv := range s.invoices {
		if inv.PatientID == patientID {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneInvoice(inv *models.Invoice) *models.Invoice {
	c := *inv
	return &c
}

// PaymentMemory is a mutex-guarded in-memory payment store.
type PaymentMemory struct {
	mu       sync.RWMutex
	payments map[id.PaymentID]*models.Payment
	byTxn    map[string]id.PaymentID
}

// NewPaymentMemory creates an empty in-memory payment store.
func NewPaymentMemory() *PaymentMemory {
	return &PaymentMemory{
		payments: make(map[id.PaymentID]*models.Payment),
		byTxn:    make(map[string]id.PaymentID),
	}
}

func (s *PaymentMemory) Create(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[p.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byTxn[p.TransactionID]; exists {
		return sentinel.ErrConflict
	}
	s.payments[p.ID] = clonePayment(p)
	s.byTxn[p.TransactionID] = p.ID
	return nil
}

func (s *PaymentMemory) Get(_ context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePayment(p), nil
}

func (s *PaymentMemory) ListByInvoice(_ context.Context, invoiceID id.InvoiceID) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Payment
	for _, p := range s.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func clonePayment(p *models.Payment) *models.Payment {
	c := *p
	return &c
}

// MemoryTx serializes ledger transactions with a coarse lock. Good enough
// for tests and single-process runs; postgres gets row-level locking instead.
type MemoryTx struct {
	mu sync.Mutex
}

// NewMemoryTx creates a lock-based transaction runner.
func NewMemoryTx() *MemoryTx {
	return &MemoryTx{}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
