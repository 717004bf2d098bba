package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthfinance/internal/billing/models"
	id "healthfinance/pkg/domain"
	"healthfinance/pkg/platform/sentinel"
)

func TestInvoiceMemory(t *testing.T) {
	ctx := context.Background()
	s := NewInvoiceMemory()

	inv := &models.Invoice{
		ID:          id.NewInvoiceID(),
		PatientID:   id.NewPatientID(),
		Status:      models.InvoicePending,
		TotalAmount: 10000,
		AmountDue:   10000,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.Create(ctx, inv))

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := s.Get(ctx, inv.ID)
		require.NoError(t, err)
		got.AmountPaid = 9999

		again, err := s.Get(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, models.Cents(0), again.AmountPaid)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		assert.ErrorIs(t, s.Create(ctx, inv), sentinel.ErrConflict)
	})

	t.Run("update of unknown invoice is not found", func(t *testing.T) {
		missing := &models.Invoice{ID: id.NewInvoiceID()}
		assert.ErrorIs(t, s.Update(ctx, missing), sentinel.ErrNotFound)
	})

	t.Run("list by patient is newest first", func(t *testing.T) {
		patientID := id.NewPatientID()
		older := &models.Invoice{ID: id.NewInvoiceID(), PatientID: patientID, CreatedAt: time.Now().UTC().Add(-time.Hour)}
		newer := &models.Invoice{ID: id.NewInvoiceID(), PatientID: patientID, CreatedAt: time.Now().UTC()}
		require.NoError(t, s.Create(ctx, older))
		require.NoError(t, s.Create(ctx, newer))

		list, err := s.ListByPatient(ctx, patientID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
	})
}

func TestPaymentMemory(t *testing.T) {
	ctx := context.Background()
	s := NewPaymentMemory()
	invoiceID := id.NewInvoiceID()

	p := &models.Payment{
		ID:            id.NewPaymentID(),
		TransactionID: "txn-1",
		InvoiceID:     invoiceID,
		Amount:        6000,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.Create(ctx, p))

	t.Run("duplicate transaction id conflicts", func(t *testing.T) {
		dup := &models.Payment{ID: id.NewPaymentID(), TransactionID: "txn-1", InvoiceID: invoiceID}
		assert.ErrorIs(t, s.Create(ctx, dup), sentinel.ErrConflict)
	})

	t.Run("list by invoice is oldest first", func(t *testing.T) {
		second := &models.Payment{
			ID:            id.NewPaymentID(),
			TransactionID: "txn-2",
			InvoiceID:     invoiceID,
			Amount:        4000,
			CreatedAt:     time.Now().UTC().Add(time.Minute),
		}
		require.NoError(t, s.Create(ctx, second))

		list, err := s.ListByInvoice(ctx, invoiceID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, p.ID, list[0].ID)
		assert.Equal(t, second.ID, list[1].ID)
	})
}

func TestMemoryTx(t *testing.T) {
	runner := NewMemoryTx()

	t.Run("runs the function", func(t *testing.T) {
		ran := false
		require.NoError(t, runner.RunInTx(context.Background(), func(ctx context.Context) error {
			ran = true
			return nil
		}))
		assert.True(t, ran)
	})

	t.Run("cancelled context short-circuits", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			t.Fatal("must not run")
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
