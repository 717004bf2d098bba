package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthfinance/internal/billing/models"
	id "healthfinance/pkg/domain"
	dErrors "healthfinance/pkg/domain-errors"
)

type fakeService struct {
	invoice  *models.Invoice
	payment  *models.Payment
	invoices []*models.Invoice
	payments []*models.Payment
	err      error

	invoiceReq models.InvoiceRequest
	paymentReq models.PaymentRequest
	statusSet  models.InvoiceStatus
}

func (f *fakeService) CreateInvoice(_ context.Context, req models.InvoiceRequest) (*models.Invoice, error) {
	f.invoiceReq = req
	return f.invoice, f.err
}

func (f *fakeService) GetInvoice(context.Context, id.InvoiceID) (*models.Invoice, error) {
	return f.invoice, f.err
}

func (f *fakeService) ListInvoicesByPatient(context.Context, id.PatientID) ([]*models.Invoice, error) {
	return f.invoices, f.err
}

func (f *fakeService) UpdateInvoiceStatus(_ context.Context, _ id.InvoiceID, status models.InvoiceStatus) (*models.Invoice, error) {
	f.statusSet = status
	return f.invoice, f.err
}

func (f *fakeService) ApplyPayment(_ context.Context, req models.PaymentRequest) (*models.Payment, error) {
	f.paymentReq = req
	return f.payment, f.err
}

func (f *fakeService) GetPayment(context.Context, id.PaymentID) (*models.Payment, error) {
	return f.payment, f.err
}

func (f *fakeService) ListPayments(context.Context, id.InvoiceID) ([]*models.Payment, error) {
	return f.payments, f.err
}

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, nil).Register(r)
	return r
}

func TestHandleCreateInvoice(t *testing.T) {
	t.Run("returns 201 with the invoice", func(t *testing.T) {
		svc := &fakeService{invoice: &models.Invoice{
			ID:          id.NewInvoiceID(),
			Status:      models.InvoicePending,
			TotalAmount: 10000,
			AmountDue:   10000,
		}}

		body, _ := json.Marshal(models.InvoiceRequest{
			PatientID: id.NewPatientID(),
			Subtotal:  10000,
		})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/invoices", bytes.NewReader(body))
		newRouter(svc).ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, models.Cents(10000), svc.invoiceReq.Subtotal)

		var got models.Invoice
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, models.InvoicePending, got.Status)
	})

	t.Run("validation failure maps to 400", func(t *testing.T) {
		svc := &fakeService{err: dErrors.New(dErrors.CodeBadRequest, "patientId is required")}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/invoices", bytes.NewReader([]byte("{}")))
		newRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleApplyPayment(t *testing.T) {
	t.Run("returns 201 with the payment", func(t *testing.T) {
		svc := &fakeService{payment: &models.Payment{
			ID:     id.NewPaymentID(),
			Status: models.PaymentCompleted,
			Amount: 6000,
		}}

		body, _ := json.Marshal(models.PaymentRequest{
			TransactionID: "txn-1",
			InvoiceID:     id.NewInvoiceID(),
			Amount:        6000,
			Method:        models.MethodCreditCard,
		})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
		newRouter(svc).ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "txn-1", svc.paymentReq.TransactionID)
	})

	t.Run("unknown invoice maps to 404", func(t *testing.T) {
		svc := &fakeService{err: dErrors.New(dErrors.CodeNotFound, "invoice not found")}

		body, _ := json.Marshal(models.PaymentRequest{TransactionID: "txn-2"})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
		newRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("duplicate transaction maps to 409", func(t *testing.T) {
		svc := &fakeService{err: dErrors.New(dErrors.CodeConflict, "duplicate transaction id")}

		body, _ := json.Marshal(models.PaymentRequest{TransactionID: "txn-3"})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
		newRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHandleUpdateStatus(t *testing.T) {
	svc := &fakeService{invoice: &models.Invoice{ID: id.NewInvoiceID(), Status: models.InvoiceSent}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/invoices/abc/status",
		bytes.NewReader([]byte(`{"status":"SENT"}`)))
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.InvoiceSent, svc.statusSet)
}

func TestHandleGetInvoice(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		nid := id.NewInvoiceID()
		svc := &fakeService{invoice: &models.Invoice{ID: nid}}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/invoices/"+nid.String(), nil)
		newRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not found maps to 404", func(t *testing.T) {
		svc := &fakeService{err: dErrors.New(dErrors.CodeNotFound, "invoice not found")}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/invoices/missing", nil)
		newRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleListPayments(t *testing.T) {
	svc := &fakeService{payments: []*models.Payment{
		{ID: id.NewPaymentID(), Amount: 6000},
		{ID: id.NewPaymentID(), Amount: 4000},
	}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/invoices/abc/payments", nil)
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got []*models.Payment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}
