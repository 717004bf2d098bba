// Package handler wires billing endpoints to the reconciliation engine.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"healthfinance/internal/billing/models"
	id "healthfinance/pkg/domain"
	dErrors "healthfinance/pkg/domain-errors"
	"healthfinance/pkg/platform/httputil"
	"healthfinance/pkg/requestcontext"
)

// Service is the billing surface the transport needs.
type Service interface {
	CreateInvoice(ctx context.Context, req models.InvoiceRequest) (*models.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error)
	ListInvoicesByPatient(ctx context.Context, patientID id.PatientID) ([]*models.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, invoiceID id.InvoiceID, status models.InvoiceStatus) (*models.Invoice, error)
	ApplyPayment(ctx context.Context, req models.PaymentRequest) (*models.Payment, error)
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	ListPayments(ctx context.Context, invoiceID id.InvoiceID) ([]*models.Payment, error)
}

// Handler exposes the billing reconciliation engine over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a billing handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts billing endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/invoices", h.handleCreateInvoice)
	r.Get("/invoices/{id}", h.handleGetInvoice)
	r.Put("/invoices/{id}/status", h.handleUpdateStatus)
	r.Get("/invoices/{id}/payments", h.handleListPayments)
	r.Get("/patients/{id}/invoices", h.handleListByPatient)
	r.Post("/payments", h.handleApplyPayment)
	r.Get("/payments/{id}", h.handleGetPayment)
}

func (h *Handler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[models.InvoiceRequest](w, r, h.logger)
	if !ok {
		return
	}

	inv, err := h.service.CreateInvoice(ctx, req)
	if err != nil {
		h.logError(ctx, "invoice create failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, inv)
}

func (h *Handler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	inv, err := h.service.GetInvoice(ctx, id.InvoiceID(chi.URLParam(r, "id")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, inv)
}

type statusUpdate struct {
	Status models.InvoiceStatus `json:"status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[statusUpdate](w, r, h.logger)
	if !ok {
		return
	}

	inv, err := h.service.UpdateInvoiceStatus(ctx, id.InvoiceID(chi.URLParam(r, "id")), req.Status)
	if err != nil {
		h.logError(ctx, "invoice status update failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, inv)
}

func (h *Handler) handleListByPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.service.ListInvoicesByPatient(ctx, id.PatientID(chi.URLParam(r, "id")))
	if err != nil {
		h.logError(ctx, "invoice list failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleApplyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[models.PaymentRequest](w, r, h.logger)
	if !ok {
		return
	}

	p, err := h.service.ApplyPayment(ctx, req)
	if err != nil {
		h.logError(ctx, "payment apply failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := h.service.GetPayment(ctx, id.PaymentID(chi.URLParam(r, "id")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.service.ListPayments(ctx, id.InvoiceID(chi.URLParam(r, "id")))
	if err != nil {
		h.logError(ctx, "payment list failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if h.logger == nil {
		return
	}
	if dErrors.CodeOf(err) == dErrors.CodeNotFound {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
