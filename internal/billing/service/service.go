// Package service implements the billing reconciliation engine: invoice
// creation with best-effort insurance claim submission, and atomic payment
// application against the invoice ledger.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"healthfinance/internal/billing/metrics"
	"healthfinance/internal/billing/models"
	"healthfinance/internal/events"
	"healthfinance/internal/insurance"
	"healthfinance/internal/platform/worker"
	id "healthfinance/pkg/domain"
	dErrors "healthfinance/pkg/domain-errors"
	"healthfinance/pkg/platform/sentinel"
)

// InvoiceStore persists invoices. GetForUpdate must lock the invoice row for
// the duration of the surrounding transaction.
type InvoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice) error
	Get(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error)
	GetForUpdate(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error)
	Update(ctx context.Context, inv *models.Invoice) error
	ListByPatient(ctx context.Context, patientID id.PatientID) ([]*models.Invoice, error)
}

// PaymentStore persists payments.
type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	Get(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID id.InvoiceID) ([]*models.Payment, error)
}

// TxRunner executes fn atomically. The payment insert and the invoice update
// inside fn commit or roll back together.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// InsuranceClient is the slice of the insurance service the billing flow
// needs for auto-claim submission.
type InsuranceClient interface {
	ActivePolicy(ctx context.Context, patientID id.PatientID) (*insurance.Policy, error)
	SubmitClaim(ctx context.Context, claim *insurance.Claim) (*insurance.Claim, error)
}

// Publisher emits domain events. Broker failures are absorbed by the
// publisher itself, so a returned error means the event never left the
// process.
type Publisher interface {
	Publish(ctx context.Context, topic string, e *events.Envelope) error
}

// TaskSubmitter runs fire-and-forget background tasks.
type TaskSubmitter interface {
	Submit(name string, task worker.Task) bool
}

// Service is the billing reconciliation engine.
type Service struct {
	invoices  InvoiceStore
	payments  PaymentStore
	txRunner  TxRunner
	insurance InsuranceClient
	publisher Publisher
	tasks     TaskSubmitter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithInsurance enables best-effort claim submission on invoice creation.
func WithInsurance(client InsuranceClient, tasks TaskSubmitter) Option {
	return func(s *Service) {
		s.insurance = client
		s.tasks = tasks
	}
}

// WithPublisher enables domain event emission.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs the billing service.
func New(invoices InvoiceStore, payments PaymentStore, txRunner TxRunner, opts ...Option) (*Service, error) {
	if invoices == nil || payments == nil {
		return nil, errors.New("billing service requires invoice and payment stores")
	}
	if txRunner == nil {
		return nil, errors.New("billing service requires a transaction runner")
	}
	s := &Service{
		invoices: invoices,
		payments: payments,
		txRunner: txRunner,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateInvoice persists a new PENDING invoice and, once the write succeeds,
// hands claim submission to the background pool and emits an InvoiceCreated
// event. Neither side effect can fail the creation.
func (s *Service) CreateInvoice(ctx context.Context, req models.InvoiceRequest) (*models.Invoice, error) {
	if err := validateInvoiceRequest(req); err != nil {
		return nil, err
	}

	now := s.now()
	total := req.TotalAmount
	if total == 0 {
		total = req.Subtotal + req.TaxAmount - req.DiscountAmount
	}

	inv := &models.Invoice{
		ID:                id.NewInvoiceID(),
		InvoiceNumber:     fmt.Sprintf("INV-%d", now.UnixMilli()),
		PatientID:         req.PatientID,
		AppointmentID:     req.AppointmentID,
		InsurancePolicyID: req.InsurancePolicyID,
		ServiceDate:       req.ServiceDate,
		InvoiceDate:       now,
		DueDate:           req.DueDate,
		Status:            models.InvoicePending,
		Subtotal:          req.Subtotal,
		TaxAmount:         req.TaxAmount,
		DiscountAmount:    req.DiscountAmount,
		TotalAmount:       total,
		InsuranceCoverage: req.InsuranceCoverage,
		AmountPaid:        0,
		AmountDue:         total,
		Description:       req.Description,
		Notes:             req.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	inv.PatientResponsibility = total - req.InsuranceCoverage

	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store invoice")
	}
	if s.metrics != nil {
		s.metrics.IncInvoicesCreated()
	}

	s.submitClaimAsync(inv)
	s.publishInvoiceCreated(ctx, inv)

	return inv, nil
}

// ApplyPayment records a payment and updates the invoice ledger in one
// transaction. Both writes commit or roll back together.
func (s *Service) ApplyPayment(ctx context.Context, req models.PaymentRequest) (*models.Payment, error) {
	if err := validatePaymentRequest(req); err != nil {
		return nil, err
	}

	now := s.now()
	payment := &models.Payment{
		ID:              id.NewPaymentID(),
		TransactionID:   req.TransactionID,
		InvoiceID:       req.InvoiceID,
		PatientID:       req.PatientID,
		PaymentDate:     now,
		Amount:          req.Amount,
		Method:          req.Method,
		Status:          models.PaymentCompleted,
		CardLast4:       req.CardLast4,
		CardType:        req.CardType,
		CheckNumber:     req.CheckNumber,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		ProcessedDate:   &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var inv *models.Invoice
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.invoices.GetForUpdate(ctx, req.InvoiceID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeNotFound, "invoice not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invoice")
		}

		if err := inv.ApplyPayment(req.Amount, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "invoice does not accept payments")
			}
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "payment rejected")
		}

		if err := s.payments.Create(ctx, payment); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "duplicate transaction id")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store payment")
		}
		if err := s.invoices.Update(ctx, inv); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update invoice")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncPaymentsApplied()
	}
	s.publishPaymentRecorded(ctx, inv, payment)

	return payment, nil
}

// GetInvoice returns one invoice.
func (s *Service) GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	inv, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "invoice not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invoice")
	}
	return inv, nil
}

// ListInvoicesByPatient returns the patient's invoices, newest first.
func (s *Service) ListInvoicesByPatient(ctx context.Context, patientID id.PatientID) ([]*models.Invoice, error) {
	list, err := s.invoices.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list invoices")
	}
	return list, nil
}

// GetPayment returns one payment.
func (s *Service) GetPayment(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	p, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "payment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payment")
	}
	return p, nil
}

// ListPayments returns all payments applied to one invoice.
func (s *Service) ListPayments(ctx context.Context, invoiceID id.InvoiceID) ([]*models.Payment, error) {
	if _, err := s.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	list, err := s.payments.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list payments")
	}
	return list, nil
}

// UpdateInvoiceStatus sets a non-ledger status (SENT, OVERDUE, CANCELLED,
// REFUNDED). Ledger states PAID and PARTIALLY_PAID are derived by payment
// application only, and a closed invoice is never re-opened.
func (s *Service) UpdateInvoiceStatus(ctx context.Context, invoiceID id.InvoiceID, status models.InvoiceStatus) (*models.Invoice, error) {
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown invoice status")
	}
	if status == models.InvoicePaid || status == models.InvoicePartiallyPaid {
		return nil, dErrors.New(dErrors.CodeBadRequest, "ledger statuses are derived from payments")
	}

	inv, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status.Closed() {
		return nil, dErrors.New(dErrors.CodeConflict, "invoice is closed")
	}

	inv.Status = status
	inv.UpdatedAt = s.now()
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update invoice")
	}
	return inv, nil
}

// CancelInvoice marks the invoice CANCELLED.
func (s *Service) CancelInvoice(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	return s.UpdateInvoiceStatus(ctx, invoiceID, models.InvoiceCancelled)
}

// submitClaimAsync hands claim submission to the worker pool. The invoice
// write has already committed; nothing here can fail it.
func (s *Service) submitClaimAsync(inv *models.Invoice) {
	if s.insurance == nil || s.tasks == nil {
		return
	}

	invoiceID, patientID, amount := inv.ID, inv.PatientID, inv.TotalAmount
	submitted := s.tasks.Submit("insurance-claim", func(ctx context.Context) {
		s.submitClaim(ctx, invoiceID, patientID, amount)
	})
	if !submitted && s.logger != nil {
		s.logger.Warn("claim submission dropped, worker queue full",
			"invoice_id", invoiceID)
	}
}

func (s *Service) submitClaim(ctx context.Context, invoiceID id.InvoiceID, patientID id.PatientID, amount models.Cents) {
	policy, err := s.insurance.ActivePolicy(ctx, patientID)
	if err != nil {
		if s.logger != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				s.logger.InfoContext(ctx, "no active policy, skipping claim",
					"invoice_id", invoiceID, "patient_id", patientID)
			} else {
				s.logger.ErrorContext(ctx, "policy lookup failed",
					"invoice_id", invoiceID, "error", err)
			}
		}
		if s.metrics != nil {
			s.metrics.IncClaimFailures()
		}
		return
	}

	now := s.now()
	claim := &insurance.Claim{
		ClaimNumber:   insurance.NewClaimNumber(now),
		PolicyID:      policy.ID,
		PatientID:     patientID,
		InvoiceID:     invoiceID,
		ClaimedAmount: amount.Dollars(),
		Status:        insurance.ClaimStatusSubmitted,
		SubmittedAt:   now,
	}

	stored, err := s.insurance.SubmitClaim(ctx, claim)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "claim submission failed",
				"invoice_id", invoiceID, "claim_number", claim.ClaimNumber, "error", err)
		}
		if s.metrics != nil {
			s.metrics.IncClaimFailures()
		}
		return
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "insurance claim submitted",
			"invoice_id", invoiceID, "claim_id", stored.ID, "claim_number", stored.ClaimNumber)
	}
	if s.metrics != nil {
		s.metrics.IncClaimsSubmitted()
	}

	inv, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return
	}
	inv.InsuranceClaimID = stored.ID
	inv.UpdatedAt = s.now()
	if err := s.invoices.Update(ctx, inv); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to link claim to invoice",
			"invoice_id", invoiceID, "claim_id", stored.ID, "error", err)
	}
}

func (s *Service) publishInvoiceCreated(ctx context.Context, inv *models.Invoice) {
	if s.publisher == nil {
		return
	}
	payload := events.InvoiceCreated{
		InvoiceID:     inv.ID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		PatientID:     inv.PatientID.String(),
		TotalAmount:   int64(inv.TotalAmount),
	}
	if inv.DueDate != nil {
		payload.DueDate = inv.DueDate.Format("2006-01-02")
	}
	e := events.New(events.TypeInvoiceCreated, inv.ID.String(), payload)
	if err := s.publisher.Publish(ctx, events.TopicPatientEvents, e); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "invoice created event not published",
			"invoice_id", inv.ID, "error", err)
	}
}

func (s *Service) publishPaymentRecorded(ctx context.Context, inv *models.Invoice, p *models.Payment) {
	if s.publisher == nil {
		return
	}
	e := events.New(events.TypePaymentRecorded, inv.ID.String(), events.PaymentRecorded{
		PaymentID:     p.ID.String(),
		TransactionID: p.TransactionID,
		InvoiceID:     inv.ID.String(),
		PatientID:     inv.PatientID.String(),
		Amount:        int64(p.Amount),
		InvoiceStatus: string(inv.Status),
	})
	if err := s.publisher.Publish(ctx, events.TopicPatientEvents, e); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "payment recorded event not published",
			"payment_id", p.ID, "error", err)
	}
}

func validateInvoiceRequest(req models.InvoiceRequest) error {
	switch {
	case req.PatientID.IsNil():
		return dErrors.New(dErrors.CodeBadRequest, "patientId is required")
	case req.Subtotal < 0 || req.TaxAmount < 0 || req.DiscountAmount < 0:
		return dErrors.New(dErrors.CodeBadRequest, "amounts must not be negative")
	case req.TotalAmount < 0:
		return dErrors.New(dErrors.CodeBadRequest, "totalAmount must not be negative")
	case req.TotalAmount == 0 && req.Subtotal+req.TaxAmount-req.DiscountAmount <= 0:
		return dErrors.New(dErrors.CodeBadRequest, "invoice total must be positive")
	case req.ServiceDate.IsZero():
		return dErrors.New(dErrors.CodeBadRequest, "serviceDate is required")
	}
	return nil
}

func validatePaymentRequest(req models.PaymentRequest) error {
	switch {
	case req.TransactionID == "":
		return dErrors.New(dErrors.CodeBadRequest, "transactionId is required")
	case req.InvoiceID.IsNil():
		return dErrors.New(dErrors.CodeBadRequest, "invoiceId is required")
	case req.Amount <= 0:
		return dErrors.New(dErrors.CodeBadRequest, "amount must be positive")
	case !req.Method.IsValid():
		return dErrors.New(dErrors.CodeBadRequest, "unknown payment method")
	}
	return nil
}
