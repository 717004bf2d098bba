// Package models holds the billing ledger types. All money is integer cents
// so ledger arithmetic is exact.
package models

import (
	"fmt"
	"time"

	id "healthfinance/pkg/domain"
	"healthfinance/pkg/platform/sentinel"
)

// Cents is a money amount in integer cents.
type Cents int64

// Dollars renders the amount as a dollar string for display and claims.
func (c Cents) Dollars() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// InvoiceStatus is the ledger state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "DRAFT"
	InvoiceSent          InvoiceStatus = "SENT"
	InvoicePending       InvoiceStatus = "PENDING"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceOverdue       InvoiceStatus = "OVERDUE"
	InvoiceCancelled     InvoiceStatus = "CANCELLED"
	InvoiceRefunded      InvoiceStatus = "REFUNDED"
)

// IsValid reports whether s is a known invoice status.
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePending, InvoicePaid,
		InvoicePartiallyPaid, InvoiceOverdue, InvoiceCancelled, InvoiceRefunded:
		return true
	}
	return false
}

// Closed reports whether the invoice can no longer accept payments or
// status changes. CANCELLED and REFUNDED invoices are never re-opened.
func (s InvoiceStatus) Closed() bool {
	return s == InvoiceCancelled || s == InvoiceRefunded
}

// PaymentMethod identifies how a payment was made.
type PaymentMethod string

const (
	MethodCash          PaymentMethod = "CASH"
	MethodCreditCard    PaymentMethod = "CREDIT_CARD"
	MethodDebitCard     PaymentMethod = "DEBIT_CARD"
	MethodBankTransfer  PaymentMethod = "BANK_TRANSFER"
	MethodCheck         PaymentMethod = "CHECK"
	MethodInsurance     PaymentMethod = "INSURANCE"
	MethodOnlinePayment PaymentMethod = "ONLINE_PAYMENT"
	MethodMobilePayment PaymentMethod = "MOBILE_PAYMENT"
)

// IsValid reports whether m is a known payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCash, MethodCreditCard, MethodDebitCard, MethodBankTransfer,
		MethodCheck, MethodInsurance, MethodOnlinePayment, MethodMobilePayment:
		return true
	}
	return false
}

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
	PaymentCancelled  PaymentStatus = "CANCELLED"
)

// Invoice is the financial ledger entry for a patient's billed service.
// AmountPaid + AmountDue == TotalAmount holds at all times.
type Invoice struct {
	ID                id.InvoiceID     `json:"id"`
	InvoiceNumber     string           `json:"invoiceNumber"`
	PatientID         id.PatientID     `json:"patientId"`
	AppointmentID     id.AppointmentID `json:"appointmentId,omitempty"`
	InsurancePolicyID id.PolicyID      `json:"insurancePolicyId,omitempty"`
	InsuranceClaimID  id.ClaimID       `json:"insuranceClaimId,omitempty"`

	ServiceDate time.Time  `json:"serviceDate"`
	InvoiceDate time.Time  `json:"invoiceDate"`
	DueDate     *time.Time `json:"dueDate,omitempty"`

	Status InvoiceStatus `json:"status"`

	Subtotal              Cents `json:"subtotal"`
	TaxAmount             Cents `json:"taxAmount"`
	DiscountAmount        Cents `json:"discountAmount"`
	TotalAmount           Cents `json:"totalAmount"`
	InsuranceCoverage     Cents `json:"insuranceCoverage"`
	PatientResponsibility Cents `json:"patientResponsibility"`
	AmountPaid            Cents `json:"amountPaid"`
	AmountDue             Cents `json:"amountDue"`

	Description string `json:"description,omitempty"`
	Notes       string `json:"notes,omitempty"`

	PaidDate  *time.Time `json:"paidDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ApplyPayment credits amount against the invoice and derives the new status.
// An overpayment is carried as a credit: AmountDue goes negative and the
// invoice is PAID. Closed invoices reject payment.
func (inv *Invoice) ApplyPayment(amount Cents, now time.Time) error {
	if amount <= 0 {
		return fmt.Errorf("payment amount must be positive, got %s", amount.Dollars())
	}
	if inv.Status.Closed() {
		return fmt.Errorf("invoice %s is %s: %w", inv.ID, inv.Status, sentinel.ErrInvalidState)
	}

	inv.AmountPaid += amount
	inv.AmountDue = inv.TotalAmount - inv.AmountPaid

	switch {
	case inv.AmountDue <= 0:
		inv.Status = InvoicePaid
		if inv.PaidDate == nil {
			inv.PaidDate = &now
		}
	case inv.AmountPaid > 0:
		inv.Status = InvoicePartiallyPaid
	}
	inv.UpdatedAt = now
	return nil
}

// Payment is a single settlement applied to exactly one invoice.
type Payment struct {
	ID            id.PaymentID  `json:"id"`
	TransactionID string        `json:"transactionId"`
	InvoiceID     id.InvoiceID  `json:"invoiceId"`
	PatientID     id.PatientID  `json:"patientId"`
	PaymentDate   time.Time     `json:"paymentDate"`
	Amount        Cents         `json:"amount"`
	Method        PaymentMethod `json:"paymentMethod"`
	Status        PaymentStatus `json:"status"`

	CardLast4       string `json:"cardLast4,omitempty"`
	CardType        string `json:"cardType,omitempty"`
	CheckNumber     string `json:"checkNumber,omitempty"`
	ReferenceNumber string `json:"referenceNumber,omitempty"`
	Notes           string `json:"notes,omitempty"`

	ProcessedDate *time.Time `json:"processedDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// InvoiceRequest is the caller-facing shape for creating an invoice. When
// TotalAmount is zero it is derived as Subtotal + TaxAmount - DiscountAmount.
type InvoiceRequest struct {
	PatientID         id.PatientID     `json:"patientId"`
	AppointmentID     id.AppointmentID `json:"appointmentId,omitempty"`
	InsurancePolicyID id.PolicyID      `json:"insurancePolicyId,omitempty"`

	ServiceDate time.Time  `json:"serviceDate"`
	DueDate     *time.Time `json:"dueDate,omitempty"`

	Subtotal          Cents `json:"subtotal"`
	TaxAmount         Cents `json:"taxAmount"`
	DiscountAmount    Cents `json:"discountAmount"`
	TotalAmount       Cents `json:"totalAmount,omitempty"`
	InsuranceCoverage Cents `json:"insuranceCoverage,omitempty"`

	Description string `json:"description,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// PaymentRequest is the caller-facing shape for applying a payment.
type PaymentRequest struct {
	TransactionID   string        `json:"transactionId"`
	InvoiceID       id.InvoiceID  `json:"invoiceId"`
	PatientID       id.PatientID  `json:"patientId"`
	Amount          Cents         `json:"amount"`
	Method          PaymentMethod `json:"paymentMethod"`
	CardLast4       string        `json:"cardLast4,omitempty"`
	CardType        string        `json:"cardType,omitempty"`
	CheckNumber     string        `json:"checkNumber,omitempty"`
	ReferenceNumber string        `json:"referenceNumber,omitempty"`
	Notes           string        `json:"notes,omitempty"`
}
