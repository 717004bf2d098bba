package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"healthfinance/internal/billing/models"
	id "healthfinance/pkg/domain"
	"healthfinance/pkg/platform/sentinel"
	"healthfinance/pkg/platform/tx"
)

// querier is the subset of *sql.DB and *sql.Tx the stores use. Calls pick
// the context-carried transaction when one is present so the payment insert
// and invoice update share it.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func pick(ctx context.Context, db *sql.DB) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return db
}

// uniqueViolation is the postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// InvoicePostgres persists invoices in PostgreSQL.
type InvoicePostgres struct {
	db *sql.DB
}

// NewInvoicePostgres constructs a PostgreSQL-backed invoice store.
func NewInvoicePostgres(db *sql.DB) *InvoicePostgres {
	return &InvoicePostgres{db: db}
}

const invoiceColumns = `
	id, invoice_number, patient_id, appointment_id, insurance_policy_id,
	insurance_claim_id, service_date, invoice_date, due_date, status,
	subtotal, tax_amount, discount_amount, total_amount, insurance_coverage,
	patient_responsibility, amount_paid, amount_due, description, notes,
	paid_date, created_at, updated_at
`

func (s *InvoicePostgres) Create(ctx context.Context, inv *models.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err := pick(ctx, s.db).ExecContext(ctx, query,
		inv.ID, inv.InvoiceNumber, inv.PatientID, nullable(inv.AppointmentID.String()),
		nullable(inv.InsurancePolicyID.String()), nullable(inv.InsuranceClaimID.String()),
		inv.ServiceDate, inv.InvoiceDate, inv.DueDate, inv.Status,
		inv.Subtotal, inv.TaxAmount, inv.DiscountAmount, inv.TotalAmount,
		inv.InsuranceCoverage, inv.PatientResponsibility, inv.AmountPaid, inv.AmountDue,
		nullable(inv.Description), nullable(inv.Notes), inv.PaidDate, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (s *InvoicePostgres) Get(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return s.getOne(ctx, query, invoiceID)
}

// GetForUpdate locks the invoice row until the surrounding transaction ends,
// serializing concurrent payment application per invoice.
func (s *InvoicePostgres) GetForUpdate(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`
	return s.getOne(ctx, query, invoiceID)
}

func (s *InvoicePostgres) getOne(ctx context.Context, query string, invoiceID id.InvoiceID) (*models.Invoice, error) {
	inv, err := scanInvoice(pick(ctx, s.db).QueryRowContext(ctx, query, invoiceID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (s *InvoicePostgres) Update(ctx context.Context, inv *models.Invoice) error {
	query := `
		UPDATE invoices
		SET insurance_claim_id = $2, status = $3, amount_paid = $4,
		    amount_due = $5, paid_date = $6, notes = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := pick(ctx, s.db).ExecContext(ctx, query,
		inv.ID, nullable(inv.InsuranceClaimID.String()), inv.Status,
		inv.AmountPaid, inv.AmountDue, inv.PaidDate, nullable(inv.Notes), inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *InvoicePostgres) ListByPatient(ctx context.Context, patientID id.PatientID) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE patient_id = $1 ORDER BY created_at DESC`
	rows, err := pick(ctx, s.db).QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("list invoices: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var (
		inv                              models.Invoice
		appointmentID, policyID, claimID sql.NullString
		description, notes               sql.NullString
		dueDate, paidDate                sql.NullTime
	)
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.PatientID, &appointmentID, &policyID,
		&claimID, &inv.ServiceDate, &inv.InvoiceDate, &dueDate, &inv.Status,
		&inv.Subtotal, &inv.TaxAmount, &inv.DiscountAmount, &inv.TotalAmount,
		&inv.InsuranceCoverage, &inv.PatientResponsibility, &inv.AmountPaid, &inv.AmountDue,
		&description, &notes, &paidDate, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.AppointmentID = id.AppointmentID(appointmentID.String)
	inv.InsurancePolicyID = id.PolicyID(policyID.String)
	inv.InsuranceClaimID = id.ClaimID(claimID.String)
	inv.Description = description.String
	inv.Notes = notes.String
	if dueDate.Valid {
		inv.DueDate = &dueDate.Time
	}
	if paidDate.Valid {
		inv.PaidDate = &paidDate.Time
	}
	return &inv, nil
}

// PaymentPostgres persists payments in PostgreSQL.
type PaymentPostgres struct {
	db *sql.DB
}

// NewPaymentPostgres constructs a PostgreSQL-backed payment store.
func NewPaymentPostgres(db *sql.DB) *PaymentPostgres {
	return &PaymentPostgres{db: db}
}

const paymentColumns = `
	id, transaction_id, invoice_id, patient_id, payment_date, amount,
	payment_method, status, card_last4, card_type, check_number,
	reference_number, notes, processed_date, created_at, updated_at
`

func (s *PaymentPostgres) Create(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := pick(ctx, s.db).ExecContext(ctx, query,
		p.ID, p.TransactionID, p.InvoiceID, p.PatientID, p.PaymentDate, p.Amount,
		p.Method, p.Status, nullable(p.CardLast4), nullable(p.CardType), nullable(p.CheckNumber),
		nullable(p.ReferenceNumber), nullable(p.Notes), p.ProcessedDate, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PaymentPostgres) Get(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(pick(ctx, s.db).QueryRowContext(ctx, query, paymentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (s *PaymentPostgres) ListByInvoice(ctx context.Context, invoiceID id.InvoiceID) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = $1 ORDER BY created_at`
	rows, err := pick(ctx, s.db).QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p                                     models.Payment
		cardLast4, cardType, checkNum, refNum sql.NullString
		notes                                 sql.NullString
		processed                             sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.TransactionID, &p.InvoiceID, &p.PatientID, &p.PaymentDate, &p.Amount,
		&p.Method, &p.Status, &cardLast4, &cardType, &checkNum,
		&refNum, &notes, &processed, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.CardLast4 = cardLast4.String
	p.CardType = cardType.String
	p.CheckNumber = checkNum.String
	p.ReferenceNumber = refNum.String
	p.Notes = notes.String
	if processed.Valid {
		p.ProcessedDate = &processed.Time
	}
	return &p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
