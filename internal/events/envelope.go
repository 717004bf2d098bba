// Package events defines the domain event envelope and the broker publisher.
//
// An envelope wraps an immutable business fact with identity, ordering, and
// tracing metadata. Once published the envelope is never mutated; the log is
// append-only.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event type tags. The tag names the fact's variant and matches the payload
// struct carried in the envelope.
const (
	TypeAppointmentScheduled = "AppointmentScheduled"
	TypeAppointmentCancelled = "AppointmentCancelled"
	TypeAppointmentCompleted = "AppointmentCompleted"
	TypeInvoiceCreated       = "InvoiceCreated"
	TypePaymentRecorded      = "PaymentRecorded"
)

// Metadata carries correlation and provenance for an event. All fields are
// optional; the publisher fills PublishingService and Environment with
// defaults at publish time but never invents correlation or user identity.
type Metadata struct {
	CorrelationID     string `json:"correlationId,omitempty"`
	CausationID       string `json:"causationId,omitempty"`
	UserID            string `json:"userId,omitempty"`
	IPAddress         string `json:"ipAddress,omitempty"`
	UserAgent         string `json:"userAgent,omitempty"`
	PublishingService string `json:"publishingService,omitempty"`
	Environment       string `json:"environment,omitempty"`
}

// Envelope is the versioned wrapper for one aggregate change. AggregateID is
// the broker partition key, so all events for one aggregate land on one
// partition and are observed in publish order.
type Envelope struct {
	EventID     string    `json:"eventId"`
	EventType   string    `json:"eventType"`
	AggregateID string    `json:"aggregateId"`
	Version     int       `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	Metadata    Metadata  `json:"metadata"`

	// Payload holds the variant-specific fields. On the wire they are
	// flattened into the top-level object alongside the envelope fields.
	Payload any `json:"-"`
}

// New wraps a payload in an envelope. EventID, Version, and Timestamp are
// left zero; the publisher fills defaults at publish time.
func New(eventType, aggregateID string, payload any) *Envelope {
	return &Envelope{
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     payload,
	}
}

// fillDefaults stamps identity and ordering fields that the originating
// service left unset. It is called exactly once, before first publish; after
// that the envelope is immutable.
func (e *Envelope) fillDefaults(now time.Time) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.Version == 0 {
		e.Version = 1
	}
}

// MarshalJSON flattens the payload fields into the top-level wire object, per
// the envelope contract consumed by downstream services.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	type base Envelope // shed the method set to avoid recursion
	raw, err := json.Marshal((*base)(e))
	if err != nil {
		return nil, err
	}

	if e.Payload == nil {
		return raw, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}

	payloadRaw, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	var payloadFields map[string]json.RawMessage
	if err := json.Unmarshal(payloadRaw, &payloadFields); err != nil {
		return nil, fmt.Errorf("event payload must be a JSON object: %w", err)
	}
	// Envelope identity fields win on collision; a payload cannot overwrite
	// eventId, aggregateId, or any other wrapper field.
	for k, v := range payloadFields {
		if _, taken := merged[k]; taken {
			continue
		}
		merged[k] = v
	}

	return json.Marshal(merged)
}

// AppointmentScheduled is emitted when an appointment is booked.
type AppointmentScheduled struct {
	AppointmentID   string `json:"appointmentId"`
	PatientID       string `json:"patientId"`
	DoctorID        string `json:"doctorId"`
	AppointmentDate string `json:"appointmentDate"` // yyyy-mm-dd
	AppointmentTime string `json:"appointmentTime"` // hh:mm
	DurationMinutes int    `json:"durationMinutes"`
	Status          string `json:"status"`
	Type            string `json:"type"`
	Reason          string `json:"reason,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// AppointmentCancelled is emitted when an appointment is cancelled.
type AppointmentCancelled struct {
	AppointmentID      string `json:"appointmentId"`
	PatientID          string `json:"patientId"`
	DoctorID           string `json:"doctorId"`
	CancellationReason string `json:"cancellationReason,omitempty"`
	CancelledBy        string `json:"cancelledBy"` // PATIENT, DOCTOR, SYSTEM
	RescheduleRequested bool  `json:"rescheduleRequested"`
}

// AppointmentCompleted is emitted when a visit concludes.
type AppointmentCompleted struct {
	AppointmentID       string         `json:"appointmentId"`
	PatientID           string         `json:"patientId"`
	DoctorID            string         `json:"doctorId"`
	CompletionTime      time.Time      `json:"completionTime"`
	Diagnoses           []string       `json:"diagnoses,omitempty"`
	ProceduresConducted []string       `json:"proceduresConducted,omitempty"`
	VitalsRecorded      map[string]any `json:"vitalsRecorded,omitempty"`
	DoctorNotes         string         `json:"doctorNotes,omitempty"`
	FollowUpRequired    bool           `json:"followUpRequired"`
	FollowUpDays        int            `json:"followUpDays,omitempty"`
}

// InvoiceCreated is emitted after a new invoice is persisted.
type InvoiceCreated struct {
	InvoiceID     string `json:"invoiceId"`
	InvoiceNumber string `json:"invoiceNumber"`
	PatientID     string `json:"patientId"`
	TotalAmount   int64  `json:"totalAmountCents"`
	DueDate       string `json:"dueDate"` // yyyy-mm-dd
}

// PaymentRecorded is emitted after a payment is applied to an invoice.
type PaymentRecorded struct {
	PaymentID     string `json:"paymentId"`
	TransactionID string `json:"transactionId"`
	InvoiceID     string `json:"invoiceId"`
	PatientID     string `json:"patientId"`
	Amount        int64  `json:"amountCents"`
	InvoiceStatus string `json:"invoiceStatus"`
}
