// Package domain holds typed identifiers shared across bounded contexts.
// Wrapping raw strings keeps signatures honest: a PatientID cannot be passed
// where an InvoiceID is expected.
package domain

import "github.com/google/uuid"

type (
	PatientID      string
	DoctorID       string
	AppointmentID  string
	InvoiceID      string
	PaymentID      string
	NotificationID string
	TemplateID     string
	PolicyID       string
	ClaimID        string
)

func NewPatientID() PatientID           { return PatientID(uuid.NewString()) }
func NewDoctorID() DoctorID             { return DoctorID(uuid.NewString()) }
func NewAppointmentID() AppointmentID   { return AppointmentID(uuid.NewString()) }
func NewInvoiceID() InvoiceID           { return InvoiceID(uuid.NewString()) }
func NewPaymentID() PaymentID           { return PaymentID(uuid.NewString()) }
func NewNotificationID() NotificationID { return NotificationID(uuid.NewString()) }
func NewTemplateID() TemplateID         { return TemplateID(uuid.NewString()) }
func NewPolicyID() PolicyID             { return PolicyID(uuid.NewString()) }
func NewClaimID() ClaimID               { return ClaimID(uuid.NewString()) }

func (id PatientID) IsNil() bool      { return id == "" }
func (id DoctorID) IsNil() bool       { return id == "" }
func (id AppointmentID) IsNil() bool  { return id == "" }
func (id InvoiceID) IsNil() bool      { return id == "" }
func (id PaymentID) IsNil() bool      { return id == "" }
func (id NotificationID) IsNil() bool { return id == "" }
func (id TemplateID) IsNil() bool     { return id == "" }
func (id PolicyID) IsNil() bool       { return id == "" }
func (id ClaimID) IsNil() bool        { return id == "" }

func (id PatientID) String() string      { return string(id) }
func (id DoctorID) String() string       { return string(id) }
func (id AppointmentID) String() string  { return string(id) }
func (id InvoiceID) String() string      { return string(id) }
func (id PaymentID) String() string      { return string(id) }
func (id NotificationID) String() string { return string(id) }
func (id TemplateID) String() string     { return string(id) }
func (id PolicyID) String() string       { return string(id) }
func (id ClaimID) String() string        { return string(id) }
