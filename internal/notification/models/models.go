// Package models defines notification records, templates, and their enums.
package models

import (
	"time"

	id "healthfinance/pkg/domain"
)

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelPush  Channel = "PUSH"
	ChannelInApp Channel = "IN_APP"
)

// IsValid reports whether the channel is a known delivery medium.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

// Status of a notification. Transitions are PENDING→SENT, PENDING→FAILED,
// and FAILED→PENDING on explicit resend. SENT is terminal.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Type classifies what the notification is about.
type Type string

const (
	TypeAppointmentReminder     Type = "APPOINTMENT_REMINDER"
	TypeAppointmentConfirmation Type = "APPOINTMENT_CONFIRMATION"
	TypeAppointmentCancellation Type = "APPOINTMENT_CANCELLATION"
	TypePaymentReceipt          Type = "PAYMENT_RECEIPT"
	TypeInvoiceDue              Type = "INVOICE_DUE"
	TypePrescriptionReady       Type = "PRESCRIPTION_READY"
	TypeLabResultsAvailable     Type = "LAB_RESULTS_AVAILABLE"
	TypeGeneral                 Type = "GENERAL"
)

// Notification is one request to deliver a message through one channel.
// RetryCount increments only when a send attempt fails.
type Notification struct {
	ID             id.NotificationID `json:"id"`
	RecipientID    string            `json:"recipientId"`
	RecipientEmail string            `json:"recipientEmail"`
	RecipientPhone string            `json:"recipientPhone,omitempty"`
	RecipientName  string            `json:"recipientName,omitempty"`

	Type    Type    `json:"notificationType"`
	Channel Channel `json:"channel"`
	Status  Status  `json:"status"`

	Subject     string `json:"subject"`
	Message     string `json:"message"`
	HTMLContent string `json:"htmlContent,omitempty"`

	RelatedEntityID   string `json:"relatedEntityId,omitempty"`
	RelatedEntityType string `json:"relatedEntityType,omitempty"`

	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`

	ErrorMessage string `json:"errorMessage,omitempty"`
	RetryCount   int    `json:"retryCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DueAt reports whether the notification should be dispatched at the given
// time: either unscheduled or scheduled at/before now.
func (n *Notification) DueAt(now time.Time) bool {
	return n.ScheduledAt == nil || !n.ScheduledAt.After(now)
}

// Template is named, channel-specific content with {{variable}} placeholders
// in subject, body, and optional html body.
type Template struct {
	ID           id.TemplateID `json:"id"`
	TemplateName string        `json:"templateName"`
	Type         Type          `json:"notificationType"`
	Channel      Channel       `json:"channel"`
	Subject      string        `json:"subject"`
	Body         string        `json:"body"`
	HTMLBody     string        `json:"htmlBody,omitempty"`
	Active       bool          `json:"isActive"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Request is the caller-facing shape for creating a notification. When
// TemplateName is set, subject/message/html are resolved from the template
// with TemplateVariables substituted.
type Request struct {
	RecipientID    string `json:"recipientId"`
	RecipientEmail string `json:"recipientEmail"`
	RecipientPhone string `json:"recipientPhone,omitempty"`
	RecipientName  string `json:"recipientName,omitempty"`

	Type    Type    `json:"notificationType"`
	Channel Channel `json:"channel"`

	Subject     string `json:"subject"`
	Message     string `json:"message"`
	HTMLContent string `json:"htmlContent,omitempty"`

	RelatedEntityID   string `json:"relatedEntityId,omitempty"`
	RelatedEntityType string `json:"relatedEntityType,omitempty"`

	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`

	TemplateName      string            `json:"templateName,omitempty"`
	TemplateVariables map[string]string `json:"templateVariables,omitempty"`
}

// BulkRecipient is one addressee of a bulk request.
type BulkRecipient struct {
	RecipientID    string `json:"recipientId"`
	RecipientEmail string `json:"recipientEmail"`
	RecipientPhone string `json:"recipientPhone,omitempty"`
	RecipientName  string `json:"recipientName,omitempty"`
}

// BulkRequest fans one message out to many recipients over one channel. Each
// recipient gets an independent notification record with its own delivery
// state.
type BulkRequest struct {
	Recipients []BulkRecipient `json:"recipients"`

	Type    Type    `json:"notificationType"`
	Channel Channel `json:"channel"`

	Subject     string `json:"subject"`
	Message     string `json:"message"`
	HTMLContent string `json:"htmlContent,omitempty"`

	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

// TemplateRequest is the caller-facing shape for creating a template. Active
// defaults to true when omitted.
type TemplateRequest struct {
	TemplateName string  `json:"templateName"`
	Type         Type    `json:"notificationType"`
	Channel      Channel `json:"channel"`
	Subject      string  `json:"subject"`
	Body         string  `json:"body"`
	HTMLBody     string  `json:"htmlBody,omitempty"`
	Active       *bool   `json:"isActive,omitempty"`
}
