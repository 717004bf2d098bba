// Package insurance is the narrow client for the insurance service: look up a
// patient's active policy and submit claims. Calls go through a circuit
// breaker so a down insurance service cannot pile up requests.
package insurance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"healthfinance/internal/platform/config"
	id "healthfinance/pkg/domain"
	dErrors "healthfinance/pkg/domain-errors"
	"healthfinance/pkg/platform/circuit"
	"healthfinance/pkg/platform/sentinel"
)

// Policy is the slice of an insurance policy the billing flow needs.
type Policy struct {
	ID           id.PolicyID  `json:"id"`
	PatientID    id.PatientID `json:"patientId"`
	PolicyNumber string       `json:"policyNumber"`
	Provider     string       `json:"providerName"`
	Active       bool         `json:"isActive"`
}

// Claim is a request to an insurer to pay for part of an invoice.
type Claim struct {
	ID            id.ClaimID   `json:"id,omitempty"`
	ClaimNumber   string       `json:"claimNumber"`
	PolicyID      id.PolicyID  `json:"policyId"`
	PatientID     id.PatientID `json:"patientId"`
	InvoiceID     id.InvoiceID `json:"invoiceId"`
	ClaimedAmount string       `json:"claimedAmount"`
	Status        string       `json:"status"`
	SubmittedAt   time.Time    `json:"submittedAt"`
}

// ClaimStatusSubmitted is the initial status of an auto-submitted claim.
const ClaimStatusSubmitted = "SUBMITTED"

// NewClaimNumber generates a claim number from the submission time.
func NewClaimNumber(now time.Time) string {
	return fmt.Sprintf("CLM-%d", now.UnixMilli())
}

// Client talks to the insurance service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// New constructs an insurance client from configuration.
func New(cfg config.Insurance, opts ...Option) *Client {
	c := &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: circuit.New("insurance"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ActivePolicy returns the patient's active policy, or sentinel.ErrNotFound
// when the patient has none.
func (c *Client) ActivePolicy(ctx context.Context, patientID id.PatientID) (*Policy, error) {
	var policy Policy
	path := "/patients/" + url.PathEscape(patientID.String()) + "/policies/active"
	if err := c.get(ctx, path, &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

// SubmitClaim posts the claim to the insurance service and returns the stored
// claim including its assigned id.
func (c *Client) SubmitClaim(ctx context.Context, claim *Claim) (*Claim, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("insurance service: %w", sentinel.ErrUnavailable)
	}

	body, err := json.Marshal(claim)
	if err != nil {
		return nil, fmt.Errorf("encode claim: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/claims", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure(ctx)
		return nil, fmt.Errorf("submit claim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		c.recordFailure(ctx)
		return nil, fmt.Errorf("submit claim: insurance service returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, dErrors.New(dErrors.CodeBadRequest, "insurance service rejected claim")
	}
	c.recordSuccess(ctx)

	var stored Claim
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&stored); err != nil {
		return nil, fmt.Errorf("decode claim response: %w", err)
	}
	return &stored, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if !c.breaker.Allow() {
		return fmt.Errorf("insurance service: %w", sentinel.ErrUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure(ctx)
		return fmt.Errorf("insurance service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.recordSuccess(ctx)
		return sentinel.ErrNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		c.recordFailure(ctx)
		return fmt.Errorf("insurance service returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("insurance service returned %d", resp.StatusCode)
	}
	c.recordSuccess(ctx)

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode insurance response: %w", err)
	}
	return nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if _, change := c.breaker.RecordFailure(); change.Opened && c.logger != nil {
		c.logger.WarnContext(ctx, "insurance circuit opened", "breaker", c.breaker.Name())
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed && c.logger != nil {
		c.logger.InfoContext(ctx, "insurance circuit closed", "breaker", c.breaker.Name())
	}
}
