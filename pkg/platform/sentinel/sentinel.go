package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store (invoice, notification, template)
// - ErrConflict: unique constraint violated (duplicate transaction id)
// - ErrInvalidState: entity in wrong state for requested operation
//   (payment against a cancelled invoice)
// - ErrUnavailable: remote capability temporarily unreachable (broker,
//   insurance service, channel gateway)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
