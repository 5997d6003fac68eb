package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and channel adapters return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrClosed: subscription or client already closed
//   - ErrUnavailable: backend temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrClosed      = errors.New("closed")
	ErrUnavailable = errors.New("unavailable")
)
