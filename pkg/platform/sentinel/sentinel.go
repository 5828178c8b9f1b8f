package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the verification bridge
// return these (optionally wrapped) so callers can translate them into domain
// errors with errors.Is.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record or cache entry does not exist
// - ErrExpired: cached session aged past its TTL
// - ErrConflict: write raced another writer or violated uniqueness
// - ErrInvalidState: entity in wrong state for the requested operation
// - ErrUnavailable: backing service temporarily unreachable
//
// Validation failures carry their own typed errors next to the package that
// raises them (fixture.MissingDependencyError, verify.CapabilityError, ...).
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
