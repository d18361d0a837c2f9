package models

import "errors"

// ErrInvalidQuery marks request validation failures; these are reported
// before any index or oracle I/O happens.
var ErrInvalidQuery = errors.New("invalid query")

// ErrNotFound is returned when a document id has no stored version.
var ErrNotFound = errors.New("document not found")

// ErrOracleUnavailable marks failures of an external model service
// (embedding, pairwise scoring, generation). Inside the retrieval fan-out it
// is converted into a missing signal, never propagated to the caller.
var ErrOracleUnavailable = errors.New("model oracle unavailable")
