package domain

import "errors"

// Sentinel errors for the public error taxonomy. Callers match them with
// errors.Is after unwrapping whatever context was added along the way.
var (
	// ErrConfiguration marks invalid reference data or settings detected at
	// load time, before any evaluation starts.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrUnknownOperator marks a rule condition naming an operator the
	// registry does not carry. It surfaces per-rule as an error result and
	// never aborts a batch.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrIncompleteEvaluation is returned alongside partial results when the
	// deadline expires before every rule has run.
	ErrIncompleteEvaluation = errors.New("evaluation incomplete: deadline exceeded")

	// ErrMalformedModel marks a building model the engine cannot evaluate at
	// all, such as duplicate object IDs.
	ErrMalformedModel = errors.New("malformed building model")

	// ErrMissingReferenceData marks a lookup against a standard or version the
	// knowledge store does not hold.
	ErrMissingReferenceData = errors.New("missing reference data")

	// ErrVersionConflict marks a knowledge-store mutation that would leave a
	// standard without exactly one active version.
	ErrVersionConflict = errors.New("version conflict")
)
