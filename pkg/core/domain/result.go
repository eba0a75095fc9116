package domain

import "errors"

// ErrRecordNotFound is returned by cache updates that reference an ARK never
// inserted locally. That is a contract violation by the caller (records are
// cached on mint before any update), so it is fatal for the submission.
var ErrRecordNotFound = errors.New("ark record not found in local cache")

// Outcome is how a submission ended. DuplicateTarget is deliberately an
// outcome, not an error: finding an existing identifier for the target is a
// success that writes nothing.
type Outcome string

const (
	OutcomeMinted    Outcome = "minted"
	OutcomeReused    Outcome = "reused"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeUpdated   Outcome = "updated"
)

// SubmitResult reports a single submission. For OutcomeDuplicate, ARK is the
// identifier already resolving to the target and Detail is its current
// registry record, shown to the operator in place of a write.
type SubmitResult struct {
	Outcome Outcome
	ARK     string
	Detail  string
}

// BatchResult pairs one record of a batch with its result or error. A failed
// record never aborts the rest of the batch.
type BatchResult struct {
	Index  int
	Result *SubmitResult
	Err    error
}

// SearchRow is one row of the registry console's results table.
type SearchRow struct {
	Creator string
	Title   string
	ARK     string
	Owner   string
	Created string
	Updated string
	Status  string
}
