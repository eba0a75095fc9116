package ports

import (
	"context"

	"github.com/speccoll/arkmint/pkg/anvl"
	"github.com/speccoll/arkmint/pkg/core/domain"
)

// ArkRepository defines the local cache of identifier records. Exactly one
// row exists per ARK. Finders return (nil, nil) when nothing matches.
type ArkRepository interface {
	Insert(ctx context.Context, ark *domain.Ark) error
	FindByARK(ctx context.Context, ark string) (*domain.Ark, error)
	// FindByTarget returns at most one record, oldest first, so repeated
	// dedup checks are deterministic even if duplicates slipped in.
	FindByTarget(ctx context.Context, target string) (*domain.Ark, error)
	// FindOneReusable returns the oldest reusable record, aging out stale
	// placeholders first, or (nil, nil) when none is available.
	FindOneReusable(ctx context.Context) (*domain.Ark, error)
	// Update merges fields (keyed by registry field names such as "_target"
	// or "dc.title") into an existing row. Updating an unknown ARK returns
	// domain.ErrRecordNotFound.
	Update(ctx context.Context, ark string, fields map[string]string) error
	Dump(ctx context.Context) ([]domain.Ark, error)
	LoadRecords(ctx context.Context, recs []*anvl.Record) (int, error)
}

// RegistryClient issues authenticated calls against the remote registry.
// Mint and Update are never retried automatically: a retried mint could
// allocate a second identifier for the same resource.
type RegistryClient interface {
	Mint(ctx context.Context, shoulder string, rec *anvl.Record) (string, error)
	Update(ctx context.Context, ark string, rec *anvl.Record) (string, error)
	// View returns the raw record text for an ARK. Registry-level "not
	// found" bodies are returned as-is, not as errors.
	View(ctx context.Context, ark string) (string, error)
}

// SearchClient queries the registry's administrative console, the only
// search surface the registry exposes. Used when the local cache is cold.
type SearchClient interface {
	FindByTarget(ctx context.Context, target string) ([]domain.SearchRow, error)
	FindReusable(ctx context.Context) ([]domain.SearchRow, error)
}

// ArkService is the identifier lifecycle: dedup check, reuse-or-mint
// decision, cache write-back.
type ArkService interface {
	Submit(ctx context.Context, rec *anvl.Record, shoulder string, reuse bool) (*domain.SubmitResult, error)
	UpdateRecord(ctx context.Context, ark string, rec *anvl.Record) (*domain.SubmitResult, error)
	SubmitBatch(ctx context.Context, raw []string, shoulder string, reuse bool) []domain.BatchResult
}
