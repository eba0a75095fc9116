package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/speccoll/arkmint/pkg/anvl"
	"github.com/speccoll/arkmint/pkg/core/domain"
	"github.com/speccoll/arkmint/pkg/logger"
	"github.com/speccoll/arkmint/pkg/ports"
)

// ArkService implements the identifier lifecycle: check the target for an
// existing identifier, then reuse a placeholder record or mint a fresh one,
// and write the result back to the local cache.
type ArkService struct {
	repo     ports.ArkRepository
	registry ports.RegistryClient
	search   ports.SearchClient
	log      logger.Logger

	// claimMu serializes find-reusable-then-clear-flag so two in-flight
	// submissions cannot claim the same record.
	claimMu sync.Mutex
}

func NewArkService(repo ports.ArkRepository, registry ports.RegistryClient, search ports.SearchClient, log logger.Logger) *ArkService {
	if log == nil {
		log = logger.Nop()
	}
	return &ArkService{repo: repo, registry: registry, search: search, log: log}
}

// Submit runs one record through the dedup-then-reuse-or-mint decision.
//
// If an identifier already resolves to the record's target, nothing is
// written: the result carries the existing identifier and its current
// registry record. Otherwise, with reuse requested, the oldest reusable
// cached record is claimed via an update call; failing that, a new
// identifier is minted under shoulder.
func (s *ArkService) Submit(ctx context.Context, rec *anvl.Record, shoulder string, reuse bool) (*domain.SubmitResult, error) {
	target := rec.Get(domain.FieldTarget)
	if target != "" {
		existing, err := s.findExisting(ctx, target)
		if err != nil {
			return nil, err
		}
		if existing != "" {
			detail, err := s.registry.View(ctx, existing)
			if err != nil {
				s.log.Warn("could not view existing record", logger.String("ark", existing), logger.Err(err))
				detail = ""
			}
			s.log.Info("target already registered, no new identifier minted",
				logger.String("target", target), logger.String("ark", existing))
			return &domain.SubmitResult{Outcome: domain.OutcomeDuplicate, ARK: existing, Detail: detail}, nil
		}
	}

	if reuse {
		claimed, err := s.claimReusable(ctx, rec)
		if err != nil {
			return nil, err
		}
		if claimed != "" {
			return &domain.SubmitResult{Outcome: domain.OutcomeReused, ARK: claimed}, nil
		}
	}

	ark, err := s.registry.Mint(ctx, shoulder, rec)
	if err != nil {
		return nil, fmt.Errorf("mint on shoulder %s: %w", shoulder, err)
	}
	if err := s.cacheMinted(ctx, ark, rec); err != nil {
		return nil, err
	}

	s.log.Info("minted", logger.String("ark", ark), logger.String("target", target))
	return &domain.SubmitResult{Outcome: domain.OutcomeMinted, ARK: ark}, nil
}

// findExisting looks the target up in the local cache first and falls back
// to the console search when the cache has no entry.
func (s *ArkService) findExisting(ctx context.Context, target string) (string, error) {
	cached, err := s.repo.FindByTarget(ctx, target)
	if err != nil {
		return "", err
	}
	if cached != nil {
		return cached.ARK, nil
	}

	rows, err := s.search.FindByTarget(ctx, target)
	if err != nil {
		return "", fmt.Errorf("console search for %s: %w", target, err)
	}
	if len(rows) > 0 {
		return rows[0].ARK, nil
	}
	return "", nil
}

// claimReusable tries to recycle the oldest reusable record for rec, taking
// the cache first and the console search when the cache has no candidate.
// Returns "" when neither has one. The reusable flag is cleared only after
// the registry update succeeds, so a failed claim doesn't burn the record.
func (s *ArkService) claimReusable(ctx context.Context, rec *anvl.Record) (string, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	candidate, err := s.repo.FindOneReusable(ctx)
	if err != nil {
		return "", err
	}

	ark := ""
	if candidate != nil {
		ark = candidate.ARK
	} else {
		rows, err := s.search.FindReusable(ctx)
		if err != nil {
			return "", fmt.Errorf("console search for reusable records: %w", err)
		}
		if len(rows) > 0 {
			// Console rows come back oldest-updated first.
			ark = rows[0].ARK
		}
	}
	if ark == "" {
		return "", nil
	}

	if _, err := s.registry.Update(ctx, ark, rec); err != nil {
		return "", fmt.Errorf("reuse update of %s: %w", ark, err)
	}

	if candidate != nil {
		fields := rec.Fields()
		fields[domain.FieldReusable] = "false"
		if err := s.repo.Update(ctx, ark, fields); err != nil {
			return "", err
		}
	} else if err := s.cacheClaimed(ctx, ark, rec); err != nil {
		return "", err
	}

	s.log.Info("reused", logger.String("ark", ark), logger.String("target", rec.Get(domain.FieldTarget)))
	return ark, nil
}

// cacheClaimed records a console-sourced claim locally. The identifier is
// usually unknown to the cache; an existing row just gets the merge.
func (s *ArkService) cacheClaimed(ctx context.Context, ark string, rec *anvl.Record) error {
	existing, err := s.repo.FindByARK(ctx, ark)
	if err != nil {
		return err
	}
	if existing != nil {
		fields := rec.Fields()
		fields[domain.FieldReusable] = "false"
		return s.repo.Update(ctx, ark, fields)
	}

	a := domain.FromRecord(rec)
	a.ARK = ark
	a.Reusable = false
	return s.repo.Insert(ctx, a)
}

// cacheMinted inserts the freshly minted record. The registry fills in
// administrative fields (_created, _owner, ...) on mint, so the cached row
// comes from a view of the new identifier, falling back to the submitted
// fields if the view fails.
func (s *ArkService) cacheMinted(ctx context.Context, ark string, submitted *anvl.Record) error {
	full := submitted
	raw, err := s.registry.View(ctx, ark)
	switch {
	case err != nil:
		s.log.Warn("could not view minted record, caching submitted fields",
			logger.String("ark", ark), logger.Err(err))
	case !strings.HasPrefix(raw, "success:"):
		// View surfaces registry failures in the body; interpret them here.
		s.log.Warn("view of minted record failed, caching submitted fields",
			logger.String("ark", ark), logger.String("body", firstLine(raw)))
	default:
		if viewed, derr := anvl.Decode(raw); derr == nil {
			full = viewed
		} else {
			s.log.Warn("could not decode viewed record, caching submitted fields",
				logger.String("ark", ark), logger.Err(derr))
		}
	}

	a := domain.FromRecord(full)
	a.ARK = ark
	if err := s.repo.Insert(ctx, a); err != nil {
		return fmt.Errorf("caching minted record %s: %w", ark, err)
	}
	return nil
}

// UpdateRecord pushes rec to an already-minted identifier, bypassing the
// dedup check, and merges the submitted fields into the cached row.
func (s *ArkService) UpdateRecord(ctx context.Context, ark string, rec *anvl.Record) (*domain.SubmitResult, error) {
	confirmed, err := s.registry.Update(ctx, ark, rec)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, confirmed, rec.Fields()); err != nil {
		return nil, err
	}

	s.log.Info("updated", logger.String("ark", confirmed))
	return &domain.SubmitResult{Outcome: domain.OutcomeUpdated, ARK: confirmed}, nil
}

// SubmitBatch runs each raw record body through Submit, isolating failures:
// a malformed or rejected record is reported in its slot and the rest of the
// batch continues.
func (s *ArkService) SubmitBatch(ctx context.Context, raw []string, shoulder string, reuse bool) []domain.BatchResult {
	results := make([]domain.BatchResult, 0, len(raw))
	for i, body := range raw {
		rec, err := anvl.Decode(body)
		if err != nil {
			s.log.Warn("skipping malformed record", logger.Int("index", i), logger.Err(err))
			results = append(results, domain.BatchResult{Index: i, Err: err})
			continue
		}

		res, err := s.Submit(ctx, rec, shoulder, reuse)
		if err != nil {
			s.log.Warn("record failed", logger.Int("index", i), logger.Err(err))
			results = append(results, domain.BatchResult{Index: i, Err: err})
			continue
		}
		results = append(results, domain.BatchResult{Index: i, Result: res})
	}
	return results
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Ensure interface compliance
var _ ports.ArkService = (*ArkService)(nil)
