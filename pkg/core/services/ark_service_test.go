package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speccoll/arkmint/pkg/adapters/registry"
	"github.com/speccoll/arkmint/pkg/adapters/repository/sqlite"
	"github.com/speccoll/arkmint/pkg/anvl"
	"github.com/speccoll/arkmint/pkg/core/domain"
)

// fakeRegistry stands in for the remote registry. Mint allocates sequential
// identifiers; View serves canned bodies.
type fakeRegistry struct {
	mintCalls   int
	updateCalls int
	updatedARKs []string
	mintErr     error
	updateErr   error
	viewBodies  map[string]string
}

func (f *fakeRegistry) Mint(ctx context.Context, shoulder string, rec *anvl.Record) (string, error) {
	if f.mintErr != nil {
		return "", f.mintErr
	}
	f.mintCalls++
	return fmt.Sprintf("ark:/99999/fk4m%03d", f.mintCalls), nil
}

func (f *fakeRegistry) Update(ctx context.Context, ark string, rec *anvl.Record) (string, error) {
	f.updateCalls++
	f.updatedARKs = append(f.updatedARKs, ark)
	if f.updateErr != nil {
		return "", f.updateErr
	}
	return ark, nil
}

func (f *fakeRegistry) View(ctx context.Context, ark string) (string, error) {
	if body, ok := f.viewBodies[ark]; ok {
		return body, nil
	}
	return "error: bad request - no such identifier", nil
}

type fakeSearch struct {
	targetRows    []domain.SearchRow
	reusableRows  []domain.SearchRow
	reusableCalls int
	err           error
}

func (f *fakeSearch) FindByTarget(ctx context.Context, target string) ([]domain.SearchRow, error) {
	return f.targetRows, f.err
}

func (f *fakeSearch) FindReusable(ctx context.Context) ([]domain.SearchRow, error) {
	f.reusableCalls++
	return f.reusableRows, f.err
}

func setup(t *testing.T) (*ArkService, *sqlite.Repository, *fakeRegistry, *fakeSearch) {
	t.Helper()
	repo, err := sqlite.NewRepository("file:" + filepath.Join(t.TempDir(), "arks.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	reg := &fakeRegistry{viewBodies: map[string]string{}}
	search := &fakeSearch{}
	return NewArkService(repo, reg, search, nil), repo, reg, search
}

func record(target, title string) *anvl.Record {
	rec := anvl.NewRecord()
	rec.Set("dc.title", title)
	rec.Set("_target", target)
	return rec
}

func TestSubmitMintsWhenTargetIsNew(t *testing.T) {
	svc, repo, reg, _ := setup(t)
	ctx := context.Background()

	reg.viewBodies["ark:/99999/fk4m001"] = "success: ark:/99999/fk4m001\n" +
		"_target: https://example.edu/1\n_created: 500\ndc.title: Papers\n"

	res, err := svc.Submit(ctx, record("https://example.edu/1", "Papers"), "ark:/99999/fk4", false)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeMinted, res.Outcome)
	require.Equal(t, "ark:/99999/fk4m001", res.ARK)

	// The cache row comes from the registry's view of the new identifier.
	cached, err := repo.FindByARK(ctx, "ark:/99999/fk4m001")
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.Equal(t, "https://example.edu/1", cached.Target)
	require.Equal(t, int64(500), cached.Created)
	require.False(t, cached.Reusable)
}

func TestSubmitDedupIdempotence(t *testing.T) {
	svc, _, reg, _ := setup(t)
	ctx := context.Background()

	existing := "success: ark:/99999/fk4m001\n_target: https://example.edu/1\ndc.title: Papers\n"
	reg.viewBodies["ark:/99999/fk4m001"] = existing

	first, err := svc.Submit(ctx, record("https://example.edu/1", "Papers"), "ark:/99999/fk4", false)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeMinted, first.Outcome)

	second, err := svc.Submit(ctx, record("https://example.edu/1", "Papers again"), "ark:/99999/fk4", false)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeDuplicate, second.Outcome)
	require.Equal(t, first.ARK, second.ARK)
	require.Equal(t, existing, second.Detail)
	require.Equal(t, 1, reg.mintCalls, "the duplicate submission must not mint")
	require.Equal(t, 0, reg.updateCalls, "the duplicate submission must not write at all")
}

func TestSubmitDedupFallsBackToConsoleSearch(t *testing.T) {
	svc, _, reg, search := setup(t)

	search.targetRows = []domain.SearchRow{{ARK: "ark:/99999/fk4remote", Title: "Already There"}}

	res, err := svc.Submit(context.Background(), record("https://example.edu/cold", "X"), "ark:/99999/fk4", false)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeDuplicate, res.Outcome)
	require.Equal(t, "ark:/99999/fk4remote", res.ARK)
	require.Equal(t, 0, reg.mintCalls)
}

func TestSubmitDedupSearchFailureAborts(t *testing.T) {
	svc, _, reg, search := setup(t)
	search.err = errors.New("console unreachable")

	_, err := svc.Submit(context.Background(), record("https://example.edu/x", "X"), "ark:/99999/fk4", false)
	require.Error(t, err)
	require.Equal(t, 0, reg.mintCalls, "a skipped dedup check must not mint")
}

func TestSubmitReuseClaimsOldestExactlyOnce(t *testing.T) {
	svc, repo, reg, search := setup(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &domain.Ark{
		ARK: "ark:/99999/fk4old", Target: "https://example.edu/old", DCTitle: "Front", Created: 100, Reusable: true,
	}))

	first, err := svc.Submit(ctx, record("https://example.edu/a", "New Thing A"), "ark:/99999/fk4", true)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeReused, first.Outcome)
	require.Equal(t, "ark:/99999/fk4old", first.ARK)
	require.Equal(t, []string{"ark:/99999/fk4old"}, reg.updatedARKs)

	// The claim cleared the flag and merged the new metadata.
	claimed, err := repo.FindByARK(ctx, "ark:/99999/fk4old")
	require.NoError(t, err)
	require.False(t, claimed.Reusable)
	require.Equal(t, "https://example.edu/a", claimed.Target)
	require.Equal(t, "New Thing A", claimed.DCTitle)

	// The only reusable record is spent, so the next submission falls back
	// to the console (empty here) and then mints.
	second, err := svc.Submit(ctx, record("https://example.edu/b", "New Thing B"), "ark:/99999/fk4", true)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeMinted, second.Outcome)
	require.Equal(t, 1, reg.mintCalls)
	require.Equal(t, 1, reg.updateCalls)
	require.Equal(t, 1, search.reusableCalls, "the console is consulted only when the cache has no candidate")
}

func TestSubmitReuseFallsBackToConsoleSearch(t *testing.T) {
	svc, repo, reg, search := setup(t)
	ctx := context.Background()

	search.reusableRows = []domain.SearchRow{
		{ARK: "ark:/99999/fk4console", Title: "Front"},
		{ARK: "ark:/99999/fk4newer", Title: "Back"},
	}

	res, err := svc.Submit(ctx, record("https://example.edu/cold", "Fresh Thing"), "ark:/99999/fk4", true)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeReused, res.Outcome)
	require.Equal(t, "ark:/99999/fk4console", res.ARK, "oldest console row is claimed")
	require.Equal(t, []string{"ark:/99999/fk4console"}, reg.updatedARKs)
	require.Equal(t, 0, reg.mintCalls, "a console-sourced claim must not mint")

	// The claimed identifier lands in the cache, non-reusable, carrying the
	// new metadata.
	cached, err := repo.FindByARK(ctx, "ark:/99999/fk4console")
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.False(t, cached.Reusable)
	require.Equal(t, "https://example.edu/cold", cached.Target)
	require.Equal(t, "Fresh Thing", cached.DCTitle)
}

func TestSubmitFailedReuseKeepsFlag(t *testing.T) {
	svc, repo, reg, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &domain.Ark{
		ARK: "ark:/99999/fk4r", Target: "https://example.edu/r", DCTitle: "Back", Created: 100, Reusable: true,
	}))
	reg.updateErr = &registry.RejectedError{Status: http.StatusBadRequest, Body: "error: bad request"}

	_, err := svc.Submit(ctx, record("https://example.edu/new", "X"), "ark:/99999/fk4", true)
	require.Error(t, err)

	// The failed claim must not burn the reusable record.
	candidate, err := repo.FindOneReusable(ctx)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	require.Equal(t, "ark:/99999/fk4r", candidate.ARK)
	require.Equal(t, "https://example.edu/r", candidate.Target, "cache must not be touched on a failed claim")
}

func TestSubmitCachesPlaceholderAsReusable(t *testing.T) {
	// Minting a child object ("Front") with no reusable candidate available
	// caches the new identifier as reusable for later recycling.
	svc, repo, reg, _ := setup(t)
	ctx := context.Background()

	reg.viewBodies["ark:/99999/fk4m001"] = "success: ark:/99999/fk4m001\n_target: https://x.edu/1\ndc.title: Front\n"

	res, err := svc.Submit(ctx, record("https://x.edu/1", "Front"), "ark:/99999/fk4", true)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeMinted, res.Outcome)

	cached, err := repo.FindByARK(ctx, res.ARK)
	require.NoError(t, err)
	require.True(t, cached.Reusable)
}

func TestUpdateRecord(t *testing.T) {
	svc, repo, reg, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &domain.Ark{
		ARK: "ark:/99999/fk4u", Target: "https://example.edu/u", DCTitle: "Old", Status: "public",
	}))

	res, err := svc.UpdateRecord(ctx, "ark:/99999/fk4u", record("https://example.edu/u2", "New"))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeUpdated, res.Outcome)
	require.Equal(t, 1, reg.updateCalls)

	cached, err := repo.FindByARK(ctx, "ark:/99999/fk4u")
	require.NoError(t, err)
	require.Equal(t, "https://example.edu/u2", cached.Target)
	require.Equal(t, "New", cached.DCTitle)
	require.Equal(t, "public", cached.Status, "unsubmitted fields stay put")
}

func TestUpdateRecordUnknownARK(t *testing.T) {
	svc, _, _, _ := setup(t)

	_, err := svc.UpdateRecord(context.Background(), "ark:/99999/fk4missing", record("https://example.edu/x", "X"))
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrRecordNotFound))
}

func TestSubmitBatchIsolatesFailures(t *testing.T) {
	svc, _, reg, _ := setup(t)

	raw := []string{
		"_target: https://example.edu/1\ndc.title: One",
		"this record has no colon",
		"_target: https://example.edu/2\ndc.title: Two",
	}

	results := svc.SubmitBatch(context.Background(), raw, "ark:/99999/fk4", false)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	require.Equal(t, domain.OutcomeMinted, results[0].Result.Outcome)

	var malformed *anvl.MalformedRecordError
	require.ErrorAs(t, results[1].Err, &malformed)

	require.NoError(t, results[2].Err)
	require.Equal(t, domain.OutcomeMinted, results[2].Result.Outcome)

	require.Equal(t, 2, reg.mintCalls, "the malformed record must not stop the batch")
}
