package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver

	"github.com/speccoll/arkmint/pkg/anvl"
	"github.com/speccoll/arkmint/pkg/core/domain"
	"github.com/speccoll/arkmint/pkg/ports"
)

const arkColumns = `ark, target, profile, status, owner, ownergroup, created, updated, export,
	dc_creator, dc_title, dc_type, dc_date, dc_publisher, erc_who, erc_what, erc_when, reusable`

// Repository is the local ARK cache. It indexes previously seen records by
// identifier, by target URL, and by the reusable flag so dedup and reuse
// decisions don't need a round trip to the registry.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbURL string) (*Repository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &Repository{db: db}, nil
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS arks (
		ark TEXT PRIMARY KEY,
		target TEXT,
		profile TEXT,
		status TEXT,
		owner TEXT,
		ownergroup TEXT,
		created INTEGER,
		updated INTEGER,
		export INTEGER,
		dc_creator TEXT,
		dc_title TEXT,
		dc_type TEXT,
		dc_date TEXT,
		dc_publisher TEXT,
		erc_who TEXT,
		erc_what TEXT,
		erc_when TEXT,
		reusable INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_arks_target ON arks(target);
	CREATE INDEX IF NOT EXISTS idx_arks_reusable ON arks(reusable);
	`
	_, err := db.Exec(query)
	return err
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Insert(ctx context.Context, a *domain.Ark) error {
	query := `INSERT INTO arks (` + arkColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		a.ARK, a.Target, a.Profile, a.Status, a.Owner, a.OwnerGroup,
		a.Created, a.Updated, boolInt(a.Export),
		a.DCCreator, a.DCTitle, a.DCType, a.DCDate, a.DCPublisher,
		a.ERCWho, a.ERCWhat, a.ERCWhen, boolInt(a.Reusable),
	)
	if err != nil {
		return fmt.Errorf("insert ark %s: %w", a.ARK, err)
	}
	return nil
}

func (r *Repository) FindByARK(ctx context.Context, ark string) (*domain.Ark, error) {
	query := `SELECT ` + arkColumns + ` FROM arks WHERE ark = ?`
	return r.queryOne(ctx, query, ark)
}

func (r *Repository) FindByTarget(ctx context.Context, target string) (*domain.Ark, error) {
	query := `SELECT ` + arkColumns + ` FROM arks WHERE target = ? ORDER BY created ASC LIMIT 1`
	return r.queryOne(ctx, query, target)
}

func (r *Repository) FindOneReusable(ctx context.Context) (*domain.Ark, error) {
	// Oldest first, so stale placeholders get claimed before fresh ones.
	// The find-then-claim sequence is not atomic; concurrent submissions
	// must serialize reuse claims externally.
	query := `SELECT ` + arkColumns + ` FROM arks WHERE reusable = 1 ORDER BY created ASC LIMIT 1`
	return r.queryOne(ctx, query)
}

func (r *Repository) queryOne(ctx context.Context, query string, args ...any) (*domain.Ark, error) {
	var a domain.Ark
	var export, reusable int

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ARK, &a.Target, &a.Profile, &a.Status, &a.Owner, &a.OwnerGroup,
		&a.Created, &a.Updated, &export,
		&a.DCCreator, &a.DCTitle, &a.DCType, &a.DCDate, &a.DCPublisher,
		&a.ERCWho, &a.ERCWhat, &a.ERCWhen, &reusable,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a.Export = export != 0
	a.Reusable = reusable != 0
	return &a, nil
}

// columnForField maps registry field names to arks columns. Fields the
// schema doesn't track (e.g. _crossref) are skipped by Update.
var columnForField = map[string]string{
	domain.FieldTarget:      "target",
	domain.FieldProfile:     "profile",
	domain.FieldStatus:      "status",
	domain.FieldOwner:       "owner",
	domain.FieldOwnerGroup:  "ownergroup",
	domain.FieldCreated:     "created",
	domain.FieldUpdated:     "updated",
	domain.FieldExport:      "export",
	domain.FieldDCCreator:   "dc_creator",
	domain.FieldDCTitle:     "dc_title",
	domain.FieldDCType:      "dc_type",
	domain.FieldDCDate:      "dc_date",
	domain.FieldDCPublisher: "dc_publisher",
	domain.FieldERCWho:      "erc_who",
	domain.FieldERCWhat:     "erc_what",
	domain.FieldERCWhen:     "erc_when",
	domain.FieldReusable:    "reusable",
}

// Update merges fields into the row for ark. Keys are registry field names;
// fields absent from the mapping are left untouched.
func (r *Repository) Update(ctx context.Context, ark string, fields map[string]string) error {
	existing, err := r.FindByARK(ctx, ark)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("update %s: %w", ark, domain.ErrRecordNotFound)
	}

	var sets []string
	var args []any
	for field, value := range fields {
		col, ok := columnForField[field]
		if !ok {
			continue
		}
		sets = append(sets, col+" = ?")
		args = append(args, columnValue(col, value))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, ark)
	query := `UPDATE arks SET ` + strings.Join(sets, ", ") + ` WHERE ark = ?`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update ark %s: %w", ark, err)
	}
	return nil
}

func columnValue(col, value string) any {
	switch col {
	case "created", "updated":
		n, _ := strconv.ParseInt(value, 10, 64)
		return n
	case "export":
		return boolInt(value != "no")
	case "reusable":
		return boolInt(strings.EqualFold(value, "true"))
	default:
		return value
	}
}

func (r *Repository) Dump(ctx context.Context) ([]domain.Ark, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+arkColumns+` FROM arks ORDER BY created ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var arks []domain.Ark
	for rows.Next() {
		var a domain.Ark
		var export, reusable int
		if err := rows.Scan(
			&a.ARK, &a.Target, &a.Profile, &a.Status, &a.Owner, &a.OwnerGroup,
			&a.Created, &a.Updated, &export,
			&a.DCCreator, &a.DCTitle, &a.DCType, &a.DCDate, &a.DCPublisher,
			&a.ERCWho, &a.ERCWhat, &a.ERCWhen, &reusable,
		); err != nil {
			return nil, err
		}
		a.Export = export != 0
		a.Reusable = reusable != 0
		arks = append(arks, a)
	}
	return arks, rows.Err()
}

// LoadRecords bulk-inserts decoded records, e.g. from a bulk-export file.
// Meant for populating a fresh cache; records without an identifier are
// skipped, existing rows are not checked.
func (r *Repository) LoadRecords(ctx context.Context, recs []*anvl.Record) (int, error) {
	count := 0
	for _, rec := range recs {
		a := domain.FromRecord(rec)
		if a.ARK == "" {
			continue
		}
		if err := r.Insert(ctx, a); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Ensure interface compliance
var _ ports.ArkRepository = (*Repository)(nil)

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
