package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

const medicationColumns = `id, slug, drug_name, generic_name, title, labeler_id, labeler_name, product_type,
effective_time, meta_description, ai_description, ai_warnings, ai_dosing, ai_use_and_conditions,
ai_contraindications, blocks, tags, updated_at`

// candidateColumns are matched with ILIKE by the fallback ranker.
var candidateColumns = []string{
	"drug_name",
	"generic_name",
	"title",
	"labeler_name",
	"ai_description",
	"ai_warnings",
	"ai_dosing",
	"ai_use_and_conditions",
	"ai_contraindications",
}

type MedicationRepository struct {
	db *sql.DB
}

func NewMedicationRepository(db *sql.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *MedicationRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS medications (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	drug_name TEXT NOT NULL,
	generic_name TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	labeler_id TEXT NOT NULL DEFAULT '',
	labeler_name TEXT NOT NULL DEFAULT '',
	product_type TEXT NOT NULL DEFAULT '',
	effective_time TEXT NOT NULL DEFAULT '',
	meta_description TEXT NOT NULL DEFAULT '',
	ai_description TEXT NOT NULL DEFAULT '',
	ai_warnings TEXT NOT NULL DEFAULT '',
	ai_dosing TEXT NOT NULL DEFAULT '',
	ai_use_and_conditions TEXT NOT NULL DEFAULT '',
	ai_contraindications TEXT NOT NULL DEFAULT '',
	blocks JSONB NOT NULL DEFAULT '[]'::jsonb,
	tags JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_medications_tags ON medications USING GIN (tags);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// GetByIDs returns the stored records for ids in no particular order.
func (r *MedicationRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Medication, error) {
	if len(ids) == 0 {
		return []domain.Medication{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	query := `SELECT ` + medicationColumns + `
FROM medications
WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query medications by ids: %w", err)
	}
	return scanMedications(rows)
}

func (r *MedicationRepository) GetByID(ctx context.Context, id string) (*domain.Medication, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+medicationColumns+`
FROM medications
WHERE id = $1
`, id)
	return scanOne(row, "get medication by id", id)
}

func (r *MedicationRepository) GetBySlug(ctx context.Context, slug string) (*domain.Medication, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+medicationColumns+`
FROM medications
WHERE slug = $1
`, slug)
	return scanOne(row, "get medication by slug", slug)
}

// ListAfter returns up to limit records with id greater than afterID, id ascending.
func (r *MedicationRepository) ListAfter(ctx context.Context, afterID string, limit int) ([]domain.Medication, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+medicationColumns+`
FROM medications
WHERE id > $1
ORDER BY id ASC
LIMIT $2
`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return scanMedications(rows)
}

// FindCandidates ORs substring predicates for the phrase and every term and ANDs tag filters.
func (r *MedicationRepository) FindCandidates(ctx context.Context, q domain.CandidateQuery) ([]domain.Medication, error) {
	query, args := buildCandidateQuery(q)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query medication candidates: %w", err)
	}
	return scanMedications(rows)
}

func buildCandidateQuery(q domain.CandidateQuery) (string, []any) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	var where []string

	patterns := make([]string, 0, len(q.Terms)+1)
	if phrase := strings.TrimSpace(q.Phrase); phrase != "" {
		patterns = append(patterns, phrase)
	}
	for _, term := range q.Terms {
		if term = strings.TrimSpace(term); term != "" && term != q.Phrase {
			patterns = append(patterns, term)
		}
	}
	if len(patterns) > 0 {
		ors := make([]string, 0, len(patterns)*len(candidateColumns))
		for _, p := range patterns {
			ph := next("%" + escapeLike(p) + "%")
			for _, col := range candidateColumns {
				ors = append(ors, col+" ILIKE "+ph)
			}
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	for _, category := range domain.TagCategories {
		values := q.Filters[category]
		if len(values) == 0 {
			continue
		}
		phs := make([]string, 0, len(values))
		for _, v := range values {
			phs = append(phs, "lower("+next(v)+")")
		}
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(COALESCE(tags->'%s', '[]'::jsonb)) AS t(v) WHERE lower(t.v) IN (%s))",
			string(category), strings.Join(phs, ", "),
		))
	}

	query := `SELECT ` + medicationColumns + `
FROM medications`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, "\nAND ")
	}
	query += "\nORDER BY id ASC"
	if q.Limit > 0 {
		query += "\nLIMIT " + next(q.Limit)
	}
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedication(row rowScanner) (domain.Medication, error) {
	var m domain.Medication
	var blocksRaw, tagsRaw []byte
	err := row.Scan(
		&m.ID, &m.Slug, &m.Name, &m.GenericName, &m.Title, &m.LabelerID, &m.LabelerName, &m.ProductType,
		&m.EffectiveTime, &m.MetaDescription, &m.Sections.Description, &m.Sections.Warnings, &m.Sections.Dosing,
		&m.Sections.UseAndConditions, &m.Sections.Contraindications, &blocksRaw, &tagsRaw, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Medication{}, err
	}
	if len(blocksRaw) > 0 {
		if err := json.Unmarshal(blocksRaw, &m.Blocks); err != nil {
			return domain.Medication{}, fmt.Errorf("unmarshal blocks: %w", err)
		}
	}
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &m.Tags); err != nil {
			return domain.Medication{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return m, nil
}

func scanOne(row *sql.Row, op, key string) (*domain.Medication, error) {
	m, err := scanMedication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrMedicationNotFound, op, fmt.Errorf("medication %q", key))
		}
		return nil, fmt.Errorf("scan medication: %w", err)
	}
	return &m, nil
}

func scanMedications(rows *sql.Rows) ([]domain.Medication, error) {
	defer rows.Close()

	out := make([]domain.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate medications: %w", err)
	}
	return out, nil
}
