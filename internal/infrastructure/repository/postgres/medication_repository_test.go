package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

var columns = []string{
	"id", "slug", "drug_name", "generic_name", "title", "labeler_id", "labeler_name", "product_type",
	"effective_time", "meta_description", "ai_description", "ai_warnings", "ai_dosing", "ai_use_and_conditions",
	"ai_contraindications", "blocks", "tags", "updated_at",
}

func newRepoWithMock(t *testing.T) (*MedicationRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &MedicationRepository{db: db}, mock, func() { _ = db.Close() }
}

func addRow(rows *sqlmock.Rows, id, slug, name string) *sqlmock.Rows {
	return rows.AddRow(
		id, slug, name, "acetylsalicylic acid", "", "L1", "Bayer", "HUMAN OTC DRUG",
		"20240101", "", "Reduces fever.", "", "", "", "",
		[]byte(`[{"type":"p","contents":["hello"]}]`), []byte(`{"condition":["fever"]}`), time.Unix(0, 0).UTC(),
	)
}

func TestGetBySlugReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM medications\\s+WHERE slug = ").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetBySlug(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrMedicationNotFound) {
		t.Fatalf("expected ErrMedicationNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansRecord(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM medications\\s+WHERE id = ").
		WithArgs("7").
		WillReturnRows(addRow(sqlmock.NewRows(columns), "7", "aspirin", "Aspirin"))

	med, err := repo.GetByID(context.Background(), "7")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if med.Name != "Aspirin" || med.LabelerName != "Bayer" || med.Sections.Description != "Reduces fever." {
		t.Fatalf("unexpected record %+v", med)
	}
	if got := med.Tags[domain.TagCondition]; len(got) != 1 || got[0] != "fever" {
		t.Fatalf("unexpected tags %v", med.Tags)
	}
	if len(med.Blocks) != 1 || med.Blocks[0].Type != domain.BlockParagraph {
		t.Fatalf("unexpected blocks %+v", med.Blocks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDsUsesOnePlaceholderPerID(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows(columns)
	addRow(rows, "c", "c", "C")
	addRow(rows, "a", "a", "A")
	mock.ExpectQuery(`WHERE id IN \(\$1,\$2,\$3\)`).
		WithArgs("a", "b", "c").
		WillReturnRows(rows)

	got, err := repo.GetByIDs(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDsEmptySkipsQuery(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	got, err := repo.GetByIDs(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListAfterOrdersByID(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery(`WHERE id > \$1\s+ORDER BY id ASC\s+LIMIT \$2`).
		WithArgs("b", 3).
		WillReturnRows(addRow(sqlmock.NewRows(columns), "c", "c", "C"))

	got, err := repo.ListAfter(context.Background(), "b", 3)
	if err != nil {
		t.Fatalf("ListAfter() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("unexpected records %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindCandidatesPropagatesQueryError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM medications").WillReturnError(errors.New("connection reset"))

	_, err := repo.FindCandidates(context.Background(), domain.CandidateQuery{Phrase: "aspirin", Limit: 10})
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected query error, got %v", err)
	}
}

func TestBuildCandidateQuery(t *testing.T) {
	query, args := buildCandidateQuery(domain.CandidateQuery{
		Phrase: "aspirin side effects",
		Terms:  []string{"aspirin", "side", "effects"},
		Filters: domain.SearchFilterSet{
			domain.TagCondition:  {"Fever", "pain"},
			domain.TagPopulation: {"adults"},
		},
		Limit: 200,
	})

	if len(args) != 8 {
		t.Fatalf("expected 8 args, got %d: %v", len(args), args)
	}
	if args[0] != "%aspirin side effects%" || args[1] != "%aspirin%" {
		t.Fatalf("unexpected pattern args %v", args[:2])
	}
	if args[4] != "Fever" || args[6] != "adults" || args[7] != 200 {
		t.Fatalf("unexpected filter/limit args %v", args[4:])
	}
	for _, want := range []string{
		"drug_name ILIKE $1",
		"ai_contraindications ILIKE $4",
		"tags->'condition'",
		"IN (lower($5), lower($6))",
		"tags->'population'",
		"ORDER BY id ASC",
		"LIMIT $8",
	} {
		if !strings.Contains(query, want) {
			t.Fatalf("query missing %q:\n%s", want, query)
		}
	}
}

func TestBuildCandidateQueryFilterOnly(t *testing.T) {
	query, args := buildCandidateQuery(domain.CandidateQuery{
		Filters: domain.SearchFilterSet{domain.TagSubstance: {"ibuprofen"}},
	})
	if strings.Contains(query, "ILIKE") {
		t.Fatalf("filter-only query must not carry text predicates:\n%s", query)
	}
	if strings.Contains(query, "LIMIT") {
		t.Fatalf("unbounded query must not carry LIMIT:\n%s", query)
	}
	if len(args) != 1 || args[0] != "ibuprofen" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike() = %q", got)
	}
}
