package usecase

import (
	"context"
	"errors"
	"sort"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

type fakeSearchIndex struct {
	hits      []domain.RankedHit
	err       error
	lastQuery domain.SearchQuery
	lastSize  int
	indexed   []string
}

func (f *fakeSearchIndex) SearchRanked(_ context.Context, query domain.SearchQuery, size int) ([]domain.RankedHit, error) {
	f.lastQuery = query
	f.lastSize = size
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > size {
		return f.hits[:size], nil
	}
	return f.hits, nil
}

func (f *fakeSearchIndex) IndexMedication(_ context.Context, med *domain.Medication) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, med.ID)
	return nil
}

type fakeMedicationRepo struct {
	records       []domain.Medication
	err           error
	candidateCall *domain.CandidateQuery
}

func (f *fakeMedicationRepo) GetByIDs(_ context.Context, ids []string) ([]domain.Medication, error) {
	if f.err != nil {
		return nil, f.err
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	// Reverse id order to prove callers do not rely on store ordering.
	out := make([]domain.Medication, 0, len(ids))
	for _, rec := range f.records {
		if _, ok := wanted[rec.ID]; ok {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeMedicationRepo) GetByID(_ context.Context, id string) (*domain.Medication, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, rec := range f.records {
		if rec.ID == id {
			rec := rec
			return &rec, nil
		}
	}
	return nil, domain.WrapError(domain.ErrMedicationNotFound, "get medication", errors.New("id="+id))
}

func (f *fakeMedicationRepo) GetBySlug(_ context.Context, slug string) (*domain.Medication, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, rec := range f.records {
		if rec.Slug == slug {
			rec := rec
			return &rec, nil
		}
	}
	return nil, domain.WrapError(domain.ErrMedicationNotFound, "get medication", errors.New("slug="+slug))
}

func (f *fakeMedicationRepo) ListAfter(_ context.Context, afterID string, limit int) ([]domain.Medication, error) {
	if f.err != nil {
		return nil, f.err
	}
	sorted := append([]domain.Medication(nil), f.records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	out := make([]domain.Medication, 0, limit)
	for _, rec := range sorted {
		if afterID != "" && rec.ID <= afterID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeMedicationRepo) FindCandidates(_ context.Context, query domain.CandidateQuery) ([]domain.Medication, error) {
	f.candidateCall = &query
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Medication(nil), f.records...), nil
}

type fakeProvider struct {
	page  *domain.SearchPage
	err   error
	calls int
	last  domain.SearchQuery
}

func (f *fakeProvider) Search(_ context.Context, query domain.SearchQuery) (*domain.SearchPage, error) {
	f.calls++
	f.last = query
	if f.err != nil {
		return nil, f.err
	}
	if f.page == nil {
		return &domain.SearchPage{Items: []domain.Medication{}}, nil
	}
	return f.page, nil
}

func med(id, name string) domain.Medication {
	return domain.Medication{ID: id, Name: name, Slug: id + "-slug"}
}

func ids(items []domain.Medication) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
