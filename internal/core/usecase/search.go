package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/medication-finder/internal/core/domain"
	"github.com/kirillkom/medication-finder/internal/core/ports"
)

const (
	DefaultPageLimit       = 20
	MaxPageLimit           = 100
	defaultCandidateLimit  = 200
	filterOnlyBrowsingRank = 1
)

// MedicationSearchUseCase validates a search request and runs it through a provider.
type MedicationSearchUseCase struct {
	provider ports.SearchProvider
	logger   *slog.Logger
}

func NewMedicationSearchUseCase(provider ports.SearchProvider, logger *slog.Logger) *MedicationSearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &MedicationSearchUseCase{provider: provider, logger: logger}
}

func (uc *MedicationSearchUseCase) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchPage, error) {
	limit, err := resolveLimit(req.Limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search medications", err)
	}
	filters := req.Filters.Normalize()
	text := strings.TrimSpace(req.Text)
	if text == "" && filters.IsEmpty() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search medications", fmt.Errorf("query or at least one tag filter is required"))
	}

	return uc.provider.Search(ctx, domain.SearchQuery{
		Text:    text,
		Filters: filters,
		Cursor:  decodeCursorOrFirstPage(uc.logger, req.Cursor),
		Limit:   limit,
	})
}

func resolveLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultPageLimit, nil
	}
	if limit < 1 || limit > MaxPageLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d, got %d", MaxPageLimit, limit)
	}
	return limit, nil
}

// decodeCursorOrFirstPage serves the first page for a corrupt token.
func decodeCursorOrFirstPage(logger *slog.Logger, token string) *domain.Cursor {
	cursor, err := domain.DecodeCursor(token)
	if err != nil {
		logger.Warn("cursor_invalid", "error", err)
		return nil
	}
	return cursor
}

// EngineSearch asks the search index for ranked ids and loads the records from the store.
type EngineSearch struct {
	index ports.SearchIndex
	repo  ports.MedicationRepository
}

func NewEngineSearch(index ports.SearchIndex, repo ports.MedicationRepository) *EngineSearch {
	return &EngineSearch{index: index, repo: repo}
}

func (s *EngineSearch) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchPage, error) {
	if query.Cursor != nil && query.Cursor.Source != domain.SourceEngine {
		return nil, domain.WrapError(domain.ErrInvalidInput, "engine search", fmt.Errorf("cursor belongs to %q", query.Cursor.Source))
	}

	hits, err := s.index.SearchRanked(ctx, query, query.Limit+1)
	if err != nil {
		return nil, fmt.Errorf("engine search: %w", err)
	}

	page := &domain.SearchPage{Items: []domain.Medication{}, Source: domain.SourceEngine}
	if len(hits) > query.Limit {
		hits = hits[:query.Limit]
		last := hits[len(hits)-1]
		page.HasMore = true
		page.NextCursor = domain.ScoreCursor(domain.SourceEngine, last.Score, last.ID).Encode()
	}
	if len(hits) == 0 {
		return page, nil
	}

	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.ID)
	}
	records, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("engine search load records: %w", err)
	}
	page.Items = orderByIDs(ids, records)
	return page, nil
}

// orderByIDs restores the engine order; the store gives no order guarantee.
// Ids without a record are skipped.
func orderByIDs(ids []string, records []domain.Medication) []domain.Medication {
	byID := make(map[string]domain.Medication, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	out := make([]domain.Medication, 0, len(ids))
	for _, id := range ids {
		rec, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// RankedStoreSearch scores store candidates in process.
type RankedStoreSearch struct {
	repo           ports.MedicationRepository
	ranker         *Ranker
	candidateLimit int
}

func NewRankedStoreSearch(repo ports.MedicationRepository, ranker *Ranker, candidateLimit int) *RankedStoreSearch {
	if ranker == nil {
		ranker = NewRanker(DefaultRankWeights())
	}
	if candidateLimit <= 0 {
		candidateLimit = defaultCandidateLimit
	}
	return &RankedStoreSearch{repo: repo, ranker: ranker, candidateLimit: candidateLimit}
}

func (s *RankedStoreSearch) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchPage, error) {
	candidates, err := s.repo.FindCandidates(ctx, domain.CandidateQuery{
		Phrase:  query.Text,
		Terms:   splitAlphaNumLower(query.Text),
		Filters: query.Filters,
		Limit:   s.candidateLimit,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "ranked search", err)
	}

	matching := make([]domain.Medication, 0, len(candidates))
	for _, c := range candidates {
		if query.Filters.Matches(c.Tags) {
			matching = append(matching, c)
		}
	}

	var scored []scoredMedication
	if strings.TrimSpace(query.Text) == "" {
		scored = uniformScores(matching)
	} else {
		scored = s.ranker.Rank(query.Text, matching)
	}

	cursor := query.Cursor
	if cursor != nil && cursor.Source != domain.SourceRanker {
		cursor = nil
	}
	start := 0
	for start < len(scored) && !cursor.After(scored[start].score, scored[start].med.ID) {
		start++
	}
	scored = scored[start:]

	page := &domain.SearchPage{Items: []domain.Medication{}, Source: domain.SourceRanker}
	if len(scored) > query.Limit {
		scored = scored[:query.Limit]
		last := scored[len(scored)-1]
		page.HasMore = true
		page.NextCursor = domain.ScoreCursor(domain.SourceRanker, last.score, last.med.ID).Encode()
	}
	for _, sm := range scored {
		page.Items = append(page.Items, sm.med)
	}
	return page, nil
}

// uniformScores orders filter-only results by id.
func uniformScores(meds []domain.Medication) []scoredMedication {
	out := make([]scoredMedication, 0, len(meds))
	for _, m := range meds {
		out = append(out, scoredMedication{med: m, score: filterOnlyBrowsingRank})
	}
	sortScored(out)
	return out
}

// FallbackSearch serves from primary and switches to fallback when the
// primary fails or finds nothing.
type FallbackSearch struct {
	primary  ports.SearchProvider
	fallback ports.SearchProvider
	logger   *slog.Logger
}

func NewFallbackSearch(primary, fallback ports.SearchProvider, logger *slog.Logger) *FallbackSearch {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackSearch{primary: primary, fallback: fallback, logger: logger}
}

func (s *FallbackSearch) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchPage, error) {
	if query.Cursor != nil && query.Cursor.Source == domain.SourceRanker {
		return s.fallback.Search(ctx, query)
	}

	page, err := s.primary.Search(ctx, query)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return nil, err
		}
		s.logger.Warn("search_primary_failed", "error", err, "query", query.Text)
		// An engine cursor means nothing to the ranker.
		query.Cursor = nil
	case len(page.Items) > 0:
		return page, nil
	case query.Cursor != nil:
		// Empty continuation page: the engine result set is exhausted.
		return page, nil
	default:
		s.logger.Info("search_primary_empty", "query", query.Text)
	}

	return s.fallback.Search(ctx, query)
}
