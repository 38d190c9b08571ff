package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/medication-finder/internal/core/domain"
	"github.com/kirillkom/medication-finder/internal/core/ports"
)

const maxReindexBatch = 500

// ReindexUseCase copies store records into the search engine.
type ReindexUseCase struct {
	repo  ports.MedicationRepository
	index ports.SearchIndex
	queue ports.MessageQueue
	// knowledge is optional; nil skips the retrieval corpus.
	knowledge ports.KnowledgeIndexer
}

func NewReindexUseCase(
	repo ports.MedicationRepository,
	index ports.SearchIndex,
	queue ports.MessageQueue,
	knowledge ports.KnowledgeIndexer,
) *ReindexUseCase {
	return &ReindexUseCase{repo: repo, index: index, queue: queue, knowledge: knowledge}
}

// RequestReindex publishes one event per distinct id and returns how many were queued.
func (uc *ReindexUseCase) RequestReindex(ctx context.Context, ids []string) (int, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "request reindex", fmt.Errorf("ids are required"))
	}
	if len(unique) > maxReindexBatch {
		return 0, domain.WrapError(domain.ErrInvalidInput, "request reindex", fmt.Errorf("at most %d ids per request", maxReindexBatch))
	}

	for i, id := range unique {
		if err := uc.queue.PublishMedicationChanged(ctx, id); err != nil {
			return i, fmt.Errorf("publish reindex event: %w", err)
		}
	}
	return len(unique), nil
}

func (uc *ReindexUseCase) ReindexByID(ctx context.Context, id string) error {
	med, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load medication: %w", err)
	}
	if err := uc.index.IndexMedication(ctx, med); err != nil {
		return fmt.Errorf("index medication: %w", err)
	}
	if uc.knowledge != nil {
		if err := uc.knowledge.UpsertMedication(ctx, med); err != nil {
			return fmt.Errorf("upsert medication knowledge: %w", err)
		}
	}
	return nil
}
