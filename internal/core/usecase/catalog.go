package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/medication-finder/internal/core/domain"
	"github.com/kirillkom/medication-finder/internal/core/ports"
)

// CatalogUseCase lists medications in id order and resolves detail pages.
type CatalogUseCase struct {
	repo   ports.MedicationRepository
	logger *slog.Logger
}

func NewCatalogUseCase(repo ports.MedicationRepository, logger *slog.Logger) *CatalogUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogUseCase{repo: repo, logger: logger}
}

func (uc *CatalogUseCase) List(ctx context.Context, cursorToken string, limit int) (*domain.SearchPage, error) {
	limit, err := resolveLimit(limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list medications", err)
	}

	afterID := ""
	if cursor := decodeCursorOrFirstPage(uc.logger, cursorToken); cursor != nil {
		if cursor.Source == domain.SourceCatalog {
			afterID = cursor.ID
		} else {
			uc.logger.Warn("cursor_invalid", "error", fmt.Sprintf("listing got %s cursor", cursor.Source))
		}
	}

	records, err := uc.repo.ListAfter(ctx, afterID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}

	page := &domain.SearchPage{Items: records, Source: domain.SourceCatalog}
	if len(records) > limit {
		page.Items = records[:limit]
		page.HasMore = true
		page.NextCursor = domain.IDCursor(page.Items[limit-1].ID).Encode()
	}
	if page.Items == nil {
		page.Items = []domain.Medication{}
	}
	return page, nil
}

func (uc *CatalogUseCase) GetBySlug(ctx context.Context, slug string) (*domain.Medication, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get medication", fmt.Errorf("slug is required"))
	}
	return uc.repo.GetBySlug(ctx, slug)
}
