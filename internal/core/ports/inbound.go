package ports

import (
	"context"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

// MedicationSearcher is the inbound contract for filtered relevance search.
type MedicationSearcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchPage, error)
}

// MedicationCatalog is the inbound read model for listing and detail pages.
type MedicationCatalog interface {
	List(ctx context.Context, cursor string, limit int) (*domain.SearchPage, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Medication, error)
}

// ChatService answers one conversational turn against the caller-owned history.
type ChatService interface {
	Chat(ctx context.Context, userPrompt string, history []domain.ConversationTurn) (*domain.ChatResponse, error)
}

// MedicationIndexer keeps the search engine in sync with the store.
type MedicationIndexer interface {
	RequestReindex(ctx context.Context, ids []string) (int, error)
	ReindexByID(ctx context.Context, id string) error
}
