package ports

import (
	"context"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

// SearchProvider produces one page of medications for a query.
type SearchProvider interface {
	Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchPage, error)
}

// SearchIndex is the primary full-text engine. It returns ranked ids only.
type SearchIndex interface {
	SearchRanked(ctx context.Context, query domain.SearchQuery, size int) ([]domain.RankedHit, error)
	IndexMedication(ctx context.Context, med *domain.Medication) error
}

// MedicationRepository reads medication records from the structured store.
type MedicationRepository interface {
	GetByIDs(ctx context.Context, ids []string) ([]domain.Medication, error)
	GetByID(ctx context.Context, id string) (*domain.Medication, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Medication, error)
	ListAfter(ctx context.Context, afterID string, limit int) ([]domain.Medication, error)
	FindCandidates(ctx context.Context, query domain.CandidateQuery) ([]domain.Medication, error)
}

// Embedder builds vectors for query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// KnowledgeRetriever looks up medication knowledge chunks for the assistant.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, text string, topK int) ([]domain.RetrievalCandidate, error)
}

// CompletionClient calls a chat completion model with tools or a response schema.
type CompletionClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error)
}

// AdmissionGate consumes cost units of the quota behind key.
type AdmissionGate interface {
	Admit(ctx context.Context, key string, cost int) error
}

// MessageQueue publishes/consumes reindex events.
type MessageQueue interface {
	PublishMedicationChanged(ctx context.Context, medicationID string) error
	SubscribeMedicationChanged(ctx context.Context, handler func(context.Context, string) error) error
}

// KnowledgeIndexer mirrors medication text into the retrieval corpus.
type KnowledgeIndexer interface {
	UpsertMedication(ctx context.Context, med *domain.Medication) error
}
