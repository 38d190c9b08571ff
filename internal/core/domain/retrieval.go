package domain

// RetrievalCandidate is one medication surfaced by the knowledge corpus
// together with the chunk that matched.
type RetrievalCandidate struct {
	EntityID       string  `json:"id"`
	DisplayName    string  `json:"name"`
	Slug           string  `json:"slug"`
	RelevanceChunk string  `json:"chunk"`
	Score          float64 `json:"-"`
}
