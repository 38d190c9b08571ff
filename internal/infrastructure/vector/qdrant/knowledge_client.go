package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/medication-finder/internal/core/domain"
	"github.com/kirillkom/medication-finder/internal/infrastructure/resilience"
)

// Embedder is the vector source for both indexing and retrieval.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Options struct {
	// ScoreThreshold drops hits below the similarity; zero disables it.
	ScoreThreshold float64
	Executor       *resilience.Executor
}

// KnowledgeClient serves the medication knowledge corpus stored in one collection.
type KnowledgeClient struct {
	baseURL        string
	collection     string
	embedder       Embedder
	scoreThreshold float64
	httpClient     *http.Client
	executor       *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func NewKnowledgeClient(baseURL, collection string, embedder Embedder, opts Options) *KnowledgeClient {
	return &KnowledgeClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		collection:     collection,
		embedder:       embedder,
		scoreThreshold: opts.ScoreThreshold,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		executor:       opts.Executor,
	}
}

// Retrieve embeds text and returns at most topK candidates, one per medication.
func (c *KnowledgeClient) Retrieve(ctx context.Context, text string, topK int) ([]domain.RetrievalCandidate, error) {
	if topK <= 0 {
		topK = 10
	}
	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed retrieval query: %w", err)
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if c.scoreThreshold > 0 {
		reqBody["score_threshold"] = c.scoreThreshold
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	err = c.executor.Execute(ctx, "qdrant.search", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, path, reqBody, &searchResp, "search")
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporary("qdrant search", err, resilience.ClassifyHTTPError)
	}

	seen := make(map[string]struct{}, len(searchResp.Result))
	out := make([]domain.RetrievalCandidate, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		id := getStringPayload(r.Payload, "item_id")
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, domain.RetrievalCandidate{
			EntityID:       id,
			DisplayName:    getStringPayload(r.Payload, "drugName"),
			Slug:           getStringPayload(r.Payload, "slug"),
			RelevanceChunk: getStringPayload(r.Payload, "text"),
			Score:          r.Score,
		})
	}
	return out, nil
}

// UpsertMedication stores one point per non-empty long-form section.
func (c *KnowledgeClient) UpsertMedication(ctx context.Context, med *domain.Medication) error {
	sections := medicationSections(med)
	if len(sections) == 0 {
		return nil
	}

	texts := make([]string, 0, len(sections))
	for _, s := range sections {
		texts = append(texts, s.text)
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed medication sections: %w", err)
	}
	if len(vectors) != len(sections) {
		return fmt.Errorf("sections/vectors mismatch")
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(sections))
	for i, s := range sections {
		points = append(points, point{
			ID:     pointID(med.ID, s.name),
			Vector: vectors[i],
			Payload: map[string]any{
				"item_id":  med.ID,
				"drugName": med.Name,
				"slug":     med.Slug,
				"section":  s.name,
				"text":     s.text,
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	err = c.executor.Execute(ctx, "qdrant.upsert", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return resilience.WrapTemporary("qdrant upsert", err, resilience.ClassifyHTTPError)
	}
	return nil
}

type section struct {
	name string
	text string
}

func medicationSections(med *domain.Medication) []section {
	candidates := []section{
		{"ai_description", med.Sections.Description},
		{"ai_warnings", med.Sections.Warnings},
		{"ai_dosing", med.Sections.Dosing},
		{"ai_use_and_conditions", med.Sections.UseAndConditions},
		{"ai_contraindications", med.Sections.Contraindications},
	}
	out := make([]section, 0, len(candidates))
	for _, s := range candidates {
		s.text = strings.TrimSpace(s.text)
		if s.text == "" {
			continue
		}
		out = append(out, section{name: s.name, text: med.Name + ": " + s.text})
	}
	return out
}

// pointID is stable per medication section so re-indexing overwrites.
func pointID(medicationID, sectionName string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("medication:"+medicationID+"#"+sectionName)).String()
}

func (c *KnowledgeClient) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		return nil
	}

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	path := fmt.Sprintf("/collections/%s", c.collection)
	err := c.doJSON(ctx, http.MethodPut, path, reqBody, nil, "ensure collection")
	if err != nil {
		var statusErr *resilience.StatusError
		// 409 when the collection already exists (depends on version/config).
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusConflict {
			return err
		}
	}
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *KnowledgeClient) doJSON(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewStatusError("qdrant", operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}
