package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/medication-finder/internal/core/domain"
	"github.com/kirillkom/medication-finder/internal/infrastructure/resilience"
)

// searchFields are the analyzed fields with their boosts.
var searchFields = []string{
	"drugName^3",
	"genericName^2",
	"title",
	"ai_description",
	"ai_warnings",
	"ai_dosing",
	"ai_use_and_conditions",
	"ai_contraindications",
	"metaDescription",
}

type Options struct {
	Username string
	Password string
	Timeout  time.Duration
	Executor *resilience.Executor
}

// Client ranks medications with an Elasticsearch index over its REST API.
type Client struct {
	baseURL    string
	index      string
	username   string
	password   string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu sync.Mutex
	ensured  bool
}

func New(baseURL, index string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		index:      index,
		username:   opts.Username,
		password:   opts.Password,
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.Executor,
	}
}

// SearchRanked returns at most size hits sorted by score desc then id asc.
func (c *Client) SearchRanked(ctx context.Context, query domain.SearchQuery, size int) ([]domain.RankedHit, error) {
	body := buildSearchBody(query, size)

	var resp searchResponse
	path := "/" + url.PathEscape(c.index) + "/_search"
	err := c.executor.Execute(ctx, "elastic.search", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, path, body, &resp, "search")
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporary("elastic search", err, resilience.ClassifyHTTPError)
	}

	hits := make([]domain.RankedHit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		id := h.Source.ID
		if id == "" {
			id = h.ID
		}
		score := 0.0
		if h.Score != nil {
			score = *h.Score
		}
		hits = append(hits, domain.RankedHit{ID: id, Slug: h.Source.Slug, Score: score})
	}
	return hits, nil
}

// IndexMedication writes the medication document under its id.
func (c *Client) IndexMedication(ctx context.Context, med *domain.Medication) error {
	if med == nil || med.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "index medication", errors.New("medication id is required"))
	}
	if err := c.EnsureIndex(ctx); err != nil {
		return err
	}

	path := "/" + url.PathEscape(c.index) + "/_doc/" + url.PathEscape(med.ID)
	err := c.executor.Execute(ctx, "elastic.index", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPut, path, toDocument(med), nil, "index")
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return resilience.WrapTemporary("elastic index", err, resilience.ClassifyHTTPError)
	}
	return nil
}

// EnsureIndex creates the index with its mapping once per process.
func (c *Client) EnsureIndex(ctx context.Context) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensured {
		return nil
	}

	err := c.doJSON(ctx, http.MethodPut, "/"+url.PathEscape(c.index), indexMapping(), nil, "create index")
	if err != nil {
		var statusErr *resilience.StatusError
		// 400 resource_already_exists_exception
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest ||
			!strings.Contains(statusErr.Body, "resource_already_exists_exception") {
			return err
		}
	}
	c.ensured = true
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elastic %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewStatusError("elastic", operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
