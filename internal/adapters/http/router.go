package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/medication-finder/internal/config"
	"github.com/kirillkom/medication-finder/internal/core/domain"
	"github.com/kirillkom/medication-finder/internal/core/ports"
	"github.com/kirillkom/medication-finder/internal/observability/metrics"
)

const (
	serviceName     = "api"
	maxRequestBytes = 1 << 20
)

type Services struct {
	Search  ports.MedicationSearcher
	Catalog ports.MedicationCatalog
	Chat    ports.ChatService
	Indexer ports.MedicationIndexer
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
	clients  clientResolver
}

// NewRouter wires the API surface; metrics may be nil.
func NewRouter(cfg config.Config, services Services, httpMetrics *metrics.HTTPServerMetrics) *Router {
	return &Router{
		cfg:      cfg,
		services: services,
		metrics:  httpMetrics,
		clients:  newClientResolver(cfg.APITrustedProxies),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("GET /medications", rt.listMedications)
	mux.HandleFunc("GET /medications/{slug}", rt.getMedication)
	mux.HandleFunc("POST /medications/search", rt.searchMedications)
	mux.HandleFunc("POST /chat", rt.chat)
	mux.HandleFunc("POST /admin/reindex", rt.requestReindex)

	var handler http.Handler = mux
	if rt.cfg.APIRequestTimeout > 0 {
		handler = timeoutMiddleware(handler, rt.cfg.APIRequestTimeout)
	}
	if rt.cfg.APIBackpressureMax > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIBackpressureMax, rt.cfg.APIBackpressureWait)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rt.rateLimitMiddleware(handler, newClientGate(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst))
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listMedications(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "list medications", fmt.Errorf("limit must be an integer")))
			return
		}
		limit = n
	}

	page, err := rt.services.Catalog.List(r.Context(), query.Get("cursor"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (rt *Router) getMedication(w http.ResponseWriter, r *http.Request) {
	med, err := rt.services.Catalog.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, med)
}

func (rt *Router) searchMedications(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	page, err := rt.services.Search.Search(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(serviceName, string(page.Source), len(page.Items))
	}
	writeJSON(w, http.StatusOK, page)
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Context == nil {
		req.Context = []domain.ConversationTurn{}
	}

	resp, err := rt.services.Chat.Chat(r.Context(), req.UserPrompt, req.Context)
	if err != nil {
		rt.recordChatFailure(err)
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordChat(serviceName, "success", resp.ToolsInvoked, len(resp.Blocks))
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: resp})
}

func (rt *Router) recordChatFailure(err error) {
	if rt.metrics == nil {
		return
	}
	var admissionErr *domain.AdmissionError
	if errors.As(err, &admissionErr) {
		rt.metrics.RecordAdmissionRejected(serviceName, admissionErr.Key)
		rt.metrics.RecordChat(serviceName, "rejected", nil, 0)
		return
	}
	rt.metrics.RecordChat(serviceName, "error", nil, 0)
}

func (rt *Router) requestReindex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	queued, err := rt.services.Indexer.RequestReindex(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": queued})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	var admissionErr *domain.AdmissionError
	if errors.As(err, &admissionErr) {
		w.Header().Set("Retry-After", strconv.Itoa(admissionErr.RetryAfter))
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
