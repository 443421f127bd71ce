package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/assetiq/assetiq/internal/core/domain"
	"github.com/assetiq/assetiq/internal/core/ports"
	"github.com/assetiq/assetiq/internal/observability/metrics"
)

// QueryAnswerer is the pipeline surface the presentation layer needs.
type QueryAnswerer interface {
	ports.QueryAnswerer
	ports.CacheAdmin
}

// AnswerSynthesizer turns a context payload into prose. Optional; when nil
// the API returns the payload itself.
type AnswerSynthesizer interface {
	GenerateAnswer(ctx context.Context, question string, payload *domain.ContextPayload) (string, error)
}

type Router struct {
	answerer QueryAnswerer
	synth    AnswerSynthesizer
	table    *domain.FieldTable
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
	metrics  *metrics.HTTPServerMetrics
	service  string

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	queueWait      time.Duration
}

func NewRouter(
	answerer QueryAnswerer,
	synth AnswerSynthesizer,
	table *domain.FieldTable,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	m *metrics.HTTPServerMetrics,
	service string,
	rateLimitRPS float64,
	rateLimitBurst int,
) *Router {
	return &Router{
		answerer:       answerer,
		synth:          synth,
		table:          table,
		storage:        storage,
		queue:          queue,
		metrics:        m,
		service:        service,
		rateLimitRPS:   rateLimitRPS,
		rateLimitBurst: rateLimitBurst,
		maxInFlight:    64,
		queueWait:      100 * time.Millisecond,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.answerQuery)
	mux.HandleFunc("/v1/cache/invalidate", rt.invalidateCache)
	mux.HandleFunc("/v1/schema", rt.getSchema)
	mux.HandleFunc("/v1/openapi.yaml", rt.getOpenAPI)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.queueWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, rt.onRateLimited)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) onRateLimited() {
	if rt.metrics != nil {
		rt.metrics.RecordRateLimited(rt.service)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Answer string `json:"answer,omitempty"`
	*domain.AnswerResult
}

func (rt *Router) answerQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSONError(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	result, err := rt.answerer.AnswerQuery(r.Context(), req.Question)
	if err != nil {
		writeJSONError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	resp := queryResponse{AnswerResult: result}
	if rt.synth != nil && result.Context != nil && len(result.Context.Items) > 0 {
		answer, synthErr := rt.synth.GenerateAnswer(r.Context(), req.Question, result.Context)
		if synthErr != nil {
			// The payload alone is still a valid response.
			slog.Warn("synthesis_degraded",
				"request_id", requestIDFromContext(r.Context()),
				"error", synthErr,
			)
		} else {
			resp.Answer = answer
		}
	}

	if rt.metrics != nil {
		items := -1
		if result.Context != nil {
			items = len(result.Context.Items)
		}
		rt.metrics.RecordQuery(rt.service, string(result.Mode), result.CacheHit, items, time.Since(start))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) invalidateCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rt.answerer.InvalidateAll()
	if rt.metrics != nil {
		rt.metrics.RecordInvalidation(rt.service, "api")
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "invalidated"})
}

type schemaFieldResponse struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Aliases []string `json:"aliases,omitempty"`
	Values  []string `json:"values,omitempty"`
}

type schemaResponse struct {
	Version string                `json:"version"`
	Fields  []schemaFieldResponse `json:"fields"`
}

func (rt *Router) getSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := schemaResponse{Version: rt.table.Version}
	for _, f := range rt.table.Fields {
		resp.Fields = append(resp.Fields, schemaFieldResponse{
			Name:    f.Name,
			Type:    string(f.Type),
			Aliases: f.Aliases,
			Values:  f.Values,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) getOpenAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIDocument)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if rt.storage == nil || rt.queue == nil {
		writeJSONError(w, http.StatusNotImplemented, "document upload is not configured")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext != ".pdf" && ext != ".xlsx" {
		writeJSONError(w, http.StatusBadRequest, "only .pdf and .xlsx documents are accepted")
		return
	}

	key := "uploads/" + uuid.NewString() + ext
	if err := rt.storage.Save(r.Context(), key, file); err != nil {
		writeJSONError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	if err := rt.queue.PublishDocumentIngested(r.Context(), key); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "document stored but ingest event failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"document_id": key})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
