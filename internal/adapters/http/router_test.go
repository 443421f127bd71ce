package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/assetiq/assetiq/internal/core/domain"
)

type answererFake struct {
	result      *domain.AnswerResult
	err         error
	invalidated int
	lastQuery   string
}

func (f *answererFake) AnswerQuery(_ context.Context, rawQuery string) (*domain.AnswerResult, error) {
	f.lastQuery = rawQuery
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *answererFake) InvalidateAll() {
	f.invalidated++
}

type synthFake struct {
	answer string
	err    error
}

func (f *synthFake) GenerateAnswer(_ context.Context, _ string, _ *domain.ContextPayload) (string, error) {
	return f.answer, f.err
}

type storageFake struct {
	saved map[string][]byte
	err   error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = content
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	content, ok := f.saved[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	delete(f.saved, key)
	return nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) PublishRecordsChanged(context.Context, string) error { return nil }

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

func (f *queueFake) SubscribeRecordsChanged(context.Context, func(context.Context, string) error) error {
	return nil
}

func (f *queueFake) Close() {}

func testFieldTable() *domain.FieldTable {
	return domain.NewFieldTable("2026-04-01", []domain.Field{
		{Name: "condition", Type: domain.FieldCategory, Aliases: []string{"state"}, Values: []string{"Good", "Fair", "Poor"}},
		{Name: "age_years", Type: domain.FieldNumeric, Aliases: []string{"age"}},
	})
}

func newTestRouter(answerer *answererFake, synth AnswerSynthesizer, storage *storageFake, queue *queueFake) *Router {
	return NewRouter(answerer, synth, testFieldTable(), storage, queue, nil, "api-test", 0, 0)
}

func TestHealthzReturnsOK(t *testing.T) {
	rt := newTestRouter(&answererFake{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected generated request id header")
	}
}

func TestAnswerQueryStructuredResponse(t *testing.T) {
	answerer := &answererFake{
		result: &domain.AnswerResult{
			Mode: domain.ModeStructured,
			Structured: &domain.StructuredResult{
				Intent: domain.IntentCount,
				Count:  1372,
			},
		},
	}
	rt := newTestRouter(answerer, nil, nil, nil)

	body := bytes.NewBufferString(`{"question":"how many assets have condition poor"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/query", body)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var resp struct {
		Mode       string `json:"mode"`
		Structured *struct {
			Count int64 `json:"count"`
		} `json:"structured_result"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Mode != "structured" {
		t.Fatalf("expected structured mode, got %q", resp.Mode)
	}
	if resp.Structured == nil || resp.Structured.Count != 1372 {
		t.Fatalf("unexpected structured result: %+v", resp.Structured)
	}
	if answerer.lastQuery != "how many assets have condition poor" {
		t.Fatalf("question not forwarded: %q", answerer.lastQuery)
	}
}

func TestAnswerQueryRejectsEmptyQuestion(t *testing.T) {
	rt := newTestRouter(&answererFake{}, nil, nil, nil)

	body := bytes.NewBufferString(`{"question":"   "}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/query", body)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAnswerQueryRecordStoreOutageMapsTo503(t *testing.T) {
	answerer := &answererFake{
		err: domain.WrapError(domain.ErrRecordStoreUnavailable, "execute structured query", errors.New("connection refused")),
	}
	rt := newTestRouter(answerer, nil, nil, nil)

	body := bytes.NewBufferString(`{"question":"how many assets are there"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/query", body)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestAnswerQuerySynthesisAttachedWhenConfigured(t *testing.T) {
	answerer := &answererFake{
		result: &domain.AnswerResult{
			Mode: domain.ModeKnowledge,
			Context: &domain.ContextPayload{
				Items: []domain.ContextItem{{SourceID: "doc-1", Text: "corrosion guidance"}},
			},
		},
	}
	rt := newTestRouter(answerer, &synthFake{answer: "Corrosion is the main driver."}, nil, nil)

	body := bytes.NewBufferString(`{"question":"what causes pipe failure"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/query", body)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "Corrosion is the main driver." {
		t.Fatalf("expected synthesized answer, got %q", resp.Answer)
	}
}

func TestAnswerQuerySynthesisFailureStillReturnsPayload(t *testing.T) {
	answerer := &answererFake{
		result: &domain.AnswerResult{
			Mode: domain.ModeAnalytical,
			Context: &domain.ContextPayload{
				Items: []domain.ContextItem{{SourceID: "doc-9", Text: "asset notes"}},
			},
		},
	}
	rt := newTestRouter(answerer, &synthFake{err: errors.New("model offline")}, nil, nil)

	body := bytes.NewBufferString(`{"question":"why do assets fail"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/query", body)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp struct {
		Answer  string `json:"answer"`
		Context *struct {
			Items []struct {
				SourceID string `json:"source_id"`
			} `json:"items"`
		} `json:"context_payload"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "" {
		t.Fatalf("expected no answer on synthesis failure, got %q", resp.Answer)
	}
	if resp.Context == nil || len(resp.Context.Items) != 1 || resp.Context.Items[0].SourceID != "doc-9" {
		t.Fatalf("expected payload passthrough, got %+v", resp.Context)
	}
}

func TestInvalidateCacheFlushesPipeline(t *testing.T) {
	answerer := &answererFake{}
	rt := newTestRouter(answerer, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/cache/invalidate", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if answerer.invalidated != 1 {
		t.Fatalf("expected one invalidation, got %d", answerer.invalidated)
	}
}

func TestGetSchemaReturnsFieldTable(t *testing.T) {
	rt := newTestRouter(&answererFake{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp schemaResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Version != "2026-04-01" {
		t.Fatalf("unexpected version %q", resp.Version)
	}
	if len(resp.Fields) != 2 || resp.Fields[0].Name != "condition" {
		t.Fatalf("unexpected fields: %+v", resp.Fields)
	}
}

func TestOpenAPIDocumentServedAndValid(t *testing.T) {
	rt := newTestRouter(&answererFake{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/openapi.yaml", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "AssetIQ Query API") {
		t.Fatal("expected embedded document body")
	}

	if err := ValidateOpenAPIDocument(context.Background()); err != nil {
		t.Fatalf("embedded document should validate: %v", err)
	}
}

func TestUploadDocumentStoresAndPublishes(t *testing.T) {
	storage := &storageFake{}
	queue := &queueFake{}
	rt := newTestRouter(&answererFake{}, nil, storage, queue)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "condition-survey.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.4 test")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(storage.saved) != 1 {
		t.Fatalf("expected one stored object, got %d", len(storage.saved))
	}
	if len(queue.published) != 1 {
		t.Fatalf("expected one ingest event, got %d", len(queue.published))
	}
	for key := range storage.saved {
		if queue.published[0] != key {
			t.Fatalf("event key %q does not match stored key %q", queue.published[0], key)
		}
		if !strings.HasSuffix(key, ".pdf") {
			t.Fatalf("expected .pdf key, got %q", key)
		}
	}
}

func TestUploadDocumentRejectsUnsupportedType(t *testing.T) {
	storage := &storageFake{}
	queue := &queueFake{}
	rt := newTestRouter(&answererFake{}, nil, storage, queue)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("file", "notes.txt")
	part.Write([]byte("plain text"))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(storage.saved) != 0 || len(queue.published) != 0 {
		t.Fatal("rejected upload must not store or publish")
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	rt := NewRouter(&answererFake{}, nil, testFieldTable(), nil, nil, nil, "api-test", 1, 1)
	handler := rt.Handler()

	req1 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header for 429 response")
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(bytes.NewReader(res2.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode overload response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatal("expected overload error message in response")
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for first request completion")
	}
}
