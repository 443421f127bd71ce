package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

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

func toolRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(result.Content))
	}
	text, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestAskAssetsReturnsResultJSON(t *testing.T) {
	answerer := &answererFake{
		result: &domain.AnswerResult{
			Mode: domain.ModeStructured,
			Structured: &domain.StructuredResult{
				Intent: domain.IntentCount,
				Count:  42,
			},
		},
	}
	srv := NewServer(answerer)

	result, err := srv.handleAskAssets(context.Background(), toolRequest(map[string]any{
		"question": "how many assets have condition poor",
	}))
	if err != nil {
		t.Fatalf("handleAskAssets: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", textContent(t, result))
	}

	var decoded domain.AnswerResult
	if err := json.Unmarshal([]byte(textContent(t, result)), &decoded); err != nil {
		t.Fatalf("decode tool output: %v", err)
	}
	if decoded.Mode != domain.ModeStructured || decoded.Structured == nil || decoded.Structured.Count != 42 {
		t.Fatalf("unexpected decoded result: %+v", decoded)
	}
	if answerer.lastQuery != "how many assets have condition poor" {
		t.Fatalf("question not forwarded: %q", answerer.lastQuery)
	}
}

func TestAskAssetsMissingQuestionIsToolError(t *testing.T) {
	srv := NewServer(&answererFake{})

	result, err := srv.handleAskAssets(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("handleAskAssets: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing question")
	}
}

func TestAskAssetsPipelineFailureIsToolError(t *testing.T) {
	srv := NewServer(&answererFake{err: errors.New("record store unavailable")})

	result, err := srv.handleAskAssets(context.Background(), toolRequest(map[string]any{
		"question": "how many assets are there",
	}))
	if err != nil {
		t.Fatalf("handleAskAssets: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for pipeline failure")
	}
	if !strings.Contains(textContent(t, result), "record store unavailable") {
		t.Fatalf("expected cause in tool error, got %s", textContent(t, result))
	}
}

func TestInvalidateCacheFlushes(t *testing.T) {
	answerer := &answererFake{}
	srv := NewServer(answerer)

	result, err := srv.handleInvalidateCache(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("handleInvalidateCache: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", textContent(t, result))
	}
	if answerer.invalidated != 1 {
		t.Fatalf("expected one invalidation, got %d", answerer.invalidated)
	}
}
