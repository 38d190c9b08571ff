package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

type fakeSearcher struct {
	got   domain.SearchRequest
	calls int
	page  *domain.SearchPage
	err   error
}

func (f *fakeSearcher) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchPage, error) {
	f.calls++
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

type fakeChat struct {
	gotPrompt  string
	gotHistory []domain.ConversationTurn
	resp       *domain.ChatResponse
	err        error
}

func (f *fakeChat) Chat(_ context.Context, prompt string, history []domain.ConversationTurn) (*domain.ChatResponse, error) {
	f.gotPrompt, f.gotHistory = prompt, history
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newTestServer(search *fakeSearcher, chat *fakeChat) *Server {
	return NewServer(search, chat, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("expected tool result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestSearchMedicationsMapsArguments(t *testing.T) {
	search := &fakeSearcher{page: &domain.SearchPage{
		Items:      []domain.Medication{{ID: "m1", Name: "Ibuprofen", Slug: "ibuprofen"}},
		NextCursor: "next",
		HasMore:    true,
	}}
	srv := newTestServer(search, &fakeChat{})

	result, err := srv.handleSearchMedications(context.Background(), callRequest(toolSearchMedications, map[string]any{
		"query":          "pain",
		"limit":          float64(5),
		"cursor":         "abc",
		"tags_condition": []any{"fever", "pain"},
		"tags_substance": "ibuprofen, naproxen",
	}))
	if err != nil {
		t.Fatalf("handleSearchMedications: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	if search.got.Text != "pain" || search.got.Limit != 5 || search.got.Cursor != "abc" {
		t.Fatalf("unexpected request: %+v", search.got)
	}
	if !reflect.DeepEqual(search.got.Filters[domain.TagCondition], []string{"fever", "pain"}) {
		t.Fatalf("unexpected condition filter: %v", search.got.Filters[domain.TagCondition])
	}
	if !reflect.DeepEqual(search.got.Filters[domain.TagSubstance], []string{"ibuprofen", "naproxen"}) {
		t.Fatalf("unexpected substance filter: %v", search.got.Filters[domain.TagSubstance])
	}

	var page struct {
		Medications []domain.Medication `json:"medications"`
		NextCursor  string              `json:"nextCursor"`
		HasMore     bool                `json:"hasMore"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &page); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(page.Medications) != 1 || page.Medications[0].Slug != "ibuprofen" || page.NextCursor != "next" || !page.HasMore {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestSearchMedicationsDefaultsLimit(t *testing.T) {
	search := &fakeSearcher{page: &domain.SearchPage{Items: []domain.Medication{}}}
	srv := newTestServer(search, &fakeChat{})

	if _, err := srv.handleSearchMedications(context.Background(), callRequest(toolSearchMedications, map[string]any{"query": "x"})); err != nil {
		t.Fatalf("handleSearchMedications: %v", err)
	}
	if search.got.Limit != defaultSearchLimit {
		t.Fatalf("expected default limit %d, got %d", defaultSearchLimit, search.got.Limit)
	}
}

func TestSearchMedicationsRejectsBadArguments(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "limit too large", args: map[string]any{"limit": float64(500)}},
		{name: "fractional limit", args: map[string]any{"limit": 2.5}},
		{name: "limit wrong type", args: map[string]any{"limit": "ten"}},
		{name: "tag list with number", args: map[string]any{"tags_population": []any{"adult", 3.0}}},
		{name: "tag wrong type", args: map[string]any{"tags_population": true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			search := &fakeSearcher{}
			srv := newTestServer(search, &fakeChat{})
			result, err := srv.handleSearchMedications(context.Background(), callRequest(toolSearchMedications, tc.args))
			if err != nil {
				t.Fatalf("handleSearchMedications: %v", err)
			}
			if !result.IsError {
				t.Fatalf("expected tool error")
			}
			if !strings.Contains(resultText(t, result), codeInvalidParams) {
				t.Fatalf("expected %s code, got %s", codeInvalidParams, resultText(t, result))
			}
			if search.calls != 0 {
				t.Fatalf("search must not run on invalid arguments")
			}
		})
	}
}

func TestAskAssistantPassesHistory(t *testing.T) {
	chat := &fakeChat{resp: &domain.ChatResponse{
		Blocks: []domain.Block{{Type: domain.BlockParagraph, Contents: []domain.Inline{{Text: "Take with food."}}}},
		Context: []domain.ConversationTurn{
			domain.TextTurn(domain.RoleUser, "hi"),
			domain.TextTurn(domain.RoleAssistant, "hello"),
		},
	}}
	srv := newTestServer(&fakeSearcher{}, chat)

	result, err := srv.handleAskAssistant(context.Background(), callRequest(toolAskAssistant, map[string]any{
		"userPrompt": "  how to take ibuprofen?  ",
		"context": []any{
			map[string]any{"role": "user", "content": "hi"},
			map[string]any{"role": "assistant", "content": "hello"},
		},
	}))
	if err != nil {
		t.Fatalf("handleAskAssistant: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if chat.gotPrompt != "how to take ibuprofen?" {
		t.Fatalf("unexpected prompt %q", chat.gotPrompt)
	}
	if len(chat.gotHistory) != 2 || chat.gotHistory[0].Role != domain.RoleUser || chat.gotHistory[1].Text() != "hello" {
		t.Fatalf("unexpected history: %+v", chat.gotHistory)
	}
	if !strings.Contains(resultText(t, result), "Take with food.") {
		t.Fatalf("expected blocks in result, got %s", resultText(t, result))
	}
}

func TestAskAssistantRequiresPrompt(t *testing.T) {
	chat := &fakeChat{}
	srv := newTestServer(&fakeSearcher{}, chat)

	result, err := srv.handleAskAssistant(context.Background(), callRequest(toolAskAssistant, map[string]any{"userPrompt": "   "}))
	if err != nil {
		t.Fatalf("handleAskAssistant: %v", err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), codeInvalidParams) {
		t.Fatalf("expected invalid params error")
	}
}

func TestAskAssistantRejectsMalformedContext(t *testing.T) {
	srv := newTestServer(&fakeSearcher{}, &fakeChat{})

	result, err := srv.handleAskAssistant(context.Background(), callRequest(toolAskAssistant, map[string]any{
		"userPrompt": "hi",
		"context":    "not a list",
	}))
	if err != nil {
		t.Fatalf("handleAskAssistant: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for malformed context")
	}
}

func TestFailuresCarryErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{err: domain.WrapError(domain.ErrInvalidInput, "search", errors.New("bad cursor")), code: codeInvalidParams},
		{err: &domain.AdmissionError{Key: "chat", RetryAfter: 2}, code: codeRateLimited},
		{err: domain.WrapError(domain.ErrUpstream, "chat", errors.New("boom")), code: codeUpstream},
		{err: domain.WrapError(domain.ErrRetrievalUnavailable, "chat", errors.New("down")), code: codeUpstream},
		{err: domain.WrapError(domain.ErrTemporary, "search", errors.New("down")), code: codeUnavailable},
		{err: errors.New("unexpected"), code: codeInternal},
	}
	for _, tc := range tests {
		srv := newTestServer(&fakeSearcher{}, &fakeChat{err: tc.err})
		result, err := srv.handleAskAssistant(context.Background(), callRequest(toolAskAssistant, map[string]any{"userPrompt": "hi"}))
		if err != nil {
			t.Fatalf("handleAskAssistant: %v", err)
		}
		var body map[string]string
		if err := json.Unmarshal([]byte(resultText(t, result)), &body); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if !result.IsError || body["code"] != tc.code {
			t.Fatalf("error %v: expected code %s, got %+v", tc.err, tc.code, body)
		}
	}
}

func TestSearchToolSchemaListsTagCategories(t *testing.T) {
	tool := searchMedicationsTool()
	for _, category := range domain.TagCategories {
		if _, ok := tool.InputSchema.Properties[category.IndexField()]; !ok {
			t.Fatalf("missing %s property", category.IndexField())
		}
	}
}
