package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

const defaultSearchLimit = 20

// Error codes reported in the body of failed tool results.
const (
	codeInvalidParams = "invalid_params"
	codeNotFound      = "not_found"
	codeRateLimited   = "rate_limited"
	codeUpstream      = "upstream_error"
	codeUnavailable   = "unavailable"
	codeInternal      = "internal_error"
)

func (s *Server) handleSearchMedications(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	limit, err := intArg(args, "limit", defaultSearchLimit)
	if err != nil {
		return toolError(codeInvalidParams, err.Error()), nil
	}
	if limit < 1 || limit > 100 {
		return toolError(codeInvalidParams, "limit must be between 1 and 100"), nil
	}

	filters := domain.SearchFilterSet{}
	for _, category := range domain.TagCategories {
		values, err := stringListArg(args, category.IndexField())
		if err != nil {
			return toolError(codeInvalidParams, err.Error()), nil
		}
		if len(values) > 0 {
			filters[category] = values
		}
	}

	page, err := s.search.Search(ctx, domain.SearchRequest{
		Text:    stringArg(args, "query"),
		Filters: filters,
		Cursor:  stringArg(args, "cursor"),
		Limit:   limit,
	})
	if err != nil {
		return s.failure(toolSearchMedications, err), nil
	}
	return mcp.NewToolResultText(formatJSON(page)), nil
}

func (s *Server) handleAskAssistant(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	prompt := strings.TrimSpace(stringArg(args, "userPrompt"))
	if prompt == "" {
		return toolError(codeInvalidParams, "userPrompt parameter is required"), nil
	}

	var history []domain.ConversationTurn
	if raw, ok := args["context"]; ok && raw != nil {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return toolError(codeInvalidParams, "context must be an array of turns"), nil
		}
		if err := json.Unmarshal(encoded, &history); err != nil {
			return toolError(codeInvalidParams, "context must be an array of turns"), nil
		}
	}

	response, err := s.chat.Chat(ctx, prompt, history)
	if err != nil {
		return s.failure(toolAskAssistant, err), nil
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) failure(tool string, err error) *mcp.CallToolResult {
	code := errorCode(err)
	if code == codeInternal || code == codeUpstream || code == codeUnavailable {
		s.logger.Error("mcp_tool_failed", "tool", tool, "code", code, "error", err)
	}
	return toolError(code, err.Error())
}

func errorCode(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return codeInvalidParams
	case domain.IsKind(err, domain.ErrMedicationNotFound):
		return codeNotFound
	case domain.IsKind(err, domain.ErrAdmissionRejected):
		return codeRateLimited
	case domain.IsKind(err, domain.ErrToolArgumentMalformed),
		domain.IsKind(err, domain.ErrRetrievalUnavailable),
		domain.IsKind(err, domain.ErrUpstream):
		return codeUpstream
	case domain.IsKind(err, domain.ErrTemporary):
		return codeUnavailable
	default:
		return codeInternal
	}
}

func toolError(code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(formatJSON(map[string]string{
		"code":  code,
		"error": message,
	}))
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg accepts JSON numbers, which arrive as float64.
func intArg(args map[string]any, key string, def int) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}

// stringListArg accepts an array of strings or one comma-separated string.
func stringListArg(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s must contain only strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return v, nil
	default:
		return nil, fmt.Errorf("%s must be a string or an array of strings", key)
	}
}

func formatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}
