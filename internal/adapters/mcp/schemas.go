package mcpadapter

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

const (
	toolSearchMedications = "search_medications"
	toolAskAssistant      = "ask_medication_assistant"
)

func tagFilterProperty(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description + " (values inside one category are ORed)",
		"items":       map[string]any{"type": "string"},
	}
}

func searchMedicationsTool() mcp.Tool {
	properties := map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "Free-text query matched against names and label sections; may be empty when a tag filter is given",
		},
		"limit": map[string]any{
			"type":        "integer",
			"description": "Page size (1-100)",
			"default":     20,
			"minimum":     1,
			"maximum":     100,
		},
		"cursor": map[string]any{
			"type":        "string",
			"description": "nextCursor from the previous page",
		},
	}
	for _, category := range domain.TagCategories {
		properties[category.IndexField()] = tagFilterProperty("Filter by " + string(category))
	}

	return mcp.Tool{
		Name:        toolSearchMedications,
		Description: "Search the medication catalog with free text and tag filters; returns one page and a continuation cursor",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
		},
	}
}

func askAssistantTool() mcp.Tool {
	return mcp.Tool{
		Name:        toolAskAssistant,
		Description: "Ask the medication assistant a question; pass back the returned context to continue the conversation",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"userPrompt": map[string]any{
					"type":        "string",
					"description": "The question for the assistant",
				},
				"context": map[string]any{
					"type":        "array",
					"description": "Conversation history returned by the previous call",
					"items":       map[string]any{"type": "object"},
				},
			},
			Required: []string{"userPrompt"},
		},
	}
}
