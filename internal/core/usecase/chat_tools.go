package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

const toolSearchMedicationData = "search_medication_data"

// ToolArguments is the validated argument set of one tool call.
type ToolArguments interface {
	ToolName() string
}

type SearchMedicationDataArgs struct {
	UserPrompt string `json:"userPrompt"`
}

func (SearchMedicationDataArgs) ToolName() string { return toolSearchMedicationData }

func searchMedicationTool() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        toolSearchMedicationData,
		Description: "Searches medication data for the information the user is looking for.",
		Strict:      true,
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"userPrompt"},
			"properties": map[string]any{
				"userPrompt": map[string]any{
					"type":        "string",
					"description": "normalized search phrase describing the medication information the user wants",
				},
			},
			"additionalProperties": false,
		},
	}
}

func medicationListSchema() *domain.ResponseSchema {
	return &domain.ResponseSchema{
		Name:   "medications",
		Strict: true,
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"medications": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"id":   map[string]any{"type": "string", "description": "id of the medication"},
							"name": map[string]any{"type": "string", "description": "name of the medication"},
							"slug": map[string]any{"type": "string", "description": "slug of the medication"},
						},
						"required":             []string{"id", "name", "slug"},
						"additionalProperties": false,
					},
				},
				"reasoning": map[string]any{
					"type":        "string",
					"description": "Polite conversational answer explaining why these medications were selected.",
				},
			},
			"required":             []string{"medications", "reasoning"},
			"additionalProperties": false,
		},
	}
}

// reviewResult is the schema-constrained output of the review stage.
type reviewResult struct {
	Medications []domain.EntityRef `json:"medications"`
	Reasoning   string             `json:"reasoning"`
}

// parseToolArguments decodes arguments into the variant registered for the tool name.
func parseToolArguments(call domain.ToolCall) (ToolArguments, error) {
	switch call.Function.Name {
	case toolSearchMedicationData:
		var args SearchMedicationDataArgs
		if err := decodeStrict(call.Function.Arguments, &args); err != nil {
			return nil, domain.WrapError(domain.ErrToolArgumentMalformed, "parse "+toolSearchMedicationData, err)
		}
		args.UserPrompt = strings.TrimSpace(args.UserPrompt)
		if args.UserPrompt == "" {
			return nil, domain.WrapError(domain.ErrToolArgumentMalformed, "parse "+toolSearchMedicationData, errors.New("userPrompt is empty"))
		}
		return args, nil
	default:
		return nil, domain.WrapError(domain.ErrUnknownTool, "parse tool call", fmt.Errorf("tool %q", call.Function.Name))
	}
}

func decodeStrict(raw string, out any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after arguments object")
	}
	return nil
}
