package httpadapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

// tagValues accepts either a JSON array of strings or one comma-separated string.
type tagValues []string

func (t *tagValues) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var joined string
		if err := json.Unmarshal(data, &joined); err != nil {
			return err
		}
		var out []string
		for _, part := range strings.Split(joined, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*t = out
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("tag filter must be a string or an array of strings")
	}
	*t = list
	return nil
}

type searchRequest struct {
	Query      string    `json:"query"`
	Limit      int       `json:"limit"`
	Cursor     string    `json:"cursor"`
	Conditions tagValues `json:"tags_condition"`
	Substances tagValues `json:"tags_substance"`
	Indication tagValues `json:"tags_indications"`
	Strengths  tagValues `json:"tags_strengths_concentrations"`
	Population tagValues `json:"tags_population"`
}

func (r searchRequest) toDomain() domain.SearchRequest {
	filters := domain.SearchFilterSet{}
	add := func(category domain.TagCategory, values tagValues) {
		if len(values) > 0 {
			filters[category] = []string(values)
		}
	}
	add(domain.TagCondition, r.Conditions)
	add(domain.TagSubstance, r.Substances)
	add(domain.TagIndication, r.Indication)
	add(domain.TagStrength, r.Strengths)
	add(domain.TagPopulation, r.Population)

	return domain.SearchRequest{
		Text:    r.Query,
		Filters: filters,
		Cursor:  r.Cursor,
		Limit:   r.Limit,
	}
}

type chatRequest struct {
	UserPrompt string                    `json:"userPrompt"`
	Context    []domain.ConversationTurn `json:"context"`
}

type chatResponse struct {
	Response *domain.ChatResponse `json:"response"`
}
