package elastic

import (
	"strings"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string   `json:"_id"`
			Score  *float64 `json:"_score"`
			Source struct {
				ID   string `json:"id"`
				Slug string `json:"slug"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildSearchBody(query domain.SearchQuery, size int) map[string]any {
	var must any
	text := strings.TrimSpace(query.Text)
	if text == "" {
		must = map[string]any{"match_all": map[string]any{}}
	} else {
		must = map[string]any{
			"multi_match": map[string]any{
				"query":     text,
				"fields":    searchFields,
				"type":      "best_fields",
				"fuzziness": "AUTO",
			},
		}
	}

	boolQuery := map[string]any{"must": must}
	if filters := buildFilters(query.Filters); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	body := map[string]any{
		"size":  size,
		"query": map[string]any{"bool": boolQuery},
		"sort": []any{
			map[string]any{"_score": map[string]any{"order": "desc"}},
			map[string]any{"id": map[string]any{"order": "asc"}},
		},
		"_source":          []string{"id", "slug"},
		"track_total_hits": false,
	}
	if c := query.Cursor; c != nil && c.Source == domain.SourceEngine && c.Score != nil {
		body["search_after"] = []any{*c.Score, c.ID}
	}
	return body
}

// buildFilters emits one terms clause per category so categories AND together.
func buildFilters(filters domain.SearchFilterSet) []any {
	out := make([]any, 0, len(filters))
	for _, category := range domain.TagCategories {
		values := filters[category]
		if len(values) == 0 {
			continue
		}
		out = append(out, map[string]any{
			"terms": map[string]any{category.IndexField(): values},
		})
	}
	return out
}

func toDocument(med *domain.Medication) map[string]any {
	doc := map[string]any{
		"id":                    med.ID,
		"slug":                  med.Slug,
		"drugName":              med.Name,
		"genericName":           med.GenericName,
		"title":                 med.Title,
		"labeler":               med.LabelerName,
		"productType":           med.ProductType,
		"metaDescription":       med.MetaDescription,
		"ai_description":        med.Sections.Description,
		"ai_warnings":           med.Sections.Warnings,
		"ai_dosing":             med.Sections.Dosing,
		"ai_use_and_conditions": med.Sections.UseAndConditions,
		"ai_contraindications":  med.Sections.Contraindications,
	}
	for _, category := range domain.TagCategories {
		values := med.Tags[category]
		if values == nil {
			values = []string{}
		}
		doc[category.IndexField()] = values
	}
	return doc
}

func indexMapping() map[string]any {
	keyword := map[string]any{"type": "keyword"}
	text := map[string]any{"type": "text"}
	props := map[string]any{
		"id":                    keyword,
		"slug":                  keyword,
		"labeler":               keyword,
		"productType":           keyword,
		"drugName":              text,
		"genericName":           text,
		"title":                 text,
		"metaDescription":       text,
		"ai_description":        text,
		"ai_warnings":           text,
		"ai_dosing":             text,
		"ai_use_and_conditions": text,
		"ai_contraindications":  text,
	}
	for _, category := range domain.TagCategories {
		props[category.IndexField()] = keyword
	}
	return map[string]any{
		"mappings": map[string]any{"properties": props},
	}
}
