package domain

import (
	"sort"
	"strings"
)

type TagCategory string

const (
	TagCondition  TagCategory = "condition"
	TagSubstance  TagCategory = "substance"
	TagIndication TagCategory = "indication"
	TagStrength   TagCategory = "strength"
	TagPopulation TagCategory = "population"
)

// TagCategories lists the filterable categories in a stable order.
var TagCategories = []TagCategory{TagCondition, TagSubstance, TagIndication, TagStrength, TagPopulation}

func (c TagCategory) Valid() bool {
	switch c {
	case TagCondition, TagSubstance, TagIndication, TagStrength, TagPopulation:
		return true
	default:
		return false
	}
}

// IndexField returns the search index field holding the category tags.
func (c TagCategory) IndexField() string {
	switch c {
	case TagCondition:
		return "tags_condition"
	case TagSubstance:
		return "tags_substance"
	case TagIndication:
		return "tags_indications"
	case TagStrength:
		return "tags_strengths_concentrations"
	case TagPopulation:
		return "tags_population"
	default:
		return ""
	}
}

// SearchFilterSet ORs values within a category and ANDs across categories.
type SearchFilterSet map[TagCategory][]string

// Normalize trims, dedupes and sorts values and drops empty categories.
func (f SearchFilterSet) Normalize() SearchFilterSet {
	out := make(SearchFilterSet, len(f))
	for category, values := range f {
		if !category.Valid() {
			continue
		}
		seen := make(map[string]struct{}, len(values))
		cleaned := make([]string, 0, len(values))
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			cleaned = append(cleaned, v)
		}
		if len(cleaned) == 0 {
			continue
		}
		sort.Strings(cleaned)
		out[category] = cleaned
	}
	return out
}

func (f SearchFilterSet) IsEmpty() bool {
	for _, values := range f {
		if len(values) > 0 {
			return false
		}
	}
	return true
}

// Matches reports whether tags satisfy every constrained category.
func (f SearchFilterSet) Matches(tags map[TagCategory][]string) bool {
	for category, wanted := range f {
		if len(wanted) == 0 {
			continue
		}
		if !containsAny(tags[category], wanted) {
			return false
		}
	}
	return true
}

func containsAny(have, wanted []string) bool {
	for _, w := range wanted {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

type SearchSource string

const (
	SourceEngine  SearchSource = "engine"
	SourceRanker  SearchSource = "ranker"
	SourceCatalog SearchSource = "id"
)

// SearchRequest is the caller-facing form of a search; Cursor is the opaque token.
type SearchRequest struct {
	Text    string
	Filters SearchFilterSet
	Cursor  string
	Limit   int
}

type SearchQuery struct {
	Text    string
	Filters SearchFilterSet
	Cursor  *Cursor
	Limit   int
}

// RankedHit is one identifier returned by the search engine with its sort key.
type RankedHit struct {
	ID    string
	Slug  string
	Score float64
}

type SearchPage struct {
	Items      []Medication `json:"medications"`
	NextCursor string       `json:"nextCursor,omitempty"`
	HasMore    bool         `json:"hasMore"`
	Source     SearchSource `json:"-"`
}

// CandidateQuery selects fallback candidates by substring predicates.
type CandidateQuery struct {
	Phrase  string
	Terms   []string
	Filters SearchFilterSet
	Limit   int
}
