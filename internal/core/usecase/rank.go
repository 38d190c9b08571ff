package usecase

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

// RankWeights is the fixed weight table of the fallback ranker.
// Tiers must stay ordered: exact >> prefix > substring > per-word > long-form > labeler.
type RankWeights struct {
	ExactName        float64 `yaml:"exact_name"`
	ExactGeneric     float64 `yaml:"exact_generic"`
	PrefixName       float64 `yaml:"prefix_name"`
	PrefixGeneric    float64 `yaml:"prefix_generic"`
	SubstringName    float64 `yaml:"substring_name"`
	SubstringGeneric float64 `yaml:"substring_generic"`
	SubstringTitle   float64 `yaml:"substring_title"`
	WordName         float64 `yaml:"word_name"`
	WordGeneric      float64 `yaml:"word_generic"`
	WordTitle        float64 `yaml:"word_title"`
	LongForm         float64 `yaml:"long_form"`
	Labeler          float64 `yaml:"labeler"`
}

func DefaultRankWeights() RankWeights {
	return RankWeights{
		ExactName:        1000,
		ExactGeneric:     800,
		PrefixName:       300,
		PrefixGeneric:    200,
		SubstringName:    100,
		SubstringGeneric: 80,
		SubstringTitle:   50,
		WordName:         30,
		WordGeneric:      20,
		WordTitle:        10,
		LongForm:         5,
		Labeler:          2,
	}
}

// ParseRankWeights overlays a YAML weight table on the defaults.
func ParseRankWeights(data []byte) (RankWeights, error) {
	weights := DefaultRankWeights()
	if err := yaml.Unmarshal(data, &weights); err != nil {
		return RankWeights{}, fmt.Errorf("parse rank weights: %w", err)
	}
	if err := weights.validate(); err != nil {
		return RankWeights{}, err
	}
	return weights, nil
}

// validate keeps an exact name match above any candidate that only matches by
// prefix or substring, and keeps every tier chain strictly decreasing.
func (w RankWeights) validate() error {
	shared := w.SubstringTitle + w.WordName + w.WordGeneric + w.WordTitle + 5*w.LongForm + w.Labeler
	prefixOnly := w.PrefixName + w.PrefixGeneric + shared
	if w.ExactName <= prefixOnly {
		return fmt.Errorf("rank weights: exact_name %.1f must exceed the best prefix-only score %.1f", w.ExactName, prefixOnly)
	}
	substringOnly := w.SubstringName + w.SubstringGeneric + shared
	if w.ExactName <= substringOnly {
		return fmt.Errorf("rank weights: exact_name %.1f must exceed the best substring-only score %.1f", w.ExactName, substringOnly)
	}
	if !strictlyDecreasing(w.ExactName, w.PrefixName, w.SubstringName, w.WordName, w.LongForm, w.Labeler) {
		return fmt.Errorf("rank weights: name tiers must decrease exact > prefix > substring > word > long-form > labeler")
	}
	if !strictlyDecreasing(w.ExactGeneric, w.PrefixGeneric, w.SubstringGeneric, w.WordGeneric) {
		return fmt.Errorf("rank weights: generic tiers must decrease exact > prefix > substring > word")
	}
	if w.Labeler < 0 || w.WordTitle < 0 || w.SubstringTitle < 0 || w.WordGeneric < 0 {
		return fmt.Errorf("rank weights: weights must not be negative")
	}
	return nil
}

func strictlyDecreasing(tiers ...float64) bool {
	for i := 1; i < len(tiers); i++ {
		if tiers[i] >= tiers[i-1] {
			return false
		}
	}
	return true
}

type scoredMedication struct {
	med   domain.Medication
	score float64
}

// Ranker scores store candidates when the search engine is unavailable.
type Ranker struct {
	weights RankWeights
}

func NewRanker(weights RankWeights) *Ranker {
	return &Ranker{weights: weights}
}

// Rank scores, drops zero scores and sorts by score desc, id asc.
func (r *Ranker) Rank(query string, candidates []domain.Medication) []scoredMedication {
	phrase := normalizePhrase(query)
	words := splitAlphaNumLower(query)
	if phrase == "" && len(words) == 0 {
		return nil
	}

	out := make([]scoredMedication, 0, len(candidates))
	for _, med := range candidates {
		score := r.Score(phrase, words, med)
		if score <= 0 {
			continue
		}
		out = append(out, scoredMedication{med: med, score: score})
	}

	sortScored(out)
	return out
}

func sortScored(out []scoredMedication) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].med.ID < out[j].med.ID
	})
}

func (r *Ranker) Score(phrase string, words []string, med domain.Medication) float64 {
	w := r.weights
	name := normalizePhrase(med.Name)
	generic := normalizePhrase(med.GenericName)
	title := normalizePhrase(med.Title)

	var score float64
	switch {
	case phrase == "":
	case name == phrase:
		score += w.ExactName
	case strings.HasPrefix(name, phrase):
		score += w.PrefixName
	case strings.Contains(name, phrase):
		score += w.SubstringName
	}
	switch {
	case phrase == "":
	case generic == phrase:
		score += w.ExactGeneric
	case strings.HasPrefix(generic, phrase):
		score += w.PrefixGeneric
	case strings.Contains(generic, phrase):
		score += w.SubstringGeneric
	}
	if phrase != "" && strings.Contains(title, phrase) {
		score += w.SubstringTitle
	}

	score += w.WordName * wordCoverage(words, name)
	score += w.WordGeneric * wordCoverage(words, generic)
	score += w.WordTitle * wordCoverage(words, title)

	for _, field := range med.Sections.Fields() {
		if wordCoverage(words, strings.ToLower(field)) > 0 {
			score += w.LongForm
		}
	}
	if wordCoverage(words, strings.ToLower(med.LabelerName)) > 0 {
		score += w.Labeler
	}
	return score
}

// wordCoverage is the share of words found in text, so a long query never
// outweighs a stronger tier.
func wordCoverage(words []string, text string) float64 {
	if len(words) == 0 || text == "" {
		return 0
	}
	hits := 0
	for _, word := range words {
		if strings.Contains(text, word) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

func normalizePhrase(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 8)
	seen := make(map[string]struct{}, 8)
	var b strings.Builder
	flush := func() {
		if b.Len() < 2 {
			b.Reset()
			return
		}
		token := b.String()
		b.Reset()
		if _, ok := seen[token]; ok {
			return
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}
