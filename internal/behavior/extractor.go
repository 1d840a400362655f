package behavior

import (
	"log/slog"
	"sort"

	"scorelens/internal/config"
	"scorelens/internal/shared/textmatch"
	"scorelens/pkg/contracts/domain"
)

// MatchKind is how an indicator phrase matched.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchGapped
	MatchFuzzy
)

const (
	// MaxGap is the number of unrelated words allowed between two words of
	// a gapped match.
	MaxGap = 2

	// minFuzzyLen is the shortest word compared with edit distance.
	minFuzzyLen = 5

	wordBonus = 0.02
	maxBonus  = 0.08
)

var baseConfidence = map[MatchKind]float64{
	MatchExact:  0.90,
	MatchGapped: 0.70,
	MatchFuzzy:  0.50,
}

type phrase struct {
	label string
	words []string
}

// Extractor detects traits and ratings. It is immutable after construction.
type Extractor struct {
	phrases []phrase
	ratings map[string]string
	logger  *slog.Logger
}

// NewExtractor compiles the lexicon and rating vocabulary of tables.
func NewExtractor(tables *config.Tables, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if tables == nil {
		tables = config.DefaultTables()
	}

	labels := make([]string, 0, len(tables.Lexicon))
	for label := range tables.Lexicon {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var phrases []phrase
	for _, label := range labels {
		for _, p := range tables.Lexicon[label] {
			toks := textmatch.Tokenize(p)
			if len(toks) == 0 {
				continue
			}
			words := make([]string, len(toks))
			for i, t := range toks {
				words[i] = t.Text
			}
			phrases = append(phrases, phrase{label: label, words: words})
		}
	}

	ratings := make(map[string]string, len(tables.Ratings))
	for k, v := range tables.Ratings {
		ratings[textmatch.NormalizeKey(k)] = v
	}

	return &Extractor{
		phrases: phrases,
		ratings: ratings,
		logger:  logger.With(slog.String("component", "behavior")),
	}
}

type match struct {
	kind       MatchKind
	start, end int // token indexes, end inclusive
}

// Extract returns at most one trait per label, the best match found, ordered
// by confidence and then label. Every evidence span is a substring of text.
func (e *Extractor) Extract(text string) []domain.BehaviorTrait {
	tokens := textmatch.Tokenize(text)
	if len(tokens) == 0 {
		return []domain.BehaviorTrait{}
	}

	best := make(map[string]domain.BehaviorTrait)
	for _, p := range e.phrases {
		m, ok := findPhrase(tokens, p.words)
		if !ok {
			continue
		}
		bonus := wordBonus * float64(len(p.words))
		if bonus > maxBonus {
			bonus = maxBonus
		}
		trait := domain.BehaviorTrait{
			Label:        p.label,
			EvidenceSpan: text[tokens[m.start].Start:tokens[m.end].End],
			Confidence:   baseConfidence[m.kind] + bonus,
			Offset:       tokens[m.start].Start,
		}
		cur, seen := best[p.label]
		if !seen || trait.Confidence > cur.Confidence ||
			(trait.Confidence == cur.Confidence && trait.Offset < cur.Offset) {
			best[p.label] = trait
		}
	}

	traits := make([]domain.BehaviorTrait, 0, len(best))
	for _, t := range best {
		traits = append(traits, t)
	}
	sort.Slice(traits, func(i, j int) bool {
		if traits[i].Confidence != traits[j].Confidence {
			return traits[i].Confidence > traits[j].Confidence
		}
		return traits[i].Label < traits[j].Label
	})

	if len(traits) > 0 {
		e.logger.Debug("traits extracted", slog.Int("count", len(traits)))
	}
	return traits
}

// findPhrase returns the most specific match of words in tokens; among
// equally specific matches the earliest wins.
func findPhrase(tokens []textmatch.Token, words []string) (match, bool) {
	if m, ok := findContiguous(tokens, words, false); ok {
		return m, true
	}
	if len(words) > 1 {
		if m, ok := findGapped(tokens, words); ok {
			return m, true
		}
	}
	return findContiguous(tokens, words, true)
}

func findContiguous(tokens []textmatch.Token, words []string, fuzzy bool) (match, bool) {
	for i := 0; i+len(words) <= len(tokens); i++ {
		ok := true
		for k, w := range words {
			if !wordMatches(tokens[i+k].Text, w, fuzzy) {
				ok = false
				break
			}
		}
		if ok {
			kind := MatchExact
			if fuzzy {
				kind = MatchFuzzy
			}
			return match{kind: kind, start: i, end: i + len(words) - 1}, true
		}
	}
	return match{}, false
}

// findGapped matches words in order, allowing up to MaxGap tokens between
// consecutive words. The earliest start with a complete match wins.
func findGapped(tokens []textmatch.Token, words []string) (match, bool) {
	for i := range tokens {
		if tokens[i].Text != words[0] {
			continue
		}
		pos := i
		ok := true
		for _, w := range words[1:] {
			next := -1
			for j := pos + 1; j <= pos+1+MaxGap && j < len(tokens); j++ {
				if tokens[j].Text == w {
					next = j
					break
				}
			}
			if next < 0 {
				ok = false
				break
			}
			pos = next
		}
		if ok {
			return match{kind: MatchGapped, start: i, end: pos}, true
		}
	}
	return match{}, false
}

func wordMatches(token, word string, fuzzy bool) bool {
	if token == word {
		return true
	}
	if !fuzzy {
		return false
	}
	if len([]rune(word)) < minFuzzyLen || len([]rune(token)) < minFuzzyLen {
		return false
	}
	return textmatch.EditDistance(token, word) == 1
}
