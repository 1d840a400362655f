package behavior

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"scorelens/internal/shared/textmatch"
	"scorelens/pkg/contracts/domain"
)

const (
	maxAttributeWords = 5
	maxAttributeLen   = 60
)

// ocrFixes undoes the character swaps OCR most often makes in rating words.
var ocrFixes = strings.NewReplacer("0", "o", "1", "l", "5", "s", "@", "a", "4", "a", "$", "s")

// ExtractRatings finds "attribute rating" pairs such as "Punctuality  Good"
// or "Neatness: Very Good". When a line holds a table row split with '|', only
// the leftmost cell is read. A later pair for the same attribute replaces the
// earlier one in place.
func (e *Extractor) ExtractRatings(text string) []domain.RatingPair {
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)

	var pairs []domain.RatingPair
	index := make(map[string]int)

	for n, line := range strings.Split(text, "\n") {
		if cell, _, found := strings.Cut(line, "|"); found {
			line = cell
		}
		tokens := textmatch.Tokenize(line)

		from := 0
		for i := 0; i < len(tokens); i++ {
			rating, width := e.ratingAt(tokens, i)
			if rating == "" {
				continue
			}
			attr := attribute(tokens[from:i])
			from = i + width
			i += width - 1
			if attr == "" {
				continue
			}

			key := strings.ToLower(attr)
			if at, seen := index[key]; seen {
				pairs[at].Rating = rating
				pairs[at].Line = n + 1
				continue
			}
			index[key] = len(pairs)
			pairs = append(pairs, domain.RatingPair{Attribute: attr, Rating: rating, Line: n + 1})
		}
	}

	if pairs == nil {
		return []domain.RatingPair{}
	}
	e.logger.Debug("ratings extracted", "count", len(pairs))
	return pairs
}

// ratingAt reports the rating starting at tokens[i] and how many tokens it
// spans. Two-word ratings are tried first.
func (e *Extractor) ratingAt(tokens []textmatch.Token, i int) (string, int) {
	if i+1 < len(tokens) {
		if r := e.lookupRating(tokens[i].Text + " " + tokens[i+1].Text); r != "" {
			return r, 2
		}
	}
	if r := e.lookupRating(tokens[i].Text); r != "" {
		return r, 1
	}
	return "", 0
}

func (e *Extractor) lookupRating(word string) string {
	if r, ok := e.ratings[word]; ok {
		return r
	}
	if r, ok := e.ratings[ocrFixes.Replace(word)]; ok {
		return r
	}
	return ""
}

// attribute joins the last few words before a rating, skipping numbers and
// score fragments.
func attribute(tokens []textmatch.Token) string {
	var words []string
	for i := len(tokens) - 1; i >= 0 && len(words) < maxAttributeWords; i-- {
		if strings.IndexFunc(tokens[i].Text, unicode.IsDigit) >= 0 {
			continue
		}
		words = append(words, tokens[i].Text)
	}
	if len(words) == 0 {
		return ""
	}
	for l, r := 0, len(words)-1; l < r; l, r = l+1, r-1 {
		words[l], words[r] = words[r], words[l]
	}

	// a Caser keeps state, so each call gets its own
	attr := cases.Title(language.English).String(strings.Join(words, " "))
	if len(attr) > maxAttributeLen {
		return ""
	}
	return attr
}

// GroupByRating groups attributes under their rating, attributes sorted.
func GroupByRating(pairs []domain.RatingPair) map[string][]string {
	grouped := make(map[string][]string)
	for _, p := range pairs {
		grouped[p.Rating] = append(grouped[p.Rating], p.Attribute)
	}
	for _, attrs := range grouped {
		sort.Strings(attrs)
	}
	return grouped
}
