package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"marks", "marks", 0},
		{"marks", "mark", 1},
		{"scroe", "score", 1}, // transposition
		{"subjcet", "subject", 1},
		{"kitten", "sitting", 3},
		{"ca", "abc", 3}, // OSA, not full Damerau
		{"résumé", "resume", 2},
	}

	for _, tt := range tests {
		t.Run(tt.a+"->"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, EditDistance(tt.a, tt.b))
			assert.Equal(t, tt.want, EditDistance(tt.b, tt.a))
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "student name", NormalizeKey("  Student_Name "))
	assert.Equal(t, "max score", NormalizeKey("MAX-SCORE"))
	assert.Equal(t, "exam date", NormalizeKey("exam.date"))
	assert.Equal(t, "out of", NormalizeKey("Out   of"))
}

func TestTokenize_Offsets(t *testing.T) {
	text := "Works hard, always on-time."
	tokens := Tokenize(text)

	want := []string{"works", "hard", "always", "on", "time"}
	if assert.Len(t, tokens, len(want)) {
		for i, tok := range tokens {
			assert.Equal(t, want[i], tok.Text)
			assert.Equal(t, want[i], toLower(text[tok.Start:tok.End]))
		}
	}
	assert.Empty(t, Tokenize("  ,.;  "))
}

func toLower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + 'a' - 'A'
		}
	}
	return string(out)
}
