package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorelens/internal/config"
	apperrors "scorelens/internal/errors"
	"scorelens/internal/shared/testutil"
	"scorelens/pkg/contracts/domain"
)

func newTestNormalizer(t *testing.T) (*Normalizer, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	return NewNormalizer(config.DefaultTables(), config.Default().Analytics, logger), logs
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(config.DefaultTables(), 2)

	tests := []struct {
		column    string
		wantField string
		wantKind  MatchKind
	}{
		{"Marks", domain.FieldScore, MatchExact},
		{"STUDENT_NAME", domain.FieldStudentID, MatchExact},
		{"student-id", domain.FieldStudentID, MatchExact},
		{"Out Of", domain.FieldMaxScore, MatchExact},
		{"max_score", domain.FieldMaxScore, MatchExact},
		{"Subjcet", domain.FieldSubject, MatchFuzzy},
		{"Semestre", domain.FieldTerm, MatchFuzzy},
		{"Form", "", MatchNone},   // "term" is two edits away on a four letter key
		{"Gender", "", MatchNone}, // no synonym close enough
		{"", "", MatchNone},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			res := r.Resolve(tt.column, nil)
			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Equal(t, tt.wantField, res.Field)
		})
	}
}

func TestResolver_HintsWin(t *testing.T) {
	r := NewResolver(config.DefaultTables(), 2)
	res := r.Resolve("Name", map[string]string{"name": domain.FieldSubject})
	assert.Equal(t, MatchHint, res.Kind)
	assert.Equal(t, domain.FieldSubject, res.Field)
}

func TestResolver_AmbiguousFuzzyTieIsUnresolved(t *testing.T) {
	tables := &config.Tables{Synonyms: map[string][]string{
		domain.FieldTerm: {"periods"},
		domain.FieldDate: {"periodx"},
	}}
	r := NewResolver(tables, 2)

	res := r.Resolve("periodz", nil)
	assert.Equal(t, MatchNone, res.Kind)
}

func TestResolver_ZeroEditDistanceDisablesFuzzy(t *testing.T) {
	r := NewResolver(config.DefaultTables(), 0)
	assert.Equal(t, MatchNone, r.Resolve("Subjcet", nil).Kind)
}

func TestNormalize_MarksScenario(t *testing.T) {
	n, _ := newTestNormalizer(t)

	partial, err := n.Normalize([]domain.RawRecord{
		domain.NewRawRecord("name", "A", "Marks", "85%"),
		domain.NewRawRecord("name", "A", "Marks", "150%"),
	}, nil)
	require.NoError(t, err)
	require.Len(t, partial, 2)

	assert.Equal(t, "A", partial[0].StudentID)
	assert.Equal(t, 85.0, partial[0].Score)
	assert.Equal(t, 100.0, partial[0].MaxScore)
	assert.Equal(t, "General", partial[0].Subject, "default subject when no subject column")
	assert.Nil(t, partial[0].Failure)

	assert.Equal(t, 150.0, partial[1].Score)
	assert.Equal(t, 100.0, partial[1].MaxScore)
}

func TestNormalize_ScoreRepresentations(t *testing.T) {
	n, _ := newTestNormalizer(t)

	tests := []struct {
		name      string
		value     any
		wantScore any
		wantMax   any
		wantFail  bool
	}{
		{"float", 72.5, 72.5, nil, false},
		{"int", 60, 60, nil, false},
		{"percent with space", "85 %", 85.0, 100.0, false},
		{"slash", "74/100", 74.0, 100.0, false},
		{"of", "18 of 20", 18.0, 20.0, false},
		{"out of", "9 out of 10", 9.0, 10.0, false},
		{"letter grade", "A", 93.0, 100.0, false},
		{"lowercase grade", "b+", 87.0, 100.0, false},
		{"numeric string", "88.5", "88.5", nil, false},
		{"thousands", "1,250", "1,250", nil, false},
		{"blank", "   ", nil, nil, false},
		{"unknown grade", "Q", nil, nil, true},
		{"mixed symbols", "8#5", nil, nil, true},
		{"word", "absent", nil, nil, true},
		{"bool", true, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			partial, err := n.Normalize([]domain.RawRecord{
				domain.NewRawRecord("student", "S1", "subject", "Math", "score", tt.value),
			}, nil)
			require.NoError(t, err)

			p := partial[0]
			if tt.wantFail {
				require.NotNil(t, p.Failure)
				assert.Equal(t, domain.ReasonTypeCoercion, p.Failure.Reason)
				assert.Equal(t, domain.FieldScore, p.Failure.Field)
				assert.NotNil(t, p.Score, "a present cell is never reported as missing")
				return
			}
			assert.Nil(t, p.Failure)
			assert.Equal(t, tt.wantScore, p.Score)
			assert.Equal(t, tt.wantMax, p.MaxScore)
		})
	}
}

func TestNormalize_PercentOverridesMaxColumn(t *testing.T) {
	n, _ := newTestNormalizer(t)
	partial, err := n.Normalize([]domain.RawRecord{
		domain.NewRawRecord("id", 7, "course", "Art", "score", "40%", "out of", 50),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 100.0, partial[0].MaxScore)
}

func TestNormalize_UnmappedColumnsLoggedOnce(t *testing.T) {
	n, logs := newTestNormalizer(t)

	partial, err := n.Normalize([]domain.RawRecord{
		domain.NewRawRecord("id", "1", "Subject", "Math", "Score", 50, "Favourite Colour", "red"),
		domain.NewRawRecord("id", "2", "Subject", "Math", "Score", 60, "Favourite Colour", "blue"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Favourite Colour"}, partial[0].Unmapped)
	assert.Len(t, logs.GetRecords(), 1)
	assert.True(t, logs.ContainsMessage("unmapped columns"))
}

func TestNormalize_DuplicateMappingExactBeatsFuzzy(t *testing.T) {
	n, logs := newTestNormalizer(t)

	partial, err := n.Normalize([]domain.RawRecord{
		domain.NewRawRecord("id", "1", "Subject", "Math", "Scroe", 10, "Score", 90, "Marks", 50),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 90, partial[0].Score, "exact beats the earlier fuzzy column, then first exact wins")
	assert.True(t, logs.ContainsAttr("column", "Scroe"))
	assert.True(t, logs.ContainsAttr("column", "Marks"))
}

func TestNormalize_HintsOverrideSynonyms(t *testing.T) {
	n, _ := newTestNormalizer(t)

	partial, err := n.Normalize([]domain.RawRecord{
		domain.NewRawRecord("Label", "Pupil 4", "Paper", "Biology", "Result", "70"),
	}, FieldHints{"Label": domain.FieldStudentID})
	require.NoError(t, err)

	assert.Equal(t, "Pupil 4", partial[0].StudentID)
	assert.Equal(t, "Biology", partial[0].Subject)
	assert.Equal(t, "70", partial[0].Score)
}

func TestNormalize_InvalidHint(t *testing.T) {
	n, _ := newTestNormalizer(t)
	_, err := n.Normalize(nil, FieldHints{"x": "teacher"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestNormalize_NonScalarIsInputShapeError(t *testing.T) {
	n, _ := newTestNormalizer(t)

	_, err := n.Normalize([]domain.RawRecord{
		domain.NewRawRecord("id", "1", "score", 10),
		domain.NewRawRecord("id", "2", "score", []int{1, 2}),
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInputShape)

	var shapeErr *domain.ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "score", shapeErr.Field)
}

func TestNormalize_EmptyInput(t *testing.T) {
	n, _ := newTestNormalizer(t)
	partial, err := n.Normalize(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, partial)
}

func TestNormalize_PreservesSourceAndSequence(t *testing.T) {
	n, _ := newTestNormalizer(t)
	raw := []domain.RawRecord{
		domain.NewRawRecord("id", "1", "score", 1),
		domain.NewRawRecord("id", "2", "score", 2),
	}
	partial, err := n.Normalize(raw, nil)
	require.NoError(t, err)

	for i := range partial {
		assert.Equal(t, i, partial[i].Seq)
		assert.Same(t, &raw[i], partial[i].Source)
		assert.True(t, partial[i].Has(domain.FieldScore))
		assert.False(t, partial[i].Has(domain.FieldSubject))
	}
}
