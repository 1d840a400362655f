package cleaner

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorelens/internal/config"
	apperrors "scorelens/internal/errors"
	"scorelens/internal/schema"
	"scorelens/internal/shared/testutil"
	"scorelens/pkg/contracts/domain"
)

func newTestCleaner(t *testing.T) (*Cleaner, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	return NewCleaner(config.Default().Analytics, logger), logs
}

func partial(seq int, student, subject, score, maxScore any) domain.PartialRecord {
	raw := domain.NewRawRecord("student", student, "subject", subject, "score", score)
	return domain.PartialRecord{
		StudentID: student,
		Subject:   subject,
		Score:     score,
		MaxScore:  maxScore,
		Source:    &raw,
		Seq:       seq,
	}
}

func TestClean_MarksScenario(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	n := schema.NewNormalizer(config.DefaultTables(), config.Default().Analytics, logger)
	c, logs := newTestCleaner(t)

	raw := []domain.RawRecord{
		domain.NewRawRecord("Student Name", "Alice", "Subject", "Math", "Marks", "85%"),
		domain.NewRawRecord("Student Name", "Bob", "Subject", "Math", "Marks", "150%"),
	}
	parts, err := n.Normalize(raw, nil)
	require.NoError(t, err)

	res, err := c.Clean(parts)
	require.NoError(t, err)

	require.Len(t, res.Valid, 1)
	assert.Equal(t, "Alice", res.Valid[0].StudentID)
	assert.Equal(t, "Math", res.Valid[0].Subject)
	assert.Equal(t, 85.0, res.Valid[0].Score)
	assert.Equal(t, 100.0, res.Valid[0].MaxScore)

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, domain.ReasonRangeViolation, res.Rejected[0].Reason)
	assert.Equal(t, domain.FieldScore, res.Rejected[0].Field)
	v, _ := res.Rejected[0].Raw.Get("Student Name")
	assert.Equal(t, "Bob", v)

	testutil.AssertLogContains(t, logs, 0, "records rejected")
}

func TestClean_RejectionReasons(t *testing.T) {
	tests := []struct {
		name       string
		in         domain.PartialRecord
		wantReason domain.RejectReason
		wantField  string
	}{
		{"missing student", partial(0, nil, "Math", 50.0, nil), domain.ReasonMissingField, domain.FieldStudentID},
		{"blank subject", partial(0, "s1", "  ", 50.0, nil), domain.ReasonMissingField, domain.FieldSubject},
		{"missing score", partial(0, "s1", "Math", nil, nil), domain.ReasonMissingField, domain.FieldScore},
		{"text score", partial(0, "s1", "Math", "abc", nil), domain.ReasonTypeCoercion, domain.FieldScore},
		{"boolean student", partial(0, true, "Math", 50.0, nil), domain.ReasonTypeCoercion, domain.FieldStudentID},
		{"text max", partial(0, "s1", "Math", 50.0, "lots"), domain.ReasonTypeCoercion, domain.FieldMaxScore},
		{"negative score", partial(0, "s1", "Math", -1.0, nil), domain.ReasonRangeViolation, domain.FieldScore},
		{"over max", partial(0, "s1", "Math", 21.0, 20.0), domain.ReasonRangeViolation, domain.FieldScore},
		{"zero max", partial(0, "s1", "Math", 0.0, 0.0), domain.ReasonRangeViolation, domain.FieldMaxScore},
		{"nan score", partial(0, "s1", "Math", math.NaN(), nil), domain.ReasonRangeViolation, domain.FieldScore},
		{"inf max", partial(0, "s1", "Math", 1.0, math.Inf(1)), domain.ReasonRangeViolation, domain.FieldMaxScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCleaner(t)
			res, err := c.Clean([]domain.PartialRecord{tt.in})
			require.NoError(t, err)
			assert.Empty(t, res.Valid)
			require.Len(t, res.Rejected, 1)
			assert.Equal(t, tt.wantReason, res.Rejected[0].Reason)
			assert.Equal(t, tt.wantField, res.Rejected[0].Field)
			assert.NotEmpty(t, res.Rejected[0].Detail)
		})
	}
}

func TestClean_NormalizerFailurePassesThrough(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	n := schema.NewNormalizer(config.DefaultTables(), config.Default().Analytics, logger)

	tests := []struct {
		name  string
		score any
	}{
		{"malformed decimal", "85.5.3"},
		{"unknown grade", "Q"},
		{"word", "abc"},
		{"mixed symbols", "8#5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCleaner(t)
			parts, err := n.Normalize([]domain.RawRecord{
				domain.NewRawRecord("name", "B", "subject", "Math", "Marks", tt.score),
			}, nil)
			require.NoError(t, err)

			res, err := c.Clean(parts)
			require.NoError(t, err)
			assert.Empty(t, res.Valid)
			require.Len(t, res.Rejected, 1)
			assert.Equal(t, domain.ReasonTypeCoercion, res.Rejected[0].Reason)
			assert.Equal(t, domain.FieldScore, res.Rejected[0].Field)
			assert.NotContains(t, res.Rejected[0].Detail, "missing")
		})
	}
}

func TestClean_FailureOnOtherFieldStillReportsMissing(t *testing.T) {
	c, _ := newTestCleaner(t)
	p := partial(0, nil, "Math", "Z", nil)
	p.Failure = &domain.Failure{
		Reason: domain.ReasonTypeCoercion,
		Field:  domain.FieldScore,
		Detail: `"Z" is not a score`,
	}

	res, err := c.Clean([]domain.PartialRecord{p})
	require.NoError(t, err)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, domain.ReasonMissingField, res.Rejected[0].Reason)
	assert.Equal(t, domain.FieldStudentID, res.Rejected[0].Field)
}

func TestClean_LongNumericStudentID(t *testing.T) {
	var raw domain.RawRecord
	require.NoError(t, json.Unmarshal([]byte(`{"Student ID":12345678901234567,"Subject":"Math","Marks":70}`), &raw))

	logger, _ := testutil.NewTestLogger(t)
	n := schema.NewNormalizer(config.DefaultTables(), config.Default().Analytics, logger)
	parts, err := n.Normalize([]domain.RawRecord{raw}, nil)
	require.NoError(t, err)

	c, _ := newTestCleaner(t)
	res, err := c.Clean(parts)
	require.NoError(t, err)
	require.Len(t, res.Valid, 1)
	assert.Equal(t, "12345678901234567", res.Valid[0].StudentID)
}

func TestClean_Coercion(t *testing.T) {
	c, _ := newTestCleaner(t)
	p := partial(0, 1001.0, " Math  Advanced ", "42.5", "50")
	p.Term = 2.0
	p.Date = "15/03/2024"

	res, err := c.Clean([]domain.PartialRecord{p})
	require.NoError(t, err)
	require.Len(t, res.Valid, 1)

	rec := res.Valid[0]
	assert.Equal(t, "1001", rec.StudentID)
	assert.Equal(t, "Math Advanced", rec.Subject)
	assert.Equal(t, 42.5, rec.Score)
	assert.Equal(t, 50.0, rec.MaxScore)
	assert.Equal(t, "2", rec.Term)
	require.NotNil(t, rec.Date)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *rec.Date)
	assert.InDelta(t, 85.0, rec.Percent(), 1e-9)
}

func TestClean_DefaultMaxScore(t *testing.T) {
	c, _ := newTestCleaner(t)
	res, err := c.Clean([]domain.PartialRecord{partial(0, "s1", "Math", 70, nil)})
	require.NoError(t, err)
	require.Len(t, res.Valid, 1)
	assert.Equal(t, 100.0, res.Valid[0].MaxScore)
}

func TestClean_DuplicatesKeepLast(t *testing.T) {
	c, _ := newTestCleaner(t)
	in := []domain.PartialRecord{
		partial(0, "s1", "Math", 60.0, nil),
		partial(1, "s1", "English", 70.0, nil),
		partial(2, "s1", "Math", 65.0, nil),
	}

	res, err := c.Clean(in)
	require.NoError(t, err)

	require.Len(t, res.Valid, 2)
	assert.Equal(t, "English", res.Valid[0].Subject)
	assert.Equal(t, 65.0, res.Valid[1].Score)
	assert.Equal(t, 1, res.Collisions)

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, domain.ReasonDuplicate, res.Rejected[0].Reason)
	score, _ := res.Rejected[0].Raw.Get("score")
	assert.Equal(t, 60.0, score)
}

func TestClean_DifferentTermsAreNotDuplicates(t *testing.T) {
	c, _ := newTestCleaner(t)
	a := partial(0, "s1", "Math", 60.0, nil)
	a.Term = "T1"
	b := partial(1, "s1", "Math", 65.0, nil)
	b.Term = "T2"

	res, err := c.Clean([]domain.PartialRecord{a, b})
	require.NoError(t, err)
	assert.Len(t, res.Valid, 2)
	assert.Zero(t, res.Collisions)
}

func TestClean_PartitionAndRange(t *testing.T) {
	c, _ := newTestCleaner(t)
	in := []domain.PartialRecord{
		partial(0, "a", "Math", 10.0, 10.0),
		partial(1, "b", "Math", 11.0, 10.0),
		partial(2, "c", nil, 5.0, nil),
		partial(3, "d", "Art", "x", nil),
		partial(4, "a", "Math", 0.0, 10.0),
		partial(5, "e", "Art", "0", "1"),
	}

	res, err := c.Clean(in)
	require.NoError(t, err)
	assert.Equal(t, len(in), len(res.Valid)+len(res.Rejected))

	for _, rec := range res.Valid {
		assert.NotEmpty(t, rec.StudentID)
		assert.NotEmpty(t, rec.Subject)
		assert.Greater(t, rec.MaxScore, 0.0)
		assert.GreaterOrEqual(t, rec.Score, 0.0)
		assert.LessOrEqual(t, rec.Score, rec.MaxScore)
	}

	counts := res.ByReason()
	assert.Equal(t, 1, counts[domain.ReasonRangeViolation])
	assert.Equal(t, 1, counts[domain.ReasonMissingField])
	assert.Equal(t, 1, counts[domain.ReasonTypeCoercion])
	assert.Equal(t, 1, counts[domain.ReasonDuplicate])
}

func TestClean_MissingSourceIsInputShape(t *testing.T) {
	c, _ := newTestCleaner(t)
	_, err := c.Clean([]domain.PartialRecord{{StudentID: "s1"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInputShape)
}

func TestClean_Empty(t *testing.T) {
	c, logs := newTestCleaner(t)
	res, err := c.Clean(nil)
	require.NoError(t, err)
	assert.Empty(t, res.Valid)
	assert.Empty(t, res.Rejected)
	assert.Zero(t, logs.Count())
}

func TestToDate_ExcelSerial(t *testing.T) {
	d, err := toDate(45366.0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *d)

	_, err = toDate("2024")
	assert.Error(t, err)

	_, err = toDate(-3)
	assert.Error(t, err)
}
