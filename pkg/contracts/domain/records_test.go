package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRecord_UnmarshalKeepsOrder(t *testing.T) {
	var rec RawRecord
	require.NoError(t, json.Unmarshal([]byte(`{"Subject":"Math","Name":"Ann","Marks":"85%"}`), &rec))

	require.Len(t, rec.Fields, 3)
	assert.Equal(t, "Subject", rec.Fields[0].Name)
	assert.Equal(t, "Name", rec.Fields[1].Name)
	assert.Equal(t, "Marks", rec.Fields[2].Name)
}

func TestRawRecord_UnmarshalNestedIsShapeError(t *testing.T) {
	var rec RawRecord
	err := json.Unmarshal([]byte(`{"Name":"Ann","Marks":{"value":85}}`), &rec)

	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "Marks", shapeErr.Field)
}

func TestRawRecord_UnmarshalNumbers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
	}{
		{"small integer", `1001`, 1001.0},
		{"decimal", `72.5`, 72.5},
		{"exponent", `1e3`, 1000.0},
		{"largest exact integer", `9007199254740992`, 9007199254740992.0},
		{"long identifier", `12345678901234567`, "12345678901234567"},
		{"negative long identifier", `-12345678901234567`, "-12345678901234567"},
		{"beyond int64", `123456789012345678901234`, "123456789012345678901234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec RawRecord
			require.NoError(t, json.Unmarshal([]byte(`{"id":`+tt.in+`}`), &rec))
			v, ok := rec.Get("id")
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}
