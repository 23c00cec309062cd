package validator_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docextract/internal/domain"
	"docextract/internal/validator"
)

func TestFieldSet_RepeatedPrefersIndexedEntries(t *testing.T) {
	fs := validator.NewFieldSet(domain.FieldSchema{}, []domain.Field{
		{Name: "line_items", Value: "1, 2"},
		{Name: "line_items[1]", Value: "20.00"},
		{Name: "line_items[0]", Value: "10.00"},
	})

	got := fs.Repeated("line_items")
	require.Len(t, got, 2)
	assert.Equal(t, "line_items[0]", got[0].Name)
	assert.Equal(t, "10.00", got[0].Value)
	assert.Equal(t, "line_items[1]", got[1].Name)
}

func TestFieldSet_RepeatedSplitsListValue(t *testing.T) {
	fs := validator.NewFieldSet(domain.FieldSchema{}, []domain.Field{
		{Name: "line_items", Value: "$1,000.00, 20.00;\n15.00 ; ", Confidence: 0.8},
	})

	got := fs.Repeated("line_items")
	var values []string
	for i, f := range got {
		assert.Equal(t, fmt.Sprintf("line_items[%d]", i), f.Name)
		assert.Equal(t, 0.8, f.Confidence)
		values = append(values, f.Value)
	}
	assert.Equal(t, []string{"$1,000.00", "20.00", "15.00"}, values)
	assert.True(t, fs.Has("line_items[]"))
}

func TestFieldSet_RepeatedAbsent(t *testing.T) {
	fs := validator.NewFieldSet(domain.FieldSchema{}, []domain.Field{{Name: "total", Value: "1"}})
	assert.Empty(t, fs.Repeated("line_items"))
	assert.False(t, fs.Has("line_items[]"))
}
