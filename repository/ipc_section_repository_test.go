package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatVector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		embedding []float64
		want      string
	}{
		{"empty", nil, "[]"},
		{"single value", []float64{0.5}, "[0.500000]"},
		{"multiple values", []float64{0.1, -0.25, 1}, "[0.100000,-0.250000,1.000000]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatVector(tt.embedding))
		})
	}
}

func TestFormatVectorFullDimensions(t *testing.T) {
	t.Parallel()

	embedding := make([]float64, 768)
	got := formatVector(embedding)

	assert.True(t, strings.HasPrefix(got, "["))
	assert.True(t, strings.HasSuffix(got, "]"))
	assert.Equal(t, 768, strings.Count(got, "0.000000"))
}
