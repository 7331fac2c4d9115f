package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		method QuantileMethod
		data   []float64
		p      float64
		want   float64
	}{
		{"linear q1", QuantileLinear, []float64{25, 30, 30, 200}, 0.25, 28.75},
		{"linear q3", QuantileLinear, []float64{25, 30, 30, 200}, 0.75, 72.5},
		{"linear exact rank", QuantileLinear, []float64{1, 2, 3, 4, 5}, 0.5, 3},
		{"linear min", QuantileLinear, []float64{1, 2, 3}, 0, 1},
		{"linear max", QuantileLinear, []float64{1, 2, 3}, 1, 3},
		{"linear single", QuantileLinear, []float64{7}, 0.25, 7},
		{"default is linear", "", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"empirical", QuantileEmpirical, []float64{1, 2, 3, 4}, 0.5, 2},
		{"empirical q1", QuantileEmpirical, []float64{1, 2, 3, 4}, 0.25, 1},
		{"nearest q1", QuantileNearest, []float64{1, 2, 3, 4}, 0.25, 1},
		{"nearest q3", QuantileNearest, []float64{1, 2, 3, 4}, 0.75, 3},
		{"nearest max", QuantileNearest, []float64{1, 2, 3, 4}, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Quantile(tt.method, tt.data, tt.p)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestQuantile_Errors(t *testing.T) {
	_, err := Quantile(QuantileLinear, nil, 0.5)
	assert.Error(t, err)

	_, err = Quantile(QuantileLinear, []float64{1}, 1.5)
	assert.Error(t, err)

	_, err = Quantile("bogus", []float64{1}, 0.5)
	assert.Error(t, err)
}

func TestParseQuantileMethod(t *testing.T) {
	m, err := ParseQuantileMethod(" Empirical ")
	require.NoError(t, err)
	assert.Equal(t, QuantileEmpirical, m)

	m, err = ParseQuantileMethod("")
	require.NoError(t, err)
	assert.Equal(t, QuantileLinear, m)

	_, err = ParseQuantileMethod("midpoint")
	assert.Error(t, err)
}
