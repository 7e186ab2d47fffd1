package distribution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectedClosedForm(t *testing.T) {
	t.Run("normal", func(t *testing.T) {
		d := NewNormal(5, 1)
		assert.Equal(t, 5.0, d.Expected())
	})
	t.Run("uniform", func(t *testing.T) {
		d := NewUniform(2, 8)
		assert.Equal(t, 5.0, d.Expected())
	})
	t.Run("exponential", func(t *testing.T) {
		d := NewExponential(4)
		assert.Equal(t, 0.25, d.Expected())
	})
	t.Run("constant", func(t *testing.T) {
		d := NewConstant(3.5)
		assert.Equal(t, 3.5, d.Expected())
	})
	t.Run("triangular", func(t *testing.T) {
		d := NewTriangular(1, 7, 4)
		assert.InDelta(t, 4.0, d.Expected(), 1e-9)
	})
	t.Run("weibull", func(t *testing.T) {
		d := NewWeibull(1, 2) // k=1 degenerates to exponential-like mean = lambda*Gamma(2) = lambda
		assert.InDelta(t, 2*math.Gamma(2), d.Expected(), 1e-9)
	})
}

func TestExpectedMissingParametersYieldsZero(t *testing.T) {
	d := FromParameters("normal", []float64{1})
	assert.Equal(t, 0.0, d.Expected())
	assert.Equal(t, 0.0, d.Sample(NewSource(1)))
}

func TestExpectedInvalidPreconditionYieldsZero(t *testing.T) {
	t.Run("exponential non-positive lambda", func(t *testing.T) {
		d := NewExponential(0)
		assert.Equal(t, 0.0, d.Expected())
	})
	t.Run("weibull non-positive k", func(t *testing.T) {
		d := NewWeibull(0, 2)
		assert.Equal(t, 0.0, d.Expected())
	})
}

func TestUnknownKindDegradesToConstant(t *testing.T) {
	d := FromParameters("bogus", []float64{9})
	require.Equal(t, Constant, d.Kind())
	assert.Equal(t, 9.0, d.Expected())
}

func TestSampleAlwaysNonNegative(t *testing.T) {
	src := NewSource(42)
	dists := []TimeDistribution{
		NewNormal(-100, 1),
		NewUniform(-5, -1),
		NewExponential(2),
		NewConstant(-3),
		NewTriangular(1, 5, 3),
		NewWeibull(2, 3),
	}
	for _, d := range dists {
		for i := 0; i < 50; i++ {
			assert.GreaterOrEqual(t, d.Sample(src), 0.0)
		}
	}
}

func TestUniformToleratesSwappedBounds(t *testing.T) {
	d := NewUniform(8, 2)
	assert.Equal(t, 5.0, d.Expected())
}

func TestStringFormatsOneDecimal(t *testing.T) {
	d := NewNormal(5, 1)
	assert.Equal(t, "normal (5.0, 1.0)", d.String())
}
