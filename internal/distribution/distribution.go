// Package distribution implements the stochastic time models attached to
// stations and transfer links: sampling a duration and computing its
// closed-form expectation.
package distribution

import (
	"math"
	"math/rand"
	"strconv"
)

// Kind is the closed set of supported distribution variants.
type Kind string

const (
	Uniform     Kind = "uniform"
	Normal      Kind = "normal"
	Weibull     Kind = "weibull"
	Exponential Kind = "exponential"
	Constant    Kind = "constant"
	Triangular  Kind = "triangular"
)

// Source is the process-wide pseudo-random generator TimeDistribution
// sampling draws from. It is injected rather than global so tests can
// supply a deterministic seed.
type Source interface {
	Float64() float64
	NormFloat64() float64
	ExpFloat64() float64
}

// NewSource wraps a seeded math/rand.Rand as a Source.
func NewSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// TimeDistribution is a tagged value over the six supported variants, each
// with its own parameter arity. Constructors below are the only valid way
// to build one; a Dist built any other way may have mismatched
// Kind/Parameters and will sample/expect to 0.
type TimeDistribution struct {
	kind   Kind
	params []float64
}

// NewUniform builds a uniform(a, b) distribution. Callers are not required
// to pre-sort a and b; Sample and Expected tolerate either order.
func NewUniform(a, b float64) TimeDistribution {
	return TimeDistribution{kind: Uniform, params: []float64{a, b}}
}

// NewNormal builds a normal(mu, sigma) distribution.
func NewNormal(mu, sigma float64) TimeDistribution {
	return TimeDistribution{kind: Normal, params: []float64{mu, sigma}}
}

// NewWeibull builds a weibull(k, lambda) distribution.
func NewWeibull(k, lambda float64) TimeDistribution {
	return TimeDistribution{kind: Weibull, params: []float64{k, lambda}}
}

// NewExponential builds an exponential(lambda) distribution, lambda being
// the rate parameter.
func NewExponential(lambda float64) TimeDistribution {
	return TimeDistribution{kind: Exponential, params: []float64{lambda}}
}

// NewConstant builds a constant(v) distribution.
func NewConstant(v float64) TimeDistribution {
	return TimeDistribution{kind: Constant, params: []float64{v}}
}

// NewTriangular builds a triangular(a, b, c) distribution with a <= c <= b.
func NewTriangular(a, b, c float64) TimeDistribution {
	return TimeDistribution{kind: Triangular, params: []float64{a, b, c}}
}

// FromParameters builds a TimeDistribution from a wire-format kind string
// and parameter vector, as loaded from a graph configuration document. An
// unrecognised kind string is treated as constant, keeping the given
// parameters (so its value is the first parameter, or 0 if there is none),
// so that Sample and Expected degrade gracefully rather than panic.
func FromParameters(kind string, params []float64) TimeDistribution {
	p := make([]float64, len(params))
	copy(p, params)
	switch Kind(kind) {
	case Uniform, Normal, Weibull, Exponential, Constant, Triangular:
		return TimeDistribution{kind: Kind(kind), params: p}
	default:
		return TimeDistribution{kind: Constant, params: p}
	}
}

// Kind reports the distribution's variant.
func (d TimeDistribution) Kind() Kind { return d.kind }

// Parameters returns a copy of the distribution's parameter vector.
func (d TimeDistribution) Parameters() []float64 {
	p := make([]float64, len(d.params))
	copy(p, d.params)
	return p
}

// Sample draws a duration from the distribution using src, clamped to
// max(0, x). Missing parameters or a violated precondition yield 0.
func (d TimeDistribution) Sample(src Source) float64 {
	switch d.kind {
	case Normal:
		if len(d.params) < 2 {
			return 0
		}
		mu, sigma := d.params[0], d.params[1]
		x := mu + sigma*src.NormFloat64()
		return positive(x)

	case Uniform:
		if len(d.params) < 2 {
			return 0
		}
		a, b := d.params[0], d.params[1]
		if b < a {
			a, b = b, a
		}
		if !(a < b) {
			return 0
		}
		x := a + src.Float64()*(b-a)
		return positive(x)

	case Exponential:
		if len(d.params) < 1 || d.params[0] <= 0 {
			return 0
		}
		lambda := d.params[0]
		return positive(src.ExpFloat64() / lambda)

	case Constant:
		if len(d.params) < 1 {
			return 0
		}
		return positive(d.params[0])

	case Triangular:
		if len(d.params) < 3 {
			return 0
		}
		a, b, c := d.params[0], d.params[1], d.params[2]
		if b < a {
			a, b = b, a
		}
		if !(a < b) {
			return 0
		}
		if c < a {
			c = a
		}
		if c > b {
			c = b
		}
		u := src.Float64()
		fc := (c - a) / (b - a)
		var x float64
		if u < fc {
			x = a + math.Sqrt(u*(b-a)*(c-a))
		} else {
			x = b - math.Sqrt((1-u)*(b-a)*(b-c))
		}
		return positive(x)

	case Weibull:
		if len(d.params) < 2 || d.params[0] <= 0 || d.params[1] <= 0 {
			return 0
		}
		k, lambda := d.params[0], d.params[1]
		// Inverse-CDF sampling: x = lambda * (-ln(1-u))^(1/k)
		u := src.Float64()
		x := lambda * math.Pow(-math.Log(1-u), 1/k)
		return positive(x)

	default:
		return 0
	}
}

// Expected returns the distribution's closed-form expected value, or 0 if
// parameters are missing or violate a precondition.
func (d TimeDistribution) Expected() float64 {
	switch d.kind {
	case Normal:
		if len(d.params) < 2 {
			return 0
		}
		return d.params[0]

	case Uniform:
		if len(d.params) < 2 {
			return 0
		}
		return (d.params[0] + d.params[1]) / 2

	case Exponential:
		if len(d.params) < 1 || d.params[0] <= 0 {
			return 0
		}
		return 1 / d.params[0]

	case Constant:
		if len(d.params) < 1 {
			return 0
		}
		return d.params[0]

	case Triangular:
		if len(d.params) < 3 {
			return 0
		}
		return (d.params[0] + d.params[1] + d.params[2]) / 3

	case Weibull:
		if len(d.params) < 2 || d.params[0] <= 0 || d.params[1] <= 0 {
			return 0
		}
		k, lambda := d.params[0], d.params[1]
		return lambda * math.Gamma(1+1/k)

	default:
		return 0
	}
}

// String renders the distribution as "kind (p0, p1, ...)" to one decimal
// place, matching the visualisation export's label format.
func (d TimeDistribution) String() string {
	s := string(d.kind) + " ("
	for i, p := range d.params {
		if i > 0 {
			s += ", "
		}
		s += formatOneDecimal(p)
	}
	return s + ")"
}

func positive(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func formatOneDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
