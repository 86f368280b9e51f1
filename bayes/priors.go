package bayes

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// LogPrior evaluates the log prior density of a single scalar parameter.
type LogPrior func(x float64) float64

// NormalPrior returns the log-density of a normal distribution with the
// given mean and standard deviation.
func NormalPrior(mu, sigma float64) LogPrior {
	d := distuv.Normal{Mu: mu, Sigma: sigma}
	return func(x float64) float64 {
		return d.LogProb(x)
	}
}

// GammaPrior returns the log-density of a Gamma distribution with the given
// shape and rate.  Non-positive arguments yield -Inf.
func GammaPrior(shape, rate float64) LogPrior {
	d := distuv.Gamma{Alpha: shape, Beta: rate}
	return func(x float64) float64 {
		if !(x > 0) {
			return math.Inf(-1)
		}
		return d.LogProb(x)
	}
}

// SumPrior applies a scalar log prior to every element of x and returns the
// total.  The result is -Inf if any element is outside the prior's support.
func SumPrior(p LogPrior, x []float64) float64 {
	var ll float64
	for _, v := range x {
		ll += p(v)
	}
	return ll
}
