// Package bayes provides shared support for Bayesian model definitions:
// log-density interfaces, prior constructors, posterior draw handling, and
// numerically stable helpers.  The MCMC sampler itself is external; models
// in this repository only expose joint log-densities over flat parameter
// vectors and pure transforms of retained draws.
package bayes

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Dtype is the scalar type used for all data columns and parameters.
type Dtype = float64

// LogDenser is a Bayesian model that can be evaluated at a parameter vector.
// LogProb returns the joint log-density (prior plus likelihood).  A proposal
// outside the parameter support yields math.Inf(-1), never a panic or NaN,
// so that an external sampler can reject it.
type LogDenser interface {

	// NumParams returns the length of the flat parameter vector.
	NumParams() int

	// NumObs returns the number of observations in the data set.
	NumObs() int

	// LogProb returns the joint log-density at the given parameter vector.
	LogProb(params []float64) float64
}

// LogSumExp returns log(sum(exp(x))) computed without overflow or underflow.
func LogSumExp(x []float64) float64 {
	return floats.LogSumExp(x)
}

// Log1pExp returns log(1 + exp(x)) computed stably for large |x|.
func Log1pExp(x float64) float64 {
	if x > 35 {
		return x
	}
	if x < -35 {
		return math.Exp(x)
	}
	return math.Log1p(math.Exp(x))
}

// AllPositive returns false if any element of x is non-positive or not finite.
// It is used for support checks on hazard, scale, and frailty parameters.
func AllPositive(x []float64) bool {
	for _, v := range x {
		if !(v > 0) || math.IsInf(v, 1) {
			return false
		}
	}
	return true
}
