// Package duration provides Bayesian survival models for right censored
// duration data: a Kaplan-Meier estimator, piecewise-exponential (Poisson)
// hazard regression with and without Gamma frailties, and parametric
// accelerated failure time likelihoods.  The regression models define joint
// log-densities for an external MCMC sampler and pure derived-quantity
// transforms over retained posterior draws.
package duration

import (
	"fmt"
	"math"
	"sort"
)

// KaplanMeier estimates the survival distribution from (possibly) right
// censored durations.  The estimate is deterministic: there are no
// parameters and no likelihood.
//
// The risk set is decremented by exactly one per sorted observation,
// regardless of ties, matching the construction used to produce the
// reference attrition analyses.  This differs from the textbook
// Kaplan-Meier risk set, which removes all tied subjects at a failure time
// at once; with distinct times the two agree.
type KaplanMeier struct {

	// Sorted event/censoring times and the aligned status indicators
	// (1 = event, 0 = censored).  Ties keep their original input order.
	times  []float64
	status []int

	// Survival estimate at each sorted time
	survProb []float64

	// Greenwood-type standard errors, zero at censored points
	survProbSE []float64

	// Bounds of the 95% confidence band, clamped to [0, 1].  At censored
	// points the band is degenerate and both bounds equal the estimate.
	lower []float64
	upper []float64
}

// NewKaplanMeier estimates a survival curve from the given durations and
// event indicators (1 = event observed, 0 = right censored).
func NewKaplanMeier(time []float64, status []int) (*KaplanMeier, error) {

	if len(time) == 0 {
		return nil, fmt.Errorf("duration: no observations")
	}
	if len(time) != len(status) {
		return nil, fmt.Errorf("duration: %d durations but %d status values", len(time), len(status))
	}

	for i, t := range time {
		if t < 0 {
			return nil, fmt.Errorf("duration: negative duration at position %d", i)
		}
		if status[i] != 0 && status[i] != 1 {
			return nil, fmt.Errorf("duration: status value at position %d is not 0 or 1", i)
		}
	}

	km := &KaplanMeier{
		times:  make([]float64, len(time)),
		status: make([]int, len(status)),
	}

	// Stable sort by time, ties broken by original index.
	ix := make([]int, len(time))
	for i := range ix {
		ix[i] = i
	}
	sort.SliceStable(ix, func(i, j int) bool {
		return time[ix[i]] < time[ix[j]]
	})
	for i, j := range ix {
		km.times[i] = time[j]
		km.status[i] = status[j]
	}

	km.fit()

	return km, nil
}

func (km *KaplanMeier) fit() {

	n := len(km.times)

	km.survProb = make([]float64, n)
	km.survProb[0] = 1

	// One subject leaves the risk set at every sorted position.  The
	// estimate moves only when the previous subject had the event.
	for i := 1; i < n; i++ {
		km.survProb[i] = km.survProb[i-1]
		if km.status[i-1] == 1 {
			r := float64(n - i + 1)
			if r > 1 {
				km.survProb[i] *= 1 - 1/r
			}
		}
	}

	km.survProbSE = make([]float64, n)
	km.lower = make([]float64, n)
	km.upper = make([]float64, n)

	var g float64
	for i := 0; i < n; i++ {
		s := km.survProb[i]
		if km.status[i] == 1 {
			r := float64(n - i)
			if r > 1 {
				g += 1 / (r * (r - 1))
			}
			se := s * math.Sqrt(g)
			km.survProbSE[i] = se
			km.lower[i] = clamp01(s - 1.96*se)
			km.upper[i] = clamp01(s + 1.96*se)
		} else {
			km.lower[i] = s
			km.upper[i] = s
		}
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Time returns the sorted event/censoring times.
func (km *KaplanMeier) Time() []float64 {
	return km.times
}

// Status returns the event indicators aligned with Time.
func (km *KaplanMeier) Status() []int {
	return km.status
}

// SurvProb returns the estimated survival probabilities at each sorted time.
func (km *KaplanMeier) SurvProb() []float64 {
	return km.survProb
}

// SurvProbSE returns the standard errors of the survival estimates.  The
// standard error is zero at censored points.
func (km *KaplanMeier) SurvProbSE() []float64 {
	return km.survProbSE
}

// Lower returns the lower bound of the 95% confidence band.
func (km *KaplanMeier) Lower() []float64 {
	return km.lower
}

// Upper returns the upper bound of the 95% confidence band.
func (km *KaplanMeier) Upper() []float64 {
	return km.upper
}
