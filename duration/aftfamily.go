package duration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kshedden/attrition/bayes"
)

// AFTFamilyType is the type of distribution family used in an accelerated
// failure time model.
type AFTFamilyType uint8

// WeibullFamily and LogLogisticFamily are the supported AFT families.
const (
	WeibullFamily AFTFamilyType = iota
	LogLogisticFamily
)

// AFTFamily represents an accelerated failure time distribution family.
// The family is selected once at configuration time; the censoring status
// of each observation selects between the density and survival branches.
type AFTFamily struct {

	// The name of the family
	Name string

	// The numeric code for the family
	TypeCode AFTFamilyType

	// LogDensity returns the log density of an observed event time given
	// the location term and the shared scale parameter.
	LogDensity func(t, mu, scale float64) float64

	// LogSurvival returns the log of the upper tail probability, used for
	// right censored observations.
	LogSurvival func(t, mu, scale float64) float64

	// Location returns the reparameterized location used as a point
	// prediction of the time scale.
	Location func(mu, scale float64) float64
}

// NewAFTFamily returns a family object corresponding to the given type.
func NewAFTFamily(fam AFTFamilyType) *AFTFamily {

	switch fam {
	case WeibullFamily:
		return &weibullAFT
	case LogLogisticFamily:
		return &logLogisticAFT
	default:
		msg := fmt.Sprintf("Unknown AFT family: %v\n", fam)
		panic(msg)
	}
}

// The Weibull branch operates on raw event times.  The location term maps
// multiplicatively: the Weibull scale is exp(mu) and the Weibull shape is
// the reciprocal of the model scale parameter.
var weibullAFT = AFTFamily{
	Name:        "Weibull",
	TypeCode:    WeibullFamily,
	LogDensity:  weibullLogDensity,
	LogSurvival: weibullLogSurvival,
	Location: func(mu, scale float64) float64 {
		return math.Exp(mu)
	},
}

// The log-logistic branch operates on log-transformed times, which are
// modeled as logistic with additive location mu and scale.  This yields
// log-logistic survival behavior on the original time scale.
var logLogisticAFT = AFTFamily{
	Name:        "LogLogistic",
	TypeCode:    LogLogisticFamily,
	LogDensity:  logisticLogDensity,
	LogSurvival: logisticLogSurvival,
	Location: func(mu, scale float64) float64 {
		return mu
	},
}

func weibullLogDensity(t, mu, scale float64) float64 {
	w := distuv.Weibull{K: 1 / scale, Lambda: math.Exp(mu)}
	return w.LogProb(t)
}

func weibullLogSurvival(t, mu, scale float64) float64 {
	if t <= 0 {
		return 0
	}
	// log S(t) = -(t/lambda)^k, computed in log space.
	return -math.Exp((math.Log(t) - mu) / scale)
}

func logisticLogDensity(t, mu, scale float64) float64 {
	z := (t - mu) / scale
	return -z - math.Log(scale) - 2*bayes.Log1pExp(-z)
}

func logisticLogSurvival(t, mu, scale float64) float64 {
	z := (t - mu) / scale
	return -bayes.Log1pExp(z)
}
