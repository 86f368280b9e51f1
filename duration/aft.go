package duration

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/attrition/bayes"
)

// AFTReg is a parametric accelerated failure time likelihood for right
// censored durations.  The linear predictor combines an intercept, the
// covariate effects, and a shared positive scale parameter into a location
// term; the family maps location and scale to distribution parameters.
// Uncensored observations contribute the exact log density, censored
// observations the log survival probability.
//
// The flat parameter vector is laid out as the intercept, the P regression
// coefficients, and the scale.
type AFTReg struct {

	// Event or censoring times.  Raw positive times for the Weibull
	// family, log-transformed times for the log-logistic family.
	time []float64

	// 1 if the event was observed at time[i], 0 if right censored
	status []int

	// N x P design matrix, without an intercept column
	x *mat.Dense

	family *AFTFamily

	n, p int

	interceptPrior bayes.LogPrior
	coeffPrior     bayes.LogPrior
	scalePrior     bayes.LogPrior

	log *log.Logger
}

// AFTConfig defines configuration parameters for an AFT model.
type AFTConfig struct {

	// A logger to which logging information is written
	Log *log.Logger

	// InterceptPrior is the prior for the intercept.
	InterceptPrior bayes.LogPrior

	// CoeffPrior is the prior for each regression coefficient.
	CoeffPrior bayes.LogPrior

	// ScalePrior is the prior for the scale parameter.
	ScalePrior bayes.LogPrior
}

// DefaultAFTConfig returns a default configuration: a diffuse normal
// intercept prior, normal(0, 1) coefficient priors, and a near-improper
// Gamma scale prior.
func DefaultAFTConfig() *AFTConfig {
	return &AFTConfig{
		InterceptPrior: bayes.NormalPrior(0, 10),
		CoeffPrior:     bayes.NormalPrior(0, 1),
		ScalePrior:     bayes.GammaPrior(0.01, 0.01),
	}
}

// NewAFTReg returns an AFT model for the given durations, censoring
// indicators, and design matrix.  The Weibull family requires strictly
// positive times.
func NewAFTReg(time []float64, status []int, x *mat.Dense, family *AFTFamily, config *AFTConfig) (*AFTReg, error) {

	if config == nil {
		config = DefaultAFTConfig()
	}
	if family == nil {
		return nil, fmt.Errorf("duration: no AFT family given")
	}

	n := len(time)
	if n == 0 {
		return nil, fmt.Errorf("duration: no observations")
	}
	if len(status) != n {
		return nil, fmt.Errorf("duration: %d durations but %d status values", n, len(status))
	}
	xn, p := x.Dims()
	if xn != n {
		return nil, fmt.Errorf("duration: design matrix has %d rows, %d durations", xn, n)
	}

	for i, t := range time {
		if status[i] != 0 && status[i] != 1 {
			return nil, fmt.Errorf("duration: status value at position %d is not 0 or 1", i)
		}
		if family.TypeCode == WeibullFamily && t <= 0 {
			return nil, fmt.Errorf("duration: Weibull family requires positive times, got %v at position %d", t, i)
		}
	}

	am := &AFTReg{
		time:           time,
		status:         status,
		x:              x,
		family:         family,
		n:              n,
		p:              p,
		interceptPrior: config.InterceptPrior,
		coeffPrior:     config.CoeffPrior,
		scalePrior:     config.ScalePrior,
		log:            config.Log,
	}

	if am.log != nil {
		var ne int
		for _, s := range status {
			ne += s
		}
		am.log.Printf("AFTReg: %s family, %d observations, %d events, %d covariates",
			family.Name, n, ne, p)
	}

	return am, nil
}

// NumObs returns the number of observations.
func (am *AFTReg) NumObs() int {
	return am.n
}

// NumParams returns the length of the flat parameter vector: intercept,
// coefficients, scale.
func (am *AFTReg) NumParams() int {
	return am.p + 2
}

// Intercept returns the intercept from a parameter vector.
func (am *AFTReg) Intercept(params []float64) float64 {
	return params[0]
}

// Coeff returns the regression coefficient block of a parameter vector.
func (am *AFTReg) Coeff(params []float64) []float64 {
	return params[1 : 1+am.p]
}

// Scale returns the scale parameter from a parameter vector.
func (am *AFTReg) Scale(params []float64) float64 {
	return params[am.p+1]
}

func (am *AFTReg) checkLen(params []float64) {
	if len(params) != am.NumParams() {
		msg := fmt.Sprintf("AFTReg: parameter vector has length %d, expected %d",
			len(params), am.NumParams())
		panic(msg)
	}
}

// LogProb returns the joint log-density at the given parameter vector.
// Proposals with a non-positive scale return -Inf.
func (am *AFTReg) LogProb(params []float64) float64 {

	am.checkLen(params)

	b0 := am.Intercept(params)
	coeff := am.Coeff(params)
	scale := am.Scale(params)

	if !(scale > 0) {
		return math.Inf(-1)
	}

	ll := am.interceptPrior(b0)
	ll += bayes.SumPrior(am.coeffPrior, coeff)
	ll += am.scalePrior(scale)

	for i := 0; i < am.n; i++ {
		mu := b0 + linpredRow(am.x, i, coeff)
		if am.status[i] == 1 {
			ll += am.family.LogDensity(am.time[i], mu, scale)
		} else {
			ll += am.family.LogSurvival(am.time[i], mu, scale)
		}
	}

	if math.IsNaN(ll) {
		return math.Inf(-1)
	}

	return ll
}

// PointLogLike returns the per-observation log-likelihood contributions at
// the given parameter vector, using the same density/survival branch per
// observation as LogProb.
func (am *AFTReg) PointLogLike(params []float64) []float64 {

	am.checkLen(params)

	b0 := am.Intercept(params)
	coeff := am.Coeff(params)
	scale := am.Scale(params)

	pll := make([]float64, am.n)
	for i := 0; i < am.n; i++ {
		mu := b0 + linpredRow(am.x, i, coeff)
		if am.status[i] == 1 {
			pll[i] = am.family.LogDensity(am.time[i], mu, scale)
		} else {
			pll[i] = am.family.LogSurvival(am.time[i], mu, scale)
		}
	}

	return pll
}

// Predict returns the reparameterized location for each observation, usable
// for reconstructing individual survival curves under the fitted family.
func (am *AFTReg) Predict(params []float64) []float64 {

	am.checkLen(params)

	b0 := am.Intercept(params)
	coeff := am.Coeff(params)
	scale := am.Scale(params)

	fv := make([]float64, am.n)
	for i := 0; i < am.n; i++ {
		mu := b0 + linpredRow(am.x, i, coeff)
		fv[i] = am.family.Location(mu, scale)
	}

	return fv
}
