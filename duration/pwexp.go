package duration

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/attrition/bayes"
)

// PwExpHazard is a piecewise-exponential hazard regression model for a
// person-interval panel.  Each subject contributes one row of an N x K
// event-count matrix (0/1, at most one event per subject) and an N x K
// exposure matrix giving the fraction of each interval spent at risk.  The
// event count in a cell is modeled as Poisson with mean
//
//	exposure * exp(x'b) * h[k]
//
// where h is a baseline hazard with one positive value per interval, and
// per stratum when strata are provided.
//
// The flat parameter vector is laid out as the P regression coefficients
// followed by the G*K baseline hazard values in stratum-major order.
type PwExpHazard struct {

	// N x K event indicators and fractional exposures
	events   *mat.Dense
	exposure *mat.Dense

	// N x P design matrix
	x *mat.Dense

	// Stratum index per subject, all zero when unstratified
	strata []int

	n, k, p, nstrata int

	coeffPrior  bayes.LogPrior
	hazardPrior bayes.LogPrior

	log *log.Logger
}

// PwExpConfig defines configuration parameters for a piecewise-exponential
// hazard model.
type PwExpConfig struct {

	// A logger to which logging information is written
	Log *log.Logger

	// Strata assigns each subject to a baseline hazard stratum, with
	// values 0, 1, ..., G-1.  If nil, all subjects share one baseline.
	Strata []int

	// CoeffPrior is the prior for each regression coefficient.
	CoeffPrior bayes.LogPrior

	// HazardPrior is the prior for each baseline hazard value.
	HazardPrior bayes.LogPrior
}

// DefaultPwExpConfig returns a default configuration: weakly informative
// normal(0, 1) coefficient priors and near-improper Gamma(0.01, 0.01)
// baseline hazard priors.
func DefaultPwExpConfig() *PwExpConfig {
	return &PwExpConfig{
		CoeffPrior:  bayes.NormalPrior(0, 1),
		HazardPrior: bayes.GammaPrior(0.01, 0.01),
	}
}

// NewPwExpHazard returns a piecewise-exponential hazard model for the given
// panel data.  The events and exposure matrices must be N x K and the
// design matrix N x P.
func NewPwExpHazard(events, exposure, x *mat.Dense, config *PwExpConfig) (*PwExpHazard, error) {

	if config == nil {
		config = DefaultPwExpConfig()
	}

	n, k := events.Dims()
	if en, ek := exposure.Dims(); en != n || ek != k {
		return nil, fmt.Errorf("duration: exposure is %dx%d, events is %dx%d", en, ek, n, k)
	}
	xn, p := x.Dims()
	if xn != n {
		return nil, fmt.Errorf("duration: design matrix has %d rows, events has %d", xn, n)
	}

	for i := 0; i < n; i++ {
		var ne int
		for j := 0; j < k; j++ {
			y := events.At(i, j)
			if y != 0 && y != 1 {
				return nil, fmt.Errorf("duration: event count at (%d, %d) is not 0 or 1", i, j)
			}
			ne += int(y)
			e := exposure.At(i, j)
			if e < 0 || e > 1 {
				return nil, fmt.Errorf("duration: exposure at (%d, %d) is outside [0, 1]", i, j)
			}
		}
		if ne > 1 {
			return nil, fmt.Errorf("duration: subject %d has more than one event", i)
		}
	}

	nstrata := 1
	strata := config.Strata
	if strata != nil {
		if len(strata) != n {
			return nil, fmt.Errorf("duration: %d stratum labels for %d subjects", len(strata), n)
		}
		for i, s := range strata {
			if s < 0 {
				return nil, fmt.Errorf("duration: negative stratum label for subject %d", i)
			}
			if s+1 > nstrata {
				nstrata = s + 1
			}
		}
	} else {
		strata = make([]int, n)
	}

	pm := &PwExpHazard{
		events:      events,
		exposure:    exposure,
		x:           x,
		strata:      strata,
		n:           n,
		k:           k,
		p:           p,
		nstrata:     nstrata,
		coeffPrior:  config.CoeffPrior,
		hazardPrior: config.HazardPrior,
		log:         config.Log,
	}

	if pm.log != nil {
		pm.log.Printf("PwExpHazard: %d subjects, %d intervals, %d covariates, %d strata",
			n, k, p, nstrata)
	}

	return pm, nil
}

// NumObs returns the number of subjects in the panel.
func (pm *PwExpHazard) NumObs() int {
	return pm.n
}

// NumIntervals returns the number of time intervals in the panel.
func (pm *PwExpHazard) NumIntervals() int {
	return pm.k
}

// NumParams returns the length of the flat parameter vector: the regression
// coefficients followed by the baseline hazard values.
func (pm *PwExpHazard) NumParams() int {
	return pm.p + pm.nstrata*pm.k
}

// Coeff returns the regression coefficient block of a parameter vector.
func (pm *PwExpHazard) Coeff(params []float64) []float64 {
	return params[0:pm.p]
}

// Hazard returns the baseline hazard block of a parameter vector, in
// stratum-major order.
func (pm *PwExpHazard) Hazard(params []float64) []float64 {
	return params[pm.p:]
}

func (pm *PwExpHazard) checkLen(params []float64) {
	if len(params) != pm.NumParams() {
		msg := fmt.Sprintf("PwExpHazard: parameter vector has length %d, expected %d",
			len(params), pm.NumParams())
		panic(msg)
	}
}

// linpred fills lp with the linear predictor x'b for each subject.
func (pm *PwExpHazard) linpred(coeff, lp []float64) {
	for i := 0; i < pm.n; i++ {
		var v float64
		for j := 0; j < pm.p; j++ {
			v += pm.x.At(i, j) * coeff[j]
		}
		lp[i] = v
	}
}

// LogProb returns the joint log-density (priors plus Poisson likelihood) at
// the given parameter vector.  Proposals with non-positive baseline hazard
// values return -Inf.
func (pm *PwExpHazard) LogProb(params []float64) float64 {

	pm.checkLen(params)

	coeff := pm.Coeff(params)
	haz := pm.Hazard(params)

	if !bayes.AllPositive(haz) {
		return math.Inf(-1)
	}

	ll := bayes.SumPrior(pm.coeffPrior, coeff)
	ll += bayes.SumPrior(pm.hazardPrior, haz)

	lp := make([]float64, pm.n)
	pm.linpred(coeff, lp)

	for i := 0; i < pm.n; i++ {
		er := math.Exp(lp[i])
		hz := haz[pm.strata[i]*pm.k:]
		for j := 0; j < pm.k; j++ {
			e := pm.exposure.At(i, j)
			if e <= 0 {
				continue
			}
			mu := e * er * hz[j]
			ll += pm.events.At(i, j)*math.Log(mu) - mu
		}
	}

	if math.IsNaN(ll) {
		return math.Inf(-1)
	}

	return ll
}

// PointLogLike returns the N x K matrix of per-cell Poisson log-likelihood
// contributions at the given parameter vector.  Cells with zero exposure
// are exactly zero.  This matrix is the input contract for external
// WAIC/LOO model comparison.
func (pm *PwExpHazard) PointLogLike(params []float64) *mat.Dense {

	pm.checkLen(params)

	coeff := pm.Coeff(params)
	haz := pm.Hazard(params)

	pll := mat.NewDense(pm.n, pm.k, nil)

	lp := make([]float64, pm.n)
	pm.linpred(coeff, lp)

	for i := 0; i < pm.n; i++ {
		er := math.Exp(lp[i])
		hz := haz[pm.strata[i]*pm.k:]
		for j := 0; j < pm.k; j++ {
			e := pm.exposure.At(i, j)
			if e <= 0 {
				continue
			}
			mu := e * er * hz[j]
			pll.Set(i, j, pm.events.At(i, j)*math.Log(mu)-mu)
		}
	}

	return pll
}

// HazardSurface returns the N x K matrix of instantaneous hazard rates
// exp(x'b) * h[k] at the given parameter vector.  Exposure is not applied.
func (pm *PwExpHazard) HazardSurface(params []float64) *mat.Dense {

	pm.checkLen(params)

	coeff := pm.Coeff(params)
	haz := pm.Hazard(params)

	hs := mat.NewDense(pm.n, pm.k, nil)

	lp := make([]float64, pm.n)
	pm.linpred(coeff, lp)

	for i := 0; i < pm.n; i++ {
		er := math.Exp(lp[i])
		hz := haz[pm.strata[i]*pm.k:]
		for j := 0; j < pm.k; j++ {
			hs.Set(i, j, er*hz[j])
		}
	}

	return hs
}

// Survival returns the N x K matrix of survival probabilities implied by
// the hazard surface, treating each interval as having unit width:
// S[i, k] = exp(-sum of hazard rates through interval k).
func (pm *PwExpHazard) Survival(params []float64) *mat.Dense {

	hs := pm.HazardSurface(params)

	sv := mat.NewDense(pm.n, pm.k, nil)
	for i := 0; i < pm.n; i++ {
		var ch float64
		for j := 0; j < pm.k; j++ {
			ch += hs.At(i, j)
			sv.Set(i, j, math.Exp(-ch))
		}
	}

	return sv
}
