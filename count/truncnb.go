// Package count provides a doubly-truncated compound count likelihood: a
// latent Negative-Binomial count, truncated to a known finite range, mixed
// with a Binomial outcome whose success probability is the normalized
// latent count.  The latent count is marginalized by explicit enumeration
// in log space.
package count

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kshedden/attrition/bayes"
)

// TruncNBReg models, for each observation i, a latent count z ranging over
// {0, ..., Z_i} with a Negative-Binomial distribution truncated to that
// range, and an observed Binomial outcome of vplus_i successes in v_i
// trials with success probability z / Z_i.  The Negative-Binomial mean for
// observation i is exp(x_i'b); the dispersion phi is shared.
//
// The flat parameter vector is laid out as the P regression coefficients
// followed by the dispersion.
type TruncNBReg struct {

	// Truncation bounds Z_i
	z []int

	// Binomial trial counts and observed successes
	v     []int
	vplus []int

	// N x P design matrix
	x *mat.Dense

	n, p int

	coeffPrior bayes.LogPrior
	dispPrior  bayes.LogPrior

	log *log.Logger
}

// TruncNBConfig defines configuration parameters for a truncated compound
// count model.
type TruncNBConfig struct {

	// A logger to which logging information is written
	Log *log.Logger

	// CoeffPrior is the prior for each regression coefficient.
	CoeffPrior bayes.LogPrior

	// DispersionPrior is the prior for the dispersion parameter.
	DispersionPrior bayes.LogPrior
}

// DefaultTruncNBConfig returns a default configuration: normal(0, 1)
// coefficient priors and a near-improper Gamma dispersion prior.
func DefaultTruncNBConfig() *TruncNBConfig {
	return &TruncNBConfig{
		CoeffPrior:      bayes.NormalPrior(0, 1),
		DispersionPrior: bayes.GammaPrior(0.01, 0.01),
	}
}

// NewTruncNBReg returns a truncated compound count model for the given
// bounds, trial counts, success counts, and design matrix.
func NewTruncNBReg(z, v, vplus []int, x *mat.Dense, config *TruncNBConfig) (*TruncNBReg, error) {

	if config == nil {
		config = DefaultTruncNBConfig()
	}

	n := len(z)
	if n == 0 {
		return nil, fmt.Errorf("count: no observations")
	}
	if len(v) != n || len(vplus) != n {
		return nil, fmt.Errorf("count: bounds, trials, and successes have lengths %d, %d, %d",
			n, len(v), len(vplus))
	}
	xn, p := x.Dims()
	if xn != n {
		return nil, fmt.Errorf("count: design matrix has %d rows, %d observations", xn, n)
	}

	for i := 0; i < n; i++ {
		if z[i] < 0 {
			return nil, fmt.Errorf("count: negative truncation bound at position %d", i)
		}
		if v[i] < 0 {
			return nil, fmt.Errorf("count: negative trial count at position %d", i)
		}
		if vplus[i] < 0 || vplus[i] > v[i] {
			return nil, fmt.Errorf("count: successes at position %d outside 0..%d", i, v[i])
		}
	}

	tm := &TruncNBReg{
		z:          z,
		v:          v,
		vplus:      vplus,
		x:          x,
		n:          n,
		p:          p,
		coeffPrior: config.CoeffPrior,
		dispPrior:  config.DispersionPrior,
		log:        config.Log,
	}

	if tm.log != nil {
		tm.log.Printf("TruncNBReg: %d observations, %d covariates", n, p)
	}

	return tm, nil
}

// NumObs returns the number of observations.
func (tm *TruncNBReg) NumObs() int {
	return tm.n
}

// NumParams returns the length of the flat parameter vector: the
// regression coefficients followed by the dispersion.
func (tm *TruncNBReg) NumParams() int {
	return tm.p + 1
}

// Coeff returns the regression coefficient block of a parameter vector.
func (tm *TruncNBReg) Coeff(params []float64) []float64 {
	return params[0:tm.p]
}

// Dispersion returns the dispersion parameter from a parameter vector.
func (tm *TruncNBReg) Dispersion(params []float64) float64 {
	return params[tm.p]
}

func (tm *TruncNBReg) checkLen(params []float64) {
	if len(params) != tm.NumParams() {
		msg := fmt.Sprintf("TruncNBReg: parameter vector has length %d, expected %d",
			len(params), tm.NumParams())
		panic(msg)
	}
}

// LogProb returns the joint log-density at the given parameter vector.
// Proposals with a non-positive dispersion return -Inf.
func (tm *TruncNBReg) LogProb(params []float64) float64 {

	tm.checkLen(params)

	coeff := tm.Coeff(params)
	phi := tm.Dispersion(params)

	if !(phi > 0) {
		return math.Inf(-1)
	}

	ll := bayes.SumPrior(tm.coeffPrior, coeff)
	ll += tm.dispPrior(phi)

	for i := 0; i < tm.n; i++ {
		var lp float64
		for j := 0; j < tm.p; j++ {
			lp += tm.x.At(i, j) * coeff[j]
		}
		ll += TruncCompoundLogProb(tm.z[i], tm.v[i], tm.vplus[i], math.Exp(lp), phi)
	}

	if math.IsNaN(ll) {
		return math.Inf(-1)
	}

	return ll
}

// PointLogLike returns the per-observation log-likelihood contributions at
// the given parameter vector.
func (tm *TruncNBReg) PointLogLike(params []float64) []float64 {

	tm.checkLen(params)

	coeff := tm.Coeff(params)
	phi := tm.Dispersion(params)

	pll := make([]float64, tm.n)
	for i := 0; i < tm.n; i++ {
		var lp float64
		for j := 0; j < tm.p; j++ {
			lp += tm.x.At(i, j) * coeff[j]
		}
		pll[i] = TruncCompoundLogProb(tm.z[i], tm.v[i], tm.vplus[i], math.Exp(lp), phi)
	}

	return pll
}

// TruncCompoundLogProb returns the log-likelihood of observing vplus
// successes in v Binomial trials, marginalizing a latent count z over
// {0, ..., zmax}.  The latent count follows a Negative-Binomial
// distribution with mean xi and dispersion phi, truncated to the range by
// dividing out the cumulative mass through zmax; the Binomial success
// probability is z / zmax.  All terms are accumulated with log-sum-exp.
//
// When zmax is 0 the sum collapses to the single z = 0 term: the
// truncation factor is 1 and the result is the Binomial log probability at
// success probability 0.
func TruncCompoundLogProb(zmax, v, vplus int, xi, phi float64) float64 {

	lnb := make([]float64, zmax+1)
	for z := 0; z <= zmax; z++ {
		lnb[z] = negBinomLogPMF(z, xi, phi)
	}

	// Log of the truncated Negative-Binomial normalizer.
	lcdf := bayes.LogSumExp(lnb)

	terms := make([]float64, zmax+1)
	for z := 0; z <= zmax; z++ {
		var pr float64
		if zmax > 0 {
			pr = float64(z) / float64(zmax)
		}
		terms[z] = lnb[z] - lcdf + binomLogPMF(vplus, v, pr)
	}

	return bayes.LogSumExp(terms)
}

// negBinomLogPMF returns the Negative-Binomial log pmf in mean/dispersion
// form: mean xi, dispersion phi, variance xi + xi^2/phi.
func negBinomLogPMF(z int, xi, phi float64) float64 {
	zf := float64(z)
	c1, _ := math.Lgamma(zf + phi)
	c2, _ := math.Lgamma(phi)
	c3, _ := math.Lgamma(zf + 1)
	return c1 - c2 - c3 + phi*math.Log(phi/(phi+xi)) + zf*math.Log(xi/(phi+xi))
}

// binomLogPMF returns the Binomial log pmf, with exact handling of the
// degenerate success probabilities 0 and 1.
func binomLogPMF(k, n int, p float64) float64 {

	if p <= 0 {
		if k == 0 {
			return 0
		}
		return math.Inf(-1)
	}
	if p >= 1 {
		if k == n {
			return 0
		}
		return math.Inf(-1)
	}

	d := distuv.Binomial{N: float64(n), P: p}
	return d.LogProb(float64(k))
}
