package duration

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/attrition/bayes"
)

// FrailtyBlock holds the person-interval panel data for one stratum of a
// frailty hazard model.  Blocks may differ in row count but must share the
// same covariate columns and the same number of intervals.
type FrailtyBlock struct {

	// n_b x K event indicators and fractional exposures
	Events   *mat.Dense
	Exposure *mat.Dense

	// n_b x P design matrix
	X *mat.Dense

	// Cluster is the 1-based frailty cluster id of each subject in the
	// block.  With one cluster per subject the model has pure individual
	// frailties; with repeated ids the frailty is shared.
	Cluster []int
}

// FrailtyHazard extends the piecewise-exponential hazard model with a
// multiplicative Gamma frailty per cluster.  Each stratum block carries its
// own baseline hazard columns; all blocks share one coefficient vector.
// The frailty prior is Gamma with hyperparameters expressed as a mean and a
// dispersion (variance), either fixed or appended to the parameter vector
// and weakly regularized around the supplied targets.
//
// The flat parameter vector is laid out as the P regression coefficients,
// the B*K baseline hazard values in block-major order, the F frailty
// values, and, when the hyperparameters are free, the frailty mean and
// dispersion.
type FrailtyHazard struct {
	blocks []FrailtyBlock

	k, p      int
	nclusters int

	coeffPrior  bayes.LogPrior
	hazardPrior bayes.LogPrior

	frailtyMean       float64
	frailtyDispersion float64
	fixedHyper        bool
	hyperSD           float64

	log *log.Logger
}

// FrailtyConfig defines configuration parameters for a frailty hazard model.
type FrailtyConfig struct {

	// A logger to which logging information is written
	Log *log.Logger

	// CoeffPrior is the prior for each regression coefficient.
	CoeffPrior bayes.LogPrior

	// HazardPrior is the prior for each baseline hazard value.
	HazardPrior bayes.LogPrior

	// FrailtyMean and FrailtyDispersion are the mean and variance of the
	// Gamma frailty prior.  When FixedHyperparams is false they are the
	// targets around which the free hyperparameters are regularized.
	FrailtyMean       float64
	FrailtyDispersion float64

	// FixedHyperparams fixes the frailty hyperparameters at the values
	// above.  When false, two extra parameters are appended to the
	// parameter vector.
	FixedHyperparams bool

	// HyperSD is the standard deviation of the normal regularization
	// applied to free hyperparameters.
	HyperSD float64
}

// DefaultFrailtyConfig returns a default configuration: normal(0, 1)
// coefficient priors, Gamma(0.01, 0.01) baseline hazard priors, and a fixed
// mean-1 frailty prior with unit dispersion.
func DefaultFrailtyConfig() *FrailtyConfig {
	return &FrailtyConfig{
		CoeffPrior:        bayes.NormalPrior(0, 1),
		HazardPrior:       bayes.GammaPrior(0.01, 0.01),
		FrailtyMean:       1,
		FrailtyDispersion: 1,
		FixedHyperparams:  true,
		HyperSD:           1,
	}
}

// NewFrailtyHazard returns a frailty hazard model over the given stratum
// blocks.  nclusters is the number of frailty clusters; every cluster id
// must lie in 1, ..., nclusters.
func NewFrailtyHazard(blocks []FrailtyBlock, nclusters int, config *FrailtyConfig) (*FrailtyHazard, error) {

	if config == nil {
		config = DefaultFrailtyConfig()
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("duration: no stratum blocks")
	}
	if nclusters < 1 {
		return nil, fmt.Errorf("duration: nclusters must be at least 1")
	}
	if config.FrailtyMean <= 0 || config.FrailtyDispersion <= 0 {
		return nil, fmt.Errorf("duration: frailty mean and dispersion must be positive")
	}

	_, k := blocks[0].Events.Dims()
	_, p := blocks[0].X.Dims()

	for b, blk := range blocks {
		n, bk := blk.Events.Dims()
		if bk != k {
			return nil, fmt.Errorf("duration: block %d has %d intervals, block 0 has %d", b, bk, k)
		}
		if en, ek := blk.Exposure.Dims(); en != n || ek != k {
			return nil, fmt.Errorf("duration: block %d exposure is %dx%d, events is %dx%d", b, en, ek, n, k)
		}
		xn, xp := blk.X.Dims()
		if xn != n {
			return nil, fmt.Errorf("duration: block %d design matrix has %d rows, events has %d", b, xn, n)
		}
		if xp != p {
			return nil, fmt.Errorf("duration: block %d has %d covariates, block 0 has %d", b, xp, p)
		}
		if len(blk.Cluster) != n {
			return nil, fmt.Errorf("duration: block %d has %d cluster ids for %d subjects", b, len(blk.Cluster), n)
		}
		for i, c := range blk.Cluster {
			if c < 1 || c > nclusters {
				return nil, fmt.Errorf("duration: block %d subject %d has cluster id %d outside 1..%d",
					b, i, c, nclusters)
			}
		}
		for i := 0; i < n; i++ {
			var ne int
			for j := 0; j < k; j++ {
				y := blk.Events.At(i, j)
				if y != 0 && y != 1 {
					return nil, fmt.Errorf("duration: block %d event count at (%d, %d) is not 0 or 1", b, i, j)
				}
				ne += int(y)
				e := blk.Exposure.At(i, j)
				if e < 0 || e > 1 {
					return nil, fmt.Errorf("duration: block %d exposure at (%d, %d) is outside [0, 1]", b, i, j)
				}
			}
			if ne > 1 {
				return nil, fmt.Errorf("duration: block %d subject %d has more than one event", b, i)
			}
		}
	}

	fm := &FrailtyHazard{
		blocks:            blocks,
		k:                 k,
		p:                 p,
		nclusters:         nclusters,
		coeffPrior:        config.CoeffPrior,
		hazardPrior:       config.HazardPrior,
		frailtyMean:       config.FrailtyMean,
		frailtyDispersion: config.FrailtyDispersion,
		fixedHyper:        config.FixedHyperparams,
		hyperSD:           config.HyperSD,
		log:               config.Log,
	}

	if fm.log != nil {
		fm.log.Printf("FrailtyHazard: %d blocks, %d intervals, %d covariates, %d clusters",
			len(blocks), k, p, nclusters)
	}

	return fm, nil
}

// NumObs returns the total number of subjects across all blocks.
func (fm *FrailtyHazard) NumObs() int {
	var n int
	for _, blk := range fm.blocks {
		bn, _ := blk.Events.Dims()
		n += bn
	}
	return n
}

// NumClusters returns the number of frailty clusters.
func (fm *FrailtyHazard) NumClusters() int {
	return fm.nclusters
}

// NumParams returns the length of the flat parameter vector.
func (fm *FrailtyHazard) NumParams() int {
	np := fm.p + len(fm.blocks)*fm.k + fm.nclusters
	if !fm.fixedHyper {
		np += 2
	}
	return np
}

// Coeff returns the regression coefficient block of a parameter vector.
func (fm *FrailtyHazard) Coeff(params []float64) []float64 {
	return params[0:fm.p]
}

// Hazard returns the baseline hazard values of block b from a parameter
// vector.
func (fm *FrailtyHazard) Hazard(params []float64, b int) []float64 {
	q := fm.p + b*fm.k
	return params[q : q+fm.k]
}

// Frailties returns the per-cluster frailty block of a parameter vector.
func (fm *FrailtyHazard) Frailties(params []float64) []float64 {
	q := fm.p + len(fm.blocks)*fm.k
	return params[q : q+fm.nclusters]
}

// Hyper returns the frailty mean and dispersion in effect for the given
// parameter vector.
func (fm *FrailtyHazard) Hyper(params []float64) (float64, float64) {
	if fm.fixedHyper {
		return fm.frailtyMean, fm.frailtyDispersion
	}
	q := fm.p + len(fm.blocks)*fm.k + fm.nclusters
	return params[q], params[q+1]
}

func (fm *FrailtyHazard) checkLen(params []float64) {
	if len(params) != fm.NumParams() {
		msg := fmt.Sprintf("FrailtyHazard: parameter vector has length %d, expected %d",
			len(params), fm.NumParams())
		panic(msg)
	}
}

// LogProb returns the joint log-density at the given parameter vector.
// Proposals with non-positive hazards, frailties, or hyperparameters
// return -Inf.
func (fm *FrailtyHazard) LogProb(params []float64) float64 {

	fm.checkLen(params)

	coeff := fm.Coeff(params)
	frail := fm.Frailties(params)
	mean, disp := fm.Hyper(params)

	if !(mean > 0) || !(disp > 0) || !bayes.AllPositive(frail) {
		return math.Inf(-1)
	}
	for b := range fm.blocks {
		if !bayes.AllPositive(fm.Hazard(params, b)) {
			return math.Inf(-1)
		}
	}

	ll := bayes.SumPrior(fm.coeffPrior, coeff)
	for b := range fm.blocks {
		ll += bayes.SumPrior(fm.hazardPrior, fm.Hazard(params, b))
	}

	// Gamma frailty prior in mean/dispersion form: shape m^2/d, rate m/d.
	fp := bayes.GammaPrior(mean*mean/disp, mean/disp)
	ll += bayes.SumPrior(fp, frail)

	if !fm.fixedHyper {
		ll += bayes.NormalPrior(fm.frailtyMean, fm.hyperSD)(mean)
		ll += bayes.NormalPrior(fm.frailtyDispersion, fm.hyperSD)(disp)
	}

	for b, blk := range fm.blocks {
		haz := fm.Hazard(params, b)
		n, _ := blk.Events.Dims()
		for i := 0; i < n; i++ {
			er := frail[blk.Cluster[i]-1] * math.Exp(linpredRow(blk.X, i, coeff))
			for j := 0; j < fm.k; j++ {
				e := blk.Exposure.At(i, j)
				if e <= 0 {
					continue
				}
				mu := e * er * haz[j]
				ll += blk.Events.At(i, j)*math.Log(mu) - mu
			}
		}
	}

	if math.IsNaN(ll) {
		return math.Inf(-1)
	}

	return ll
}

func linpredRow(x *mat.Dense, i int, coeff []float64) float64 {
	var v float64
	for j := range coeff {
		v += x.At(i, j) * coeff[j]
	}
	return v
}

// PointLogLike returns, for each block, the matrix of per-cell Poisson
// log-likelihood contributions at the given parameter vector.  Cells with
// zero exposure are exactly zero.
func (fm *FrailtyHazard) PointLogLike(params []float64) []*mat.Dense {

	fm.checkLen(params)

	coeff := fm.Coeff(params)
	frail := fm.Frailties(params)

	var pll []*mat.Dense
	for b, blk := range fm.blocks {
		haz := fm.Hazard(params, b)
		n, _ := blk.Events.Dims()
		m := mat.NewDense(n, fm.k, nil)
		for i := 0; i < n; i++ {
			er := frail[blk.Cluster[i]-1] * math.Exp(linpredRow(blk.X, i, coeff))
			for j := 0; j < fm.k; j++ {
				e := blk.Exposure.At(i, j)
				if e <= 0 {
					continue
				}
				mu := e * er * haz[j]
				m.Set(i, j, blk.Events.At(i, j)*math.Log(mu)-mu)
			}
		}
		pll = append(pll, m)
	}

	return pll
}

// HazardSurface returns, for each block, the matrix of instantaneous
// hazard rates frailty * exp(x'b) * h[k] at the given parameter vector.
// With all frailties equal to 1 this is exactly the surface of the
// corresponding model without frailties.
func (fm *FrailtyHazard) HazardSurface(params []float64) []*mat.Dense {

	fm.checkLen(params)

	coeff := fm.Coeff(params)
	frail := fm.Frailties(params)

	var hs []*mat.Dense
	for b, blk := range fm.blocks {
		haz := fm.Hazard(params, b)
		n, _ := blk.Events.Dims()
		m := mat.NewDense(n, fm.k, nil)
		for i := 0; i < n; i++ {
			er := frail[blk.Cluster[i]-1] * math.Exp(linpredRow(blk.X, i, coeff))
			for j := 0; j < fm.k; j++ {
				m.Set(i, j, er*haz[j])
			}
		}
		hs = append(hs, m)
	}

	return hs
}
