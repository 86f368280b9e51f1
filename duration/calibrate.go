package duration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/optimize"
)

// CalibrateGammaMaxEnt returns the shape and rate of the maximum-entropy
// Gamma distribution matching the target moments E[w] = mean and
// E[log w] = meanLog.  The Gamma family is the maximum-entropy family for
// these two constraints, so the targets pin down the hyperparameters of
// the frailty prior.  Feasibility requires meanLog < log(mean) by Jensen's
// inequality.
func CalibrateGammaMaxEnt(mean, meanLog float64) (float64, float64, error) {

	if !(mean > 0) {
		return 0, 0, fmt.Errorf("duration: target mean must be positive")
	}

	// With rate = shape/mean, the shape solves
	// digamma(shape) - log(shape) = meanLog - log(mean).
	t := meanLog - math.Log(mean)
	if t >= 0 {
		return 0, 0, fmt.Errorf("duration: infeasible targets, E[log w] must be below log E[w]")
	}

	resid := func(shape float64) float64 {
		return mathext.Digamma(shape) - math.Log(shape) - t
	}

	// Minimize the squared residual over log(shape).
	prob := optimize.Problem{
		Func: func(u []float64) float64 {
			r := resid(math.Exp(u[0]))
			return r * r
		},
	}

	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-15,
			Iterations: 500,
		},
	}

	rslt, err := optimize.Minimize(prob, []float64{0}, settings, &optimize.NelderMead{})
	if err != nil {
		return 0, 0, err
	}

	shape := math.Exp(rslt.X[0])
	if r := resid(shape); math.Abs(r) > 1e-4 {
		return 0, 0, fmt.Errorf("duration: calibration did not converge, residual %e", r)
	}

	return shape, shape / mean, nil
}
