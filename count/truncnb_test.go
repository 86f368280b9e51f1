package count

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/attrition/bayes"
)

// Direct enumeration of the compound likelihood using naive arithmetic,
// for cross-checking the log-space implementation on small cases.
func naiveCompound(zmax, v, vplus int, xi, phi float64) float64 {

	binom := func(n, k int) float64 {
		r := 1.0
		for j := 1; j <= k; j++ {
			r *= float64(n-k+j) / float64(j)
		}
		return r
	}

	nb := func(z int) float64 {
		// Gamma(z+phi) / (Gamma(phi) z!) * (phi/(phi+xi))^phi * (xi/(phi+xi))^z
		r := 1.0
		for j := 0; j < z; j++ {
			r *= (phi + float64(j)) / float64(j+1)
		}
		return r * math.Pow(phi/(phi+xi), phi) * math.Pow(xi/(phi+xi), float64(z))
	}

	var norm float64
	for z := 0; z <= zmax; z++ {
		norm += nb(z)
	}

	var total float64
	for z := 0; z <= zmax; z++ {
		var pr float64
		if zmax > 0 {
			pr = float64(z) / float64(zmax)
		}
		var bp float64
		switch {
		case pr == 0:
			if vplus == 0 {
				bp = 1
			}
		case pr == 1:
			if vplus == v {
				bp = 1
			}
		default:
			bp = binom(v, vplus) * math.Pow(pr, float64(vplus)) * math.Pow(1-pr, float64(v-vplus))
		}
		total += nb(z) / norm * bp
	}

	return math.Log(total)
}

func TestTruncCompoundScenario(t *testing.T) {

	// Concrete scenario: Z=3, v=10, v_plus=4, xi=2.0, phi=5.
	got := TruncCompoundLogProb(3, 10, 4, 2.0, 5)

	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("expected finite log-likelihood, got %v", got)
	}

	expect := naiveCompound(3, 10, 4, 2.0, 5)
	if math.Abs(got-expect) > 1e-6 {
		t.Errorf("got %v, expected %v", got, expect)
	}
}

func TestTruncCompoundGrid(t *testing.T) {

	for _, c := range []struct {
		zmax, v, vplus int
		xi, phi        float64
	}{
		{1, 5, 0, 0.5, 2},
		{2, 6, 6, 1.5, 1},
		{4, 8, 3, 3.0, 0.7},
		{7, 12, 5, 2.5, 4},
	} {
		got := TruncCompoundLogProb(c.zmax, c.v, c.vplus, c.xi, c.phi)
		expect := naiveCompound(c.zmax, c.v, c.vplus, c.xi, c.phi)
		if math.Abs(got-expect) > 1e-6 {
			t.Errorf("case %+v: got %v, expected %v", c, got, expect)
		}
	}
}

func TestTruncCompoundZeroBound(t *testing.T) {

	// Z = 0 forces z = 0 with a unit truncation factor, so the
	// likelihood is the Binomial probability at success probability 0.
	if TruncCompoundLogProb(0, 10, 0, 2.0, 5) != 0 {
		t.Fail()
	}
	if !math.IsInf(TruncCompoundLogProb(0, 10, 4, 2.0, 5), -1) {
		t.Fail()
	}
}

func TestTruncCompoundStability(t *testing.T) {

	// Wide truncation ranges and extreme dispersion must not underflow
	// to NaN.
	for _, c := range []struct {
		zmax, v, vplus int
		xi, phi        float64
	}{
		{500, 5, 3, 50, 0.1},
		{1000, 8, 2, 400, 10},
		{200, 3, 1, 0.01, 100},
	} {
		got := TruncCompoundLogProb(c.zmax, c.v, c.vplus, c.xi, c.phi)
		if math.IsNaN(got) {
			t.Errorf("case %+v: NaN log-likelihood", c)
		}
		if got > 0 {
			t.Errorf("case %+v: positive log probability %v", c, got)
		}
	}
}

func TestTruncNBRegLogProb(t *testing.T) {

	z := []int{3, 0, 5}
	v := []int{10, 4, 6}
	vplus := []int{4, 0, 6}
	x := mat.NewDense(3, 2, []float64{
		1, 0.5,
		1, -0.5,
		1, 1,
	})

	tm, err := NewTruncNBReg(z, v, vplus, x, nil)
	if err != nil {
		t.Fatal(err)
	}

	if tm.NumObs() != 3 || tm.NumParams() != 3 {
		t.Fail()
	}

	params := []float64{0.3, -0.2, 1.5}
	ll := tm.LogProb(params)
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		t.Fail()
	}

	// Joint density equals priors plus the pointwise sum.
	cfg := DefaultTruncNBConfig()
	s := bayes.SumPrior(cfg.CoeffPrior, params[0:2]) + cfg.DispersionPrior(1.5)
	for _, u := range tm.PointLogLike(params) {
		s += u
	}
	if math.Abs(ll-s) > 1e-10 {
		t.Fail()
	}

	// Each pointwise term matches the kernel directly.
	pll := tm.PointLogLike(params)
	xi0 := math.Exp(0.3 + 0.5*(-0.2))
	if math.Abs(pll[0]-TruncCompoundLogProb(3, 10, 4, xi0, 1.5)) > 1e-10 {
		t.Fail()
	}

	// Non-positive dispersion proposals are rejected.
	if !math.IsInf(tm.LogProb([]float64{0.3, -0.2, 0}), -1) {
		t.Fail()
	}
}

func TestTruncNBRegInvalid(t *testing.T) {

	x := mat.NewDense(2, 1, []float64{1, 1})

	if _, err := NewTruncNBReg(nil, nil, nil, x, nil); err == nil {
		t.Fail()
	}
	if _, err := NewTruncNBReg([]int{1, 2}, []int{3}, []int{0, 1}, x, nil); err == nil {
		t.Fail()
	}
	if _, err := NewTruncNBReg([]int{-1, 2}, []int{3, 3}, []int{0, 1}, x, nil); err == nil {
		t.Fail()
	}
	if _, err := NewTruncNBReg([]int{1, 2}, []int{3, 3}, []int{0, 4}, x, nil); err == nil {
		t.Fail()
	}
	if _, err := NewTruncNBReg([]int{1, 2, 3}, []int{3, 3, 3}, []int{0, 1, 2}, x, nil); err == nil {
		t.Fail()
	}
}
