package duration

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func frailtyTestBlocks() []FrailtyBlock {

	ba := FrailtyBlock{
		Events: mat.NewDense(2, 2, []float64{
			0, 1,
			0, 0,
		}),
		Exposure: mat.NewDense(2, 2, []float64{
			1, 0.4,
			1, 1,
		}),
		X:       mat.NewDense(2, 1, []float64{0.5, -0.5}),
		Cluster: []int{1, 2},
	}

	bb := FrailtyBlock{
		Events: mat.NewDense(3, 2, []float64{
			1, 0,
			0, 0,
			0, 1,
		}),
		Exposure: mat.NewDense(3, 2, []float64{
			0.7, 0,
			1, 1,
			1, 0.9,
		}),
		X:       mat.NewDense(3, 1, []float64{1, 0, -1}),
		Cluster: []int{2, 3, 3},
	}

	return []FrailtyBlock{ba, bb}
}

func TestFrailtyUnitReduction(t *testing.T) {

	blocks := frailtyTestBlocks()

	fm, err := NewFrailtyHazard(blocks, 3, nil)
	if err != nil {
		t.Fatal(err)
	}

	// coeff, 2 hazard blocks of 2, 3 frailties
	if fm.NumParams() != 1+4+3 {
		t.Fail()
	}

	params := []float64{0.3, 0.2, 0.3, 0.4, 0.5, 1, 1, 1}
	hs := fm.HazardSurface(params)

	// With all frailties at 1 the hazard surface matches the
	// corresponding stratified model without frailties.
	for b, blk := range blocks {
		n, _ := blk.Events.Dims()

		cfg := DefaultPwExpConfig()
		pm, err := NewPwExpHazard(blk.Events, blk.Exposure, blk.X, cfg)
		if err != nil {
			t.Fatal(err)
		}
		pparams := []float64{0.3}
		pparams = append(pparams, fm.Hazard(params, b)...)
		phs := pm.HazardSurface(pparams)

		for i := 0; i < n; i++ {
			for j := 0; j < 2; j++ {
				if math.Abs(hs[b].At(i, j)-phs.At(i, j)) > 1e-10 {
					t.Errorf("block %d cell (%d, %d): %v != %v",
						b, i, j, hs[b].At(i, j), phs.At(i, j))
				}
			}
		}
	}
}

func TestFrailtyLogProb(t *testing.T) {

	blocks := frailtyTestBlocks()
	fm, err := NewFrailtyHazard(blocks, 3, nil)
	if err != nil {
		t.Fatal(err)
	}

	params := []float64{0.3, 0.2, 0.3, 0.4, 0.5, 0.8, 1.1, 1.3}
	ll := fm.LogProb(params)
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		t.Fail()
	}

	// Multiplying a cluster's frailty into the hazard shifts the
	// likelihood; a different frailty value must change the density.
	params2 := []float64{0.3, 0.2, 0.3, 0.4, 0.5, 0.8, 1.1, 2.6}
	if math.Abs(ll-fm.LogProb(params2)) < 1e-8 {
		t.Fail()
	}

	// Non-positive frailty proposals are rejected.
	params3 := []float64{0.3, 0.2, 0.3, 0.4, 0.5, 0.8, -1.1, 1.3}
	if !math.IsInf(fm.LogProb(params3), -1) {
		t.Fail()
	}
}

func TestFrailtyPointLogLike(t *testing.T) {

	blocks := frailtyTestBlocks()
	fm, err := NewFrailtyHazard(blocks, 3, nil)
	if err != nil {
		t.Fatal(err)
	}

	params := []float64{0.3, 0.2, 0.3, 0.4, 0.5, 0.8, 1.1, 1.3}
	pll := fm.PointLogLike(params)

	if len(pll) != 2 {
		t.Fatal("expected one matrix per block")
	}

	// Zero-exposure cells are exactly zero.
	if pll[1].At(0, 1) != 0 {
		t.Fail()
	}

	// Hand check: block 1, subject 0, interval 0.  Cluster 2 frailty is
	// 1.1, covariate 1, coefficient 0.3, hazard 0.4, exposure 0.7,
	// event observed.
	mu := 0.7 * 1.1 * math.Exp(0.3) * 0.4
	if math.Abs(pll[1].At(0, 0)-(math.Log(mu)-mu)) > 1e-10 {
		t.Fail()
	}
}

func TestFrailtyFreeHyper(t *testing.T) {

	blocks := frailtyTestBlocks()

	cfg := DefaultFrailtyConfig()
	cfg.FixedHyperparams = false
	cfg.FrailtyMean = 1
	cfg.FrailtyDispersion = 0.5

	fm, err := NewFrailtyHazard(blocks, 3, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if fm.NumParams() != 1+4+3+2 {
		t.Fail()
	}

	params := []float64{0.3, 0.2, 0.3, 0.4, 0.5, 0.8, 1.1, 1.3, 0.9, 0.6}
	m, d := fm.Hyper(params)
	if m != 0.9 || d != 0.6 {
		t.Fail()
	}

	if math.IsNaN(fm.LogProb(params)) {
		t.Fail()
	}

	// Non-positive hyperparameter proposals are rejected.
	params[9] = -0.1
	if !math.IsInf(fm.LogProb(params), -1) {
		t.Fail()
	}
}

func TestFrailtyIndividual(t *testing.T) {

	// One cluster per subject: pure individual frailty uses the same
	// likelihood structure.
	blocks := frailtyTestBlocks()
	blocks[0].Cluster = []int{1, 2}
	blocks[1].Cluster = []int{3, 4, 5}

	fm, err := NewFrailtyHazard(blocks, 5, nil)
	if err != nil {
		t.Fatal(err)
	}

	params := []float64{0.3, 0.2, 0.3, 0.4, 0.5, 1, 0.7, 1.2, 0.9, 1.4}
	if math.IsNaN(fm.LogProb(params)) || math.IsInf(fm.LogProb(params), 0) {
		t.Fail()
	}

	if len(fm.Frailties(params)) != 5 {
		t.Fail()
	}
}

func TestFrailtyInvalid(t *testing.T) {

	blocks := frailtyTestBlocks()

	// Cluster id out of range
	bad := frailtyTestBlocks()
	bad[1].Cluster = []int{2, 3, 4}
	if _, err := NewFrailtyHazard(bad, 3, nil); err == nil {
		t.Fail()
	}

	// Cluster ids are 1-based
	bad = frailtyTestBlocks()
	bad[0].Cluster = []int{0, 1}
	if _, err := NewFrailtyHazard(bad, 3, nil); err == nil {
		t.Fail()
	}

	// Blocks must share the covariate structure.
	bad = frailtyTestBlocks()
	bad[1].X = mat.NewDense(3, 2, nil)
	if _, err := NewFrailtyHazard(bad, 3, nil); err == nil {
		t.Fail()
	}

	// Interval counts must agree.
	bad = frailtyTestBlocks()
	bad[1].Events = mat.NewDense(3, 3, nil)
	if _, err := NewFrailtyHazard(bad, 3, nil); err == nil {
		t.Fail()
	}

	if _, err := NewFrailtyHazard(blocks, 0, nil); err == nil {
		t.Fail()
	}
	if _, err := NewFrailtyHazard(nil, 3, nil); err == nil {
		t.Fail()
	}
}
