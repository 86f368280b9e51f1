package bayes

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Draws holds an ordered sequence of posterior parameter draws, one vector
// per retained sampler iteration.  Derived-quantity transforms are pure
// functions of a single draw, so they can be applied to each draw
// independently, in any order.
type Draws struct {
	draws [][]float64
}

// NewDraws wraps a draw sequence.  Every draw must have the same length.
func NewDraws(draws [][]float64) (*Draws, error) {

	if len(draws) == 0 {
		return nil, fmt.Errorf("bayes: empty draw sequence")
	}

	p := len(draws[0])
	for i, d := range draws {
		if len(d) != p {
			return nil, fmt.Errorf("bayes: draw %d has length %d, expected %d", i, len(d), p)
		}
	}

	return &Draws{draws: draws}, nil
}

// Len returns the number of draws.
func (dr *Draws) Len() int {
	return len(dr.draws)
}

// NumParams returns the length of each parameter vector.
func (dr *Draws) NumParams() int {
	return len(dr.draws[0])
}

// Get returns the i^th draw.  The returned slice is not a copy and must not
// be modified.
func (dr *Draws) Get(i int) []float64 {
	return dr.draws[i]
}

// Each applies f to every draw in order.
func (dr *Draws) Each(f func(i int, params []float64)) {
	for i, d := range dr.draws {
		f(i, d)
	}
}

// EachParallel applies f to every draw using the given number of worker
// goroutines.  If workers is <= 0, GOMAXPROCS workers are used.  f must be
// safe for concurrent use; distinct invocations never share a draw index.
func (dr *Draws) EachParallel(workers int, f func(i int, params []float64) error) error {

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var eg errgroup.Group
	eg.SetLimit(workers)

	for i := range dr.draws {
		i := i
		eg.Go(func() error {
			return f(i, dr.draws[i])
		})
	}

	return eg.Wait()
}

// Column returns the sequence of values of parameter position j across all
// draws, in draw order.
func (dr *Draws) Column(j int) []float64 {
	x := make([]float64, len(dr.draws))
	for i, d := range dr.draws {
		x[i] = d[j]
	}
	return x
}
