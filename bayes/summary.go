package bayes

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// PosteriorSummary holds marginal summaries of a posterior draw sequence,
// one row per parameter.
type PosteriorSummary struct {

	// Title displayed above the table
	Title string

	// Parameter names, one per column of the draw matrix
	Names []string

	Mean   []float64
	StdDev []float64

	// Lower and Upper are the bounds of the central 95% credible interval.
	Lower []float64
	Upper []float64
}

// Summarize computes marginal posterior means, standard deviations, and
// central 95% credible intervals for each parameter.  If names is nil,
// positional names are generated.
func Summarize(dr *Draws, names []string) (*PosteriorSummary, error) {

	p := dr.NumParams()

	if names == nil {
		names = make([]string, p)
		for j := range names {
			names[j] = fmt.Sprintf("param%d", j)
		}
	}
	if len(names) != p {
		return nil, fmt.Errorf("bayes: %d names provided for %d parameters", len(names), p)
	}

	ps := &PosteriorSummary{
		Title:  "Posterior summary",
		Names:  names,
		Mean:   make([]float64, p),
		StdDev: make([]float64, p),
		Lower:  make([]float64, p),
		Upper:  make([]float64, p),
	}

	for j := 0; j < p; j++ {
		x := dr.Column(j)
		ps.Mean[j] = stat.Mean(x, nil)
		ps.StdDev[j] = stat.StdDev(x, nil)
		sort.Float64s(x)
		ps.Lower[j] = stat.Quantile(0.025, stat.Empirical, x, nil)
		ps.Upper[j] = stat.Quantile(0.975, stat.Empirical, x, nil)
	}

	return ps, nil
}

// String returns the summary as a fixed-width text table.
func (ps *PosteriorSummary) String() string {

	w := 12
	for _, na := range ps.Names {
		if len(na)+2 > w {
			w = len(na) + 2
		}
	}

	tw := w + 4*12
	line := strings.Repeat("-", tw) + "\n"

	var buf bytes.Buffer

	k := (tw - len(ps.Title)) / 2
	if k < 0 {
		k = 0
	}
	buf.WriteString(strings.Repeat(" ", k))
	buf.WriteString(ps.Title + "\n")
	buf.WriteString(strings.Repeat("=", tw) + "\n")

	buf.WriteString(fmt.Sprintf("%-*s%12s%12s%12s%12s\n", w, "", "Mean", "SD", "2.5%", "97.5%"))
	buf.WriteString(line)

	for j, na := range ps.Names {
		buf.WriteString(fmt.Sprintf("%-*s%12.4f%12.4f%12.4f%12.4f\n",
			w, na, ps.Mean[j], ps.StdDev[j], ps.Lower[j], ps.Upper[j]))
	}
	buf.WriteString(line)

	return buf.String()
}
