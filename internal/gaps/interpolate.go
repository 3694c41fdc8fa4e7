package gaps

import (
	"math"

	"github.com/chrissnell/pvreconcile/internal/runs"
	"github.com/chrissnell/pvreconcile/internal/types"
	"github.com/chrissnell/pvreconcile/pkg/config"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

// interpolator estimates the value at index i of an interior missing run.
type interpolator interface {
	at(r runs.Run, i int) float64
}

func newInterpolator(series []float64, opts Options) interpolator {
	if opts.Method == config.InterpolatePolynomial {
		return &polynomial{series: series, order: opts.PolyOrder, window: opts.PolyWindow}
	}
	return newLinear(series)
}

// linear is piecewise-linear interpolation through every valid value.
type linear struct {
	series []float64
	pl     *interp.PiecewiseLinear
}

func newLinear(series []float64) *linear {
	var xs, ys []float64
	for i, v := range series {
		if !types.IsMissing(v) {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}
	l := &linear{series: series}
	var pl interp.PiecewiseLinear
	if len(xs) >= 2 && pl.Fit(xs, ys) == nil {
		l.pl = &pl
	}
	return l
}

func (l *linear) at(r runs.Run, i int) float64 {
	if l.pl != nil {
		return l.pl.Predict(float64(i))
	}
	return between(l.series, r, i)
}

// between interpolates linearly between the two neighbours of run r.
func between(series []float64, r runs.Run, i int) float64 {
	lo, hi := series[r.Start-1], series[r.End()]
	frac := float64(i-r.Start+1) / float64(r.Length+1)
	return lo + (hi-lo)*frac
}

// polynomial fits a least-squares polynomial to up to window valid values
// on each side of the run. The order drops when fewer points are available.
type polynomial struct {
	series []float64
	order  int
	window int

	run    runs.Run
	coeffs []float64
	center float64
	scale  float64
}

func (p *polynomial) at(r runs.Run, i int) float64 {
	if p.coeffs == nil || p.run != r {
		p.fit(r)
	}
	if p.coeffs == nil {
		return between(p.series, r, i)
	}
	x := (float64(i) - p.center) / p.scale
	y := 0.0
	for j := len(p.coeffs) - 1; j >= 0; j-- {
		y = y*x + p.coeffs[j]
	}
	return y
}

func (p *polynomial) fit(r runs.Run) {
	p.run = r
	p.coeffs = nil

	var xs, ys []float64
	for i, n := r.Start-1, 0; i >= 0 && n < p.window; i-- {
		if !types.IsMissing(p.series[i]) {
			xs = append(xs, float64(i))
			ys = append(ys, p.series[i])
			n++
		}
	}
	for i, n := r.End(), 0; i < len(p.series) && n < p.window; i++ {
		if !types.IsMissing(p.series[i]) {
			xs = append(xs, float64(i))
			ys = append(ys, p.series[i])
			n++
		}
	}

	degree := p.order
	if degree > len(xs)-1 {
		degree = len(xs) - 1
	}
	if degree < 1 {
		return
	}

	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	p.center = (lo + hi) / 2
	p.scale = math.Max((hi-lo)/2, 1)

	// Build Vandermonde matrix over centred, scaled positions
	X := mat.NewDense(len(xs), degree+1, nil)
	for i, x := range xs {
		u := (x - p.center) / p.scale
		for j := 0; j <= degree; j++ {
			X.Set(i, j, math.Pow(u, float64(j)))
		}
	}
	y := mat.NewVecDense(len(ys), ys)

	// Solve using QR decomposition
	var qr mat.QR
	qr.Factorize(X)
	coeffs := mat.NewVecDense(degree+1, nil)
	if err := qr.SolveVecTo(coeffs, false, y); err != nil {
		return
	}

	p.coeffs = make([]float64, degree+1)
	for j := range p.coeffs {
		p.coeffs[j] = coeffs.AtVec(j)
	}
	for _, c := range p.coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			p.coeffs = nil
			return
		}
	}
}
