// Package ridge implements a regression estimator for time-delayed input
// that solves the penalized least-squares problem directly in covariance
// space, so the delay-embedded design matrix is never materialized.
package ridge

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/hammal/trf/corr"
	"github.com/hammal/trf/delay"
	"github.com/hammal/trf/gonumext"
	"github.com/hammal/trf/reg"
)

var (
	// ErrNotFitted reports Predict called before Fit.
	ErrNotFitted = errors.New("ridge: estimator has not been fitted")
	// ErrShape reports input dimensions incompatible with the fitted model.
	ErrShape = errors.New("ridge: input channel count does not match the fitted model")
	// ErrSolve reports an unrecoverable failure of the linear solver.
	ErrSolve = errors.New("ridge: normal equations could not be solved")
)

// TimeDelayingRidge estimates a linear mapping from time-delayed copies of
// the input channels to the output channels.
//
// The estimator is re-enterable: a new Fit discards all fitted state.
// Concurrent Fit calls on one instance are unsafe; the last writer wins.
type TimeDelayingRidge struct {
	tmin, tmax, sfreq float64
	alpha             float64
	tags              []string
	method            reg.Method
	normed            bool
	fitIntercept      bool
	edgeCorrection    bool

	fitted    bool
	delays    []int
	nChX      int
	nOut      int
	coef      *mat.Dense
	intercept []float64
	warnings  []string
}

// Option configures a TimeDelayingRidge.
type Option func(*TimeDelayingRidge)

// WithRegularization sets the penalty tags: one tag for both axes or a
// (feature, delay) pair, each "ridge" or "laplacian". Tags are validated
// at Fit.
func WithRegularization(tags ...string) Option {
	return func(t *TimeDelayingRidge) { t.tags = tags }
}

// WithMethod selects how the regularization matrix is constructed.
func WithMethod(m reg.Method) Option {
	return func(t *TimeDelayingRidge) { t.method = m }
}

// WithNormalization degree-normalizes Laplacian penalties.
func WithNormalization() Option {
	return func(t *TimeDelayingRidge) { t.normed = true }
}

// WithoutIntercept disables intercept fitting.
func WithoutIntercept() Option {
	return func(t *TimeDelayingRidge) { t.fitIntercept = false }
}

// WithoutEdgeCorrection keeps the pure Toeplitz covariance extension
// instead of correcting the finite-signal boundary terms.
func WithoutEdgeCorrection() Option {
	return func(t *TimeDelayingRidge) { t.edgeCorrection = false }
}

// New returns an estimator for the delay window (tmin, tmax) at sampling
// rate sfreq with penalty strength alpha. Window and tag validation happen
// at Fit.
func New(tmin, tmax, sfreq, alpha float64, opts ...Option) *TimeDelayingRidge {
	t := &TimeDelayingRidge{
		tmin:           tmin,
		tmax:           tmax,
		sfreq:          sfreq,
		alpha:          alpha,
		tags:           []string{"ridge"},
		method:         reg.MethodDirect,
		fitIntercept:   true,
		edgeCorrection: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fit solves (XXt + alpha*R) W = XYt over the delay window and stores the
// flat coefficients and intercept. A singular system is reported through
// Warnings and solved in the least-squares sense instead of failing.
func (t *TimeDelayingRidge) Fit(X, y mat.Matrix) error {
	pair, err := reg.ParseTags(t.tags...)
	if err != nil {
		return err
	}
	delays, err := delay.TimesToDelays(t.tmin, t.tmax, t.sfreq)
	if err != nil {
		return err
	}
	res, err := corr.Compute(X, y, delays[0], delays[len(delays)-1]+1,
		t.fitIntercept, t.edgeCorrection)
	if err != nil {
		return err
	}
	nd := len(delays)
	_, nOut := y.Dims()

	var a mat.Dense
	if t.alpha != 0 {
		r, err := reg.Neighbors(res.NChX, nd, pair, t.method, t.normed)
		if err != nil {
			return err
		}
		a.Scale(t.alpha, r)
		a.Add(&a, res.XXt)
	} else {
		a.CloneFrom(res.XXt)
	}

	t.fitted = false
	t.warnings = nil
	var w mat.Dense
	if err := w.Solve(&a, res.XYt); err != nil || gonumext.HasNaNOrInf(&w) {
		t.warnings = append(t.warnings,
			"singular normal equations, falling back to a least-squares solution")
		var svd mat.SVD
		if !svd.Factorize(&a, mat.SVDThin) {
			return fmt.Errorf("%w: SVD factorization failed", ErrSolve)
		}
		rank := svd.Rank(1e-12)
		if rank == 0 {
			return fmt.Errorf("%w: matrix has rank zero", ErrSolve)
		}
		svd.SolveTo(&w, res.XYt, rank)
	}

	coef := mat.NewDense(nOut, res.NChX*nd, nil)
	coef.Copy(w.T())
	intercept := make([]float64, nOut)
	if t.fitIntercept {
		for o := 0; o < nOut; o++ {
			v := res.YMean[o]
			for ch := 0; ch < res.NChX; ch++ {
				sum := 0.0
				for d := 0; d < nd; d++ {
					sum += coef.At(o, ch*nd+d)
				}
				v -= res.XMean[ch] * sum
			}
			intercept[o] = v
		}
	}

	t.delays = delays
	t.nChX = res.NChX
	t.nOut = nOut
	t.coef = coef
	t.intercept = intercept
	t.fitted = true
	return nil
}

// Predict applies the fitted mapping over the full sample range by
// accumulating shifted, scaled copies of the input channels; the embedded
// design matrix is never formed. Boundary samples are necessarily less
// accurate; restrict to the valid sample range when scoring.
func (t *TimeDelayingRidge) Predict(X mat.Matrix) (*mat.Dense, error) {
	if !t.fitted {
		return nil, ErrNotFitted
	}
	n, nch := X.Dims()
	if nch != t.nChX {
		return nil, fmt.Errorf("%w, got %d channels, fitted with %d", ErrShape, nch, t.nChX)
	}
	nd := len(t.delays)
	xcols := make([][]float64, nch)
	for ch := range xcols {
		xcols[ch] = make([]float64, n)
		mat.Col(xcols[ch], ch, X)
	}
	out := mat.NewDense(n, t.nOut, nil)
	ycol := make([]float64, n)
	for o := 0; o < t.nOut; o++ {
		for i := range ycol {
			ycol[i] = t.intercept[o]
		}
		for ch := 0; ch < nch; ch++ {
			for di, d := range t.delays {
				wgt := t.coef.At(o, ch*nd+di)
				if wgt == 0 {
					continue
				}
				lo, hi := 0, n
				if d > 0 {
					lo = d
				} else if d < 0 {
					hi = n + d
				}
				if hi <= lo {
					continue
				}
				floats.AddScaled(ycol[lo:hi], wgt, xcols[ch][lo-d:hi-d])
			}
		}
		for i, v := range ycol {
			out.Set(i, o, v)
		}
	}
	return out, nil
}

// Coef returns the fitted coefficients as an (outputs x channels*delays)
// matrix, channel-major with the delay fastest. The matrix is owned by the
// estimator and replaced on the next Fit.
func (t *TimeDelayingRidge) Coef() *mat.Dense { return t.coef }

// Intercept returns the fitted per-output intercept.
func (t *TimeDelayingRidge) Intercept() []float64 { return t.intercept }

// FitIntercept reports whether the estimator fits an intercept.
func (t *TimeDelayingRidge) FitIntercept() bool { return t.fitIntercept }

// Delays returns the fitted sample-delay run, nil before Fit.
func (t *TimeDelayingRidge) Delays() []int { return t.delays }

// Warnings returns non-fatal diagnostics recorded by the last Fit, such as
// a singular normal-equation matrix.
func (t *TimeDelayingRidge) Warnings() []string { return t.warnings }
