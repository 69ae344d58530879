// Package corr computes auto- and cross-covariances of a delay-embedded
// design matrix without materializing the embedding.
//
// For delays di, dj the inner product of the corresponding embedded columns
// depends on the lag di-dj alone, up to finitely many boundary terms: the
// block equals the lag correlation of the raw channels minus the products
// that fall outside the sample range at either end. Lag correlations are
// computed once per channel pair in the frequency domain; the boundary
// terms are short explicit dot products.
package corr

import (
	"errors"
	"fmt"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrWindow reports an empty half-open delay window.
	ErrWindow = errors.New("corr: delay window [smin, smax) must be non-empty")
	// ErrShape reports mismatched or empty input dimensions.
	ErrShape = errors.New("corr: X and y must be non-empty with equal sample counts")
)

// Result holds the covariances of the implicitly embedded design matrix.
// Flat indices are channel-major with the delay fastest: ch*nDelays + d.
type Result struct {
	// XXt is the (nChX*nDelays)^2 auto-covariance of the embedded X.
	XXt *mat.Dense
	// XYt is the (nChX*nDelays x nChY) cross-covariance with y.
	XYt *mat.Dense
	// NChX is the channel count of X, kept for downstream reshaping.
	NChX int
	// XMean and YMean hold the per-channel means subtracted before the
	// correlation when centering was requested, nil otherwise.
	XMean, YMean []float64
}

// Compute evaluates the covariances over the half-open delay window
// [smin, smax). With fitIntercept set, X and y are centered per channel
// first and the means are reported in the Result. With edgeCorrection
// cleared the pure Toeplitz extension is kept, which is exact only in the
// infinite-signal limit.
func Compute(X, y mat.Matrix, smin, smax int, fitIntercept, edgeCorrection bool) (*Result, error) {
	if smax <= smin {
		return nil, fmt.Errorf("%w, got [%d, %d)", ErrWindow, smin, smax)
	}
	n, nchx := X.Dims()
	ny, nchy := y.Dims()
	if n == 0 || nchx == 0 || nchy == 0 || n != ny {
		return nil, fmt.Errorf("%w, got %dx%d and %dx%d", ErrShape, n, nchx, ny, nchy)
	}
	nd := smax - smin

	xcols := columns(X, fitIntercept)
	ycols := columns(y, fitIntercept)
	res := &Result{
		XXt:  mat.NewDense(nchx*nd, nchx*nd, nil),
		XYt:  mat.NewDense(nchx*nd, nchy, nil),
		NChX: nchx,
	}
	if fitIntercept {
		res.XMean = xcols.means
		res.YMean = ycols.means
	}

	// One forward transform per channel, one inverse per channel pair.
	nfft := nextPowerOf2(2 * n)
	plan, err := algofft.NewPlan64(nfft)
	if err != nil {
		return nil, fmt.Errorf("corr: fft plan: %w", err)
	}
	xf, err := transforms(plan, xcols.data, nfft)
	if err != nil {
		return nil, err
	}
	yf, err := transforms(plan, ycols.data, nfft)
	if err != nil {
		return nil, err
	}

	spec := make([]complex128, nfft)
	lag := make([]complex128, nfft)
	for ch0 := 0; ch0 < nchx; ch0++ {
		for ch1 := ch0; ch1 < nchx; ch1++ {
			// lag[k] accumulates sum_s x0[s]*x1[s+k], negative k wrapped.
			for i := range spec {
				spec[i] = cmplx.Conj(xf[ch0][i]) * xf[ch1][i]
			}
			if err := plan.Inverse(lag, spec); err != nil {
				return nil, fmt.Errorf("corr: inverse fft: %w", err)
			}
			fillBlock(res.XXt, lag, xcols.data[ch0], xcols.data[ch1],
				ch0, ch1, smin, nd, n, nfft, edgeCorrection)
		}
		for out := 0; out < nchy; out++ {
			for i := range spec {
				spec[i] = cmplx.Conj(xf[ch0][i]) * yf[out][i]
			}
			if err := plan.Inverse(lag, spec); err != nil {
				return nil, fmt.Errorf("corr: inverse fft: %w", err)
			}
			for i := 0; i < nd; i++ {
				d := smin + i
				v := 0.0
				if d > -n && d < n {
					v = real(lag[(d+nfft)%nfft])
				}
				res.XYt.Set(ch0*nd+i, out, v)
			}
		}
	}
	return res, nil
}

// fillBlock writes the (ch0, ch1) delay block of dst and its mirror. lag
// holds the wrapped frequency-domain correlation of (x0, x1); the corrected
// block is symmetric under swapping both channel and delay, so the mirror
// entry is a plain copy.
func fillBlock(dst *mat.Dense, lag []complex128, x0, x1 []float64,
	ch0, ch1, smin, nd, n, nfft int, edgeCorrection bool) {
	for i := 0; i < nd; i++ {
		di := smin + i
		for j := 0; j < nd; j++ {
			dj := smin + j
			k := di - dj
			v := 0.0
			if k > -n && k < n {
				v = real(lag[(k+nfft)%nfft])
			}
			if edgeCorrection {
				v -= edgeSum(x0, x1, di, dj)
			}
			dst.Set(ch0*nd+i, ch1*nd+j, v)
			if ch1 != ch0 {
				dst.Set(ch1*nd+j, ch0*nd+i, v)
			}
		}
	}
}

// edgeSum is the total weight of the products excluded by the finite
// sample range: head terms exist only when both delays are negative, tail
// terms only when both are positive.
func edgeSum(x0, x1 []float64, di, dj int) float64 {
	n := len(x0)
	k := di - dj
	sum := 0.0
	if di < 0 && dj < 0 {
		s0 := max(0, -k)
		s1 := min(-di, n-max(0, k))
		if s1 > s0 {
			sum += floats.Dot(x0[s0:s1], x1[s0+k:s1+k])
		}
	}
	if di > 0 && dj > 0 {
		s0 := max(n-di, max(0, -k))
		s1 := n - max(0, k)
		if s1 > s0 {
			sum += floats.Dot(x0[s0:s1], x1[s0+k:s1+k])
		}
	}
	return sum
}

type colSet struct {
	data  [][]float64
	means []float64
}

// columns copies a matrix into per-channel slices, optionally centering.
func columns(a mat.Matrix, center bool) colSet {
	n, nc := a.Dims()
	set := colSet{data: make([][]float64, nc), means: make([]float64, nc)}
	for c := 0; c < nc; c++ {
		col := make([]float64, n)
		mat.Col(col, c, a)
		if center {
			m := floats.Sum(col) / float64(n)
			set.means[c] = m
			for i := range col {
				col[i] -= m
			}
		}
		set.data[c] = col
	}
	return set
}

// transforms zero-pads each column and runs the forward plan.
func transforms(plan *algofft.Plan[complex128], cols [][]float64, nfft int) ([][]complex128, error) {
	out := make([][]complex128, len(cols))
	buf := make([]complex128, nfft)
	for i, col := range cols {
		for j := range buf {
			buf[j] = 0
		}
		for j, v := range col {
			buf[j] = complex(v, 0)
		}
		f := make([]complex128, nfft)
		if err := plan.Forward(f, buf); err != nil {
			return nil, fmt.Errorf("corr: forward fft: %w", err)
		}
		out[i] = f
	}
	return out, nil
}

// nextPowerOf2 returns the next power of 2 >= n.
func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
