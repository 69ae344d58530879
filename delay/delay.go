// Package delay implements time-delay embedding of sampled signals and the
// bookkeeping between time windows and integer sample delays.
//
// A delay d shifts the input forward by d samples: slice d of the embedded
// tensor holds X[t-d] at row t, with rows that would reach outside the
// signal filled with zero (or the per-channel mean).
package delay

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrWindow reports a delay window with tmin > tmax.
	ErrWindow = errors.New("delay: tmin must not exceed tmax")
	// ErrSampleRate reports a non-positive or non-finite sampling rate.
	ErrSampleRate = errors.New("delay: sampling rate must be a positive finite number")
	// ErrTimeBounds reports non-finite window bounds.
	ErrTimeBounds = errors.New("delay: tmin and tmax must be finite")
	// ErrDelays reports a delay sequence that is not a contiguous ascending run.
	ErrDelays = errors.New("delay: delays must be a contiguous ascending run of integers")
	// ErrEmptySignal reports an input with no samples or no channels.
	ErrEmptySignal = errors.New("delay: signal must have at least one sample and one channel")
)

// TimesToDelays converts a time window to the inclusive run of integer
// sample delays round(tmin*sfreq) .. round(tmax*sfreq).
func TimesToDelays(tmin, tmax, sfreq float64) ([]int, error) {
	if math.IsNaN(sfreq) || math.IsInf(sfreq, 0) || sfreq <= 0 {
		return nil, fmt.Errorf("%w, got %v", ErrSampleRate, sfreq)
	}
	for _, t := range [2]float64{tmin, tmax} {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("%w, got (%v, %v)", ErrTimeBounds, tmin, tmax)
		}
	}
	if tmin > tmax {
		return nil, fmt.Errorf("%w, got (%v, %v)", ErrWindow, tmin, tmax)
	}
	smin := int(math.Round(tmin * sfreq))
	smax := int(math.Round(tmax * sfreq))
	delays := make([]int, smax-smin+1)
	for i := range delays {
		delays[i] = smin + i
	}
	return delays, nil
}

// ValidRange returns the half-open interval [start, stop) of sample indices
// whose embedded rows contain no boundary fill: the largest positive delay
// is dropped from the head and the magnitude of the most negative delay
// from the tail. The interval may be empty when the window is longer than
// the signal.
func ValidRange(delays []int, nSamples int) (start, stop int, err error) {
	if len(delays) == 0 {
		return 0, 0, fmt.Errorf("%w, got none", ErrDelays)
	}
	for i := 1; i < len(delays); i++ {
		if delays[i] != delays[i-1]+1 {
			return 0, 0, fmt.Errorf("%w, got %v", ErrDelays, delays)
		}
	}
	start = delays[len(delays)-1]
	if start < 0 {
		start = 0
	}
	stop = nSamples
	if delays[0] < 0 {
		stop += delays[0]
	}
	if stop < start {
		stop = start
	}
	return start, stop, nil
}

// Series is a delay-embedded signal. The backing storage is laid out so
// that the (samples x channels*delays) matrix view shares it without
// copying; column ch*NumDelays+d holds channel ch at delay Delays()[d].
type Series struct {
	data      []float64
	nSamples  int
	nChannels int
	delays    []int
}

// TimeSeries embeds X (samples x channels) over the delay window derived
// from (tmin, tmax, sfreq). Vacated boundary rows are zero-filled, or
// filled with the per-channel mean of X when fillMean is set.
func TimeSeries(X mat.Matrix, tmin, tmax, sfreq float64, fillMean bool) (*Series, error) {
	delays, err := TimesToDelays(tmin, tmax, sfreq)
	if err != nil {
		return nil, err
	}
	n, nch := X.Dims()
	if n == 0 || nch == 0 {
		return nil, fmt.Errorf("%w, got %dx%d", ErrEmptySignal, n, nch)
	}
	nd := len(delays)
	s := &Series{
		data:      make([]float64, n*nch*nd),
		nSamples:  n,
		nChannels: nch,
		delays:    delays,
	}
	var means []float64
	if fillMean {
		means = make([]float64, nch)
		for ch := 0; ch < nch; ch++ {
			sum := 0.0
			for t := 0; t < n; t++ {
				sum += X.At(t, ch)
			}
			means[ch] = sum / float64(n)
		}
	}
	stride := nch * nd
	for di, d := range delays {
		// Rows [lo, hi) take shifted signal, the rest keep the fill value.
		lo, hi := 0, n
		if d > 0 {
			lo = d
		} else if d < 0 {
			hi = n + d
		}
		for ch := 0; ch < nch; ch++ {
			col := ch*nd + di
			if fillMean {
				for t := 0; t < lo; t++ {
					s.data[t*stride+col] = means[ch]
				}
				for t := hi; t < n; t++ {
					s.data[t*stride+col] = means[ch]
				}
			}
			for t := lo; t < hi; t++ {
				s.data[t*stride+col] = X.At(t-d, ch)
			}
		}
	}
	return s, nil
}

// At returns the embedded value at sample t, channel ch and delay index d.
func (s *Series) At(t, ch, d int) float64 {
	return s.data[t*s.nChannels*len(s.delays)+ch*len(s.delays)+d]
}

// Dims returns (samples, channels, delays).
func (s *Series) Dims() (n, nChannels, nDelays int) {
	return s.nSamples, s.nChannels, len(s.delays)
}

// Delays returns the embedded delay run. The returned slice is shared.
func (s *Series) Delays() []int { return s.delays }

// Matrix returns the (samples x channels*delays) design-matrix view of the
// embedding. The view shares storage with the Series.
func (s *Series) Matrix() *mat.Dense {
	return mat.NewDense(s.nSamples, s.nChannels*len(s.delays), s.data)
}

// ValidRange returns the boundary-fill-free sample interval of the series.
func (s *Series) ValidRange() (start, stop int) {
	start, stop, _ = ValidRange(s.delays, s.nSamples)
	return start, stop
}
