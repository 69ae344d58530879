// Package signal generates multi-channel stimulus time series for
// receptive field experiments and tests.
package signal

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/mat"
)

// ErrEnvelope is returned when an amplitude envelope does not match the
// stimulus it modulates.
var ErrEnvelope = errors.New("signal: envelope length mismatch")

// Source is a continuous-time multi-channel signal.
type Source interface {
	Value(t float64) mat.Vector
}

// VectorFunction decomposes a vectorial stimulus Bu(t) into a scalar
// waveform u(t) -> Reals and a mixing vector B in Reals^N, one weight
// per stimulus channel.
type VectorFunction struct {
	U func(float64) float64
	B *mat.VecDense
}

// NewInput returns a VectorFunction initialised with u(t) and B.
func NewInput(u func(float64) float64, B *mat.VecDense) VectorFunction {
	return VectorFunction{u, B}
}

// Value returns the vectorial function value at t.
func (vf VectorFunction) Value(t float64) mat.Vector {
	var res mat.VecDense
	res.CloneFromVec(vf.B)
	res.ScaleVec(vf.U(t), &res)
	return &res
}

// Sinusoid returns a unit sinusoid waveform at freq Hz with the given
// phase offset in radians.
func Sinusoid(freq, phase float64) func(float64) float64 {
	return func(t float64) float64 {
		return math.Sin(2*math.Pi*freq*t + phase)
	}
}

// Step returns a unit step waveform switching on at t0.
func Step(t0 float64) func(float64) float64 {
	return func(t float64) float64 {
		if t < t0 {
			return 0
		}
		return 1
	}
}

// Sample renders the sum of the given sources onto a regular grid of n
// samples at sampling rate sfreq, as an (n x channels) matrix.
func Sample(sources []Source, n, channels int, sfreq float64) (*mat.Dense, error) {
	if n < 1 || channels < 1 {
		return nil, fmt.Errorf("signal: invalid grid %dx%d", n, channels)
	}
	if sfreq <= 0 {
		return nil, fmt.Errorf("signal: invalid sampling rate %v", sfreq)
	}
	out := mat.NewDense(n, channels, nil)
	for t := 0; t < n; t++ {
		for _, src := range sources {
			v := src.Value(float64(t) / sfreq)
			if v.Len() != channels {
				return nil, fmt.Errorf("signal: source has %d channels, grid has %d", v.Len(), channels)
			}
			for ch := 0; ch < channels; ch++ {
				out.Set(t, ch, out.At(t, ch)+v.AtVec(ch))
			}
		}
	}
	return out, nil
}

// Noise returns an (n x channels) stimulus of independent standard
// normal samples drawn from rng.
func Noise(n, channels int, rng *rand.Rand) *mat.Dense {
	data := make([]float64, n*channels)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(n, channels, data)
}

// Modulate applies the amplitude envelope to every channel of the
// stimulus in place, multiplying sample t of each channel by
// envelope[t].
func Modulate(X *mat.Dense, envelope []float64) error {
	n, channels := X.Dims()
	if len(envelope) != n {
		return fmt.Errorf("%w: envelope has %d samples, stimulus has %d", ErrEnvelope, len(envelope), n)
	}
	col := make([]float64, n)
	out := make([]float64, n)
	for ch := 0; ch < channels; ch++ {
		mat.Col(col, ch, X)
		vecmath.MulBlock(out, col, envelope)
		X.SetCol(ch, out)
	}
	return nil
}
