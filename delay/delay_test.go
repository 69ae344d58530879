package delay

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randSignal(n, nch int, rng *rand.Rand) *mat.Dense {
	data := make([]float64, n*nch)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(n, nch, data)
}

func TestTimesToDelays(t *testing.T) {
	delays, err := TimesToDelays(-0.1, 0.1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{-1, 0, 1}, delays)

	delays, err = TimesToDelays(0, 0.2, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, delays)

	delays, err = TimesToDelays(-2, -1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{-2, -1}, delays)

	_, err = TimesToDelays(5, 4, 1)
	assert.ErrorIs(t, err, ErrWindow)
	_, err = TimesToDelays(0, 1, 0)
	assert.ErrorIs(t, err, ErrSampleRate)
	_, err = TimesToDelays(0, 1, -1)
	assert.ErrorIs(t, err, ErrSampleRate)
	_, err = TimesToDelays(0, 1, math.NaN())
	assert.ErrorIs(t, err, ErrSampleRate)
	_, err = TimesToDelays(math.NaN(), 1, 1)
	assert.ErrorIs(t, err, ErrTimeBounds)
	_, err = TimesToDelays(0, math.Inf(1), 1)
	assert.ErrorIs(t, err, ErrTimeBounds)
}

func TestValidRangeContiguity(t *testing.T) {
	_, _, err := ValidRange(nil, 10)
	assert.ErrorIs(t, err, ErrDelays)
	_, _, err = ValidRange([]int{0, 2}, 10)
	assert.ErrorIs(t, err, ErrDelays)
	_, _, err = ValidRange([]int{1, 0}, 10)
	assert.ErrorIs(t, err, ErrDelays)
}

// The valid range must select exactly the samples whose every delayed entry
// escaped boundary fill, for windows on both sides of zero.
func TestTimeSeriesValidRange(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	X := randSignal(1000, 2, rng)
	cases := []struct {
		tmin, tmax, sfreq float64
	}{
		{1, 2, 1}, {1, 1, 1}, {0, 2, 1}, {0, 1, 1}, {0, 0, 1},
		{-1, 2, 1}, {-1, 1, 1}, {-1, 0, 1}, {-1, -1, 1},
		{-2, 2, 1}, {-2, 1, 1}, {-2, 0, 1}, {-2, -1, 1},
		{0, 0.2, 10}, {-0.1, 0.1, 10},
	}
	for _, c := range cases {
		s, err := TimeSeries(X, c.tmin, c.tmax, c.sfreq, false)
		require.NoError(t, err)
		n, nch, nd := s.Dims()
		assert.Equal(t, 1000, n)
		assert.Equal(t, 2, nch)
		smin := int(math.Round(c.tmin * c.sfreq))
		smax := int(math.Round(c.tmax * c.sfreq))
		require.Equal(t, smax-smin+1, nd)

		start, stop := s.ValidRange()
		assert.Greater(t, stop, start, "window %v..%v", c.tmin, c.tmax)
		for tt := 0; tt < n; tt++ {
			zeroFree := true
			for ch := 0; ch < nch && zeroFree; ch++ {
				for d := 0; d < nd; d++ {
					if s.At(tt, ch, d) == 0 {
						zeroFree = false
						break
					}
				}
			}
			inRange := tt >= start && tt < stop
			assert.Equal(t, zeroFree, inRange, "sample %d, window %v..%v", tt, c.tmin, c.tmax)
		}
	}
}

func TestTimeSeriesShifts(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	X := randSignal(50, 2, rng)
	s, err := TimeSeries(X, -2, 2, 1, false)
	require.NoError(t, err)
	n, nch, nd := s.Dims()
	require.Equal(t, 5, nd)
	require.Equal(t, []int{-2, -1, 0, 1, 2}, s.Delays())

	for di, d := range s.Delays() {
		for tt := 0; tt < n; tt++ {
			for ch := 0; ch < nch; ch++ {
				want := 0.0
				if tt-d >= 0 && tt-d < n {
					want = X.At(tt-d, ch)
				}
				assert.Equal(t, want, s.At(tt, ch, di), "t=%d ch=%d d=%d", tt, ch, d)
			}
		}
	}
}

func TestTimeSeriesFillMean(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{2, 4, 6, 8})
	s, err := TimeSeries(X, 1, 1, 1, true)
	require.NoError(t, err)
	// Delay 1 vacates the first row, which takes the channel mean.
	assert.Equal(t, 5.0, s.At(0, 0, 0))
	assert.Equal(t, 2.0, s.At(1, 0, 0))
	assert.Equal(t, 6.0, s.At(3, 0, 0))
}

func TestTimeSeriesMatrixView(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	X := randSignal(20, 3, rng)
	s, err := TimeSeries(X, -1, 1, 1, false)
	require.NoError(t, err)
	m := s.Matrix()
	r, c := m.Dims()
	assert.Equal(t, 20, r)
	assert.Equal(t, 9, c)
	for tt := 0; tt < 20; tt++ {
		for ch := 0; ch < 3; ch++ {
			for d := 0; d < 3; d++ {
				assert.Equal(t, s.At(tt, ch, d), m.At(tt, ch*3+d))
			}
		}
	}
}

func TestTimeSeriesErrors(t *testing.T) {
	X := mat.NewDense(1, 1, []float64{1})
	_, err := TimeSeries(X, 1, 0, 1, false)
	assert.ErrorIs(t, err, ErrWindow)
	var empty mat.Dense
	_, err = TimeSeries(&empty, 0, 1, 1, false)
	assert.ErrorIs(t, err, ErrEmptySignal)
}
