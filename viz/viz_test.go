package viz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayCurves(t *testing.T) {
	coef := [][]float64{
		{0, 0.5, 1, 0.5, 0},
		{0, -0.5, -1, -0.5, 0},
	}
	delays := []int{-2, -1, 0, 1, 2}

	p, err := DelayCurves(coef, delays, 10, []string{"audio", "visual"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rf.png")
	require.NoError(t, Save(p, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestDelayCurvesNoLegend(t *testing.T) {
	p, err := DelayCurves([][]float64{{1, 2}}, []int{0, 1}, 1, nil)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestDelayCurvesErrors(t *testing.T) {
	coef := [][]float64{{1, 2, 3}}
	delays := []int{0, 1, 2}

	_, err := DelayCurves(coef, delays, 0, nil)
	assert.Error(t, err)

	_, err = DelayCurves(nil, delays, 1, nil)
	assert.ErrorIs(t, err, ErrShape)

	_, err = DelayCurves(coef, delays, 1, []string{"a", "b"})
	assert.ErrorIs(t, err, ErrShape)

	_, err = DelayCurves(coef, []int{0, 1}, 1, nil)
	assert.ErrorIs(t, err, ErrShape)
}
