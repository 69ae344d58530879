// Package trf estimates temporal receptive fields: linear mappings from
// time-delayed copies of a multi-channel stimulus to a multi-channel
// response.
//
// The public entry point is ReceptiveField, which either wraps the fast
// covariance-space solver in package ridge or delegates to an external
// Estimator over the fully embedded design matrix. Fitted models own their
// coefficients; concurrent Fit calls on one model instance are unsafe and
// the last writer wins.
package trf

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/hammal/trf/delay"
	"github.com/hammal/trf/reg"
	"github.com/hammal/trf/ridge"
)

var (
	// ErrEstimator reports an invalid estimator configuration.
	ErrEstimator = errors.New("trf: estimator must be a ridge penalty or an Estimator implementation, not both")
	// ErrScoring reports an unknown scoring name.
	ErrScoring = errors.New(`trf: scoring must be one of "corrcoef", "r2", "mse"`)
	// ErrShape reports inputs with incompatible dimensions.
	ErrShape = errors.New("trf: X and y must be non-empty with equal sample counts")
	// ErrFeatureNames reports a feature-name count that does not match the
	// input channel count.
	ErrFeatureNames = errors.New("trf: feature name count must match input channels")
	// ErrIntercept reports an external estimator whose intercept setting
	// conflicts with the model configuration.
	ErrIntercept = errors.New("trf: estimator intercept setting conflicts with the model")
	// ErrNotFitted reports Predict or Score called before Fit.
	ErrNotFitted = errors.New("trf: model has not been fitted")
	// ErrNoValidSamples reports a delay window so long that no sample is
	// free of boundary fill.
	ErrNoValidSamples = errors.New("trf: no valid samples for this delay window")
)

// Estimator is the external-regressor collaborator: it is handed the fully
// embedded (samples x features*delays) design matrix and must expose its
// flat coefficients as an (outputs x features*delays) matrix.
type Estimator interface {
	Fit(X, y *mat.Dense) error
	Predict(X *mat.Dense) (*mat.Dense, error)
	Coef() *mat.Dense
	Intercept() []float64
	FitIntercept() bool
}

// ReceptiveField fits, applies and scores a temporal receptive field over
// the time window (Tmin, Tmax) at sampling rate Sfreq.
type ReceptiveField struct {
	Tmin, Tmax, Sfreq float64

	featureNames    []string
	penalty         float64
	external        Estimator
	scoring         string
	wantPatterns    bool
	fitIntercept    bool
	interceptForced bool
	regTags         []string
	regMethod       reg.Method
	normed          bool
	edgeCorrection  bool

	fitted      bool
	delays      []int
	nFeats      int
	nOut        int
	coef        [][][]float64
	patternVals [][][]float64
	warnings    []string
	tdr         *ridge.TimeDelayingRidge
}

// Option configures a ReceptiveField.
type Option func(*ReceptiveField)

// WithFeatureNames names the input channels; the count is validated
// against X at Fit.
func WithFeatureNames(names ...string) Option {
	return func(m *ReceptiveField) { m.featureNames = names }
}

// WithPenalty selects the fast covariance-space solver with the given
// ridge/Laplacian penalty strength. This is the default with strength 0.
func WithPenalty(alpha float64) Option {
	return func(m *ReceptiveField) { m.penalty = alpha }
}

// WithEstimator delegates fitting to an external estimator over the fully
// embedded design matrix.
func WithEstimator(e Estimator) Option {
	return func(m *ReceptiveField) { m.external = e }
}

// WithScoring selects the scoring function used by Score ("r2" by
// default).
func WithScoring(name string) Option {
	return func(m *ReceptiveField) { m.scoring = name }
}

// WithPatterns additionally fits the reverse model response->stimulus at
// Fit, populating Patterns.
func WithPatterns() Option {
	return func(m *ReceptiveField) { m.wantPatterns = true }
}

// WithoutIntercept disables intercept fitting. An external estimator must
// agree with the model's intercept setting.
func WithoutIntercept() Option {
	return func(m *ReceptiveField) { m.fitIntercept = false; m.interceptForced = true }
}

// WithRegularization sets the fast-path penalty tags: one tag for both
// axes or a (feature, delay) pair, each "ridge" or "laplacian".
func WithRegularization(tags ...string) Option {
	return func(m *ReceptiveField) { m.regTags = tags }
}

// WithRegMethod selects how the fast path builds its regularization
// matrix.
func WithRegMethod(method reg.Method) Option {
	return func(m *ReceptiveField) { m.regMethod = method }
}

// WithNormalization degree-normalizes Laplacian penalties on the fast
// path.
func WithNormalization() Option {
	return func(m *ReceptiveField) { m.normed = true }
}

// WithoutEdgeCorrection disables the finite-signal boundary correction of
// the fast path's covariance computation.
func WithoutEdgeCorrection() Option {
	return func(m *ReceptiveField) { m.edgeCorrection = false }
}

// New returns an unfitted model for the delay window (tmin, tmax) at
// sampling rate sfreq. Window, scoring and estimator configuration are
// validated at Fit.
func New(tmin, tmax, sfreq float64, opts ...Option) *ReceptiveField {
	m := &ReceptiveField{
		Tmin:           tmin,
		Tmax:           tmax,
		Sfreq:          sfreq,
		scoring:        "r2",
		fitIntercept:   true,
		regTags:        []string{"ridge"},
		regMethod:      reg.MethodDirect,
		edgeCorrection: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fit estimates the receptive field from stimulus X (samples x features)
// and response y (samples x outputs). Previous fitted state is discarded.
func (m *ReceptiveField) Fit(X, y mat.Matrix) error {
	if _, ok := scorers[m.scoring]; !ok {
		return fmt.Errorf("%w, got %q", ErrScoring, m.scoring)
	}
	if m.external != nil && m.penalty != 0 {
		return ErrEstimator
	}
	if m.external != nil {
		if m.interceptForced && m.external.FitIntercept() != m.fitIntercept {
			return fmt.Errorf("%w: estimator %v, model %v",
				ErrIntercept, m.external.FitIntercept(), m.fitIntercept)
		}
		m.fitIntercept = m.external.FitIntercept()
	}
	delays, err := delay.TimesToDelays(m.Tmin, m.Tmax, m.Sfreq)
	if err != nil {
		return err
	}
	n, nFeats := X.Dims()
	ny, nOut := y.Dims()
	if n == 0 || nFeats == 0 || nOut == 0 || n != ny {
		return fmt.Errorf("%w, got %dx%d and %dx%d", ErrShape, n, nFeats, ny, nOut)
	}
	if m.featureNames != nil && len(m.featureNames) != nFeats {
		return fmt.Errorf("%w, got %d names for %d channels", ErrFeatureNames, len(m.featureNames), nFeats)
	}
	m.fitted = false
	nd := len(delays)

	// The reverse model is fitted first so that an external estimator is
	// left holding the forward fit.
	if m.wantPatterns {
		revFlat, _, _, err := m.fitOnce(y, X, -m.Tmax, -m.Tmin)
		if err != nil {
			return err
		}
		if r, c := revFlat.Dims(); r != nFeats || c != nOut*nd {
			return fmt.Errorf("%w: reverse coefficients are %dx%d, want %dx%d",
				ErrEstimator, r, c, nFeats, nOut*nd)
		}
		m.patternVals = make([][][]float64, nOut)
		for o := 0; o < nOut; o++ {
			m.patternVals[o] = make([][]float64, nFeats)
			for f := 0; f < nFeats; f++ {
				m.patternVals[o][f] = make([]float64, nd)
				for d := 0; d < nd; d++ {
					m.patternVals[o][f][d] = revFlat.At(f, o*nd+(nd-1-d))
				}
			}
		}
	} else {
		m.patternVals = nil
	}

	coefFlat, tdr, warnings, err := m.fitOnce(X, y, m.Tmin, m.Tmax)
	if err != nil {
		return err
	}
	if r, c := coefFlat.Dims(); r != nOut || c != nFeats*nd {
		return fmt.Errorf("%w: coefficients are %dx%d, want %dx%d",
			ErrEstimator, r, c, nOut, nFeats*nd)
	}
	m.coef = make([][][]float64, nOut)
	for o := 0; o < nOut; o++ {
		m.coef[o] = make([][]float64, nFeats)
		for f := 0; f < nFeats; f++ {
			m.coef[o][f] = make([]float64, nd)
			for d := 0; d < nd; d++ {
				m.coef[o][f][d] = coefFlat.At(o, f*nd+d)
			}
		}
	}

	if m.featureNames == nil {
		m.featureNames = make([]string, nFeats)
		for i := range m.featureNames {
			m.featureNames[i] = fmt.Sprintf("feature_%d", i)
		}
	}
	m.delays = delays
	m.nFeats = nFeats
	m.nOut = nOut
	m.warnings = warnings
	m.tdr = tdr
	m.fitted = true
	return nil
}

// fitOnce runs a single regression over the given window and returns the
// flat (outputs x channels*delays) coefficients.
func (m *ReceptiveField) fitOnce(X, y mat.Matrix, tmin, tmax float64) (*mat.Dense, *ridge.TimeDelayingRidge, []string, error) {
	if m.external != nil {
		emb, err := delay.TimeSeries(X, tmin, tmax, m.Sfreq, m.fitIntercept)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := m.external.Fit(emb.Matrix(), denseOf(y)); err != nil {
			return nil, nil, nil, err
		}
		return m.external.Coef(), nil, nil, nil
	}
	opts := []ridge.Option{
		ridge.WithRegularization(m.regTags...),
		ridge.WithMethod(m.regMethod),
	}
	if m.normed {
		opts = append(opts, ridge.WithNormalization())
	}
	if !m.fitIntercept {
		opts = append(opts, ridge.WithoutIntercept())
	}
	if !m.edgeCorrection {
		opts = append(opts, ridge.WithoutEdgeCorrection())
	}
	tdr := ridge.New(tmin, tmax, m.Sfreq, m.penalty, opts...)
	if err := tdr.Fit(X, y); err != nil {
		return nil, nil, nil, err
	}
	return tdr.Coef(), tdr, tdr.Warnings(), nil
}

// Predict applies the fitted receptive field to X and returns predictions
// over the full sample range; boundary samples are necessarily less
// accurate than the valid sample range.
func (m *ReceptiveField) Predict(X mat.Matrix) (*mat.Dense, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	n, nFeats := X.Dims()
	if nFeats != m.nFeats {
		return nil, fmt.Errorf("%w, got %d features, fitted with %d", ErrShape, nFeats, m.nFeats)
	}
	if m.external != nil {
		emb, err := delay.TimeSeries(X, m.Tmin, m.Tmax, m.Sfreq, m.fitIntercept)
		if err != nil {
			return nil, err
		}
		return m.external.Predict(emb.Matrix())
	}
	pred, err := m.tdr.Predict(X)
	if err != nil {
		return nil, err
	}
	if r, _ := pred.Dims(); r != n {
		return nil, fmt.Errorf("%w: estimator predicted %d samples for %d inputs", ErrShape, r, n)
	}
	return pred, nil
}

// Score predicts on X and scores against y with the configured scoring
// function, restricted to the valid sample range. One score per output
// channel is returned.
func (m *ReceptiveField) Score(X, y mat.Matrix) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	n, _ := X.Dims()
	ny, nOut := y.Dims()
	if n != ny || nOut != m.nOut {
		return nil, fmt.Errorf("%w, got %d samples x %d outputs, fitted with %d", ErrShape, ny, nOut, m.nOut)
	}
	pred, err := m.Predict(X)
	if err != nil {
		return nil, err
	}
	start, stop, err := delay.ValidRange(m.delays, n)
	if err != nil {
		return nil, err
	}
	if stop <= start {
		return nil, ErrNoValidSamples
	}
	yv := denseOf(y).Slice(start, stop, 0, nOut)
	pv := pred.Slice(start, stop, 0, nOut)
	return scorers[m.scoring](yv, pv, RawValues)
}

// Coef returns the fitted coefficients as (outputs x features x delays),
// nil before Fit. The slices are owned by the model and replaced on the
// next Fit.
func (m *ReceptiveField) Coef() [][][]float64 { return m.coef }

// Patterns returns the reverse-model coefficients in Coef's shape, nil
// unless the model was configured with WithPatterns and fitted.
func (m *ReceptiveField) Patterns() [][][]float64 { return m.patternVals }

// Delays returns the fitted sample-delay run, nil before Fit.
func (m *ReceptiveField) Delays() []int { return m.delays }

// FeatureNames returns the configured or auto-generated feature names.
func (m *ReceptiveField) FeatureNames() []string { return m.featureNames }

// ValidSamples returns the half-open sample interval free of embedding
// boundary fill for a signal of n samples.
func (m *ReceptiveField) ValidSamples(n int) (start, stop int, err error) {
	if !m.fitted {
		return 0, 0, ErrNotFitted
	}
	return delay.ValidRange(m.delays, n)
}

// Warnings returns non-fatal diagnostics recorded by the last fast-path
// fit.
func (m *ReceptiveField) Warnings() []string { return m.warnings }

// String reports the model configuration, and the fitted dimensions once
// fitted. Safe to call at any time.
func (m *ReceptiveField) String() string {
	est := fmt.Sprintf("ridge(alpha=%g)", m.penalty)
	if m.external != nil {
		est = fmt.Sprintf("%T", m.external)
	}
	state := "unfit"
	if m.fitted {
		state = fmt.Sprintf("fit: %d features, %d outputs, %d delays", m.nFeats, m.nOut, len(m.delays))
	}
	return fmt.Sprintf("<ReceptiveField | window (%g, %g) s, %g Hz, estimator %s, scoring %s, %s>",
		m.Tmin, m.Tmax, m.Sfreq, est, m.scoring, state)
}

// denseOf returns a Dense sharing or copying the given matrix.
func denseOf(a mat.Matrix) *mat.Dense {
	if d, ok := a.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(a)
}
