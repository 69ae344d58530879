// Package reg builds regularization matrices over the (channel x delay)
// coefficient space of a receptive field.
//
// Ridge axes contribute no coupling; Laplacian axes penalize differences
// between adjacent delays (or adjacent channels), which encourages smooth
// receptive fields. With both axes ridge the matrix is the identity;
// otherwise it is the graph Laplacian of the path or grid adjacency over
// the coefficient space, optionally degree-normalized.
package reg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/spectral"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"

	"github.com/hammal/trf/gonumext"
)

var (
	// ErrKind reports an unrecognized regularization tag.
	ErrKind = errors.New(`reg: regularization type must be "ridge" or "laplacian"`)
	// ErrTags reports a malformed tag pair.
	ErrTags = errors.New("reg: regularization spec must have one or two tags")
	// ErrMethod reports an unknown construction method.
	ErrMethod = errors.New("reg: unknown construction method")
	// ErrSize reports non-positive dimensions.
	ErrSize = errors.New("reg: channel and delay counts must be positive")
)

// Kind selects the penalty applied along one axis of the coefficient space.
type Kind int

const (
	// Ridge penalizes coefficient magnitude along the axis.
	Ridge Kind = iota
	// Laplacian penalizes differences between adjacent coefficients.
	Laplacian
)

// String returns the tag form of the kind.
func (k Kind) String() string {
	switch k {
	case Ridge:
		return "ridge"
	case Laplacian:
		return "laplacian"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Pair holds the penalty kinds for the feature axis and the delay axis.
type Pair struct {
	Feature Kind
	Delay   Kind
}

// ParseTags builds a Pair from string tags: a single tag applies to both
// axes, two tags are taken as (feature, delay).
func ParseTags(tags ...string) (Pair, error) {
	if len(tags) == 1 {
		tags = []string{tags[0], tags[0]}
	}
	if len(tags) != 2 {
		return Pair{}, fmt.Errorf("%w, got %d", ErrTags, len(tags))
	}
	var kinds [2]Kind
	for i, tag := range tags {
		switch tag {
		case "ridge":
			kinds[i] = Ridge
		case "laplacian":
			kinds[i] = Laplacian
		default:
			return Pair{}, fmt.Errorf("%w, got %q", ErrKind, tag)
		}
	}
	return Pair{Feature: kinds[0], Delay: kinds[1]}, nil
}

// Method selects how the matrix is constructed. Both methods produce the
// same matrix; MethodGraph exists as an independently derived check.
type Method int

const (
	// MethodDirect assembles the matrix in closed form from Kronecker
	// products of path Laplacians and identities.
	MethodDirect Method = iota
	// MethodGraph builds the adjacency graph explicitly and takes its
	// Laplacian.
	MethodGraph
)

// Neighbors returns the (nChX*nDelays)^2 regularization matrix for the
// given axis kinds. The flat index is channel-major with the delay fastest.
// An axis of length one never couples and degenerates to ridge.
func Neighbors(nChX, nDelays int, pair Pair, method Method, normed bool) (*mat.Dense, error) {
	if nChX < 1 || nDelays < 1 {
		return nil, fmt.Errorf("%w, got (%d, %d)", ErrSize, nChX, nDelays)
	}
	smoothFeature := pair.Feature == Laplacian && nChX > 1
	smoothDelay := pair.Delay == Laplacian && nDelays > 1
	size := nChX * nDelays
	if !smoothFeature && !smoothDelay {
		out := mat.NewDense(size, size, nil)
		out.Copy(gonumext.Eye(size))
		return out, nil
	}
	switch method {
	case MethodDirect:
		return direct(nChX, nDelays, smoothFeature, smoothDelay, normed), nil
	case MethodGraph:
		return fromGraph(nChX, nDelays, smoothFeature, smoothDelay, normed), nil
	default:
		return nil, fmt.Errorf("%w, got %d", ErrMethod, int(method))
	}
}

// direct builds kron(Lf, Id) + kron(If, Ld) restricted to the active axes,
// then rescales by degree for the normalized variant.
func direct(nChX, nDelays int, smoothFeature, smoothDelay, normed bool) *mat.Dense {
	size := nChX * nDelays
	out := mat.NewDense(size, size, nil)
	if smoothFeature {
		var term mat.Dense
		term.Kronecker(pathLaplacian(nChX), gonumext.Eye(nDelays))
		out.Add(out, &term)
	}
	if smoothDelay {
		var term mat.Dense
		term.Kronecker(gonumext.Eye(nChX), pathLaplacian(nDelays))
		out.Add(out, &term)
	}
	if !normed {
		return out
	}
	// The unnormalized diagonal is the vertex degree, so the symmetric
	// normalization is an elementwise rescale. No vertex is isolated on an
	// active axis.
	deg := make([]float64, size)
	for c := 0; c < nChX; c++ {
		for d := 0; d < nDelays; d++ {
			v := 0.0
			if smoothFeature {
				v += pathDegree(c, nChX)
			}
			if smoothDelay {
				v += pathDegree(d, nDelays)
			}
			deg[c*nDelays+d] = v
		}
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if v := out.At(i, j); v != 0 {
				out.Set(i, j, v/math.Sqrt(deg[i]*deg[j]))
			}
		}
	}
	return out
}

// fromGraph builds the delay/channel adjacency as an explicit graph and
// reads off its (optionally symmetric-normalized) Laplacian.
func fromGraph(nChX, nDelays int, smoothFeature, smoothDelay, normed bool) *mat.Dense {
	size := nChX * nDelays
	g := simple.NewUndirectedGraph()
	for v := 0; v < size; v++ {
		g.AddNode(simple.Node(v))
	}
	for c := 0; c < nChX; c++ {
		for d := 0; d < nDelays; d++ {
			v := c*nDelays + d
			if smoothDelay && d+1 < nDelays {
				g.SetEdge(simple.Edge{F: simple.Node(v), T: simple.Node(v + 1)})
			}
			if smoothFeature && c+1 < nChX {
				g.SetEdge(simple.Edge{F: simple.Node(v), T: simple.Node(v + nDelays)})
			}
		}
	}
	var l spectral.Laplacian
	if normed {
		l = spectral.NewSymNormLaplacian(g)
	} else {
		l = spectral.NewLaplacian(g)
	}
	out := mat.NewDense(size, size, nil)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			out.Set(i, j, l.At(l.Index[int64(i)], l.Index[int64(j)]))
		}
	}
	return out
}

// pathLaplacian returns the Laplacian of the path graph on n vertices:
// tridiagonal with degree on the diagonal and -1 off it.
func pathLaplacian(n int) *mat.Dense {
	l := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		l.Set(i, i, pathDegree(i, n))
		if i+1 < n {
			l.Set(i, i+1, -1)
			l.Set(i+1, i, -1)
		}
	}
	return l
}

func pathDegree(i, n int) float64 {
	if i == 0 || i == n-1 {
		return 1
	}
	return 2
}
