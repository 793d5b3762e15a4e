package basis

import (
	"fmt"

	"github.com/notargets/MatFree/types"
)

// Basis maps element nodal values to quadrature-point values and back.
//
// Per element, nodal data is laid out [comp][node], interpolated data
// [comp][q], gradients [dim][comp][q] and weights [q]. Apply processes nelem
// consecutive elements. The transpose overwrites v.
type Basis interface {
	Apply(nelem int, tmode types.TransposeMode, emode types.EvalMode, u, v []float64) error
	Dimension() int
	NumComponents() int
	NumNodes() int
	NumQuadraturePoints() int
}

// Topology is the reference element shape of a basis
type Topology uint8

const (
	Line Topology = iota
	Tri
	Rectangle
	Tet
	Hex
	Prism
	Pyramid
)

// Dimension returns the spatial dimension of the shape
func (t Topology) Dimension() int {
	switch t {
	case Line:
		return 1
	case Tri, Rectangle:
		return 2
	}
	return 3
}

func (t Topology) String() string {
	return [...]string{"line", "tri", "rectangle", "tet", "hex", "prism", "pyramid"}[t]
}

type collocated struct{}

// Collocated marks an operator field whose data already lives at the
// quadrature points. None and Interp are the identity; the other modes have
// no meaning.
var Collocated Basis = collocated{}

// IsCollocated reports whether b is the Collocated sentinel
func IsCollocated(b Basis) bool {
	_, ok := b.(collocated)
	return ok
}

func (collocated) Apply(nelem int, tmode types.TransposeMode, emode types.EvalMode, u, v []float64) error {
	switch emode {
	case types.EvalNone, types.EvalInterp:
		if len(u) < len(v) {
			return fmt.Errorf("%w: collocated basis input has %d values, output %d",
				types.ErrConfiguration, len(u), len(v))
		}
		copy(v, u)
		return nil
	}
	return fmt.Errorf("%w: eval mode %v on a collocated basis", types.ErrConfiguration, emode)
}

func (collocated) Dimension() int           { return 0 }
func (collocated) NumComponents() int       { return 0 }
func (collocated) NumNodes() int            { return 0 }
func (collocated) NumQuadraturePoints() int { return 0 }

// sizes returns the per-element input and output lengths of an Apply
func sizes(b Basis, tmode types.TransposeMode, emode types.EvalMode) (in, out int, err error) {
	ncomp, nnode, nqpt := b.NumComponents(), b.NumNodes(), b.NumQuadraturePoints()
	var node, qpt int
	switch emode {
	case types.EvalInterp:
		node, qpt = ncomp*nnode, ncomp*nqpt
	case types.EvalGrad:
		node, qpt = ncomp*nnode, ncomp*nqpt*b.Dimension()
	case types.EvalWeight:
		if tmode == types.Transpose {
			return 0, 0, fmt.Errorf("%w: weight has no transpose", types.ErrConfiguration)
		}
		return 0, nqpt, nil
	case types.EvalDiv, types.EvalCurl:
		return 0, 0, fmt.Errorf("%w: eval mode %v is not implemented", types.ErrConfiguration, emode)
	default:
		return 0, 0, fmt.Errorf("%w: eval mode %v has no basis action", types.ErrConfiguration, emode)
	}
	if tmode == types.Transpose {
		return qpt, node, nil
	}
	return node, qpt, nil
}

func checkApply(b Basis, nelem int, tmode types.TransposeMode, emode types.EvalMode,
	u, v []float64) (in, out int, err error) {
	if nelem < 0 {
		return 0, 0, fmt.Errorf("%w: negative element count %d", types.ErrConfiguration, nelem)
	}
	if in, out, err = sizes(b, tmode, emode); err != nil {
		return 0, 0, err
	}
	if len(u) < nelem*in || len(v) < nelem*out {
		return 0, 0, fmt.Errorf("%w: basis %v/%v needs %d in and %d out values, got %d and %d",
			types.ErrConfiguration, emode, tmode, nelem*in, nelem*out, len(u), len(v))
	}
	return in, out, nil
}
