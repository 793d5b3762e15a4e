package operator

import (
	"fmt"

	"github.com/notargets/MatFree/types"
)

// FieldPlan is the execution plan built once per operator: sizes of every
// element-local and quadrature-point buffer
type FieldPlan struct {
	NumElements int
	NumQPoints  int
	Inputs      []FieldSlot
	Outputs     []FieldSlot
}

// FieldSlot sizes the buffers of one field
type FieldSlot struct {
	Name     string
	EvalMode types.EvalMode
	NumComp  int
	Dim      int // basis dimension, used by Grad

	ElemStride int // values per element in the E-vector, elemsize*ncomp
	EVecLen    int // 0 for Weight fields
	QLen       int // values per element at the quadrature points
}

// NeedsBasis reports whether the field moves between nodes and points
func (s FieldSlot) NeedsBasis() bool {
	return s.EvalMode == types.EvalInterp || s.EvalMode == types.EvalGrad
}

func newFieldPlan(nelem, Q int, inputs, outputs []*Field) (*FieldPlan, error) {
	plan := &FieldPlan{
		NumElements: nelem,
		NumQPoints:  Q,
		Inputs:      make([]FieldSlot, len(inputs)),
		Outputs:     make([]FieldSlot, len(outputs)),
	}
	for i, f := range inputs {
		s, err := newFieldSlot(f, Q)
		if err != nil {
			return nil, err
		}
		plan.Inputs[i] = s
	}
	for i, f := range outputs {
		if f.EvalMode == types.EvalWeight {
			return nil, fmt.Errorf("%w: output field %s has eval mode weight", types.ErrConfiguration, f.Name)
		}
		s, err := newFieldSlot(f, Q)
		if err != nil {
			return nil, err
		}
		plan.Outputs[i] = s
	}
	return plan, nil
}

func newFieldSlot(f *Field, Q int) (FieldSlot, error) {
	s := FieldSlot{
		Name:     f.Name,
		EvalMode: f.EvalMode,
		NumComp:  f.NumComp,
		Dim:      f.Basis.Dimension(),
	}
	switch f.EvalMode {
	case types.EvalWeight:
		s.QLen = Q
		return s, nil
	case types.EvalNone:
		if f.Restriction.ElementSize() != Q {
			return s, fmt.Errorf("%w: field %s: eval mode none needs element size %d == Q=%d",
				types.ErrConfiguration, f.Name, f.Restriction.ElementSize(), Q)
		}
		s.QLen = Q * f.NumComp
	case types.EvalInterp:
		s.QLen = Q * f.NumComp
	case types.EvalGrad:
		s.QLen = Q * f.NumComp * s.Dim
	}
	s.ElemStride = f.Restriction.ElementSize() * f.NumComp
	s.EVecLen = f.Restriction.EVectorLength()
	return s, nil
}
