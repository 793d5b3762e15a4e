package operator

import (
	"errors"

	"github.com/notargets/MatFree/partitions"
	"github.com/notargets/MatFree/types"
	"github.com/notargets/MatFree/vector"
)

// Workspace holds the scratch storage of an operator. E-vectors are shared
// by all workers since elements never overlap; quadrature-point buffers are
// split per partition.
type Workspace struct {
	Layout *partitions.PartitionLayout

	evecIn  []*vector.Vector // nil for Weight fields
	evecOut []*vector.Vector
	qIn     []*partitions.PartitionedArray // nil unless the field needs a basis
	qOut    []*partitions.PartitionedArray
	weights [][]float64 // per input, set for Weight fields only
}

func newWorkspace(plan *FieldPlan, layout *partitions.PartitionLayout, inputs []*Field) (_ *Workspace, err error) {
	ws := &Workspace{
		Layout:  layout,
		evecIn:  make([]*vector.Vector, len(plan.Inputs)),
		evecOut: make([]*vector.Vector, len(plan.Outputs)),
		qIn:     make([]*partitions.PartitionedArray, len(plan.Inputs)),
		qOut:    make([]*partitions.PartitionedArray, len(plan.Outputs)),
		weights: make([][]float64, len(plan.Inputs)),
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, ws.Destroy())
		}
	}()

	for i, s := range plan.Inputs {
		if s.EvalMode == types.EvalWeight {
			w := make([]float64, plan.NumQPoints)
			if err = inputs[i].Basis.Apply(1, types.NoTranspose, types.EvalWeight, nil, w); err != nil {
				return nil, err
			}
			ws.weights[i] = w
			continue
		}
		if ws.evecIn[i], err = vector.New(nil, s.EVecLen); err != nil {
			return nil, err
		}
		if s.NeedsBasis() {
			ws.qIn[i] = layout.AllocatePartitionedArray(s.QLen)
		}
	}
	for i, s := range plan.Outputs {
		if ws.evecOut[i], err = vector.New(nil, s.EVecLen); err != nil {
			return nil, err
		}
		if s.NeedsBasis() {
			ws.qOut[i] = layout.AllocatePartitionedArray(s.QLen)
		}
	}
	return ws, nil
}

// Outstanding counts unreleased views on the E-vectors
func (ws *Workspace) Outstanding() int {
	n := 0
	for _, evecs := range [][]*vector.Vector{ws.evecIn, ws.evecOut} {
		for _, ev := range evecs {
			if ev != nil {
				n += ev.Outstanding()
			}
		}
	}
	return n
}

func (ws *Workspace) Destroy() error {
	var errs []error
	for _, evecs := range [][]*vector.Vector{ws.evecIn, ws.evecOut} {
		for i, ev := range evecs {
			if ev != nil {
				errs = append(errs, ev.Destroy())
				evecs[i] = nil
			}
		}
	}
	return errors.Join(errs...)
}
