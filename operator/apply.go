package operator

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/MatFree/partitions"
	"github.com/notargets/MatFree/types"
	"github.com/notargets/MatFree/vector"
)

// Setup builds the execution plan and workspace. It runs once; later calls,
// including the implicit one made by every Apply, return immediately.
func (op *Operator) Setup() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.setup()
}

func (op *Operator) setup() error {
	if op.destroyed {
		return fmt.Errorf("%w: operator %s was destroyed", types.ErrConfiguration, op.qf.Name())
	}
	if op.plan != nil {
		return nil
	}
	if len(op.qf.Inputs()) != len(op.inputs) || len(op.qf.Outputs()) != len(op.outputs) {
		return fmt.Errorf("%w: operator %s: field count does not match the qfunction",
			types.ErrConfiguration, op.qf.Name())
	}
	for i, f := range op.inputs {
		if f == nil {
			return fmt.Errorf("%w: operator %s: input field %s not set",
				types.ErrConfiguration, op.qf.Name(), op.qf.Inputs()[i].Name)
		}
	}
	for i, f := range op.outputs {
		if f == nil {
			return fmt.Errorf("%w: operator %s: output field %s not set",
				types.ErrConfiguration, op.qf.Name(), op.qf.Outputs()[i].Name)
		}
	}
	if op.numElements < 0 {
		return fmt.Errorf("%w: operator %s: no field has a restriction", types.ErrConfiguration, op.qf.Name())
	}
	if op.numQPoints%op.qf.VLength() != 0 {
		return fmt.Errorf("%w: operator %s: Q=%d is not a multiple of vector length %d",
			types.ErrConfiguration, op.qf.Name(), op.numQPoints, op.qf.VLength())
	}

	plan, err := newFieldPlan(op.numElements, op.numQPoints, op.inputs, op.outputs)
	if err != nil {
		return fmt.Errorf("operator %s: %w", op.qf.Name(), err)
	}
	layout, err := partitions.Build(op.numElements, op.workers, op.strategy)
	if err != nil {
		return fmt.Errorf("%w: operator %s: %w", types.ErrConfiguration, op.qf.Name(), err)
	}
	ws, err := newWorkspace(plan, layout, op.inputs)
	if err != nil {
		return fmt.Errorf("operator %s: %w", op.qf.Name(), err)
	}

	op.plan, op.ws = plan, ws
	op.setupCount++
	op.log.Debug().
		Str("qfunction", op.qf.Name()).
		Int("elements", plan.NumElements).
		Int("qpoints", plan.NumQPoints).
		Int("partitions", layout.NumPartitions).
		Int("kpartMax", layout.KpartMax).
		Msg("operator setup")
	return nil
}

// Apply computes out = E^T B^T D(B E in) for the active fields, where E is
// each field's restriction, B its basis and D the QFunction. Passive fields
// use their bound vectors. Each output vector is overwritten. Only one
// Apply runs at a time per operator.
func (op *Operator) Apply(in, out *vector.Vector, req *types.Request) (err error) {
	op.mu.Lock()
	defer op.mu.Unlock()
	defer func() { req.Complete(err) }()

	if err = op.setup(); err != nil {
		return err
	}
	if err = op.checkActive(in, out); err != nil {
		return err
	}

	views := &viewSet{}
	defer func() { err = errors.Join(err, views.release()) }()

	edataIn, err := op.gather(in, views)
	if err != nil {
		return err
	}
	edataOut := make([][]float64, len(op.outputs))
	for i := range op.outputs {
		ev := op.ws.evecOut[i]
		if err = ev.SetValue(0); err != nil {
			return err
		}
		if edataOut[i], err = ev.GetArray(); err != nil {
			return err
		}
		views.add(ev)
	}

	if err = op.elementLoop(edataIn, edataOut); err != nil {
		return err
	}
	if err = views.release(); err != nil {
		return err
	}
	return op.scatter(out)
}

func (op *Operator) checkActive(in, out *vector.Vector) error {
	for _, f := range op.inputs {
		if f.Vector == vector.Active && (in == nil || in.IsSentinel()) {
			return fmt.Errorf("%w: operator %s: active input field %s needs an input vector",
				types.ErrConfiguration, op.qf.Name(), f.Name)
		}
	}
	for _, f := range op.outputs {
		if f.Vector == vector.Active && (out == nil || out.IsSentinel()) {
			return fmt.Errorf("%w: operator %s: active output field %s needs an output vector",
				types.ErrConfiguration, op.qf.Name(), f.Name)
		}
	}
	return nil
}

func resolve(bound, active *vector.Vector) *vector.Vector {
	if bound == vector.Active {
		return active
	}
	return bound
}

// gather restricts every input to its zeroed E-vector and takes read views
func (op *Operator) gather(in *vector.Vector, views *viewSet) ([][]float64, error) {
	edata := make([][]float64, len(op.inputs))
	for i, f := range op.inputs {
		if f.EvalMode == types.EvalWeight {
			continue
		}
		ev := op.ws.evecIn[i]
		if err := ev.SetValue(0); err != nil {
			return nil, err
		}
		if err := f.Restriction.Apply(types.NoTranspose, f.InterlaceMode, resolve(f.Vector, in), ev, nil); err != nil {
			return nil, fmt.Errorf("operator %s: restrict input %s: %w", op.qf.Name(), f.Name, err)
		}
		data, err := ev.GetArrayRead()
		if err != nil {
			return nil, err
		}
		views.add(ev)
		edata[i] = data
	}
	return edata, nil
}

// scatter accumulates every output E-vector into its destination. A
// destination shared by several fields is zeroed once.
func (op *Operator) scatter(out *vector.Vector) error {
	zeroed := make(map[*vector.Vector]bool)
	for i, f := range op.outputs {
		dst := resolve(f.Vector, out)
		if !zeroed[dst] {
			if err := dst.SetValue(0); err != nil {
				return err
			}
			zeroed[dst] = true
		}
		if err := f.Restriction.Apply(types.Transpose, f.InterlaceMode, op.ws.evecOut[i], dst, nil); err != nil {
			return fmt.Errorf("operator %s: restrict output %s: %w", op.qf.Name(), f.Name, err)
		}
	}
	return nil
}

// elementLoop runs every partition, concurrently when there is more than
// one. The first failure cancels the remaining partitions.
func (op *Operator) elementLoop(edataIn, edataOut [][]float64) error {
	layout := op.ws.Layout
	if layout.NumPartitions == 1 {
		return op.runPartition(context.Background(), 0, edataIn, edataOut)
	}
	g, ctx := errgroup.WithContext(context.Background())
	for p := 0; p < layout.NumPartitions; p++ {
		g.Go(func() error {
			return op.runPartition(ctx, p, edataIn, edataOut)
		})
	}
	return g.Wait()
}

func (op *Operator) runPartition(ctx context.Context, p int, edataIn, edataOut [][]float64) error {
	plan, ws := op.plan, op.ws
	Q := plan.NumQPoints

	qin := make([][]float64, len(plan.Inputs))
	qout := make([][]float64, len(plan.Outputs))
	for i, s := range plan.Inputs {
		switch {
		case s.EvalMode == types.EvalWeight:
			qin[i] = ws.weights[i]
		case s.NeedsBasis():
			qin[i] = ws.qIn[i].GetPartitionData(p)
		}
	}
	for i, s := range plan.Outputs {
		if s.NeedsBasis() {
			qout[i] = ws.qOut[i].GetPartitionData(p)
		}
	}

	for _, e := range ws.Layout.Partitions[p].Elements {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, s := range plan.Inputs {
			switch {
			case s.EvalMode == types.EvalNone:
				qin[i] = edataIn[i][e*s.ElemStride : (e+1)*s.ElemStride]
			case s.NeedsBasis():
				u := edataIn[i][e*s.ElemStride : (e+1)*s.ElemStride]
				if err := op.inputs[i].Basis.Apply(1, types.NoTranspose, s.EvalMode, u, qin[i]); err != nil {
					return fmt.Errorf("%w: operator %s: element %d: input %s: %w",
						types.ErrCompute, op.qf.Name(), e, s.Name, err)
				}
			}
		}
		for i, s := range plan.Outputs {
			if s.EvalMode == types.EvalNone {
				qout[i] = edataOut[i][e*s.ElemStride : (e+1)*s.ElemStride]
			}
		}

		if err := op.qf.Apply(Q, qin, qout); err != nil {
			return fmt.Errorf("operator %s: element %d: %w", op.qf.Name(), e, err)
		}

		for i, s := range plan.Outputs {
			if !s.NeedsBasis() {
				continue
			}
			v := edataOut[i][e*s.ElemStride : (e+1)*s.ElemStride]
			if err := op.outputs[i].Basis.Apply(1, types.Transpose, s.EvalMode, qout[i], v); err != nil {
				return fmt.Errorf("%w: operator %s: element %d: output %s: %w",
					types.ErrCompute, op.qf.Name(), e, s.Name, err)
			}
		}
	}
	return nil
}

// viewSet tracks host views so they are restored on every return path
type viewSet struct {
	held []*vector.Vector
}

func (vs *viewSet) add(v *vector.Vector) { vs.held = append(vs.held, v) }

// release restores every held view once
func (vs *viewSet) release() error {
	var errs []error
	for _, v := range vs.held {
		errs = append(errs, v.RestoreArray())
	}
	vs.held = vs.held[:0]
	return errors.Join(errs...)
}
