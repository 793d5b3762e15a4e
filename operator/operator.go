package operator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/notargets/MatFree/basis"
	"github.com/notargets/MatFree/logging"
	"github.com/notargets/MatFree/partitions"
	"github.com/notargets/MatFree/qfunction"
	"github.com/notargets/MatFree/restriction"
	"github.com/notargets/MatFree/types"
	"github.com/notargets/MatFree/vector"
)

// Field binds one QFunction field to its restriction, basis and vector
type Field struct {
	Name          string
	Restriction   restriction.Restriction // nil for Weight fields
	InterlaceMode types.InterlaceMode
	Basis         basis.Basis
	Vector        *vector.Vector // vector.Active, vector.None or a passive vector
	EvalMode      types.EvalMode
	NumComp       int
}

// Operator applies a QFunction at the quadrature points of every element,
// mapping global input vectors to global output vectors
type Operator struct {
	mu  sync.Mutex
	qf  *qfunction.QFunction
	log zerolog.Logger

	inputs      []*Field // indexed like qf.Inputs(); nil until set
	outputs     []*Field
	numElements int // -1 until a field with a restriction is set
	numQPoints  int // 0 until known

	workers  int
	strategy partitions.PartitionStrategy

	setupCount int
	plan       *FieldPlan
	ws         *Workspace
	destroyed  bool
}

// Option configures an Operator
type Option func(*Operator)

// WithWorkers sets the number of element partitions processed concurrently
func WithWorkers(n int) Option {
	return func(op *Operator) {
		if n < 1 {
			n = 1
		}
		op.workers = n
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(op *Operator) { op.log = l }
}

// WithPartitionStrategy selects how elements are assigned to workers
func WithPartitionStrategy(s partitions.PartitionStrategy) Option {
	return func(op *Operator) { op.strategy = s }
}

// New creates an operator around qf. Every declared field of qf must be
// bound with SetField before the first Apply.
func New(qf *qfunction.QFunction, opts ...Option) (*Operator, error) {
	if qf == nil {
		return nil, fmt.Errorf("%w: nil qfunction", types.ErrConfiguration)
	}
	op := &Operator{
		qf:          qf,
		log:         logging.For("operator"),
		inputs:      make([]*Field, len(qf.Inputs())),
		outputs:     make([]*Field, len(qf.Outputs())),
		numElements: -1,
		workers:     1,
		strategy:    partitions.BlockPartition,
	}
	for _, opt := range opts {
		opt(op)
	}
	return op, nil
}

func (op *Operator) QFunction() *qfunction.QFunction { return op.qf }

// NumElements is -1 until a field with a restriction has been set
func (op *Operator) NumElements() int { return op.numElements }

// NumQuadraturePoints is 0 until a field fixes the per-element point count
func (op *Operator) NumQuadraturePoints() int { return op.numQPoints }

// SetupCount reports how many times the execution plan was built
func (op *Operator) SetupCount() int {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.setupCount
}

// Plan returns the execution plan, nil before setup
func (op *Operator) Plan() *FieldPlan {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.plan
}

// SetField binds the QFunction field called name. r is nil and v is
// vector.None for Weight fields; b is basis.Collocated when the field data
// already lives at the quadrature points.
func (op *Operator) SetField(name string, r restriction.Restriction, lmode types.InterlaceMode,
	b basis.Basis, v *vector.Vector) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.plan != nil {
		return fmt.Errorf("%w: operator %s: field %s set after setup",
			types.ErrConfiguration, op.qf.Name(), name)
	}
	slot, qfield, err := op.lookup(name)
	if err != nil {
		return err
	}
	if *slot != nil {
		return fmt.Errorf("%w: operator %s: field %s already set", types.ErrConfiguration, op.qf.Name(), name)
	}
	f := &Field{
		Name:          name,
		Restriction:   r,
		InterlaceMode: lmode,
		Basis:         b,
		Vector:        v,
		EvalMode:      qfield.EvalMode,
		NumComp:       qfield.NumComp,
	}
	if err := op.checkField(f); err != nil {
		return fmt.Errorf("%w: operator %s: field %s: %w", types.ErrConfiguration, op.qf.Name(), name, err)
	}
	*slot = f
	return nil
}

func (op *Operator) lookup(name string) (**Field, qfunction.Field, error) {
	if len(op.qf.Inputs()) != len(op.inputs) || len(op.qf.Outputs()) != len(op.outputs) {
		return nil, qfunction.Field{}, fmt.Errorf("%w: qfunction %s signature changed after the operator was created",
			types.ErrConfiguration, op.qf.Name())
	}
	for i, f := range op.qf.Inputs() {
		if f.Name == name {
			return &op.inputs[i], f, nil
		}
	}
	for i, f := range op.qf.Outputs() {
		if f.Name == name {
			return &op.outputs[i], f, nil
		}
	}
	return nil, qfunction.Field{}, fmt.Errorf("%w: qfunction %s has no field %s",
		types.ErrConfiguration, op.qf.Name(), name)
}

// checkField validates f against the QFunction signature and the fields
// already set, then records the element and quadrature point counts
func (op *Operator) checkField(f *Field) error {
	if f.Basis == nil {
		return errors.New("nil basis, use basis.Collocated")
	}
	if f.Vector == nil {
		return errors.New("nil vector, use vector.Active or vector.None")
	}
	collocated := basis.IsCollocated(f.Basis)

	if f.EvalMode == types.EvalWeight {
		if f.Vector != vector.None {
			return errors.New("weight fields take vector.None")
		}
		if collocated {
			return errors.New("weight fields need a basis with quadrature weights")
		}
		return op.fixQPoints(f.Basis.NumQuadraturePoints())
	}

	if !f.EvalMode.Supported() {
		return fmt.Errorf("eval mode %v is not implemented", f.EvalMode)
	}
	if f.Restriction == nil {
		return fmt.Errorf("eval mode %v needs a restriction", f.EvalMode)
	}
	if f.Vector == vector.None {
		return fmt.Errorf("eval mode %v needs vector.Active or a passive vector", f.EvalMode)
	}
	r := f.Restriction
	if r.NumComponents() != f.NumComp {
		return fmt.Errorf("restriction has %d components, field declares %d", r.NumComponents(), f.NumComp)
	}
	if !f.Vector.IsSentinel() && f.Vector.Length() != r.LVectorLength() {
		return fmt.Errorf("vector length %d, restriction expects %d", f.Vector.Length(), r.LVectorLength())
	}

	switch {
	case collocated && f.EvalMode == types.EvalGrad:
		return errors.New("gradients need a basis, not basis.Collocated")
	case collocated:
		if err := op.fixQPoints(r.ElementSize()); err != nil {
			return err
		}
	default:
		if f.EvalMode != types.EvalNone {
			if f.Basis.NumComponents() != f.NumComp {
				return fmt.Errorf("basis has %d components, field declares %d",
					f.Basis.NumComponents(), f.NumComp)
			}
			if f.Basis.NumNodes() != r.ElementSize() {
				return fmt.Errorf("basis has %d nodes, restriction element size is %d",
					f.Basis.NumNodes(), r.ElementSize())
			}
		}
		if err := op.fixQPoints(f.Basis.NumQuadraturePoints()); err != nil {
			return err
		}
	}

	if op.numElements >= 0 && op.numElements != r.NumElements() {
		return fmt.Errorf("restriction has %d elements, operator has %d", r.NumElements(), op.numElements)
	}
	op.numElements = r.NumElements()
	return nil
}

func (op *Operator) fixQPoints(q int) error {
	if op.numQPoints > 0 && op.numQPoints != q {
		return fmt.Errorf("%d quadrature points, operator has %d", q, op.numQPoints)
	}
	op.numQPoints = q
	return nil
}

// OutstandingViews counts unreleased views on the operator's scratch and
// passive vectors
func (op *Operator) OutstandingViews() int {
	op.mu.Lock()
	defer op.mu.Unlock()
	n := 0
	for _, fields := range [][]*Field{op.inputs, op.outputs} {
		for _, f := range fields {
			if f != nil && f.Vector != nil {
				n += f.Vector.Outstanding()
			}
		}
	}
	if op.ws != nil {
		n += op.ws.Outstanding()
	}
	return n
}

// Destroy releases the workspace. The QFunction, restrictions, bases and
// vectors belong to the caller.
func (op *Operator) Destroy() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.destroyed = true
	if op.ws == nil {
		return nil
	}
	err := op.ws.Destroy()
	op.ws = nil
	return err
}
