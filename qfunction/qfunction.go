package qfunction

import (
	"errors"
	"fmt"
	"sync"

	"github.com/notargets/MatFree/types"
	"github.com/notargets/MatFree/vector"
)

// Field is one declared input or output of a QFunction
type Field struct {
	Name     string
	NumComp  int
	EvalMode types.EvalMode
}

// UserFunc evaluates a pointwise function at Q quadrature points. in[i] and
// out[i] hold the values of field i laid out [comp][q], or [dim][comp][q]
// for gradients. ctx is the attached context, nil when there is none.
type UserFunc func(ctx []byte, Q int, in, out [][]float64) error

// Impl executes a QFunction on one backend. The implementation is chosen
// when the QFunction is built and is not re-checked per call.
type Impl interface {
	Apply(qf *QFunction, Q int, in, out [][]float64) error
	Destroy() error
}

// QFunction is a pointwise function together with its field signature
type QFunction struct {
	name    string
	vlength int
	fn      UserFunc

	kernelName   string
	kernelSource string

	inputs  []Field
	outputs []Field
	ctx     *vector.Context
	ctxMu   sync.Mutex // guards context views taken by concurrent Apply calls
	impl    Impl
}

// New creates a QFunction evaluated by fn on the host. vlength is the
// number of points the function is vectorised over; Q must be a multiple of
// it.
func New(name string, vlength int, fn UserFunc) (*QFunction, error) {
	if vlength < 1 {
		return nil, fmt.Errorf("%w: qfunction %s: vector length %d", types.ErrConfiguration, name, vlength)
	}
	return &QFunction{name: name, vlength: vlength, fn: fn, impl: hostImpl{}}, nil
}

func (qf *QFunction) Name() string     { return qf.name }
func (qf *QFunction) VLength() int     { return qf.vlength }
func (qf *QFunction) Inputs() []Field  { return qf.inputs }
func (qf *QFunction) Outputs() []Field { return qf.outputs }
func (qf *QFunction) Func() UserFunc   { return qf.fn }

// SetKernel attaches device source for code-generating backends. The source
// must define
//
//	inline void name(const char *ctx, const real_t *in[], real_t *out[])
//
// evaluating a single quadrature point; in[i] and out[i] hold the values of
// field i at that point.
func (qf *QFunction) SetKernel(name, source string) {
	qf.kernelName = name
	qf.kernelSource = source
}

// Kernel returns the device function name and source, empty if none is set
func (qf *QFunction) Kernel() (name, source string) {
	return qf.kernelName, qf.kernelSource
}

// AddInput declares the next input field
func (qf *QFunction) AddInput(name string, ncomp int, emode types.EvalMode) error {
	if err := qf.checkField(name, ncomp, emode); err != nil {
		return err
	}
	qf.inputs = append(qf.inputs, Field{Name: name, NumComp: ncomp, EvalMode: emode})
	return nil
}

// AddOutput declares the next output field. Outputs cannot be weights.
func (qf *QFunction) AddOutput(name string, ncomp int, emode types.EvalMode) error {
	if emode == types.EvalWeight {
		return fmt.Errorf("%w: qfunction %s: output %s cannot use %v",
			types.ErrConfiguration, qf.name, name, emode)
	}
	if err := qf.checkField(name, ncomp, emode); err != nil {
		return err
	}
	qf.outputs = append(qf.outputs, Field{Name: name, NumComp: ncomp, EvalMode: emode})
	return nil
}

func (qf *QFunction) checkField(name string, ncomp int, emode types.EvalMode) error {
	if !emode.Supported() {
		return fmt.Errorf("%w: qfunction %s: field %s: eval mode %v is not implemented",
			types.ErrConfiguration, qf.name, name, emode)
	}
	if ncomp < 1 {
		return fmt.Errorf("%w: qfunction %s: field %s has %d components",
			types.ErrConfiguration, qf.name, name, ncomp)
	}
	if qf.hasField(name) {
		return fmt.Errorf("%w: qfunction %s: duplicate field %s", types.ErrConfiguration, qf.name, name)
	}
	return nil
}

func (qf *QFunction) hasField(name string) bool {
	for _, fields := range [][]Field{qf.inputs, qf.outputs} {
		for _, f := range fields {
			if f.Name == name {
				return true
			}
		}
	}
	return false
}

// SetContext attaches ctx. The QFunction owns the context from here on;
// replacing or clearing it destroys the previous one.
func (qf *QFunction) SetContext(ctx *vector.Context) error {
	if qf.ctx != nil && qf.ctx != ctx {
		if err := qf.ctx.Destroy(); err != nil {
			return err
		}
	}
	qf.ctx = ctx
	return nil
}

func (qf *QFunction) Context() *vector.Context { return qf.ctx }

// SetImpl replaces the backend implementation
func (qf *QFunction) SetImpl(impl Impl) error {
	if impl == nil {
		return fmt.Errorf("%w: qfunction %s: nil implementation", types.ErrConfiguration, qf.name)
	}
	if qf.impl != nil {
		if err := qf.impl.Destroy(); err != nil {
			return err
		}
	}
	qf.impl = impl
	return nil
}

// Apply evaluates the function at Q points. Failures of the function itself
// are reported as ErrCompute.
func (qf *QFunction) Apply(Q int, in, out [][]float64) error {
	if Q%qf.vlength != 0 {
		return fmt.Errorf("%w: qfunction %s: Q=%d is not a multiple of vector length %d",
			types.ErrConfiguration, qf.name, Q, qf.vlength)
	}
	if len(in) != len(qf.inputs) || len(out) != len(qf.outputs) {
		return fmt.Errorf("%w: qfunction %s: got %d inputs and %d outputs, declared %d and %d",
			types.ErrConfiguration, qf.name, len(in), len(out), len(qf.inputs), len(qf.outputs))
	}
	if err := qf.impl.Apply(qf, Q, in, out); err != nil {
		if classified(err) {
			return err
		}
		return fmt.Errorf("%w: qfunction %s: %w", types.ErrCompute, qf.name, err)
	}
	return nil
}

// Destroy releases the implementation and the owned context
func (qf *QFunction) Destroy() error {
	var err error
	if qf.impl != nil {
		err = qf.impl.Destroy()
	}
	return errors.Join(err, qf.SetContext(nil))
}

// contextData takes a host view of the context; ok is false when there is
// no context and nothing needs restoring
func (qf *QFunction) contextData() (data []byte, ok bool, err error) {
	qf.ctxMu.Lock()
	defer qf.ctxMu.Unlock()
	if qf.ctx == nil {
		return nil, false, nil
	}
	data, err = qf.ctx.GetData()
	return data, err == nil, err
}

func (qf *QFunction) restoreContext() error {
	qf.ctxMu.Lock()
	defer qf.ctxMu.Unlock()
	return qf.ctx.RestoreData()
}

func classified(err error) bool {
	for _, target := range []error{types.ErrConfiguration, types.ErrNoData,
		types.ErrAllocation, types.ErrCompile, types.ErrCompute} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type hostImpl struct{}

func (hostImpl) Apply(qf *QFunction, Q int, in, out [][]float64) (err error) {
	if qf.fn == nil {
		return fmt.Errorf("%w: qfunction %s has no host function", types.ErrConfiguration, qf.name)
	}
	ctx, ok, err := qf.contextData()
	if err != nil {
		return err
	}
	if ok {
		defer func() { err = errors.Join(err, qf.restoreContext()) }()
	}
	return qf.fn(ctx, Q, in, out)
}

func (hostImpl) Destroy() error { return nil }
