package qfunction

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/notargets/MatFree/mirror"
	"github.com/notargets/MatFree/types"
	"github.com/notargets/MatFree/vector"
)

// Constructor builds a gallery QFunction
type Constructor func() (*QFunction, error)

var gallery = map[string]Constructor{
	"Identity":       func() (*QFunction, error) { return NewIdentity(1, types.EvalInterp, types.EvalInterp) },
	"Scale":          func() (*QFunction, error) { return NewScale(1) },
	"Mass1DBuild":    NewMass1DBuild,
	"MassApply":      NewMassApply,
	"Poisson1DBuild": NewPoisson1DBuild,
	"Poisson1DApply": NewPoisson1DApply,
}

// ByName builds a QFunction from the gallery
func ByName(name string) (*QFunction, error) {
	ctor, ok := gallery[name]
	if !ok {
		return nil, fmt.Errorf("%w: no gallery qfunction named %q", types.ErrConfiguration, name)
	}
	return ctor()
}

// Names lists the gallery in sorted order
func Names() []string {
	names := make([]string, 0, len(gallery))
	for name := range gallery {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func build(name string, fn UserFunc, inputs, outputs []Field, kernel string) (*QFunction, error) {
	qf, err := New(name, 1, fn)
	if err != nil {
		return nil, err
	}
	for _, f := range inputs {
		if err := qf.AddInput(f.Name, f.NumComp, f.EvalMode); err != nil {
			return nil, err
		}
	}
	for _, f := range outputs {
		if err := qf.AddOutput(f.Name, f.NumComp, f.EvalMode); err != nil {
			return nil, err
		}
	}
	if kernel != "" {
		qf.SetKernel(name, kernel)
	}
	return qf, nil
}

// NewIdentity copies its input to its output. The input and output modes
// must describe data of the same size.
func NewIdentity(ncomp int, inMode, outMode types.EvalMode) (*QFunction, error) {
	if inMode == types.EvalGrad || outMode == types.EvalGrad {
		return nil, fmt.Errorf("%w: identity qfunction does not take gradients", types.ErrConfiguration)
	}
	return build("Identity",
		func(_ []byte, Q int, in, out [][]float64) error {
			copy(out[0][:ncomp*Q], in[0][:ncomp*Q])
			return nil
		},
		[]Field{{"input", ncomp, inMode}},
		[]Field{{"output", ncomp, outMode}},
		fmt.Sprintf(`inline void Identity(const char *ctx, const real_t *in[], real_t *out[]) {
  for (int c = 0; c < %d; ++c) out[0][c] = in[0][c];
}
`, ncomp))
}

// NewScale multiplies its input by the float64 stored in its context
func NewScale(ncomp int) (*QFunction, error) {
	qf, err := build("Scale",
		func(ctx []byte, Q int, in, out [][]float64) error {
			alpha, err := ScaleFromContext(ctx)
			if err != nil {
				return err
			}
			for i := 0; i < ncomp*Q; i++ {
				out[0][i] = alpha * in[0][i]
			}
			return nil
		},
		[]Field{{"input", ncomp, types.EvalInterp}},
		[]Field{{"output", ncomp, types.EvalInterp}},
		fmt.Sprintf(`inline void Scale(const char *ctx, const real_t *in[], real_t *out[]) {
  const double alpha = ((const double *)ctx)[0];
  for (int c = 0; c < %d; ++c) out[0][c] = alpha * in[0][c];
}
`, ncomp))
	if err != nil {
		return nil, err
	}
	ctx, err := ScaleContext(nil, 1)
	if err != nil {
		return nil, err
	}
	return qf, qf.SetContext(ctx)
}

// ScaleContext builds the context of a Scale QFunction
func ScaleContext(dev mirror.Device, alpha float64) (*vector.Context, error) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(alpha))
	return vector.NewContextFromBytes(dev, buf)
}

// ScaleFromContext decodes the factor stored by ScaleContext
func ScaleFromContext(ctx []byte) (float64, error) {
	if len(ctx) < 8 {
		return 0, fmt.Errorf("scale context holds %d bytes, need 8", len(ctx))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(ctx)), nil
}

// NewMass1DBuild stores the Jacobian times the quadrature weight
func NewMass1DBuild() (*QFunction, error) {
	return build("Mass1DBuild",
		func(_ []byte, Q int, in, out [][]float64) error {
			dx, w, qdata := in[0], in[1], out[0]
			for i := 0; i < Q; i++ {
				qdata[i] = dx[i] * w[i]
			}
			return nil
		},
		[]Field{{"dx", 1, types.EvalGrad}, {"weights", 1, types.EvalWeight}},
		[]Field{{"qdata", 1, types.EvalNone}},
		`inline void Mass1DBuild(const char *ctx, const real_t *in[], real_t *out[]) {
  out[0][0] = in[0][0] * in[1][0];
}
`)
}

// NewMassApply multiplies the interpolated field by the stored qdata
func NewMassApply() (*QFunction, error) {
	return build("MassApply",
		func(_ []byte, Q int, in, out [][]float64) error {
			u, qdata, v := in[0], in[1], out[0]
			for i := 0; i < Q; i++ {
				v[i] = qdata[i] * u[i]
			}
			return nil
		},
		[]Field{{"u", 1, types.EvalInterp}, {"qdata", 1, types.EvalNone}},
		[]Field{{"v", 1, types.EvalInterp}},
		`inline void MassApply(const char *ctx, const real_t *in[], real_t *out[]) {
  out[0][0] = in[1][0] * in[0][0];
}
`)
}

// NewPoisson1DBuild stores the quadrature weight divided by the Jacobian
func NewPoisson1DBuild() (*QFunction, error) {
	return build("Poisson1DBuild",
		func(_ []byte, Q int, in, out [][]float64) error {
			dx, w, qdata := in[0], in[1], out[0]
			for i := 0; i < Q; i++ {
				if dx[i] == 0 {
					return fmt.Errorf("degenerate element at point %d", i)
				}
				qdata[i] = w[i] / dx[i]
			}
			return nil
		},
		[]Field{{"dx", 1, types.EvalGrad}, {"weights", 1, types.EvalWeight}},
		[]Field{{"qdata", 1, types.EvalNone}},
		`inline void Poisson1DBuild(const char *ctx, const real_t *in[], real_t *out[]) {
  out[0][0] = in[1][0] / in[0][0];
}
`)
}

// NewPoisson1DApply scales the reference gradient by the stored qdata
func NewPoisson1DApply() (*QFunction, error) {
	return build("Poisson1DApply",
		func(_ []byte, Q int, in, out [][]float64) error {
			du, qdata, dv := in[0], in[1], out[0]
			for i := 0; i < Q; i++ {
				dv[i] = qdata[i] * du[i]
			}
			return nil
		},
		[]Field{{"du", 1, types.EvalGrad}, {"qdata", 1, types.EvalNone}},
		[]Field{{"dv", 1, types.EvalGrad}},
		`inline void Poisson1DApply(const char *ctx, const real_t *in[], real_t *out[]) {
  out[0][0] = in[1][0] * in[0][0];
}
`)
}
