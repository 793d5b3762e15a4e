package basis

import (
	"fmt"

	"github.com/notargets/MatFree/types"
	"gonum.org/v1/gonum/mat"
)

// TensorH1 is a tensor-product H1 basis on the line, square or cube built
// from 1D tables. Applications use sum factorisation, contracting one
// direction at a time; the x direction varies fastest.
type TensorH1 struct {
	dim, ncomp int
	P1d, Q1d   int
	interp1d   *mat.Dense // Q1d x P1d
	grad1d     *mat.Dense // Q1d x P1d
	qref1d     []float64
	qweight1d  []float64
}

var _ Basis = (*TensorH1)(nil)

// NewTensorH1 creates a basis from row-major Q1d x P1d interpolation and
// gradient tables, the 1D quadrature points and their weights
func NewTensorH1(dim, ncomp, P1d, Q1d int, interp1d, grad1d, qref1d, qweight1d []float64) (*TensorH1, error) {
	if dim < 1 || dim > 3 {
		return nil, fmt.Errorf("%w: tensor basis dimension %d not in [1,3]", types.ErrConfiguration, dim)
	}
	if ncomp < 1 || P1d < 1 || Q1d < 1 {
		return nil, fmt.Errorf("%w: bad tensor basis shape ncomp=%d P=%d Q=%d",
			types.ErrConfiguration, ncomp, P1d, Q1d)
	}
	if len(interp1d) != Q1d*P1d || len(grad1d) != Q1d*P1d {
		return nil, fmt.Errorf("%w: 1D tables must be %dx%d", types.ErrConfiguration, Q1d, P1d)
	}
	if len(qref1d) != Q1d || len(qweight1d) != Q1d {
		return nil, fmt.Errorf("%w: need %d quadrature points and weights", types.ErrConfiguration, Q1d)
	}
	return &TensorH1{
		dim: dim, ncomp: ncomp, P1d: P1d, Q1d: Q1d,
		interp1d:  mat.NewDense(Q1d, P1d, append([]float64(nil), interp1d...)),
		grad1d:    mat.NewDense(Q1d, P1d, append([]float64(nil), grad1d...)),
		qref1d:    append([]float64(nil), qref1d...),
		qweight1d: append([]float64(nil), qweight1d...),
	}, nil
}

// NewTensorH1Lagrange creates a Lagrange basis with P Gauss-Lobatto nodes
// and Q quadrature points per direction
func NewTensorH1Lagrange(dim, ncomp, P, Q int, qmode QuadMode) (*TensorH1, error) {
	if P < 2 {
		return nil, fmt.Errorf("%w: Lagrange basis needs at least 2 nodes, got %d", types.ErrConfiguration, P)
	}
	nodes, _, err := LobattoQuadrature(P)
	if err != nil {
		return nil, err
	}
	var qref, qweight []float64
	switch qmode {
	case QuadGauss:
		qref, qweight, err = GaussQuadrature(Q)
	case QuadGaussLobatto:
		qref, qweight, err = LobattoQuadrature(Q)
	default:
		err = fmt.Errorf("%w: unknown quadrature mode %d", types.ErrConfiguration, qmode)
	}
	if err != nil {
		return nil, err
	}

	interp := make([]float64, Q*P)
	grad := make([]float64, Q*P)
	for q, xq := range qref {
		for p := range nodes {
			interp[q*P+p], grad[q*P+p] = lagrange1D(nodes, p, xq)
		}
	}
	return NewTensorH1(dim, ncomp, P, Q, interp, grad, qref, qweight)
}

func (b *TensorH1) Dimension() int           { return b.dim }
func (b *TensorH1) NumComponents() int       { return b.ncomp }
func (b *TensorH1) NumNodes() int            { return ipow(b.P1d, b.dim) }
func (b *TensorH1) NumQuadraturePoints() int { return ipow(b.Q1d, b.dim) }

// Interp1D returns the Q1d x P1d interpolation table
func (b *TensorH1) Interp1D() mat.Matrix { return b.interp1d }

// Grad1D returns the Q1d x P1d derivative table
func (b *TensorH1) Grad1D() mat.Matrix { return b.grad1d }

// QRef1D returns the 1D quadrature points
func (b *TensorH1) QRef1D() []float64 { return b.qref1d }

// QWeight1D returns the 1D quadrature weights
func (b *TensorH1) QWeight1D() []float64 { return b.qweight1d }

func (b *TensorH1) Apply(nelem int, tmode types.TransposeMode, emode types.EvalMode, u, v []float64) error {
	in, out, err := checkApply(b, nelem, tmode, emode, u, v)
	if err != nil {
		return err
	}
	if emode == types.EvalWeight {
		for e := 0; e < nelem; e++ {
			b.weights(v[e*out : (e+1)*out])
		}
		return nil
	}

	big := b.P1d
	if b.Q1d > big {
		big = b.Q1d
	}
	tmp := [2][]float64{
		make([]float64, b.ncomp*ipow(big, b.dim)),
		make([]float64, b.ncomp*ipow(big, b.dim)),
	}
	for e := 0; e < nelem; e++ {
		ue, ve := u[e*in:(e+1)*in], v[e*out:(e+1)*out]
		switch emode {
		case types.EvalInterp:
			b.sweep(tmode, -1, ue, ve, false, tmp)
		case types.EvalGrad:
			stride := b.ncomp * b.NumQuadraturePoints()
			for p := 0; p < b.dim; p++ {
				if tmode == types.Transpose {
					b.sweep(tmode, p, ue[p*stride:(p+1)*stride], ve, p > 0, tmp)
				} else {
					b.sweep(tmode, p, ue, ve[p*stride:(p+1)*stride], false, tmp)
				}
			}
		}
	}
	return nil
}

// sweep applies the 1D tables along every direction, using the derivative
// table in direction gradDir (-1 for none). With add the result is summed
// into v.
func (b *TensorH1) sweep(tmode types.TransposeMode, gradDir int, u, v []float64, add bool, tmp [2][]float64) {
	P, Q := b.P1d, b.Q1d
	if tmode == types.Transpose {
		P, Q = Q, P
	}
	pre := b.ncomp * ipow(P, b.dim-1)
	post := 1
	for d := 0; d < b.dim; d++ {
		t := b.interp1d
		if d == gradDir {
			t = b.grad1d
		}
		src := u
		if d > 0 {
			src = tmp[d%2]
		}
		dst := v
		last := d == b.dim-1
		if !last {
			dst = tmp[(d+1)%2]
		}
		contract(pre, P, post, Q, t.RawMatrix().Data, tmode, add && last, src, dst)
		pre /= P
		post *= Q
	}
}

// weights fills w with the tensor product of the 1D quadrature weights
func (b *TensorH1) weights(w []float64) {
	Q := b.Q1d
	for i := range w {
		val, idx := 1.0, i
		for d := 0; d < b.dim; d++ {
			val *= b.qweight1d[idx%Q]
			idx /= Q
		}
		w[i] = val
	}
}

// contract computes v[a][j][c] (+)= sum_b t[j][b] u[a][b][c]. t is stored
// row-major J x B, or B x J when transposed.
func contract(A, B, C, J int, t []float64, tmode types.TransposeMode, add bool, u, v []float64) {
	tstride0, tstride1 := B, 1
	if tmode == types.Transpose {
		tstride0, tstride1 = 1, J
	}
	if !add {
		for i := 0; i < A*J*C; i++ {
			v[i] = 0
		}
	}
	for a := 0; a < A; a++ {
		for b := 0; b < B; b++ {
			for j := 0; j < J; j++ {
				tq := t[j*tstride0+b*tstride1]
				for c := 0; c < C; c++ {
					v[(a*J+j)*C+c] += tq * u[(a*B+b)*C+c]
				}
			}
		}
	}
}

func ipow(base, exp int) int {
	r := 1
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}
