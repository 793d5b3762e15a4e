package basis

import (
	"fmt"

	"github.com/notargets/MatFree/types"
	"gonum.org/v1/gonum/mat"
)

// H1 is a basis on a non tensor-product element, applied with dense
// matrix-vector products
type H1 struct {
	topo    Topology
	ncomp   int
	nnodes  int
	nqpts   int
	interp  *mat.Dense // nqpts x nnodes
	grad    *mat.Dense // dim*nqpts x nnodes
	qref    []float64
	qweight []float64
}

var _ Basis = (*H1)(nil)

// NewH1 creates a basis from row-major tables: interp is nqpts x nnodes,
// grad is dim*nqpts x nnodes with the derivative direction slowest, qref is
// dim*nqpts and qweight is nqpts.
func NewH1(topo Topology, ncomp, nnodes, nqpts int, interp, grad, qref, qweight []float64) (*H1, error) {
	dim := topo.Dimension()
	if ncomp < 1 || nnodes < 1 || nqpts < 1 {
		return nil, fmt.Errorf("%w: bad H1 basis shape ncomp=%d nodes=%d qpts=%d",
			types.ErrConfiguration, ncomp, nnodes, nqpts)
	}
	if len(interp) != nqpts*nnodes || len(grad) != dim*nqpts*nnodes {
		return nil, fmt.Errorf("%w: H1 tables do not match %d nodes, %d points, dim %d",
			types.ErrConfiguration, nnodes, nqpts, dim)
	}
	if len(qweight) != nqpts || (qref != nil && len(qref) != dim*nqpts) {
		return nil, fmt.Errorf("%w: H1 quadrature does not match %d points", types.ErrConfiguration, nqpts)
	}
	return &H1{
		topo: topo, ncomp: ncomp, nnodes: nnodes, nqpts: nqpts,
		interp:  mat.NewDense(nqpts, nnodes, append([]float64(nil), interp...)),
		grad:    mat.NewDense(dim*nqpts, nnodes, append([]float64(nil), grad...)),
		qref:    append([]float64(nil), qref...),
		qweight: append([]float64(nil), qweight...),
	}, nil
}

func (b *H1) Topology() Topology       { return b.topo }
func (b *H1) Dimension() int           { return b.topo.Dimension() }
func (b *H1) NumComponents() int       { return b.ncomp }
func (b *H1) NumNodes() int            { return b.nnodes }
func (b *H1) NumQuadraturePoints() int { return b.nqpts }
func (b *H1) Interp() mat.Matrix       { return b.interp }
func (b *H1) Grad() mat.Matrix         { return b.grad }
func (b *H1) QWeight() []float64       { return b.qweight }

func (b *H1) Apply(nelem int, tmode types.TransposeMode, emode types.EvalMode, u, v []float64) error {
	in, out, err := checkApply(b, nelem, tmode, emode, u, v)
	if err != nil {
		return err
	}
	nn, nq, dim := b.nnodes, b.nqpts, b.Dimension()
	for e := 0; e < nelem; e++ {
		ue, ve := u[e*in:(e+1)*in], v[e*out:(e+1)*out]
		switch emode {
		case types.EvalWeight:
			copy(ve, b.qweight)
		case types.EvalInterp:
			for c := 0; c < b.ncomp; c++ {
				nodes, qpts := c*nn, c*nq
				if tmode == types.Transpose {
					dst := mat.NewVecDense(nn, ve[nodes:nodes+nn])
					dst.MulVec(b.interp.T(), mat.NewVecDense(nq, ue[qpts:qpts+nq]))
				} else {
					dst := mat.NewVecDense(nq, ve[qpts:qpts+nq])
					dst.MulVec(b.interp, mat.NewVecDense(nn, ue[nodes:nodes+nn]))
				}
			}
		case types.EvalGrad:
			if tmode == types.Transpose {
				for i := range ve {
					ve[i] = 0
				}
			}
			var work mat.VecDense
			for d := 0; d < dim; d++ {
				gd := b.grad.Slice(d*nq, (d+1)*nq, 0, nn)
				for c := 0; c < b.ncomp; c++ {
					nodes, qpts := c*nn, (d*b.ncomp+c)*nq
					if tmode == types.Transpose {
						work.Reset()
						work.MulVec(gd.T(), mat.NewVecDense(nq, ue[qpts:qpts+nq]))
						dst := mat.NewVecDense(nn, ve[nodes:nodes+nn])
						dst.AddVec(dst, &work)
					} else {
						dst := mat.NewVecDense(nq, ve[qpts:qpts+nq])
						dst.MulVec(gd, mat.NewVecDense(nn, ue[nodes:nodes+nn]))
					}
				}
			}
		}
	}
	return nil
}
