package main

import (
	"errors"

	"github.com/notargets/MatFree/basis"
	"github.com/notargets/MatFree/ceed"
	"github.com/notargets/MatFree/operator"
	"github.com/notargets/MatFree/qfunction"
	"github.com/notargets/MatFree/restriction"
	"github.com/notargets/MatFree/types"
	"github.com/notargets/MatFree/vector"
)

// lineProblem is a bilinear form on nelem equal elements of [0,1]: a build
// operator stores geometric factors at the quadrature points and an apply
// operator uses them
type lineProblem struct {
	c     *ceed.Ceed
	nodes []float64 // global node coordinates
	build *operator.Operator
	apply *operator.Operator
	qfs   []*qfunction.QFunction
	vecs  []*vector.Vector
	u, v  *vector.Vector
}

func newLineProblem(c *ceed.Ceed, nelem, P, Q int, buildName, applyName string) (_ *lineProblem, err error) {
	lp := &lineProblem{c: c}
	defer func() {
		if err != nil {
			err = errors.Join(err, lp.Destroy())
		}
	}()

	ref, _, err := basis.LobattoQuadrature(P)
	if err != nil {
		return nil, err
	}
	nnodes := nelem*(P-1) + 1
	offsets := make([]int, nelem*P)
	lp.nodes = make([]float64, nnodes)
	for e := 0; e < nelem; e++ {
		for j := 0; j < P; j++ {
			g := e*(P-1) + j
			offsets[e*P+j] = g
			lp.nodes[g] = (float64(e) + (ref[j]+1)/2) / float64(nelem)
		}
	}
	ru, err := restriction.NewOffsets(nelem, P, 1, nnodes, types.OwnPointer, offsets)
	if err != nil {
		return nil, err
	}
	rq, err := restriction.NewIdentity(nelem, Q, 1)
	if err != nil {
		return nil, err
	}
	b, err := basis.NewTensorH1Lagrange(1, 1, P, Q, basis.QuadGauss)
	if err != nil {
		return nil, err
	}

	coords, err := lp.vector(nnodes)
	if err != nil {
		return nil, err
	}
	if err = coords.SetArray(types.CopyValues, lp.nodes); err != nil {
		return nil, err
	}
	qdata, err := lp.vector(nelem * Q)
	if err != nil {
		return nil, err
	}
	if lp.u, err = lp.vector(nnodes); err != nil {
		return nil, err
	}
	if lp.v, err = lp.vector(nnodes); err != nil {
		return nil, err
	}

	qfBuild, err := lp.qfunction(buildName)
	if err != nil {
		return nil, err
	}
	if lp.build, err = c.NewOperator(qfBuild); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		name string
		r    restriction.Restriction
		b    basis.Basis
		v    *vector.Vector
	}{
		{"dx", ru, b, coords},
		{"weights", nil, b, vector.None},
		{"qdata", rq, basis.Collocated, qdata},
	} {
		if err = lp.build.SetField(f.name, f.r, types.NonInterlaced, f.b, f.v); err != nil {
			return nil, err
		}
	}
	if err = lp.build.Apply(nil, nil, types.RequestImmediate); err != nil {
		return nil, err
	}

	qfApply, err := lp.qfunction(applyName)
	if err != nil {
		return nil, err
	}
	if lp.apply, err = c.NewOperator(qfApply); err != nil {
		return nil, err
	}
	in, out := qfApply.Inputs()[0].Name, qfApply.Outputs()[0].Name
	if err = lp.apply.SetField(in, ru, types.NonInterlaced, b, vector.Active); err != nil {
		return nil, err
	}
	if err = lp.apply.SetField("qdata", rq, types.NonInterlaced, basis.Collocated, qdata); err != nil {
		return nil, err
	}
	if err = lp.apply.SetField(out, ru, types.NonInterlaced, b, vector.Active); err != nil {
		return nil, err
	}
	lp.c.Log.Debug().Int("elements", nelem).Int("nodes", nnodes).Str("operator", applyName).Msg("problem ready")
	return lp, nil
}

func (lp *lineProblem) vector(n int) (*vector.Vector, error) {
	v, err := lp.c.NewVector(n)
	if err == nil {
		lp.vecs = append(lp.vecs, v)
	}
	return v, err
}

func (lp *lineProblem) qfunction(name string) (*qfunction.QFunction, error) {
	qf, err := lp.c.NewQFunctionByName(name)
	if err == nil {
		lp.qfs = append(lp.qfs, qf)
	}
	return qf, err
}

// Apply evaluates the form on f sampled at the nodes
func (lp *lineProblem) Apply(f func(x float64) float64) ([]float64, error) {
	u := make([]float64, len(lp.nodes))
	for i, x := range lp.nodes {
		u[i] = f(x)
	}
	if err := lp.u.SetArray(types.CopyValues, u); err != nil {
		return nil, err
	}
	if err := lp.apply.Apply(lp.u, lp.v, types.RequestImmediate); err != nil {
		return nil, err
	}
	return lp.v.Values()
}

func (lp *lineProblem) Destroy() error {
	var errs []error
	for _, op := range []*operator.Operator{lp.build, lp.apply} {
		if op != nil {
			errs = append(errs, op.Destroy())
		}
	}
	for _, qf := range lp.qfs {
		errs = append(errs, qf.Destroy())
	}
	for _, v := range lp.vecs {
		errs = append(errs, v.Destroy())
	}
	return errors.Join(errs...)
}
