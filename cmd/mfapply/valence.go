package main

import (
	"errors"
	"fmt"

	"github.com/notargets/MatFree/basis"
	"github.com/notargets/MatFree/ceed"
	"github.com/notargets/MatFree/qfunction"
	"github.com/notargets/MatFree/restriction"
	"github.com/notargets/MatFree/types"
	"github.com/notargets/MatFree/vector"
)

// runValence applies E^T E to a vector of ones on the mesh's vertex
// restriction, which counts the elements sharing each vertex
func runValence(c *ceed.Ceed, meshFile string) (err error) {
	r, verts, err := restriction.FromMeshFile(meshFile, 1)
	if err != nil {
		return err
	}
	// vertex data is used as is at the element's vertices
	qf, err := qfunction.NewIdentity(1, types.EvalNone, types.EvalNone)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, qf.Destroy()) }()

	op, err := c.NewOperator(qf)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, op.Destroy()) }()
	if err = op.SetField("input", r, types.NonInterlaced, basis.Collocated, vector.Active); err != nil {
		return err
	}
	if err = op.SetField("output", r, types.NonInterlaced, basis.Collocated, vector.Active); err != nil {
		return err
	}

	ones, err := c.NewVector(len(verts))
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, ones.Destroy()) }()
	if err = ones.SetValue(1); err != nil {
		return err
	}
	valence, err := c.NewVector(len(verts))
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, valence.Destroy()) }()

	if err = op.Apply(ones, valence, nil); err != nil {
		return err
	}
	vals, err := valence.Values()
	if err != nil {
		return err
	}
	lo, hi, total := vals[0], vals[0], 0.0
	for _, v := range vals {
		lo, hi, total = min(lo, v), max(hi, v), total+v
	}
	fmt.Printf("mesh=%s elements=%d vertices=%d vertices/element=%d\n",
		meshFile, r.NumElements(), len(verts), r.ElementSize())
	fmt.Printf("valence: min %.0f max %.0f total %.0f\n", lo, hi, total)
	return nil
}
