package restriction

import (
	"errors"
	"fmt"

	"github.com/notargets/MatFree/mirror"
	"github.com/notargets/MatFree/types"
	"github.com/notargets/MatFree/vector"
)

// Restriction maps a global (L-) vector to element-local (E-) storage and
// back. E-vectors are laid out [element][component][node].
type Restriction interface {
	// Apply gathers u into v (NoTranspose) or accumulates u into v (Transpose)
	Apply(tmode types.TransposeMode, lmode types.InterlaceMode, u, v *vector.Vector, req *types.Request) error
	NumElements() int
	ElementSize() int
	NumComponents() int
	LVectorLength() int
	EVectorLength() int
}

// ElemRestriction is the host implementation of Restriction. It is either
// offset based, with one global node index per element slot, or strided.
type ElemRestriction struct {
	nelem    int
	elemsize int
	ncomp    int
	lsize    int   // nodes per component in the L-vector, offset based only
	offsets  []int // nil for strided restrictions
	strides  [3]int
}

var _ Restriction = (*ElemRestriction)(nil)

// NoOffset marks an element slot that has no global degree of freedom.
// Forward restriction leaves the slot untouched and the transpose skips it.
const NoOffset = -1

// NewOffsets creates a restriction from an offset table of nelem*elemsize
// entries. offsets[e*elemsize+i] is the global node of slot i of element e,
// or NoOffset.
func NewOffsets(nelem, elemsize, ncomp, lsize int, cmode types.CopyMode, offsets []int) (*ElemRestriction, error) {
	if err := checkShape(nelem, elemsize, ncomp); err != nil {
		return nil, err
	}
	if lsize < 0 {
		return nil, fmt.Errorf("%w: negative lsize %d", types.ErrConfiguration, lsize)
	}
	if len(offsets) != nelem*elemsize {
		return nil, fmt.Errorf("%w: offset table has %d entries, need %d",
			types.ErrConfiguration, len(offsets), nelem*elemsize)
	}
	for i, o := range offsets {
		if o < NoOffset || o >= lsize {
			return nil, fmt.Errorf("%w: offset[%d]=%d outside [0,%d)",
				types.ErrConfiguration, i, o, lsize)
		}
	}
	r := &ElemRestriction{nelem: nelem, elemsize: elemsize, ncomp: ncomp, lsize: lsize}
	switch cmode {
	case types.CopyValues:
		r.offsets = append([]int(nil), offsets...)
	case types.OwnPointer, types.UsePointer:
		r.offsets = offsets
	default:
		return nil, fmt.Errorf("%w: unknown copy mode %v", types.ErrConfiguration, cmode)
	}
	return r, nil
}

// NewStrided creates a restriction where slot (e, c, n) maps to global index
// n*strides[0] + c*strides[1] + e*strides[2]
func NewStrided(nelem, elemsize, ncomp int, strides [3]int) (*ElemRestriction, error) {
	if err := checkShape(nelem, elemsize, ncomp); err != nil {
		return nil, err
	}
	for i, s := range strides {
		if s < 0 {
			return nil, fmt.Errorf("%w: negative stride[%d]=%d", types.ErrConfiguration, i, s)
		}
	}
	return &ElemRestriction{nelem: nelem, elemsize: elemsize, ncomp: ncomp, strides: strides}, nil
}

// NewIdentity creates a restriction whose L-vector has the E-vector layout
func NewIdentity(nelem, elemsize, ncomp int) (*ElemRestriction, error) {
	return NewStrided(nelem, elemsize, ncomp, [3]int{1, elemsize, elemsize * ncomp})
}

func checkShape(nelem, elemsize, ncomp int) error {
	if nelem < 0 || elemsize < 1 || ncomp < 1 {
		return fmt.Errorf("%w: bad restriction shape nelem=%d elemsize=%d ncomp=%d",
			types.ErrConfiguration, nelem, elemsize, ncomp)
	}
	return nil
}

func (r *ElemRestriction) NumElements() int   { return r.nelem }
func (r *ElemRestriction) ElementSize() int   { return r.elemsize }
func (r *ElemRestriction) NumComponents() int { return r.ncomp }

// LSize is the number of global nodes per component (offset restrictions)
func (r *ElemRestriction) LSize() int { return r.lsize }

func (r *ElemRestriction) Strided() bool { return r.offsets == nil }

func (r *ElemRestriction) LVectorLength() int {
	if !r.Strided() {
		return r.lsize * r.ncomp
	}
	if r.nelem == 0 {
		return 0
	}
	return (r.elemsize-1)*r.strides[0] + (r.ncomp-1)*r.strides[1] + (r.nelem-1)*r.strides[2] + 1
}

func (r *ElemRestriction) EVectorLength() int {
	return r.nelem * r.elemsize * r.ncomp
}

// CreateVectors allocates an L-vector and an E-vector sized for r
func (r *ElemRestriction) CreateVectors(dev mirror.Device) (lvec, evec *vector.Vector, err error) {
	if lvec, err = vector.New(dev, r.LVectorLength()); err != nil {
		return nil, nil, err
	}
	if evec, err = vector.New(dev, r.EVectorLength()); err != nil {
		return nil, nil, err
	}
	return lvec, evec, nil
}

// globalIndex returns the L-vector index of slot (e, c, n), or -1
func (r *ElemRestriction) globalIndex(e, c, n int, lmode types.InterlaceMode) int {
	if r.Strided() {
		return n*r.strides[0] + c*r.strides[1] + e*r.strides[2]
	}
	o := r.offsets[e*r.elemsize+n]
	if o == NoOffset {
		return -1
	}
	if lmode == types.Interlaced {
		return o*r.ncomp + c
	}
	return o + c*r.lsize
}

func (r *ElemRestriction) Apply(tmode types.TransposeMode, lmode types.InterlaceMode,
	u, v *vector.Vector, req *types.Request) (err error) {
	defer func() { req.Complete(err) }()

	if u == nil || v == nil {
		return fmt.Errorf("%w: nil restriction vector", types.ErrConfiguration)
	}
	if u == v {
		return fmt.Errorf("%w: restriction source and destination alias", types.ErrConfiguration)
	}
	lin, lout := r.LVectorLength(), r.EVectorLength()
	if tmode == types.Transpose {
		lin, lout = lout, lin
	}
	if u.Length() != lin || v.Length() != lout {
		return fmt.Errorf("%w: restriction %v expects lengths (%d, %d), got (%d, %d)",
			types.ErrConfiguration, tmode, lin, lout, u.Length(), v.Length())
	}

	uu, err := u.GetArrayRead()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, u.RestoreArrayRead()) }()
	vv, err := v.GetArray()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, v.RestoreArray()) }()

	for e := 0; e < r.nelem; e++ {
		for c := 0; c < r.ncomp; c++ {
			base := (e*r.ncomp + c) * r.elemsize
			for n := 0; n < r.elemsize; n++ {
				g := r.globalIndex(e, c, n, lmode)
				if g < 0 {
					continue
				}
				if tmode == types.Transpose {
					vv[g] += uu[base+n]
				} else {
					vv[base+n] = uu[g]
				}
			}
		}
	}
	return nil
}
