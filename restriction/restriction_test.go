package restriction

import (
	"path/filepath"
	"testing"

	"github.com/notargets/MatFree/mirror"
	"github.com/notargets/MatFree/types"
	"github.com/notargets/MatFree/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustVector(t *testing.T, vals []float64) *vector.Vector {
	t.Helper()
	v, err := vector.NewFromSlice(nil, vals)
	require.NoError(t, err)
	return v
}

func values(t *testing.T, v *vector.Vector) []float64 {
	t.Helper()
	vals, err := v.Values()
	require.NoError(t, err)
	return vals
}

// ============================================================================
// Section 1: Offset restrictions
// ============================================================================

func TestElemRestriction_SharedNode(t *testing.T) {
	r, err := NewOffsets(2, 2, 1, 3, types.CopyValues, []int{0, 1, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 3, r.LVectorLength())
	assert.Equal(t, 4, r.EVectorLength())

	u := mustVector(t, []float64{1, 2, 3})
	e := mustVector(t, make([]float64, 4))
	require.NoError(t, r.Apply(types.NoTranspose, types.NonInterlaced, u, e, nil))
	assert.Equal(t, []float64{1, 2, 2, 3}, values(t, e))

	out := mustVector(t, make([]float64, 3))
	require.NoError(t, r.Apply(types.Transpose, types.NonInterlaced, e, out, nil))
	assert.Equal(t, []float64{1, 4, 3}, values(t, out))

	// Transpose accumulates into what is already there
	require.NoError(t, r.Apply(types.Transpose, types.NonInterlaced, e, out, nil))
	assert.Equal(t, []float64{2, 8, 6}, values(t, out))

	assert.Equal(t, 0, u.Outstanding())
	assert.Equal(t, 0, e.Outstanding())
	assert.Equal(t, 0, out.Outstanding())
}

func TestElemRestriction_MaskedSlots(t *testing.T) {
	r, err := NewOffsets(1, 3, 1, 2, types.CopyValues, []int{0, NoOffset, 1})
	require.NoError(t, err)

	u := mustVector(t, []float64{7, 8})
	e := mustVector(t, []float64{-1, -1, -1})
	require.NoError(t, r.Apply(types.NoTranspose, types.NonInterlaced, u, e, nil))
	assert.Equal(t, []float64{7, -1, 8}, values(t, e), "masked slot must be untouched")

	out := mustVector(t, []float64{0, 0})
	require.NoError(t, r.Apply(types.Transpose, types.NonInterlaced, e, out, nil))
	assert.Equal(t, []float64{7, 8}, values(t, out))
}

func TestElemRestriction_Components(t *testing.T) {
	// one element with two nodes mapped to global nodes 1 and 0, two components
	r, err := NewOffsets(1, 2, 2, 2, types.CopyValues, []int{1, 0})
	require.NoError(t, err)

	t.Run("NonInterlaced", func(t *testing.T) {
		// [c0n0 c0n1 c1n0 c1n1]
		u := mustVector(t, []float64{10, 11, 20, 21})
		e := mustVector(t, make([]float64, 4))
		require.NoError(t, r.Apply(types.NoTranspose, types.NonInterlaced, u, e, nil))
		assert.Equal(t, []float64{11, 10, 21, 20}, values(t, e))
	})

	t.Run("Interlaced", func(t *testing.T) {
		// [n0c0 n0c1 n1c0 n1c1]
		u := mustVector(t, []float64{10, 20, 11, 21})
		e := mustVector(t, make([]float64, 4))
		require.NoError(t, r.Apply(types.NoTranspose, types.Interlaced, u, e, nil))
		assert.Equal(t, []float64{11, 10, 21, 20}, values(t, e))
	})
}

// ============================================================================
// Section 2: Strided restrictions
// ============================================================================

func TestElemRestriction_Identity(t *testing.T) {
	r, err := NewIdentity(2, 3, 1)
	require.NoError(t, err)
	assert.True(t, r.Strided())
	assert.Equal(t, 6, r.LVectorLength())

	u := mustVector(t, []float64{1, 2, 3, 4, 5, 6})
	e := mustVector(t, make([]float64, 6))
	require.NoError(t, r.Apply(types.NoTranspose, types.NonInterlaced, u, e, nil))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, values(t, e))
}

func TestElemRestriction_CreateVectors(t *testing.T) {
	r, err := NewOffsets(2, 2, 3, 3, types.CopyValues, []int{0, 1, 1, 2})
	require.NoError(t, err)
	l, e, err := r.CreateVectors(mirror.NewMockDevice())
	require.NoError(t, err)
	assert.Equal(t, 9, l.Length())
	assert.Equal(t, 12, e.Length())
}

// ============================================================================
// Section 3: Validation
// ============================================================================

func TestElemRestriction_Errors(t *testing.T) {
	t.Run("OffsetOutOfRange", func(t *testing.T) {
		_, err := NewOffsets(1, 2, 1, 2, types.CopyValues, []int{0, 2})
		assert.ErrorIs(t, err, types.ErrConfiguration)
	})
	t.Run("WrongTableSize", func(t *testing.T) {
		_, err := NewOffsets(2, 2, 1, 3, types.CopyValues, []int{0, 1})
		assert.ErrorIs(t, err, types.ErrConfiguration)
	})
	t.Run("BadShape", func(t *testing.T) {
		_, err := NewStrided(1, 0, 1, [3]int{1, 1, 1})
		assert.ErrorIs(t, err, types.ErrConfiguration)
	})
	t.Run("LengthMismatch", func(t *testing.T) {
		r, err := NewIdentity(1, 2, 1)
		require.NoError(t, err)
		req := types.NewRequest()
		err = r.Apply(types.NoTranspose, types.NonInterlaced,
			mustVector(t, []float64{1}), mustVector(t, []float64{0, 0}), req)
		assert.ErrorIs(t, err, types.ErrConfiguration)
		assert.True(t, req.Done())
		assert.ErrorIs(t, req.Err(), types.ErrConfiguration)
	})
	t.Run("NoData", func(t *testing.T) {
		r, err := NewIdentity(1, 2, 1)
		require.NoError(t, err)
		u, err := vector.New(nil, 2)
		require.NoError(t, err)
		err = r.Apply(types.NoTranspose, types.NonInterlaced, u, mustVector(t, []float64{0, 0}), nil)
		assert.ErrorIs(t, err, types.ErrNoData)
	})
}

func TestFromConnectivity(t *testing.T) {
	r, err := FromConnectivity([][]int{{0, 1, 2}, {1, 3, 2}}, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, r.NumElements())
	assert.Equal(t, 3, r.ElementSize())
	assert.Equal(t, 4, r.LSize())

	_, err = FromConnectivity([][]int{{0, 1, 2}, {1, 3}}, 4, 1)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestFromMeshFile_Missing(t *testing.T) {
	_, _, err := FromMeshFile(filepath.Join(t.TempDir(), "absent.neu"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.neu")
}
