package qfunction

import (
	"errors"
	"testing"

	"github.com/notargets/MatFree/mirror"
	"github.com/notargets/MatFree/types"
	"github.com/notargets/MatFree/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQFunction_Declaration(t *testing.T) {
	qf, err := New("decl", 1, nil)
	require.NoError(t, err)

	require.NoError(t, qf.AddInput("u", 1, types.EvalInterp))
	require.NoError(t, qf.AddInput("w", 1, types.EvalWeight))
	require.NoError(t, qf.AddOutput("v", 2, types.EvalGrad))

	assert.ErrorIs(t, qf.AddOutput("bad", 1, types.EvalWeight), types.ErrConfiguration)
	assert.ErrorIs(t, qf.AddInput("div", 1, types.EvalDiv), types.ErrConfiguration)
	assert.ErrorIs(t, qf.AddInput("curl", 1, types.EvalCurl), types.ErrConfiguration)
	assert.ErrorIs(t, qf.AddInput("u", 1, types.EvalNone), types.ErrConfiguration, "duplicate name")
	assert.ErrorIs(t, qf.AddInput("empty", 0, types.EvalNone), types.ErrConfiguration)

	assert.Len(t, qf.Inputs(), 2)
	assert.Len(t, qf.Outputs(), 1)
	assert.Equal(t, Field{"v", 2, types.EvalGrad}, qf.Outputs()[0])

	_, err = New("zero", 0, nil)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestQFunction_Apply(t *testing.T) {
	qf, err := New("double", 4, func(_ []byte, Q int, in, out [][]float64) error {
		for i := 0; i < Q; i++ {
			out[0][i] = 2 * in[0][i]
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, qf.AddInput("u", 1, types.EvalNone))
	require.NoError(t, qf.AddOutput("v", 1, types.EvalNone))

	in := [][]float64{{1, 2, 3, 4}}
	out := [][]float64{make([]float64, 4)}
	require.NoError(t, qf.Apply(4, in, out))
	assert.Equal(t, []float64{2, 4, 6, 8}, out[0])

	t.Run("VectorLength", func(t *testing.T) {
		assert.ErrorIs(t, qf.Apply(3, in, out), types.ErrConfiguration)
	})
	t.Run("ArgumentCount", func(t *testing.T) {
		assert.ErrorIs(t, qf.Apply(4, in, nil), types.ErrConfiguration)
	})
}

func TestQFunction_ComputeError(t *testing.T) {
	userErr := errors.New("negative density")
	qf, err := New("fail", 1, func(_ []byte, Q int, in, out [][]float64) error {
		return userErr
	})
	require.NoError(t, err)
	err = qf.Apply(1, nil, nil)
	assert.ErrorIs(t, err, types.ErrCompute)
	assert.ErrorIs(t, err, userErr)

	noHost, err := New("nohost", 1, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, noHost.Apply(1, nil, nil), types.ErrConfiguration)
}

func TestQFunction_Context(t *testing.T) {
	qf, err := NewScale(1)
	require.NoError(t, err)

	in := [][]float64{{1, 2}}
	out := [][]float64{make([]float64, 2)}
	require.NoError(t, qf.Apply(2, in, out))
	assert.Equal(t, []float64{1, 2}, out[0])

	first := qf.Context()
	ctx, err := ScaleContext(mirror.NewMockDevice(), 3)
	require.NoError(t, err)
	require.NoError(t, qf.SetContext(ctx))
	require.NoError(t, qf.Apply(2, in, out))
	assert.Equal(t, []float64{3, 6}, out[0])

	// the replaced context was destroyed
	_, err = first.GetData()
	assert.ErrorIs(t, err, types.ErrNoData)

	require.NoError(t, qf.Destroy())
	assert.Nil(t, qf.Context())
	_, err = ctx.GetData()
	assert.ErrorIs(t, err, types.ErrNoData)
}

func TestQFunction_ContextTooSmall(t *testing.T) {
	qf, err := NewScale(1)
	require.NoError(t, err)
	small, err := vector.NewContextFromBytes(nil, []byte{1, 2})
	require.NoError(t, err)
	require.NoError(t, qf.SetContext(small))
	err = qf.Apply(1, [][]float64{{1}}, [][]float64{{0}})
	assert.ErrorIs(t, err, types.ErrCompute)
}

type countingImpl struct {
	applies, destroys int
}

func (c *countingImpl) Apply(qf *QFunction, Q int, in, out [][]float64) error {
	c.applies++
	return nil
}

func (c *countingImpl) Destroy() error {
	c.destroys++
	return nil
}

func TestQFunction_SetImpl(t *testing.T) {
	qf, err := NewMassApply()
	require.NoError(t, err)
	impl := &countingImpl{}
	require.NoError(t, qf.SetImpl(impl))
	require.NoError(t, qf.Apply(1, [][]float64{{1}, {1}}, [][]float64{{0}}))
	assert.Equal(t, 1, impl.applies)
	require.NoError(t, qf.Destroy())
	assert.Equal(t, 1, impl.destroys)
	assert.ErrorIs(t, qf.SetImpl(nil), types.ErrConfiguration)
}

func TestGallery(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			qf, err := ByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, qf.Name())
			kname, src := qf.Kernel()
			assert.Equal(t, name, kname)
			assert.Contains(t, src, "inline void "+name)
		})
	}
	_, err := ByName("NoSuchFunction")
	assert.ErrorIs(t, err, types.ErrConfiguration)

	t.Run("MassApply", func(t *testing.T) {
		qf, err := ByName("MassApply")
		require.NoError(t, err)
		out := [][]float64{make([]float64, 3)}
		require.NoError(t, qf.Apply(3, [][]float64{{1, 2, 3}, {0.5, 0.5, 2}}, out))
		assert.Equal(t, []float64{0.5, 1, 6}, out[0])
	})

	t.Run("Poisson1DBuildDegenerate", func(t *testing.T) {
		qf, err := ByName("Poisson1DBuild")
		require.NoError(t, err)
		err = qf.Apply(1, [][]float64{{0}, {1}}, [][]float64{{0}})
		assert.ErrorIs(t, err, types.ErrCompute)
	})
}
