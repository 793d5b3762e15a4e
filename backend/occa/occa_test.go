package occa

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/MatFree/basis"
	"github.com/notargets/MatFree/builder"
	"github.com/notargets/MatFree/ceed"
	"github.com/notargets/MatFree/config"
	"github.com/notargets/MatFree/qfunction"
	"github.com/notargets/MatFree/restriction"
	"github.com/notargets/MatFree/types"
	"github.com/notargets/MatFree/utils"
	"github.com/notargets/MatFree/vector"
)

func testDevice(t *testing.T) *Device {
	t.Helper()
	dev, err := utils.CreateSerialDevice()
	if err != nil {
		t.Skipf("OCCA Serial device unavailable: %v", err)
	}
	d := Wrap(dev)
	t.Cleanup(dev.Free)
	return d
}

// ============================================================================
// Device memory
// ============================================================================

func TestDevice_MemoryRoundTrip(t *testing.T) {
	d := testDevice(t)
	src := []float64{1, 2, 3, 4}

	a, err := d.Malloc(32)
	require.NoError(t, err)
	defer a.Free()
	b, err := d.Malloc(32)
	require.NoError(t, err)
	defer b.Free()

	a.CopyFrom(unsafe.Pointer(&src[0]), 32)
	require.NoError(t, d.CopyBuffer(b, a, 32))
	d.Finish()

	dst := make([]float64, 4)
	b.CopyTo(unsafe.Pointer(&dst[0]), 32)
	assert.Equal(t, src, dst)
}

func TestDevice_VectorMirror(t *testing.T) {
	d := testDevice(t)
	v, err := vector.NewFromSlice(d, []float64{5, 6, 7})
	require.NoError(t, err)

	require.NoError(t, v.SyncArray(types.MemDevice))
	require.NoError(t, v.SetValue(0))
	require.NoError(t, v.SyncArray(types.MemDevice))
	vals, err := v.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, vals)
	assert.Equal(t, 2, v.Stats().HostToDevice)
	assert.Equal(t, 1, v.Stats().DeviceToHost)
	require.NoError(t, v.Destroy())
}

// ============================================================================
// Kernels
// ============================================================================

func TestDevice_CompileError(t *testing.T) {
	d := testDevice(t)
	kb := builder.NewBuilder(builder.Config{})
	_, err := kb.Build(d, "@kernel void broken(const int_t N {", "broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrCompile)
}

func TestQFunctionImpl_Scale(t *testing.T) {
	d := testDevice(t)
	qf, err := qfunction.NewScale(2)
	require.NoError(t, err)
	ctx, err := qfunction.ScaleContext(d, 3)
	require.NoError(t, err)
	require.NoError(t, qf.SetContext(ctx))
	require.NoError(t, qf.SetImpl(NewQFunctionImpl(d, builder.Config{TileSize: 4})))
	defer qf.Destroy()

	const Q = 5
	in := []float64{1, 2, 3, 4, 5, -1, -2, -3, -4, -5}
	out := make([]float64, 2*Q)
	require.NoError(t, qf.Apply(Q, [][]float64{in}, [][]float64{out}))
	for i := range in {
		assert.InDelta(t, 3*in[i], out[i], 1e-14)
	}
	assert.Equal(t, 0, ctx.Stats().DeviceToHost)
}

func TestQFunctionImpl_MatchesHost(t *testing.T) {
	d := testDevice(t)
	host, err := qfunction.NewMassApply()
	require.NoError(t, err)
	dev, err := qfunction.NewMassApply()
	require.NoError(t, err)
	require.NoError(t, dev.SetImpl(NewQFunctionImpl(d, builder.Config{})))
	defer dev.Destroy()

	u := []float64{1, 2, 3, 4}
	qdata := []float64{0.5, 0.25, 2, 1}
	want, got := make([]float64, 4), make([]float64, 4)
	require.NoError(t, host.Apply(4, [][]float64{u, qdata}, [][]float64{want}))
	require.NoError(t, dev.Apply(4, [][]float64{u, qdata}, [][]float64{got}))
	assert.Equal(t, want, got)

	// a larger Q reallocates the field buffers
	u8 := append(u, u...)
	q8 := append(qdata, qdata...)
	got8 := make([]float64, 8)
	require.NoError(t, dev.Apply(8, [][]float64{u8, q8}, [][]float64{got8}))
	assert.Equal(t, append(want, want...), got8)
}

func TestQFunctionImpl_PreferredDevice(t *testing.T) {
	occaDev, err := utils.CreateTestDevice()
	if err != nil {
		t.Skipf("no OCCA device: %v", err)
	}
	d := Wrap(occaDev)
	t.Cleanup(occaDev.Free)
	t.Logf("running on %s", d.Mode())

	qf, err := qfunction.NewPoisson1DApply()
	require.NoError(t, err)
	require.NoError(t, qf.SetImpl(NewQFunctionImpl(d, builder.Config{TileSize: 8})))
	defer qf.Destroy()

	const Q = 20
	du, qdata := make([]float64, Q), make([]float64, Q)
	for i := range du {
		du[i] = float64(i)
		qdata[i] = 0.5
	}
	dv := make([]float64, Q)
	require.NoError(t, qf.Apply(Q, [][]float64{du, qdata}, [][]float64{dv}))
	for i := range dv {
		assert.InDelta(t, 0.5*float64(i), dv[i], 1e-14)
	}
}

// ============================================================================
// Session
// ============================================================================

func TestSession_MassOperator(t *testing.T) {
	if _, err := utils.CreateSerialDevice(); err != nil {
		t.Skipf("OCCA Serial device unavailable: %v", err)
	}
	cfg := config.Default()
	cfg.OCCA.Props = `{"mode": "Serial"}`
	c, err := ceed.Init("/cpu/occa", cfg)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "Serial", c.Device.Mode())

	const nelem, P, Q = 4, 2, 3
	nnodes := nelem + 1
	offsets := make([]int, 0, nelem*P)
	x := make([]float64, nnodes)
	for e := 0; e < nelem; e++ {
		offsets = append(offsets, e, e+1)
	}
	for i := range x {
		x[i] = float64(i) / nelem
	}
	ru, err := restriction.NewOffsets(nelem, P, 1, nnodes, types.CopyValues, offsets)
	require.NoError(t, err)
	rq, err := restriction.NewIdentity(nelem, Q, 1)
	require.NoError(t, err)
	b, err := basis.NewTensorH1Lagrange(1, 1, P, Q, basis.QuadGauss)
	require.NoError(t, err)

	coords, err := c.NewVectorFromSlice(x)
	require.NoError(t, err)
	qdata, err := c.NewVector(nelem * Q)
	require.NoError(t, err)

	qfBuild, err := c.NewQFunctionByName("Mass1DBuild")
	require.NoError(t, err)
	build, err := c.NewOperator(qfBuild)
	require.NoError(t, err)
	require.NoError(t, build.SetField("dx", ru, types.NonInterlaced, b, coords))
	require.NoError(t, build.SetField("weights", nil, types.NonInterlaced, b, vector.None))
	require.NoError(t, build.SetField("qdata", rq, types.NonInterlaced, basis.Collocated, qdata))
	require.NoError(t, build.Apply(nil, nil, nil))

	qfApply, err := c.NewQFunctionByName("MassApply")
	require.NoError(t, err)
	apply, err := c.NewOperator(qfApply)
	require.NoError(t, err)
	require.NoError(t, apply.SetField("u", ru, types.NonInterlaced, b, vector.Active))
	require.NoError(t, apply.SetField("qdata", rq, types.NonInterlaced, basis.Collocated, qdata))
	require.NoError(t, apply.SetField("v", ru, types.NonInterlaced, b, vector.Active))

	u, err := c.NewVector(nnodes)
	require.NoError(t, err)
	require.NoError(t, u.SetValue(1))
	v, err := c.NewVector(nnodes)
	require.NoError(t, err)
	require.NoError(t, apply.Apply(u, v, nil))

	vals, err := v.Values()
	require.NoError(t, err)
	sum := 0.0
	for _, val := range vals {
		sum += val
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	for _, obj := range []interface{ Destroy() error }{build, apply, qfBuild, qfApply, coords, qdata, u, v} {
		require.NoError(t, obj.Destroy())
	}
}
