package vector

import (
	"testing"

	"github.com/notargets/MatFree/mirror"
	"github.com/notargets/MatFree/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_HostRoundTrip(t *testing.T) {
	v, err := NewFromSlice(nil, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, v.Length())

	arr, err := v.GetArray()
	require.NoError(t, err)
	arr[1] = 20
	require.NoError(t, v.RestoreArray())

	vals, err := v.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 20, 3}, vals)
	assert.Equal(t, 0, v.Outstanding())
	require.NoError(t, v.Destroy())
}

func TestVector_DeviceResidency(t *testing.T) {
	dev := mirror.NewMockDevice()
	v, err := New(dev, 4)
	require.NoError(t, err)
	require.NoError(t, v.SetValue(2))

	buf, err := v.GetDeviceArray()
	require.NoError(t, err)
	for i := range buf.(*mirror.MockBuffer).Float64s() {
		buf.(*mirror.MockBuffer).Float64s()[i] *= 3
	}
	require.NoError(t, v.RestoreArray())

	vals, err := v.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 6, 6, 6}, vals)
	assert.Equal(t, 1, v.Stats().HostToDevice)
	assert.Equal(t, 1, v.Stats().DeviceToHost)
}

func TestVector_Sentinels(t *testing.T) {
	for _, s := range []*Vector{Active, None} {
		t.Run(s.String(), func(t *testing.T) {
			assert.True(t, s.IsSentinel())
			_, err := s.GetArray()
			assert.ErrorIs(t, err, types.ErrConfiguration)
			assert.ErrorIs(t, s.SetValue(1), types.ErrConfiguration)
			assert.Equal(t, 0, s.Length())
			assert.NoError(t, s.Destroy())
		})
	}
}

func TestContext_Protocol(t *testing.T) {
	dev := mirror.NewMockDevice()
	c, err := NewContext(dev, 8)
	require.NoError(t, err)

	_, err = c.GetData()
	assert.ErrorIs(t, err, types.ErrNoData)

	require.NoError(t, c.SetData(types.CopyValues, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	buf, err := c.GetDeviceData()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf.(*mirror.MockBuffer).Bytes())
	require.NoError(t, c.RestoreData())

	_, err = c.GetDeviceData()
	require.NoError(t, err)
	require.NoError(t, c.RestoreData())
	assert.Equal(t, 1, c.Stats().HostToDevice)

	require.NoError(t, c.Destroy())
	assert.Equal(t, int64(0), dev.Counters().LiveBytes)
}
