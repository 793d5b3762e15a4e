package partitions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Block(t *testing.T) {
	layout, err := Build(10, 3, BlockPartition)
	require.NoError(t, err)
	assert.Equal(t, 3, layout.NumPartitions)
	assert.Equal(t, 4, layout.KpartMax)
	assert.Equal(t, []int{0, 1, 2, 3}, layout.Partitions[0].Elements)
	assert.Equal(t, []int{4, 5, 6}, layout.Partitions[1].Elements)
	assert.Equal(t, []int{7, 8, 9}, layout.Partitions[2].Elements)
	assert.Equal(t, 1, layout.GetPartition(5))
	assert.Equal(t, -1, layout.GetPartition(10))
}

func TestBuild_RoundRobin(t *testing.T) {
	layout, err := Build(5, 2, RoundRobin)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4}, layout.Partitions[0].Elements)
	assert.Equal(t, []int{1, 3}, layout.Partitions[1].Elements)
	stats := layout.PartitionStatistics()
	assert.Equal(t, 2, stats.MinElements)
	assert.Equal(t, 3, stats.MaxElements)
	assert.InDelta(t, 1.2, stats.Imbalance, 1.e-14)
}

func TestBuild_EdgeCases(t *testing.T) {
	testCases := []struct {
		name          string
		elements      int
		parts         int
		expectedParts int
	}{
		{"more_parts_than_elements", 3, 8, 3},
		{"zero_parts", 4, 0, 1},
		{"no_elements", 0, 4, 1},
		{"one_each", 4, 4, 4},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for _, s := range []PartitionStrategy{BlockPartition, RoundRobin} {
				layout, err := Build(tc.elements, tc.parts, s)
				require.NoError(t, err)
				assert.Equal(t, tc.expectedParts, layout.NumPartitions)
				assert.NoError(t, layout.ValidateLayout())
			}
		})
	}

	_, err := Build(-1, 1, BlockPartition)
	assert.Error(t, err)
	_, err = Build(4, 2, PartitionStrategy(9))
	assert.Error(t, err)
}

func TestBuilder_TargetSize(t *testing.T) {
	pb := &PartitionBuilder{NumElements: 100, TargetPartitionSize: 30}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, 4, layout.NumPartitions)
	assert.Equal(t, 25, layout.KpartMax)
}

func TestValidateLayout_DetectsCorruption(t *testing.T) {
	layout, err := Build(4, 2, BlockPartition)
	require.NoError(t, err)
	layout.Partitions[1].Elements[0] = 0
	assert.Error(t, layout.ValidateLayout())
}

func TestPartitionedArray(t *testing.T) {
	layout, err := Build(6, 3, BlockPartition)
	require.NoError(t, err)
	pa := layout.AllocatePartitionedArray(5)
	assert.Len(t, pa.GlobalData, 15)
	for p := 0; p < 3; p++ {
		data := pa.GetPartitionData(p)
		assert.Len(t, data, 5)
		data[0] = float64(p + 1)
	}
	assert.Equal(t, 2., pa.GlobalData[5])
	assert.Nil(t, pa.GetPartitionData(3))

	// appending must never spill into the next partition
	d0 := pa.GetPartitionData(0)
	_ = append(d0, 99)
	assert.Equal(t, 2., pa.GlobalData[5])
}

func TestParsePartitionStrategy(t *testing.T) {
	for in, want := range map[string]PartitionStrategy{
		"block": BlockPartition, "": BlockPartition, "RoundRobin": RoundRobin, "round-robin": RoundRobin,
	} {
		got, err := ParsePartitionStrategy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePartitionStrategy("metis")
	assert.Error(t, err)
}
