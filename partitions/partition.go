package partitions

import (
	"fmt"
)

// Partition is a set of elements processed together by one worker
type Partition struct {
	// Unique identifier for this partition
	ID int

	// Element membership
	Elements    []int // Global element indices in this partition
	NumElements int   // Actual number of elements
	MaxElements int   // Largest partition size, shared by all partitions
}

// PartitionLayout is the complete decomposition of an element range
type PartitionLayout struct {
	// All partitions
	Partitions []Partition

	// Global sizing information
	KpartMax      int // max(NumElements) across all partitions
	TotalElements int // Sum of all elements across partitions
	NumPartitions int // Total number of partitions

	// Element to partition mapping
	EToP []int // Length TotalElements: element k belongs to partition EToP[k]
}

// PartitionedArray is scratch storage split into one contiguous slice per
// partition, so concurrent workers never share a buffer
type PartitionedArray struct {
	// Layout: [Partition 0 Data][Partition 1 Data]...[Partition N-1 Data]
	GlobalData []float64

	// Partition p's data is GlobalData[Offsets[p]:Offsets[p+1]]
	Offsets []int

	// Values per partition
	Stride int
}

// GetPartition returns the partition containing element k
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// ValidateLayout checks partition consistency: KpartMax is the real maximum
// and every element belongs to exactly one partition
func (pl *PartitionLayout) ValidateLayout() error {
	actualMax := 0
	seen := make([]bool, pl.TotalElements)
	for _, p := range pl.Partitions {
		if p.NumElements != len(p.Elements) {
			return fmt.Errorf("partition %d: NumElements %d != %d listed elements",
				p.ID, p.NumElements, len(p.Elements))
		}
		if p.NumElements > actualMax {
			actualMax = p.NumElements
		}
		if p.MaxElements != pl.KpartMax {
			return fmt.Errorf("partition %d: MaxElements %d != KpartMax %d",
				p.ID, p.MaxElements, pl.KpartMax)
		}
		for _, e := range p.Elements {
			if e < 0 || e >= pl.TotalElements {
				return fmt.Errorf("partition %d: element %d out of range", p.ID, e)
			}
			if seen[e] {
				return fmt.Errorf("partition %d: element %d assigned twice", p.ID, e)
			}
			if pl.EToP[e] != p.ID {
				return fmt.Errorf("element %d: EToP says %d, found in partition %d", e, pl.EToP[e], p.ID)
			}
			seen[e] = true
		}
	}
	for e, ok := range seen {
		if !ok {
			return fmt.Errorf("element %d is not in any partition", e)
		}
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	return nil
}

// AllocatePartitionedArray creates stride values of storage per partition
func (pl *PartitionLayout) AllocatePartitionedArray(stride int) *PartitionedArray {
	offsets := make([]int, pl.NumPartitions+1)
	for i := 0; i < pl.NumPartitions; i++ {
		offsets[i+1] = offsets[i] + stride
	}
	return &PartitionedArray{
		GlobalData: make([]float64, offsets[pl.NumPartitions]),
		Offsets:    offsets,
		Stride:     stride,
	}
}

// GetPartitionData returns a slice for partition p's data
func (pa *PartitionedArray) GetPartitionData(partitionID int) []float64 {
	if partitionID < 0 || partitionID >= len(pa.Offsets)-1 {
		return nil
	}
	start := pa.Offsets[partitionID]
	end := pa.Offsets[partitionID+1]
	return pa.GlobalData[start:end:end]
}
