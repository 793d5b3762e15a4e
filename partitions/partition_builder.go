package partitions

import (
	"fmt"
	"math"
	"strings"
)

// PartitionBuilder splits an element range into partitions
type PartitionBuilder struct {
	NumElements int

	// Partitioning parameters; NumPartitions wins when both are set
	NumPartitions       int
	TargetPartitionSize int // Desired elements per partition
	Strategy            PartitionStrategy
}

// PartitionStrategy defines how elements are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive elements
	RoundRobin                              // Distribute cyclically
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "roundrobin"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// ParsePartitionStrategy accepts the names printed by String
func ParsePartitionStrategy(s string) (PartitionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return BlockPartition, nil
	case "roundrobin", "round-robin", "round_robin":
		return RoundRobin, nil
	}
	return 0, fmt.Errorf("unknown partition strategy %q", s)
}

// Build partitions numElements elements into at most numPartitions parts
func Build(numElements, numPartitions int, strategy PartitionStrategy) (*PartitionLayout, error) {
	pb := &PartitionBuilder{
		NumElements:   numElements,
		NumPartitions: numPartitions,
		Strategy:      strategy,
	}
	return pb.BuildPartitions()
}

// BuildPartitions creates a partition layout
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumElements < 0 {
		return nil, fmt.Errorf("negative element count %d", pb.NumElements)
	}
	numPartitions := pb.calculateNumPartitions()

	eToP, err := pb.partitionElements(numPartitions)
	if err != nil {
		return nil, err
	}
	partitions := pb.createPartitions(eToP, numPartitions)
	kpartMax := calculateKpartMax(partitions)
	for i := range partitions {
		partitions[i].MaxElements = kpartMax
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalElements: pb.NumElements,
		NumPartitions: numPartitions,
		EToP:          eToP,
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

// calculateNumPartitions determines the partition count; there is never an
// empty partition unless there are no elements at all
func (pb *PartitionBuilder) calculateNumPartitions() int {
	numPartitions := pb.NumPartitions
	if numPartitions < 1 && pb.TargetPartitionSize > 0 {
		numPartitions = int(math.Ceil(float64(pb.NumElements) / float64(pb.TargetPartitionSize)))
	}
	if numPartitions > pb.NumElements {
		numPartitions = pb.NumElements
	}
	if numPartitions < 1 {
		numPartitions = 1
	}
	return numPartitions
}

// partitionElements assigns elements to partitions
func (pb *PartitionBuilder) partitionElements(numPartitions int) ([]int, error) {
	eToP := make([]int, pb.NumElements)

	switch pb.Strategy {
	case BlockPartition:
		// Near-equal consecutive blocks: the first NumElements%numPartitions
		// partitions get one extra element
		base, extra := pb.NumElements/numPartitions, pb.NumElements%numPartitions
		elem := 0
		for p := 0; p < numPartitions; p++ {
			size := base
			if p < extra {
				size++
			}
			for i := 0; i < size; i++ {
				eToP[elem] = p
				elem++
			}
		}

	case RoundRobin:
		for i := 0; i < pb.NumElements; i++ {
			eToP[i] = i % numPartitions
		}

	default:
		return nil, fmt.Errorf("unknown partition strategy %v", pb.Strategy)
	}

	return eToP, nil
}

// createPartitions builds partition structures from element assignments
func (pb *PartitionBuilder) createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{
			ID:       i,
			Elements: make([]int, 0),
		}
	}
	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		partitions[part].NumElements++
	}
	return partitions
}

// calculateKpartMax finds maximum elements across all partitions
func calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		if p.NumElements > kpartMax {
			kpartMax = p.NumElements
		}
	}
	return kpartMax
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinElements:   math.MaxInt32,
		MaxElements:   0,
		AvgElements:   float64(pl.TotalElements) / float64(pl.NumPartitions),
	}
	for _, p := range pl.Partitions {
		if p.NumElements < stats.MinElements {
			stats.MinElements = p.NumElements
		}
		if p.NumElements > stats.MaxElements {
			stats.MaxElements = p.NumElements
		}
	}
	if stats.AvgElements > 0 {
		stats.Imbalance = float64(stats.MaxElements) / stats.AvgElements
	}
	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinElements   int
	MaxElements   int
	AvgElements   float64
	Imbalance     float64 // MaxElements / AvgElements
}
