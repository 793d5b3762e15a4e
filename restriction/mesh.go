package restriction

import (
	"fmt"

	"github.com/notargets/MatFree/types"
	"github.com/notargets/gocfd/DG3D/mesh/readers"
)

// FromConnectivity builds a vertex restriction from an element-to-vertex
// table. Every element must have the same number of vertices.
func FromConnectivity(etov [][]int, nverts, ncomp int) (*ElemRestriction, error) {
	if len(etov) == 0 {
		return nil, fmt.Errorf("%w: empty connectivity", types.ErrConfiguration)
	}
	elemsize := len(etov[0])
	offsets := make([]int, 0, len(etov)*elemsize)
	for k, verts := range etov {
		if len(verts) != elemsize {
			return nil, fmt.Errorf("%w: element %d has %d vertices, expected %d",
				types.ErrConfiguration, k, len(verts), elemsize)
		}
		offsets = append(offsets, verts...)
	}
	return NewOffsets(len(etov), elemsize, ncomp, nverts, types.OwnPointer, offsets)
}

// FromMeshFile reads a mesh file and returns the restriction of its vertex
// field together with the vertex coordinates
func FromMeshFile(meshfile string, ncomp int) (*ElemRestriction, [][]float64, error) {
	msh, err := readers.ReadMeshFile(meshfile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read mesh %s: %w", meshfile, err)
	}
	verts := make([][]float64, len(msh.Vertices))
	for i, v := range msh.Vertices {
		verts[i] = []float64{v[0], v[1], v[2]}
	}
	r, err := FromConnectivity(msh.EtoV, len(msh.Vertices), ncomp)
	if err != nil {
		return nil, nil, fmt.Errorf("mesh %s: %w", meshfile, err)
	}
	return r, verts, nil
}
