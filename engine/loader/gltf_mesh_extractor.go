package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

// defaultBaseColor is the glTF base color of primitives without a material factor.
var defaultBaseColor = [3]float32{1, 1, 1}

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
}

// gltfMeshExtractor converts parsed glTF meshes into scene geometry.
type gltfMeshExtractor interface {
	// ExtractMesh extracts every primitive of one mesh with world baked into
	// the vertex data.
	//
	// Parameters:
	//   - meshIndex: the index of the mesh to extract
	//   - world: column-major transform applied to positions and normals
	//
	// Returns:
	//   - []Mesh: one Mesh per primitive
	//   - error: error if extraction fails
	ExtractMesh(meshIndex int, world [16]float32) ([]Mesh, error)

	// ExtractScene walks the node hierarchy of the default scene and extracts
	// every mesh it reaches. Documents without nodes extract all meshes untransformed.
	//
	// Returns:
	//   - []Mesh: all meshes, one per primitive, in traversal order
	//   - error: error if extraction fails
	ExtractScene() ([]Mesh, error)

	// ExtractMaterials returns one scene material per glTF material, in document order.
	ExtractMaterials() []scene.Material
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser}
}

func (e *gltfMeshExtractorImpl) ExtractMesh(meshIndex int, world [16]float32) ([]Mesh, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIndex)
	}

	mesh := &doc.Meshes[meshIndex]
	result := make([]Mesh, 0, len(mesh.Primitives))
	for primIdx := range mesh.Primitives {
		m, err := e.extractPrimitive(&mesh.Primitives[primIdx], world)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", meshIndex, primIdx, err)
		}
		m.Name = mesh.Name
		if len(mesh.Primitives) > 1 {
			m.Name = fmt.Sprintf("%s.%d", mesh.Name, primIdx)
		}
		result = append(result, m)
	}
	return result, nil
}

func (e *gltfMeshExtractorImpl) ExtractScene() ([]Mesh, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	identity := common.IdentityMatrix()
	if len(doc.Nodes) == 0 {
		var all []Mesh
		for i := range doc.Meshes {
			meshes, err := e.ExtractMesh(i, identity)
			if err != nil {
				return nil, err
			}
			all = append(all, meshes...)
		}
		return all, nil
	}

	var roots []int
	switch {
	case doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes):
		roots = doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		roots = doc.Scenes[0].Nodes
	default:
		roots = rootNodes(doc.Nodes)
	}

	var all []Mesh
	visited := make(map[int]bool, len(doc.Nodes))
	var walk func(nodeIndex int, parent [16]float32) error
	walk = func(nodeIndex int, parent [16]float32) error {
		if nodeIndex < 0 || nodeIndex >= len(doc.Nodes) {
			return fmt.Errorf("node index %d out of range", nodeIndex)
		}
		if visited[nodeIndex] {
			return fmt.Errorf("node %d appears twice in the hierarchy", nodeIndex)
		}
		visited[nodeIndex] = true

		node := &doc.Nodes[nodeIndex]
		local := nodeMatrix(node)
		var world [16]float32
		common.Mul4(world[:], parent[:], local[:])

		if node.Mesh != nil {
			meshes, err := e.ExtractMesh(*node.Mesh, world)
			if err != nil {
				return fmt.Errorf("node %d: %w", nodeIndex, err)
			}
			all = append(all, meshes...)
		}
		for _, child := range node.Children {
			if err := walk(child, world); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := walk(root, identity); err != nil {
			return nil, err
		}
	}
	return all, nil
}

func (e *gltfMeshExtractorImpl) ExtractMaterials() []scene.Material {
	doc := e.parser.Document()
	if doc == nil {
		return nil
	}

	materials := make([]scene.Material, len(doc.Materials))
	for i, m := range doc.Materials {
		materials[i].Diffuse = defaultBaseColor
		if pbr := m.PbrMetallicRoughness; pbr != nil && pbr.BaseColorFactor != nil {
			f := pbr.BaseColorFactor
			materials[i].Diffuse = [3]float32{f[0], f[1], f[2]}
		}
	}
	return materials
}

func (e *gltfMeshExtractorImpl) extractPrimitive(prim *gltfPrimitive, world [16]float32) (Mesh, error) {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return Mesh{}, fmt.Errorf("unsupported primitive mode: %d (only triangles supported)", *prim.Mode)
	}

	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return Mesh{}, fmt.Errorf("primitive has no POSITION attribute")
	}
	positions, err := e.parser.ReadVec3Accessor(posAccessor)
	if err != nil {
		return Mesh{}, fmt.Errorf("failed to read positions: %w", err)
	}
	vertexCount := len(positions)

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = e.parser.ReadIndicesAccessor(*prim.Indices); err != nil {
			return Mesh{}, fmt.Errorf("failed to read indices: %w", err)
		}
		for _, idx := range indices {
			if int(idx) >= vertexCount {
				return Mesh{}, fmt.Errorf("index %d out of range (%d vertices)", idx, vertexCount)
			}
		}
	} else {
		indices = make([]uint32, vertexCount)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	indices = indices[:len(indices)-len(indices)%3]

	var normals [][3]float32
	if normalAccessor, ok := prim.Attributes["NORMAL"]; ok {
		if normals, err = e.parser.ReadVec3Accessor(normalAccessor); err != nil {
			return Mesh{}, fmt.Errorf("failed to read normals: %w", err)
		}
		if len(normals) != vertexCount {
			return Mesh{}, fmt.Errorf("%d normals for %d positions", len(normals), vertexCount)
		}
	} else {
		normals = generateNormals(positions, indices)
	}

	// Normals go through the inverse transpose so non-uniform scale keeps them perpendicular.
	var inverse [16]float32
	if !common.Invert4(inverse[:], world[:]) {
		return Mesh{}, fmt.Errorf("node transform is singular")
	}

	vertices := make([]float32, 0, vertexCount*scene.VertexStride)
	for i, p := range positions {
		wp := common.TransformDirection(world[:], p)
		t := common.Translation(world[:])
		n, _ := common.Normalize3(transposeTransform(inverse[:], normals[i]))
		vertices = append(vertices, wp[0]+t[0], wp[1]+t[1], wp[2]+t[2], n[0], n[1], n[2])
	}

	// Mirroring transforms flip the winding order.
	if determinant3(world[:]) < 0 {
		for i := 0; i+2 < len(indices); i += 3 {
			indices[i+1], indices[i+2] = indices[i+2], indices[i+1]
		}
	}

	material := -1
	if prim.Material != nil {
		material = *prim.Material
	}
	return Mesh{
		Geometry: scene.Geometry{Vertices: vertices, Indices: indices},
		Material: material,
	}, nil
}

// rootNodes returns the nodes no other node lists as a child.
func rootNodes(nodes []gltfNode) []int {
	child := make([]bool, len(nodes))
	for _, n := range nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(nodes) {
				child[c] = true
			}
		}
	}
	var roots []int
	for i, isChild := range child {
		if !isChild {
			roots = append(roots, i)
		}
	}
	return roots
}

func nodeMatrix(node *gltfNode) [16]float32 {
	if node.Matrix != nil {
		return *node.Matrix
	}

	translation := [3]float32{}
	rotation := [4]float32{0, 0, 0, 1}
	scale := [3]float32{1, 1, 1}
	if node.Translation != nil {
		translation = *node.Translation
	}
	if node.Rotation != nil {
		rotation = *node.Rotation
	}
	if node.Scale != nil {
		scale = *node.Scale
	}

	var m [16]float32
	common.ComposeMatrix(m[:], translation, rotation, scale)
	return m
}

// transposeTransform applies the transpose of the upper 3x3 of column-major m to v.
func transposeTransform(m []float32, v [3]float32) [3]float32 {
	return [3]float32{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2],
	}
}

func determinant3(m []float32) float32 {
	return m[0]*(m[5]*m[10]-m[9]*m[6]) -
		m[4]*(m[1]*m[10]-m[9]*m[2]) +
		m[8]*(m[1]*m[6]-m[5]*m[2])
}

// generateNormals computes smooth per-vertex normals by accumulating
// area-weighted face normals over the triangle list.
func generateNormals(positions [][3]float32, indices []uint32) [][3]float32 {
	n := len(positions)
	accum := make([][3]float32, n)

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= n || int(i1) >= n || int(i2) >= n {
			continue
		}

		p0, p1, p2 := positions[i0], positions[i1], positions[i2]
		edge1 := [3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
		edge2 := [3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}
		face := [3]float32{
			edge1[1]*edge2[2] - edge1[2]*edge2[1],
			edge1[2]*edge2[0] - edge1[0]*edge2[2],
			edge1[0]*edge2[1] - edge1[1]*edge2[0],
		}

		for _, idx := range []uint32{i0, i1, i2} {
			accum[idx][0] += face[0]
			accum[idx][1] += face[1]
			accum[idx][2] += face[2]
		}
	}

	for i := range accum {
		if normal, ok := common.Normalize3(accum[i]); ok {
			accum[i] = normal
		} else {
			// Degenerate or unreferenced vertex.
			accum[i] = [3]float32{0, 1, 0}
		}
	}
	return accum
}
