package timelapse

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// CollectMeshes triangulates the root component's bodies followed by the
// bodies of every occurrence, in host order.
func CollectMeshes(design Design, quality MeshQuality) ([]Mesh, error) {
	root := design.RootComponent()
	if root == nil {
		return nil, fmt.Errorf("design has no root component")
	}

	bodies := append([]Body(nil), root.Bodies()...)
	for _, occ := range root.AllOccurrences() {
		bodies = append(bodies, occ.Bodies()...)
	}

	meshes := make([]Mesh, 0, len(bodies))
	for _, body := range bodies {
		mesh, err := body.Mesh(quality)
		if err != nil {
			return nil, fmt.Errorf("mesh %s: %w", body.Name(), err)
		}
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

// WriteOBJ serialises meshes as one Wavefront OBJ document: every position,
// then every normal, then the faces. Face indices are 1-based and offset by
// the vertex count of the meshes before them; normals share vertex indices.
func WriteOBJ(w io.Writer, meshes []Mesh) error {
	bw := bufio.NewWriter(w)

	vertices, triangles := 0, 0
	for _, m := range meshes {
		vertices += len(m.Vertices)
		triangles += m.TriangleCount()
	}

	fmt.Fprintf(bw, "# WaveFront *.obj file\n")
	fmt.Fprintf(bw, "# Vertices: %d\n", vertices)
	fmt.Fprintf(bw, "# Triangles : %d\n\n", triangles)

	for _, m := range meshes {
		for _, v := range m.Vertices {
			fmt.Fprintf(bw, "v %v %v %v\n", v.X, v.Y, v.Z)
		}
	}
	for _, m := range meshes {
		for _, n := range m.Normals {
			fmt.Fprintf(bw, "vn %v %v %v\n", n.X, n.Y, n.Z)
		}
	}

	offset := 0
	for _, m := range meshes {
		for t := 0; t < m.TriangleCount(); t++ {
			i0 := m.Indices[t*3] + 1 + offset
			i1 := m.Indices[t*3+1] + 1 + offset
			i2 := m.Indices[t*3+2] + 1 + offset
			fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n", i0, i0, i1, i1, i2, i2)
		}
		offset += len(m.Vertices)
	}

	fmt.Fprintf(bw, "\n# End of file")
	return bw.Flush()
}

// ExportOBJ lets the host settle, triangulates the design and writes it to
// path.
func ExportOBJ(host Host, path string, quality MeshQuality) (err error) {
	host.DoEvents()

	meshes, err := CollectMeshes(host.Design(), quality)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	return WriteOBJ(file, meshes)
}
