// Package tessellate turns the draws of a phantom plan into surface meshes
// using a geometry kernel. One mesh is produced per draw, placed in grid
// coordinates, so the geometry can be inspected in any mesh viewer.
package tessellate

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/phantom/pkg/kernel"
	"github.com/chazu/phantom/pkg/logging"
	"github.com/chazu/phantom/pkg/plan"
	"github.com/chazu/phantom/pkg/volume"
	"github.com/chazu/phantom/pkg/voxelize"
)

// DefaultCells is the marching cube count along a shape's longest side.
const DefaultCells = 64

// MeshName names the mesh of draw i.
func MeshName(i int, d plan.Draw) string {
	return fmt.Sprintf("%02d_%d_%s", i, d.Label, d.Material)
}

// Tessellate produces one mesh per draw of p, in draw order. The
// tessellator is read-only and never mutates the plan.
func Tessellate(p *plan.Plan, k kernel.Kernel, cells int) ([]*kernel.Mesh, error) {
	if p == nil {
		return nil, nil
	}
	if cells <= 0 {
		cells = DefaultCells
	}

	meshes := make([]*kernel.Mesh, 0, len(p.Draws))
	for i, d := range p.Draws {
		solid, err := voxelize.Solid(k, d.Shape)
		if err != nil {
			return nil, fmt.Errorf("tessellate: draw %d: %w", i, err)
		}
		mesh, err := k.ToMesh(solid, cells)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for draw %d: %w", i, err)
		}
		mesh.Name = MeshName(i, d)
		logging.Logger().Debug("draw tessellated", "draw", i, "triangles", mesh.TriangleCount())
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

// stlTriangle is one record of a binary STL file.
type stlTriangle struct {
	Normal [3]float32
	V      [3][3]float32
	Attr   uint16
}

// WriteSTL encodes m as binary STL.
func WriteSTL(w io.Writer, m *kernel.Mesh) error {
	n := m.TriangleCount()
	if uint64(n) > math.MaxUint32 {
		return fmt.Errorf("%w: mesh %s has too many triangles", volume.ErrConfiguration, m.Name)
	}
	var header [80]byte
	copy(header[:], "phantom "+m.Name)

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(n)); err != nil {
		return err
	}
	for t := 0; t < n; t++ {
		var rec stlTriangle
		for j := 0; j < 3; j++ {
			vi := int(m.Indices[t*3+j])
			copy(rec.V[j][:], m.Vertices[vi*3:vi*3+3])
		}
		first := int(m.Indices[t*3])
		copy(rec.Normal[:], m.Normals[first*3:first*3+3])
		if err := binary.Write(bw, binary.LittleEndian, &rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveSTL writes every mesh to dir as <name>.stl and returns the paths.
func SaveSTL(dir string, meshes []*kernel.Mesh) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", volume.ErrIO, err)
	}
	paths := make([]string, 0, len(meshes))
	for _, m := range meshes {
		path := filepath.Join(dir, fileName(m.Name)+".stl")
		if err := saveOne(path, m); err != nil {
			return paths, fmt.Errorf("%w: %s: %w", volume.ErrIO, path, err)
		}
		paths = append(paths, path)
	}
	logging.Logger().Info("meshes written", "dir", dir, "count", len(paths))
	return paths, nil
}

func saveOne(path string, m *kernel.Mesh) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteSTL(f, m)
}

// fileName replaces path separators so a material name cannot escape dir.
func fileName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, name)
}
