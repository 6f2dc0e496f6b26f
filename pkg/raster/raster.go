// Package raster converts solids into voxel writes on a volume.Grid.
//
// The scan is limited to the voxels whose centres fall inside the solid's
// bounding box. Every voxel centre the solid contains is overwritten with
// the label, so a shape drawn later wins wherever it overlaps an earlier one.
// Within one solid the z-slabs of the box are scanned in parallel; calls
// for different solids must not overlap in time.
package raster

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/phantom/pkg/logging"
	"github.com/chazu/phantom/pkg/volume"
)

// Solid is the capability the rasterizer needs from a shape.
type Solid interface {
	BoundingBox() (min, max [3]float64)
	Contains(p [3]float64) bool
}

// Options tunes a scan.
type Options struct {
	// Workers bounds the number of z-slabs scanned concurrently.
	// Zero or less uses GOMAXPROCS.
	Workers int
}

// Bounds returns the inclusive index range the scan of s will visit.
// ok is false when no voxel centre lies inside the bounding box.
func Bounds(g *volume.Grid, s Solid) (lo, hi volume.Index, ok bool) {
	min, max := s.BoundingBox()
	return g.IndexRange(min, max)
}

// Rasterize writes label into every voxel of g whose centre s contains and
// returns the number of voxels written.
func Rasterize(g *volume.Grid, s Solid, label volume.Label) (int, error) {
	return RasterizeWith(g, s, label, Options{})
}

// RasterizeWith is Rasterize with explicit options.
func RasterizeWith(g *volume.Grid, s Solid, label volume.Label, opts Options) (int, error) {
	lo, hi, ok := Bounds(g, s)
	if !ok {
		logging.Logger().Debug("solid outside grid", "label", label)
		return 0, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var written atomic.Int64
	scanSlab := func(z int) error {
		n := 0
		for y := lo.Y; y <= hi.Y; y++ {
			for x := lo.X; x <= hi.X; x++ {
				idx := volume.Index{X: x, Y: y, Z: z}
				if !s.Contains(g.ToPhysical(idx)) {
					continue
				}
				if err := g.SetLabel(idx, label); err != nil {
					return err
				}
				n++
			}
		}
		written.Add(int64(n))
		return nil
	}

	slabs := hi.Z - lo.Z + 1
	if workers == 1 || slabs == 1 {
		for z := lo.Z; z <= hi.Z; z++ {
			if err := scanSlab(z); err != nil {
				return int(written.Load()), err
			}
		}
	} else {
		var eg errgroup.Group
		eg.SetLimit(workers)
		for z := lo.Z; z <= hi.Z; z++ {
			eg.Go(func() error { return scanSlab(z) })
		}
		if err := eg.Wait(); err != nil {
			return int(written.Load()), err
		}
	}

	n := int(written.Load())
	scanned := (hi.X - lo.X + 1) * (hi.Y - lo.Y + 1) * slabs
	logging.Logger().Debug("rasterized solid",
		"label", label, "voxels", n, "scanned", scanned,
		"lo", lo, "hi", hi, "workers", workers)
	return n, nil
}
