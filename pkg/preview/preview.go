// Package preview renders one slice of a labelled grid as an image so a
// phantom can be checked by eye before it is handed to a transport code.
package preview

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/chazu/phantom/pkg/logging"
	"github.com/chazu/phantom/pkg/volume"
)

// Plane selects the slice orientation.
type Plane int

const (
	PlaneXY Plane = iota // constant z
	PlaneXZ              // constant y
	PlaneYZ              // constant x
)

func (p Plane) String() string {
	switch p {
	case PlaneXY:
		return "xy"
	case PlaneXZ:
		return "xz"
	case PlaneYZ:
		return "yz"
	}
	return fmt.Sprintf("Plane(%d)", int(p))
}

// ParsePlane accepts "xy", "xz" or "yz".
func ParsePlane(s string) (Plane, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "xy", "":
		return PlaneXY, nil
	case "xz":
		return PlaneXZ, nil
	case "yz":
		return PlaneYZ, nil
	}
	return 0, fmt.Errorf("%w: unknown plane %q (want xy, xz or yz)", volume.ErrConfiguration, s)
}

// axes returns the column axis, row axis and slice axis of the plane.
func (p Plane) axes() (col, row, normal int) {
	switch p {
	case PlaneXZ:
		return 0, 2, 1
	case PlaneYZ:
		return 1, 2, 0
	}
	return 0, 1, 2
}

// Options configures a preview.
type Options struct {
	Plane Plane
	// Slice is the voxel index along the plane normal; negative selects the
	// middle slice.
	Slice  int
	Width  vg.Length // zero means 6 inches
	Height vg.Length // zero means 6 inches
}

func (o Options) size() (vg.Length, vg.Length) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = 6 * vg.Inch
	}
	if h <= 0 {
		h = 6 * vg.Inch
	}
	return w, h
}

// slice adapts one plane of a grid to plotter.GridXYZ. Z reports the rank
// of the voxel's label among the labels in the slice, so each label maps to
// exactly one palette colour.
type slice struct {
	g             *volume.Grid
	plane         Plane
	index         int
	labels        []volume.Label
	rank          map[volume.Label]int
	col, row, nrm int
}

func newSlice(g *volume.Grid, plane Plane, index int) (*slice, error) {
	col, row, nrm := plane.axes()
	dims := g.Dimensions()
	if index < 0 {
		index = dims[nrm] / 2
	}
	if index >= dims[nrm] {
		return nil, fmt.Errorf("%w: slice %d out of range for %s plane (0..%d)",
			volume.ErrConfiguration, index, plane, dims[nrm]-1)
	}
	s := &slice{g: g, plane: plane, index: index, rank: make(map[volume.Label]int), col: col, row: row, nrm: nrm}
	for r := 0; r < dims[row]; r++ {
		for c := 0; c < dims[col]; c++ {
			l := s.label(c, r)
			if _, ok := s.rank[l]; !ok {
				s.rank[l] = 0
				s.labels = append(s.labels, l)
			}
		}
	}
	sort.Slice(s.labels, func(i, j int) bool { return s.labels[i] < s.labels[j] })
	for i, l := range s.labels {
		s.rank[l] = i
	}
	return s, nil
}

func (s *slice) index3(c, r int) volume.Index {
	var idx [3]int
	idx[s.col], idx[s.row], idx[s.nrm] = c, r, s.index
	return volume.Index{X: idx[0], Y: idx[1], Z: idx[2]}
}

func (s *slice) label(c, r int) volume.Label {
	l, _ := s.g.Label(s.index3(c, r))
	return l
}

func (s *slice) Dims() (c, r int) {
	d := s.g.Dimensions()
	return d[s.col], d[s.row]
}

func (s *slice) Z(c, r int) float64 { return float64(s.rank[s.label(c, r)]) }

func (s *slice) X(c int) float64 { return s.g.ToPhysical(s.index3(c, 0))[s.col] }

func (s *slice) Y(r int) float64 { return s.g.ToPhysical(s.index3(0, r))[s.row] }

// position is the physical coordinate of the slice along its normal.
func (s *slice) position() float64 { return s.g.ToPhysical(s.index3(0, 0))[s.nrm] }

// swatch draws a filled legend entry.
type swatch struct{ c color.Color }

func (w swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(w.c, pts)
}

// Render builds a heat map plot of one slice with a legend of labels and
// materials.
func Render(g *volume.Grid, opts Options) (*plot.Plot, error) {
	if g == nil || !g.Initialized() {
		return nil, fmt.Errorf("%w: grid not initialized", volume.ErrConfiguration)
	}
	s, err := newSlice(g, opts.Plane, opts.Slice)
	if err != nil {
		return nil, err
	}

	// At least two colours keep the value range non-empty.
	n := len(s.labels)
	if n < 2 {
		n = 2
	}
	pal := palette.Heat(n, 1)
	hm := plotter.NewHeatMap(s, pal)
	hm.Min, hm.Max = 0, float64(n-1)

	axisName := "xyz"
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s slice %d (%c = %g mm)", opts.Plane, s.index, axisName[s.nrm], s.position())
	p.X.Label.Text = fmt.Sprintf("%c (mm)", axisName[s.col])
	p.Y.Label.Text = fmt.Sprintf("%c (mm)", axisName[s.row])
	p.Add(hm)

	colors := pal.Colors()
	for i, l := range s.labels {
		m, _ := g.Table().Material(l)
		p.Legend.Add(fmt.Sprintf("%d %s", l, m), swatch{c: colors[i]})
	}
	p.Legend.Top = true
	return p, nil
}

// Save renders a slice to path. The image format follows the extension
// (.png, .svg, .pdf, ...).
func Save(g *volume.Grid, path string, opts Options) error {
	p, err := Render(g, opts)
	if err != nil {
		return err
	}
	w, h := opts.size()
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("%w: save preview %s: %w", volume.ErrIO, path, err)
	}
	logging.Logger().Info("preview written", "path", path, "plane", opts.Plane.String())
	return nil
}

// WriteTo renders a slice in the given format ("png", "svg", ...) to w.
func WriteTo(g *volume.Grid, w io.Writer, format string, opts Options) error {
	p, err := Render(g, opts)
	if err != nil {
		return err
	}
	width, height := opts.size()
	wt, err := p.WriterTo(width, height, strings.TrimPrefix(format, "."))
	if err != nil {
		return fmt.Errorf("%w: preview format %q: %w", volume.ErrConfiguration, format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("%w: write preview: %w", volume.ErrIO, err)
	}
	return nil
}

// FormatFor returns the WriteTo format for a file name.
func FormatFor(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
