// Package config loads phantom descriptions from JSON. A JSON file carries
// the same information as a phantom script and produces the same plan.Plan.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/phantom/pkg/plan"
	"github.com/chazu/phantom/pkg/units"
	"github.com/chazu/phantom/pkg/volume"
)

// MaxFileSize bounds the size of a phantom JSON file.
const MaxFileSize = 1 * 1024 * 1024 // 1MB

// File is the JSON document root.
type File struct {
	Volume VolumeConfig `json:"volume"`
	Draws  []DrawConfig `json:"draws"`
}

// VolumeConfig mirrors volume-creator. Lengths are in Unit (default mm).
type VolumeConfig struct {
	Dimensions  [3]int      `json:"dimensions"`
	ElementSize [3]float64  `json:"element_size"`
	Unit        string      `json:"unit,omitempty"`
	Offset      *[3]float64 `json:"offset,omitempty"`
	Material    string      `json:"material"`
	DataType    string      `json:"data_type,omitempty"`
	Output      string      `json:"output,omitempty"`
	RangeOutput string      `json:"range_output,omitempty"`
}

// DrawConfig paints one shape.
type DrawConfig struct {
	Shape    ShapeConfig `json:"shape"`
	Label    uint32      `json:"label"`
	Material string      `json:"material"`
}

// ShapeConfig is a tagged union over every shape kind. Type selects the
// variant: "tube", "box", "sphere", "csg-union", "csg-difference",
// "csg-intersection" or "place". Fields that do not belong to the variant
// must be absent.
type ShapeConfig struct {
	Type string `json:"type"`

	// Primitives.
	Height   *float64    `json:"height,omitempty"`
	Radius   *float64    `json:"radius,omitempty"`
	Axis     string      `json:"axis,omitempty"`
	Size     *[3]float64 `json:"size,omitempty"`
	Position *[3]float64 `json:"position,omitempty"`
	Rotation *[3]float64 `json:"rotation,omitempty"`

	// Composites.
	Children []ShapeConfig `json:"children,omitempty"`

	// Placement.
	Child  *ShapeConfig `json:"child,omitempty"`
	At     *[3]float64  `json:"at,omitempty"`
	Rotate *[3]float64  `json:"rotate,omitempty"`

	Unit      string `json:"unit,omitempty"`
	AngleUnit string `json:"angle_unit,omitempty"`
}

// Load reads a phantom description from a .json file.
func Load(path string) (*plan.Plan, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("%w: phantom file must have .json extension, got %q", volume.ErrConfiguration, ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat phantom file: %w", volume.ErrIO, err)
	}
	if fileInfo.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: phantom file too large: %d bytes (max %d)",
			volume.ErrConfiguration, fileInfo.Size(), MaxFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open phantom file: %w", volume.ErrIO, err)
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cleanPath, err)
	}
	return p, nil
}

// Parse decodes a JSON phantom description and converts it to a plan.
// Unknown fields are rejected.
func Parse(r io.Reader) (*plan.Plan, error) {
	dec := json.NewDecoder(io.LimitReader(r, MaxFileSize+1))
	dec.DisallowUnknownFields()

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: failed to parse phantom JSON: %w", volume.ErrConfiguration, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after phantom JSON object", volume.ErrConfiguration)
	}
	return f.Plan()
}

// Plan converts the document to a plan, resolving all units to mm and
// degrees. Structural problems such as a negative radius are left to
// plan.Validate.
func (f *File) Plan() (*plan.Plan, error) {
	v, err := f.Volume.volume()
	if err != nil {
		return nil, fmt.Errorf("%w: volume: %w", volume.ErrConfiguration, err)
	}
	p := &plan.Plan{Volume: v}
	for i, d := range f.Draws {
		s, err := d.Shape.shape()
		if err != nil {
			return nil, fmt.Errorf("%w: draw %d: %w", volume.ErrConfiguration, i, err)
		}
		p.Draws = append(p.Draws, plan.Draw{Shape: s, Label: d.Label, Material: d.Material})
	}
	return p, nil
}

func (c VolumeConfig) volume() (plan.Volume, error) {
	v := plan.Volume{
		Dimensions:  c.Dimensions,
		Material:    c.Material,
		DataType:    c.DataType,
		Output:      c.Output,
		RangeOutput: c.RangeOutput,
	}
	var err error
	if v.ElementSize, err = distance3(c.ElementSize, c.Unit); err != nil {
		return v, err
	}
	if c.Offset != nil {
		off, err := distance3(*c.Offset, c.Unit)
		if err != nil {
			return v, err
		}
		v.Offset = &off
	}
	return v, nil
}

func (c ShapeConfig) shape() (plan.Shape, error) {
	if c.Type == "" {
		return nil, errors.New("shape has no type")
	}
	if _, csg := csgOps[c.Type]; !csg && c.Type != "tube" && c.Type != "box" && c.Type != "sphere" && c.Type != "place" {
		return nil, fmt.Errorf("unknown shape type %q", c.Type)
	}
	if err := c.checkFields(); err != nil {
		return nil, err
	}
	switch c.Type {
	case "tube":
		d := plan.TubeData{Axis: plan.Axis(strings.ToLower(c.Axis))}
		var err error
		if d.Height, err = distance(c.Height, c.Unit); err != nil {
			return nil, err
		}
		if d.Radius, err = distance(c.Radius, c.Unit); err != nil {
			return nil, err
		}
		d.Placement, err = c.placement()
		return d, err
	case "box":
		d := plan.BoxData{}
		var err error
		if c.Size != nil {
			if d.Size, err = distance3(*c.Size, c.Unit); err != nil {
				return nil, err
			}
		}
		d.Placement, err = c.placement()
		return d, err
	case "sphere":
		d := plan.SphereData{}
		var err error
		if d.Radius, err = distance(c.Radius, c.Unit); err != nil {
			return nil, err
		}
		d.Placement, err = c.placement()
		return d, err
	case "csg-union", "csg-difference", "csg-intersection":
		d := plan.CSGData{Op: csgOps[c.Type]}
		for i, child := range c.Children {
			s, err := child.shape()
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", c.Type, i, err)
			}
			d.Children = append(d.Children, s)
		}
		return d, nil
	case "place":
		if c.Child == nil {
			return nil, errors.New("place: missing child")
		}
		child, err := c.Child.shape()
		if err != nil {
			return nil, fmt.Errorf("place: %w", err)
		}
		d := plan.PlaceData{Child: child}
		if c.At != nil {
			at, err := distance3(*c.At, c.Unit)
			if err != nil {
				return nil, err
			}
			d.Translation = &at
		}
		if c.Rotate != nil {
			rot, err := degrees3(*c.Rotate, c.AngleUnit)
			if err != nil {
				return nil, err
			}
			d.Rotation = &rot
		}
		return d, nil
	}
	return nil, fmt.Errorf("unknown shape type %q", c.Type)
}

var csgOps = map[string]plan.ShapeKind{
	"csg-union":        plan.KindUnion,
	"csg-difference":   plan.KindDifference,
	"csg-intersection": plan.KindIntersection,
}

// checkFields rejects fields that do not belong to the shape's type, which
// DisallowUnknownFields cannot catch on a flat union.
func (c ShapeConfig) checkFields() error {
	var stray []string
	set := func(name string, present bool) {
		if present {
			stray = append(stray, name)
		}
	}
	primitive := c.Type == "tube" || c.Type == "box" || c.Type == "sphere"
	if !primitive {
		set("position", c.Position != nil)
		set("rotation", c.Rotation != nil)
	}
	if c.Type != "tube" {
		set("height", c.Height != nil)
		set("axis", c.Axis != "")
	}
	if c.Type != "tube" && c.Type != "sphere" {
		set("radius", c.Radius != nil)
	}
	if c.Type != "box" {
		set("size", c.Size != nil)
	}
	if _, ok := csgOps[c.Type]; !ok {
		set("children", c.Children != nil)
	} else {
		set("unit", c.Unit != "")
		set("angle_unit", c.AngleUnit != "")
	}
	if c.Type != "place" {
		set("child", c.Child != nil)
		set("at", c.At != nil)
		set("rotate", c.Rotate != nil)
	}
	if len(stray) > 0 {
		return fmt.Errorf("%s: unexpected field %s", c.Type, strings.Join(stray, ", "))
	}
	return nil
}

func (c ShapeConfig) placement() (plan.Placement, error) {
	var pl plan.Placement
	var err error
	if c.Position != nil {
		if pl.Position, err = distance3(*c.Position, c.Unit); err != nil {
			return pl, err
		}
	}
	if c.Rotation != nil {
		if pl.Rotation, err = degrees3(*c.Rotation, c.AngleUnit); err != nil {
			return pl, err
		}
	}
	return pl, nil
}

func distance(v *float64, unit string) (float64, error) {
	if v == nil {
		// Zero reaches plan.Validate, which reports the missing value.
		_, err := units.Distance(0, unit)
		return 0, err
	}
	return units.Distance(*v, unit)
}

func distance3(v [3]float64, unit string) (plan.Vec3, error) {
	mm, err := units.Distance3(v[0], v[1], v[2], unit)
	return plan.Vec3(mm), err
}

func degrees3(v [3]float64, unit string) (plan.Vec3, error) {
	var out plan.Vec3
	for i := range v {
		d, err := units.Degrees(v[i], unit)
		if err != nil {
			return plan.Vec3{}, err
		}
		out[i] = d
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// FromPlan converts a plan back to its JSON document form, in mm and
// degrees.
func FromPlan(p *plan.Plan) (*File, error) {
	f := &File{Volume: VolumeConfig{
		Dimensions:  p.Volume.Dimensions,
		ElementSize: p.Volume.ElementSize,
		Material:    p.Volume.Material,
		DataType:    p.Volume.DataType,
		Output:      p.Volume.Output,
		RangeOutput: p.Volume.RangeOutput,
	}}
	if p.Volume.Offset != nil {
		off := [3]float64(*p.Volume.Offset)
		f.Volume.Offset = &off
	}
	for i, d := range p.Draws {
		s, err := shapeConfig(d.Shape)
		if err != nil {
			return nil, fmt.Errorf("draw %d: %w", i, err)
		}
		f.Draws = append(f.Draws, DrawConfig{Shape: s, Label: d.Label, Material: d.Material})
	}
	return f, nil
}

// Marshal encodes a plan as indented JSON that Parse reads back.
func Marshal(p *plan.Plan) ([]byte, error) {
	f, err := FromPlan(p)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func shapeConfig(s plan.Shape) (ShapeConfig, error) {
	vec := func(v plan.Vec3) *[3]float64 {
		if v == (plan.Vec3{}) {
			return nil
		}
		a := [3]float64(v)
		return &a
	}
	num := func(v float64) *float64 { return &v }
	switch d := s.(type) {
	case plan.TubeData:
		return ShapeConfig{Type: "tube", Height: num(d.Height), Radius: num(d.Radius), Axis: string(d.Axis),
			Position: vec(d.Position), Rotation: vec(d.Rotation)}, nil
	case plan.BoxData:
		size := [3]float64(d.Size)
		return ShapeConfig{Type: "box", Size: &size, Position: vec(d.Position), Rotation: vec(d.Rotation)}, nil
	case plan.SphereData:
		return ShapeConfig{Type: "sphere", Radius: num(d.Radius), Position: vec(d.Position), Rotation: vec(d.Rotation)}, nil
	case plan.CSGData:
		c := ShapeConfig{Type: d.Op.String()}
		for i, child := range d.Children {
			cc, err := shapeConfig(child)
			if err != nil {
				return ShapeConfig{}, fmt.Errorf("%s[%d]: %w", d.Op, i, err)
			}
			c.Children = append(c.Children, cc)
		}
		return c, nil
	case plan.PlaceData:
		child, err := shapeConfig(d.Child)
		if err != nil {
			return ShapeConfig{}, fmt.Errorf("place: %w", err)
		}
		c := ShapeConfig{Type: "place", Child: &child}
		if d.Translation != nil {
			at := [3]float64(*d.Translation)
			c.At = &at
		}
		if d.Rotation != nil {
			rot := [3]float64(*d.Rotation)
			c.Rotate = &rot
		}
		return c, nil
	}
	return ShapeConfig{}, fmt.Errorf("unsupported shape %T", s)
}
