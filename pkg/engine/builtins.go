package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/phantom/pkg/plan"
	"github.com/chazu/phantom/pkg/units"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a plan.Vec3 in script units (not yet converted).
type sexpVec3 struct {
	vec plan.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec[0], v.vec[1], v.vec[2])
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpShape wraps a shape tree together with the label and material given
// at construction, which draw may override.
type sexpShape struct {
	shape    plan.Shape
	label    uint32
	labelSet bool
	material string
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	if s.labelSet {
		return fmt.Sprintf("(%s :label %d)", s.shape.Kind(), s.label)
	}
	return fmt.Sprintf("(%s)", s.shape.Kind())
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// only rejects keywords outside allowed, so a misspelt :raduis fails loudly
// instead of leaving the radius unset.
func (a kwArgs) only(form string, allowed ...string) error {
	ok := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		ok[k] = true
	}
	var unknown []string
	for k := range a.kw {
		if !ok[k] {
			unknown = append(unknown, ":"+k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%s: unknown keyword %s", form, strings.Join(unknown, ", "))
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_z) and plain strings ("z").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toAxis converts a keyword or string to a plan.Axis.
func toAxis(s zygo.Sexp) (plan.Axis, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return "", fmt.Errorf("expected axis keyword (:x, :y, :z): %w", err)
	}
	switch strings.ToLower(name) {
	case "x", "y", "z":
		return plan.Axis(strings.ToLower(name)), nil
	}
	return "", fmt.Errorf("invalid axis %q, expected x, y, or z", name)
}

// toLabel extracts a non-negative integral label.
func toLabel(s zygo.Sexp) (uint32, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return 0, fmt.Errorf("label %v is not an integer between 0 and %d", f, uint32(math.MaxUint32))
	}
	return uint32(f), nil
}

// toVec3 accepts (vec3 x y z) or a three-element list or array of numbers.
func toVec3(s zygo.Sexp) (plan.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	items, err := sexpListToSlice(s)
	if err != nil || len(items) != 3 {
		return plan.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
	}
	var out plan.Vec3
	for i, item := range items {
		if out[i], err = toFloat64(item); err != nil {
			return plan.Vec3{}, err
		}
	}
	return out, nil
}

// toShape extracts a shape built by one of the shape builtins.
func toShape(s zygo.Sexp) (*sexpShape, error) {
	if sh, ok := s.(*sexpShape); ok {
		return sh, nil
	}
	return nil, fmt.Errorf("expected shape, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Unit-aware keyword readers
// ---------------------------------------------------------------------------

// unitArgs reads :unit (distances, default mm) and :angle-unit (rotations,
// default deg) and checks that both are known.
func unitArgs(form string, pa kwArgs) (distance, angle string, err error) {
	if v, ok := pa.kw["unit"]; ok {
		if distance, err = toKeywordString(v); err != nil {
			return "", "", fmt.Errorf("%s: unit: %w", form, err)
		}
		if _, err = units.Distance(1, distance); err != nil {
			return "", "", fmt.Errorf("%s: %w", form, err)
		}
	}
	if v, ok := pa.kw["angle-unit"]; ok {
		if angle, err = toKeywordString(v); err != nil {
			return "", "", fmt.Errorf("%s: angle-unit: %w", form, err)
		}
		if _, err = units.Degrees(1, angle); err != nil {
			return "", "", fmt.Errorf("%s: %w", form, err)
		}
	}
	return distance, angle, nil
}

// lengthArg reads a scalar distance keyword and converts it to mm.
func lengthArg(form string, pa kwArgs, key, unit string) (float64, error) {
	v, ok := pa.kw[key]
	if !ok {
		return 0, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", form, key, err)
	}
	return units.Distance(f, unit)
}

// pointArg reads a vec3 distance keyword and converts it to mm.
// A bare number is accepted and repeated on all three axes.
func pointArg(form string, pa kwArgs, key, unit string) (plan.Vec3, bool, error) {
	v, ok := pa.kw[key]
	if !ok {
		return plan.Vec3{}, false, nil
	}
	var raw plan.Vec3
	if f, err := toFloat64(v); err == nil {
		raw = plan.Vec3{f, f, f}
	} else if raw, err = toVec3(v); err != nil {
		return plan.Vec3{}, false, fmt.Errorf("%s: %s: %w", form, key, err)
	}
	mm, err := units.Distance3(raw[0], raw[1], raw[2], unit)
	if err != nil {
		return plan.Vec3{}, false, fmt.Errorf("%s: %s: %w", form, key, err)
	}
	return mm, true, nil
}

// anglesArg reads a vec3 of Euler angles and converts it to degrees.
func anglesArg(form string, pa kwArgs, key, unit string) (plan.Vec3, bool, error) {
	v, ok := pa.kw[key]
	if !ok {
		return plan.Vec3{}, false, nil
	}
	raw, err := toVec3(v)
	if err != nil {
		return plan.Vec3{}, false, fmt.Errorf("%s: %s: %w", form, key, err)
	}
	var out plan.Vec3
	for i := range raw {
		if out[i], err = units.Degrees(raw[i], unit); err != nil {
			return plan.Vec3{}, false, fmt.Errorf("%s: %s: %w", form, key, err)
		}
	}
	return out, true, nil
}

// placementArgs reads :position and :rotation.
func placementArgs(form string, pa kwArgs, unit, angleUnit string) (plan.Placement, error) {
	var pl plan.Placement
	var err error
	if pl.Position, _, err = pointArg(form, pa, "position", unit); err != nil {
		return pl, err
	}
	if pl.Rotation, _, err = anglesArg(form, pa, "rotation", angleUnit); err != nil {
		return pl, err
	}
	return pl, nil
}

// labelArgs copies :label and :material onto sh.
func labelArgs(form string, pa kwArgs, sh *sexpShape) error {
	if v, ok := pa.kw["label"]; ok {
		l, err := toLabel(v)
		if err != nil {
			return fmt.Errorf("%s: label: %w", form, err)
		}
		sh.label, sh.labelSet = l, true
	}
	if v, ok := pa.kw["material"]; ok {
		m, err := toKeywordString(v)
		if err != nil {
			return fmt.Errorf("%s: material: %w", form, err)
		}
		sh.material = m
	}
	return nil
}

// dimensionsArg reads a three-element list of voxel counts.
func dimensionsArg(v zygo.Sexp) ([3]int, error) {
	vec, err := toVec3(v)
	if err != nil {
		return [3]int{}, err
	}
	var dims [3]int
	for i, f := range vec {
		if f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
			return [3]int{}, fmt.Errorf("dimension %c is %v, expected a whole voxel count", "xyz"[i], f)
		}
		dims[i] = int(f)
	}
	return dims, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builder accumulates the plan while a script runs.
type builder struct {
	plan      *plan.Plan
	volumeSet bool
}

var primitiveKeys = []string{"position", "rotation", "unit", "angle-unit", "label", "material"}

// registerBuiltins installs the phantom DSL builtins into a zygomys
// environment. The builtins populate b during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var v plan.Vec3
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			v[i] = f
		}
		return &sexpVec3{vec: v}, nil
	})

	// -----------------------------------------------------------------------
	// (volume-creator :dimensions (list 200 200 200)
	//                 :element-size (vec3 0.25 0.25 0.25) :unit :mm
	//                 :material "Air" :data-type :MET_USHORT :offset (vec3 ...)
	//                 :output "data/phantom" :range-output "data/range_phantom")
	// -----------------------------------------------------------------------
	env.AddFunction("volume_creator", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		const form = "volume-creator"
		if b.volumeSet {
			return zygo.SexpNull, fmt.Errorf("%s: the volume is already defined", form)
		}
		pa := parseArgs(args)
		if err := pa.only(form, "dimensions", "element-size", "unit", "material",
			"data-type", "offset", "output", "range-output"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("%s takes keyword arguments only", form)
		}
		unit, _, err := unitArgs(form, pa)
		if err != nil {
			return zygo.SexpNull, err
		}

		v := plan.Volume{}
		if a, ok := pa.kw["dimensions"]; ok {
			if v.Dimensions, err = dimensionsArg(a); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: dimensions: %w", form, err)
			}
		}
		if v.ElementSize, _, err = pointArg(form, pa, "element-size", unit); err != nil {
			return zygo.SexpNull, err
		}
		offset, ok, err := pointArg(form, pa, "offset", unit)
		if err != nil {
			return zygo.SexpNull, err
		}
		if ok {
			v.Offset = &offset
		}
		for key, dst := range map[string]*string{
			"material":     &v.Material,
			"data-type":    &v.DataType,
			"output":       &v.Output,
			"range-output": &v.RangeOutput,
		} {
			a, ok := pa.kw[key]
			if !ok {
				continue
			}
			if *dst, err = toKeywordString(a); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %s: %w", form, key, err)
			}
		}

		b.plan.Volume = v
		b.volumeSet = true
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (tube :height 50 :radius 20 :axis :z :position (vec3 0 0 0) :unit :mm
	//       :label 1 :material "Water")
	// -----------------------------------------------------------------------
	env.AddFunction("tube", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		const form = "tube"
		pa := parseArgs(args)
		if err := pa.only(form, append([]string{"height", "radius", "axis"}, primitiveKeys...)...); err != nil {
			return zygo.SexpNull, err
		}
		return primitive(form, pa, func(unit string) (plan.Shape, error) {
			var d plan.TubeData
			var err error
			if d.Height, err = lengthArg(form, pa, "height", unit); err != nil {
				return nil, err
			}
			if d.Radius, err = lengthArg(form, pa, "radius", unit); err != nil {
				return nil, err
			}
			if a, ok := pa.kw["axis"]; ok {
				if d.Axis, err = toAxis(a); err != nil {
					return nil, fmt.Errorf("%s: axis: %w", form, err)
				}
			}
			return d, nil
		}, func(s plan.Shape, pl plan.Placement) plan.Shape {
			d := s.(plan.TubeData)
			d.Placement = pl
			return d
		})
	})

	// -----------------------------------------------------------------------
	// (box :size (vec3 40 40 40))
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		const form = "box"
		pa := parseArgs(args)
		if err := pa.only(form, append([]string{"size"}, primitiveKeys...)...); err != nil {
			return zygo.SexpNull, err
		}
		return primitive(form, pa, func(unit string) (plan.Shape, error) {
			size, _, err := pointArg(form, pa, "size", unit)
			if err != nil {
				return nil, err
			}
			return plan.BoxData{Size: size}, nil
		}, func(s plan.Shape, pl plan.Placement) plan.Shape {
			d := s.(plan.BoxData)
			d.Placement = pl
			return d
		})
	})

	// -----------------------------------------------------------------------
	// (sphere :radius 10)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		const form = "sphere"
		pa := parseArgs(args)
		if err := pa.only(form, append([]string{"radius"}, primitiveKeys...)...); err != nil {
			return zygo.SexpNull, err
		}
		return primitive(form, pa, func(unit string) (plan.Shape, error) {
			r, err := lengthArg(form, pa, "radius", unit)
			if err != nil {
				return nil, err
			}
			return plan.SphereData{Radius: r}, nil
		}, func(s plan.Shape, pl plan.Placement) plan.Shape {
			d := s.(plan.SphereData)
			d.Placement = pl
			return d
		})
	})

	// -----------------------------------------------------------------------
	// (csg-union a b ...), (csg-difference a b ...), (csg-intersection a b ...)
	// -----------------------------------------------------------------------
	for fn, op := range map[string]plan.ShapeKind{
		"csg_union":        plan.KindUnion,
		"csg_difference":   plan.KindDifference,
		"csg_intersection": plan.KindIntersection,
	} {
		env.AddFunction(fn, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			form := op.String()
			pa := parseArgs(args)
			if err := pa.only(form, "label", "material"); err != nil {
				return zygo.SexpNull, err
			}
			if len(pa.positional) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least 2 shapes, got %d", form, len(pa.positional))
			}
			d := plan.CSGData{Op: op}
			for i, a := range pa.positional {
				child, err := toShape(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: shape %d: %w", form, i+1, err)
				}
				d.Children = append(d.Children, child.shape)
			}
			sh := &sexpShape{shape: d}
			if err := labelArgs(form, pa, sh); err != nil {
				return zygo.SexpNull, err
			}
			return sh, nil
		})
	}

	// -----------------------------------------------------------------------
	// (place shape :at (vec3 10 0 0) :rotate (vec3 0 0 45) :unit :mm)
	// -----------------------------------------------------------------------
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		const form = "place"
		pa := parseArgs(args)
		if err := pa.only(form, "at", "rotate", "unit", "angle-unit", "label", "material"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("place requires exactly one shape, got %d", len(pa.positional))
		}
		child, err := toShape(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}
		unit, angleUnit, err := unitArgs(form, pa)
		if err != nil {
			return zygo.SexpNull, err
		}

		d := plan.PlaceData{Child: child.shape}
		at, ok, err := pointArg(form, pa, "at", unit)
		if err != nil {
			return zygo.SexpNull, err
		}
		if ok {
			d.Translation = &at
		}
		rot, ok, err := anglesArg(form, pa, "rotate", angleUnit)
		if err != nil {
			return zygo.SexpNull, err
		}
		if ok {
			d.Rotation = &rot
		}

		// A placed shape keeps its child's label and material.
		sh := &sexpShape{shape: d, label: child.label, labelSet: child.labelSet, material: child.material}
		if err := labelArgs(form, pa, sh); err != nil {
			return zygo.SexpNull, err
		}
		return sh, nil
	})

	// -----------------------------------------------------------------------
	// (draw shape :label 3 :material "Bone")
	// -----------------------------------------------------------------------
	env.AddFunction("draw", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		const form = "draw"
		pa := parseArgs(args)
		if err := pa.only(form, "label", "material"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("draw requires exactly one shape, got %d", len(pa.positional))
		}
		src, err := toShape(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("draw: %w", err)
		}
		sh := *src
		if err := labelArgs(form, pa, &sh); err != nil {
			return zygo.SexpNull, err
		}
		if !sh.labelSet {
			return zygo.SexpNull, fmt.Errorf("draw: %s has no :label", sh.shape.Kind())
		}
		if sh.material == "" {
			return zygo.SexpNull, fmt.Errorf("draw: %s has no :material", sh.shape.Kind())
		}

		b.plan.Draws = append(b.plan.Draws, plan.Draw{
			Shape:    sh.shape,
			Label:    sh.label,
			Material: sh.material,
		})
		return &sh, nil
	})
}

// primitive is the shared tail of the tube, box and sphere builtins: it
// resolves units, builds the shape, attaches its placement and reads the
// label and material.
func primitive(
	form string,
	pa kwArgs,
	build func(unit string) (plan.Shape, error),
	withPlacement func(plan.Shape, plan.Placement) plan.Shape,
) (zygo.Sexp, error) {
	if len(pa.positional) > 0 {
		return zygo.SexpNull, fmt.Errorf("%s takes keyword arguments only", form)
	}
	unit, angleUnit, err := unitArgs(form, pa)
	if err != nil {
		return zygo.SexpNull, err
	}
	s, err := build(unit)
	if err != nil {
		return zygo.SexpNull, err
	}
	pl, err := placementArgs(form, pa, unit, angleUnit)
	if err != nil {
		return zygo.SexpNull, err
	}
	sh := &sexpShape{shape: withPlacement(s, pl)}
	if err := labelArgs(form, pa, sh); err != nil {
		return zygo.SexpNull, err
	}
	return sh, nil
}
