package plan

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/phantom/pkg/volume"
)

// ValidationSeverity indicates whether a validation finding blocks the
// build or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks the build
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// VolumeLevel is the Draw index of findings about the volume itself.
const VolumeLevel = -1

// ValidationError describes a single validation finding.
type ValidationError struct {
	Draw     int                // index into Plan.Draws, or VolumeLevel
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Draw == VolumeLevel {
		return fmt.Sprintf("[%s] volume: %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] draw %d: %s", e.Severity, e.Draw, e.Message)
}

// ValidationWarning describes a non-blocking advisory finding.
type ValidationWarning struct {
	Draw    int
	Message string
}

func (w ValidationWarning) String() string {
	return ValidationError{Draw: w.Draw, Message: w.Message, Severity: SeverityWarning}.Error()
}

// ValidationResult bundles errors (blocking) and warnings (advisory).
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// OK reports whether there are no blocking errors.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Validate runs the structural checks: every parameter the voxelizer
// needs is present and in range. An empty slice means the plan can be
// built. It never mutates p.
func Validate(p *Plan) []ValidationError {
	if p == nil {
		return []ValidationError{{Draw: VolumeLevel, Message: "plan is nil", Severity: SeverityError}}
	}
	var errs []ValidationError
	errs = append(errs, validateVolume(p.Volume)...)
	errs = append(errs, validateDraws(p)...)
	return errs
}

// ValidateAll runs Validate plus the advisory checks and separates the
// findings by severity.
func ValidateAll(p *Plan) ValidationResult {
	var result ValidationResult
	for _, e := range Validate(p) {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, ValidationWarning{Draw: e.Draw, Message: e.Message})
		} else {
			result.Errors = append(result.Errors, e)
		}
	}
	if p == nil {
		return result
	}
	result.Warnings = append(result.Warnings, warnOutputs(p.Volume)...)
	result.Warnings = append(result.Warnings, warnLabelReuse(p)...)
	if len(validateVolume(p.Volume)) == 0 {
		result.Warnings = append(result.Warnings, warnOutsideGrid(p)...)
	}
	return result
}

func volumeErr(format string, args ...any) ValidationError {
	return ValidationError{Draw: VolumeLevel, Message: fmt.Sprintf(format, args...), Severity: SeverityError}
}

func validateVolume(v Volume) []ValidationError {
	var errs []ValidationError
	for i, n := range v.Dimensions {
		if n <= 0 {
			errs = append(errs, volumeErr("dimension %c is %d, must be positive", "xyz"[i], n))
		}
	}
	for i, s := range v.ElementSize {
		if !positive(s) {
			errs = append(errs, volumeErr("element size %c is %v, must be positive", "xyz"[i], s))
		}
	}
	if v.Offset != nil {
		for i, o := range v.Offset {
			if math.IsNaN(o) || math.IsInf(o, 0) {
				errs = append(errs, volumeErr("offset %c is %v", "xyz"[i], o))
			}
		}
	}
	if msg := materialProblem(v.Material); msg != "" {
		errs = append(errs, volumeErr("background %s", msg))
	}
	if v.DataType != "" {
		if _, err := volume.ParseDataType(v.DataType); err != nil {
			errs = append(errs, volumeErr("%v", err))
		}
	}
	return errs
}

func validateDraws(p *Plan) []ValidationError {
	var errs []ValidationError
	dt := volume.DefaultDataType
	if p.Volume.DataType != "" {
		if parsed, err := volume.ParseDataType(p.Volume.DataType); err == nil {
			dt = parsed
		}
	}
	for i, d := range p.Draws {
		drawErr := func(format string, args ...any) {
			errs = append(errs, ValidationError{Draw: i, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
		}
		if d.Label == uint32(volume.BackgroundLabel) {
			drawErr("label %d is reserved for the background", volume.BackgroundLabel)
		} else if !dt.CanHold(volume.Label(d.Label)) {
			drawErr("label %d exceeds %s maximum %d", d.Label, dt, dt.MaxLabel())
		}
		if msg := materialProblem(d.Material); msg != "" {
			drawErr("%s", msg)
		}
		for _, msg := range shapeProblems(d.Shape, "") {
			drawErr("%s", msg)
		}
	}
	return errs
}

// shapeProblems walks a shape tree and describes every invalid node.
func shapeProblems(s Shape, path string) []string {
	at := func(name string) string {
		if path == "" {
			return name
		}
		return path + "/" + name
	}
	var out []string
	dim := func(kind, field string, v float64) {
		if !positive(v) {
			out = append(out, fmt.Sprintf("%s %s is %v, must be positive", at(kind), field, v))
		}
	}
	switch d := s.(type) {
	case nil:
		out = append(out, fmt.Sprintf("%s has no shape", at("draw")))
	case TubeData:
		dim("tube", "height", d.Height)
		dim("tube", "radius", d.Radius)
		switch strings.ToLower(string(d.Axis)) {
		case "", "x", "y", "z":
		default:
			out = append(out, fmt.Sprintf("%s axis %q is not x, y or z", at("tube"), d.Axis))
		}
	case BoxData:
		for i, v := range d.Size {
			dim("box", fmt.Sprintf("size %c", "xyz"[i]), v)
		}
	case SphereData:
		dim("sphere", "radius", d.Radius)
	case CSGData:
		switch d.Op {
		case KindUnion, KindDifference, KindIntersection:
		default:
			out = append(out, fmt.Sprintf("%s is not a boolean operation", at(d.Op.String())))
		}
		if len(d.Children) < 2 {
			out = append(out, fmt.Sprintf("%s needs at least 2 shapes, got %d", at(d.Op.String()), len(d.Children)))
		}
		for i, c := range d.Children {
			out = append(out, shapeProblems(c, at(fmt.Sprintf("%s[%d]", d.Op, i)))...)
		}
	case PlaceData:
		out = append(out, shapeProblems(d.Child, at("place"))...)
	default:
		out = append(out, fmt.Sprintf("%s has unsupported shape %T", at("draw"), s))
	}
	return out
}

func warnOutputs(v Volume) []ValidationWarning {
	var ws []ValidationWarning
	if strings.TrimSpace(v.Output) == "" {
		ws = append(ws, ValidationWarning{Draw: VolumeLevel, Message: "no volume output path; the phantom cannot be written"})
	}
	if strings.TrimSpace(v.RangeOutput) == "" {
		ws = append(ws, ValidationWarning{Draw: VolumeLevel, Message: "no range output path; the phantom cannot be written"})
	}
	return ws
}

// warnLabelReuse flags a label drawn again with a different material: the
// later material replaces the earlier one for every voxel of that label.
func warnLabelReuse(p *Plan) []ValidationWarning {
	var ws []ValidationWarning
	first := make(map[uint32]int)
	for i, d := range p.Draws {
		j, seen := first[d.Label]
		if !seen {
			first[d.Label] = i
			continue
		}
		if prev := p.Draws[j].Material; prev != d.Material {
			ws = append(ws, ValidationWarning{Draw: i, Message: fmt.Sprintf(
				"label %d was %s in draw %d and becomes %s for all its voxels", d.Label, prev, j, d.Material)})
		}
	}
	return ws
}

func warnOutsideGrid(p *Plan) []ValidationWarning {
	var ws []ValidationWarning
	gmin, gmax := GridBounds(p.Volume)
	for i, d := range p.Draws {
		if len(shapeProblems(d.Shape, "")) > 0 {
			continue
		}
		min, max, ok := Bounds(d.Shape)
		if !ok {
			ws = append(ws, ValidationWarning{Draw: i, Message: "shape is empty"})
			continue
		}
		if !overlaps(min, max, gmin, gmax) {
			ws = append(ws, ValidationWarning{Draw: i, Message: fmt.Sprintf(
				"shape bounds %v..%v lie outside the grid %v..%v", min, max, gmin, gmax)})
		}
	}
	return ws
}

func materialProblem(name string) string {
	switch {
	case strings.TrimSpace(name) == "":
		return "material is empty"
	case strings.ContainsAny(name, " \t\r\n"):
		return fmt.Sprintf("material %q contains whitespace", name)
	}
	return ""
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
