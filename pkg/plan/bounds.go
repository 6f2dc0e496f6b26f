package plan

import "math"

// Bounds returns a conservative axis-aligned bounding box of s in mm.
// ok is false when the shape is provably empty (for example an
// intersection of disjoint children) or s is nil.
func Bounds(s Shape) (min, max Vec3, ok bool) {
	switch d := s.(type) {
	case TubeData:
		h, r := d.Height/2, d.Radius
		half := Vec3{r, r, h}
		switch d.Axis {
		case "x", "X":
			half = Vec3{h, r, r}
		case "y", "Y":
			half = Vec3{r, h, r}
		}
		min, max = place(neg(half), half, d.Rotation, d.Position)
		return min, max, true
	case BoxData:
		half := Vec3{d.Size[0] / 2, d.Size[1] / 2, d.Size[2] / 2}
		min, max = place(neg(half), half, d.Rotation, d.Position)
		return min, max, true
	case SphereData:
		r := d.Radius
		// A sphere is rotation invariant.
		min, max = place(Vec3{-r, -r, -r}, Vec3{r, r, r}, Vec3{}, d.Position)
		return min, max, true
	case CSGData:
		return csgBounds(d)
	case PlaceData:
		min, max, ok = Bounds(d.Child)
		if !ok {
			return min, max, false
		}
		var rot, tr Vec3
		if d.Rotation != nil {
			rot = *d.Rotation
		}
		if d.Translation != nil {
			tr = *d.Translation
		}
		min, max = place(min, max, rot, tr)
		return min, max, true
	}
	return Vec3{}, Vec3{}, false
}

func csgBounds(d CSGData) (min, max Vec3, ok bool) {
	if len(d.Children) == 0 {
		return Vec3{}, Vec3{}, false
	}
	min, max, ok = Bounds(d.Children[0])
	switch d.Op {
	case KindDifference:
		return min, max, ok
	case KindUnion:
		for _, c := range d.Children[1:] {
			cmin, cmax, cok := Bounds(c)
			if !cok {
				continue
			}
			if !ok {
				min, max, ok = cmin, cmax, true
				continue
			}
			for i := range min {
				min[i] = math.Min(min[i], cmin[i])
				max[i] = math.Max(max[i], cmax[i])
			}
		}
		return min, max, ok
	case KindIntersection:
		for _, c := range d.Children[1:] {
			if !ok {
				return Vec3{}, Vec3{}, false
			}
			cmin, cmax, cok := Bounds(c)
			if !cok {
				return Vec3{}, Vec3{}, false
			}
			for i := range min {
				min[i] = math.Max(min[i], cmin[i])
				max[i] = math.Min(max[i], cmax[i])
				if min[i] > max[i] {
					ok = false
				}
			}
		}
		return min, max, ok
	}
	return Vec3{}, Vec3{}, false
}

// GridBounds returns the physical extent of the volume.
func GridBounds(v Volume) (min, max Vec3) {
	for i := range min {
		extent := float64(v.Dimensions[i]) * v.ElementSize[i]
		if v.Offset != nil {
			min[i] = v.Offset[i]
		} else {
			min[i] = -extent / 2
		}
		max[i] = min[i] + extent
	}
	return min, max
}

// place rotates the box [min, max] about the origin by Euler angles rot
// (degrees, x then y then z), takes the bounding box of the rotated corners
// and translates it by t.
func place(min, max, rot, t Vec3) (Vec3, Vec3) {
	if rot != (Vec3{}) {
		lo := Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
		hi := Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
		for c := 0; c < 8; c++ {
			corner := Vec3{min[0], min[1], min[2]}
			for i := 0; i < 3; i++ {
				if c&(1<<i) != 0 {
					corner[i] = max[i]
				}
			}
			p := rotate(corner, rot)
			for i := range p {
				lo[i] = math.Min(lo[i], p[i])
				hi[i] = math.Max(hi[i], p[i])
			}
		}
		min, max = lo, hi
	}
	for i := range min {
		min[i] += t[i]
		max[i] += t[i]
	}
	return min, max
}

func rotate(p, deg Vec3) Vec3 {
	for axis := 0; axis < 3; axis++ {
		if deg[axis] == 0 {
			continue
		}
		s, c := math.Sincos(deg[axis] * math.Pi / 180)
		a, b := (axis+1)%3, (axis+2)%3
		p[a], p[b] = c*p[a]-s*p[b], s*p[a]+c*p[b]
	}
	return p
}

func neg(v Vec3) Vec3 { return Vec3{-v[0], -v[1], -v[2]} }

func overlaps(amin, amax, bmin, bmax Vec3) bool {
	for i := range amin {
		if amax[i] < bmin[i] || amin[i] > bmax[i] {
			return false
		}
	}
	return true
}
