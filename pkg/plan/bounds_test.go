package plan

import (
	"math"
	"testing"
)

func approxVec(a, b Vec3, tol float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestBounds(t *testing.T) {
	tests := []struct {
		name     string
		shape    Shape
		min, max Vec3
		ok       bool
	}{
		{"tube z", TubeData{Height: 50, Radius: 20}, Vec3{-20, -20, -25}, Vec3{20, 20, 25}, true},
		{"tube x moved", TubeData{Height: 10, Radius: 2, Axis: "x", Placement: Placement{Position: Vec3{1, 2, 3}}},
			Vec3{-4, 0, 1}, Vec3{6, 4, 5}, true},
		{"box rotated 90 about z", BoxData{Size: Vec3{10, 2, 2}, Placement: Placement{Rotation: Vec3{0, 0, 90}}},
			Vec3{-1, -5, -1}, Vec3{1, 5, 1}, true},
		{"sphere", SphereData{Radius: 3, Placement: Placement{Position: Vec3{0, 0, 10}}}, Vec3{-3, -3, 7}, Vec3{3, 3, 13}, true},
		{"union", CSGData{Op: KindUnion, Children: []Shape{
			SphereData{Radius: 1},
			SphereData{Radius: 1, Placement: Placement{Position: Vec3{10, 0, 0}}},
		}}, Vec3{-1, -1, -1}, Vec3{11, 1, 1}, true},
		{"difference keeps first", CSGData{Op: KindDifference, Children: []Shape{
			BoxData{Size: Vec3{4, 4, 4}}, SphereData{Radius: 10},
		}}, Vec3{-2, -2, -2}, Vec3{2, 2, 2}, true},
		{"intersection", CSGData{Op: KindIntersection, Children: []Shape{
			BoxData{Size: Vec3{4, 4, 4}}, SphereData{Radius: 1, Placement: Placement{Position: Vec3{2, 0, 0}}},
		}}, Vec3{1, -1, -1}, Vec3{2, 1, 1}, true},
		{"place", PlaceData{Child: BoxData{Size: Vec3{2, 2, 2}}, Translation: &Vec3{5, 0, 0}}, Vec3{4, -1, -1}, Vec3{6, 1, 1}, true},
		{"nil", nil, Vec3{}, Vec3{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			min, max, ok := Bounds(tt.shape)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if !approxVec(min, tt.min, 1e-9) || !approxVec(max, tt.max, 1e-9) {
				t.Errorf("Bounds = %v..%v, want %v..%v", min, max, tt.min, tt.max)
			}
		})
	}
}

func TestGridBounds(t *testing.T) {
	v := Volume{Dimensions: [3]int{200, 100, 50}, ElementSize: Vec3{0.25, 0.5, 1}}
	min, max := GridBounds(v)
	if min != (Vec3{-25, -25, -25}) || max != (Vec3{25, 25, 25}) {
		t.Errorf("centred GridBounds = %v..%v", min, max)
	}
	v.Offset = &Vec3{0, 0, 0}
	min, max = GridBounds(v)
	if min != (Vec3{}) || max != (Vec3{50, 50, 50}) {
		t.Errorf("offset GridBounds = %v..%v", min, max)
	}
}
