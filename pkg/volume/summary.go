package volume

import "sort"

// Histogram counts voxels per label.
func Histogram(g *Grid) map[Label]int {
	counts := make(map[Label]int)
	for _, v := range g.labels {
		counts[v]++
	}
	return counts
}

// LabelStat summarizes one label of a grid.
type LabelStat struct {
	Label    Label
	Material string
	Voxels   int
	Volume   float64 // mm³
}

// Summary returns per-label voxel counts and physical volumes for every
// label present in the grid, sorted by label.
func Summary(g *Grid) []LabelStat {
	voxel := g.spacing[0] * g.spacing[1] * g.spacing[2]
	var out []LabelStat
	for l, n := range Histogram(g) {
		m, _ := g.table.Material(l)
		out = append(out, LabelStat{Label: l, Material: m, Voxels: n, Volume: float64(n) * voxel})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// MaterialIndices maps every voxel to the position of its material in the
// returned material list. Materials are ordered by the smallest label using
// them, so labels sharing a material collapse to one index.
func MaterialIndices(g *Grid) ([]int, []string, error) {
	if !g.initialized {
		return nil, nil, configErrorf("grid not initialized")
	}
	materials := g.table.Materials()
	pos := make(map[string]int, len(materials))
	for i, m := range materials {
		pos[m] = i
	}
	byLabel := make(map[Label]int)
	for _, e := range g.table.Entries() {
		byLabel[e.Label] = pos[e.Material]
	}
	out := make([]int, len(g.labels))
	for i, v := range g.labels {
		idx, ok := byLabel[v]
		if !ok {
			return nil, nil, configErrorf("label %d has no material", v)
		}
		out[i] = idx
	}
	return out, materials, nil
}
