package volume

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chazu/phantom/pkg/logging"
)

// maxRangeSpan bounds how many labels a single "first last material" line
// may expand to when parsing.
const maxRangeSpan = 1 << 16

// Entry is one label to material mapping.
type Entry struct {
	Label    Label
	Material string
}

// RangeTable maps label values to material names. Labels keep their
// first-seen position in Entries; a repeated label keeps its latest material.
type RangeTable struct {
	materials map[Label]string
	order     []Label
}

// NewRangeTable returns an empty table.
func NewRangeTable() *RangeTable {
	return &RangeTable{materials: make(map[Label]string)}
}

// Record inserts or overwrites the material for label.
func (t *RangeTable) Record(label Label, material string) error {
	if err := checkMaterial(material); err != nil {
		return err
	}
	prev, exists := t.materials[label]
	if !exists {
		t.order = append(t.order, label)
	} else if prev != material {
		logging.Logger().Warn("label reassigned to a new material",
			"label", label, "previous", prev, "material", material)
	}
	t.materials[label] = material
	logging.Logger().Debug("range table record", "label", label, "material", material)
	return nil
}

// Material returns the material recorded for label.
func (t *RangeTable) Material(label Label) (string, bool) {
	m, ok := t.materials[label]
	return m, ok
}

// Len returns the number of distinct labels.
func (t *RangeTable) Len() int { return len(t.order) }

// Entries returns the mappings in first-seen label order.
func (t *RangeTable) Entries() []Entry {
	out := make([]Entry, 0, len(t.order))
	for _, l := range t.order {
		out = append(out, Entry{Label: l, Material: t.materials[l]})
	}
	return out
}

// Export returns the mappings sorted by ascending label.
func (t *RangeTable) Export() []Entry {
	out := t.Entries()
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Materials returns the distinct material names ordered by the smallest
// label that uses them.
func (t *RangeTable) Materials() []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range t.Export() {
		if !seen[e.Material] {
			seen[e.Material] = true
			out = append(out, e.Material)
		}
	}
	return out
}

// WriteTo writes one "label material" line per entry, sorted by label.
func (t *RangeTable) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, e := range t.Export() {
		n, err := fmt.Fprintf(w, "%d %s\n", e.Label, e.Material)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ParseRangeTable reads a range file. Each non-blank line is either
// "label material" or "first last material"; the latter assigns material
// to every label in [first, last]. Lines starting with # are comments.
func ParseRangeTable(r io.Reader) (*RangeTable, error) {
	t := NewRangeTable()
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		var first, last Label
		var material string
		var err error
		switch len(fields) {
		case 2:
			first, err = parseLabel(fields[0])
			last = first
			material = fields[1]
		case 3:
			first, err = parseLabel(fields[0])
			if err == nil {
				last, err = parseLabel(fields[1])
			}
			material = fields[2]
		default:
			return nil, configErrorf("range line %d: expected 2 or 3 fields, got %d", line, len(fields))
		}
		if err != nil {
			return nil, fmt.Errorf("range line %d: %w", line, err)
		}
		if last < first || last-first >= maxRangeSpan {
			return nil, configErrorf("range line %d: invalid label range %d..%d", line, first, last)
		}
		for l := first; ; l++ {
			if err := t.Record(l, material); err != nil {
				return nil, fmt.Errorf("range line %d: %w", line, err)
			}
			if l == last {
				break
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, ioError("read range table", err)
	}
	return t, nil
}

// parseLabel accepts integers and integral floats ("2" or "2.0"), since
// range files written by float-typed volumes carry float labels.
func parseLabel(s string) (Label, error) {
	if u, err := strconv.ParseUint(s, 10, 32); err == nil {
		return Label(u), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != float64(uint32(f)) {
		return 0, configErrorf("invalid label %q", s)
	}
	return Label(f), nil
}
