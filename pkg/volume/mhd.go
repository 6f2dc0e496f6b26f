package volume

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Header is the MetaImage (.mhd) header of a label volume. Only the
// uncompressed, little-endian, three-dimensional form is produced or read.
type Header struct {
	Dimensions      [3]int
	ElementSpacing  [3]float64
	Offset          [3]float64
	ElementType     DataType
	ElementDataFile string
}

// MarshalText renders the header in key = value form.
func (h Header) MarshalText() ([]byte, error) {
	if !h.ElementType.Valid() {
		return nil, configErrorf("invalid element type %s", h.ElementType)
	}
	if h.ElementDataFile == "" {
		return nil, configErrorf("element data file must be set")
	}
	var b bytes.Buffer
	fmt.Fprintln(&b, "ObjectType = Image")
	fmt.Fprintln(&b, "NDims = 3")
	fmt.Fprintln(&b, "BinaryData = True")
	fmt.Fprintln(&b, "BinaryDataByteOrderMSB = False")
	fmt.Fprintln(&b, "CompressedData = False")
	fmt.Fprintf(&b, "Offset = %s %s %s\n", formatFloat(h.Offset[0]), formatFloat(h.Offset[1]), formatFloat(h.Offset[2]))
	fmt.Fprintf(&b, "ElementSpacing = %s %s %s\n", formatFloat(h.ElementSpacing[0]), formatFloat(h.ElementSpacing[1]), formatFloat(h.ElementSpacing[2]))
	fmt.Fprintf(&b, "DimSize = %d %d %d\n", h.Dimensions[0], h.Dimensions[1], h.Dimensions[2])
	fmt.Fprintf(&b, "ElementType = %s\n", h.ElementType)
	fmt.Fprintf(&b, "ElementDataFile = %s\n", h.ElementDataFile)
	return b.Bytes(), nil
}

// PayloadSize is the expected byte length of the raw data file.
func (h Header) PayloadSize() int64 {
	return int64(h.Dimensions[0]) * int64(h.Dimensions[1]) * int64(h.Dimensions[2]) * int64(h.ElementType.Size())
}

// ParseHeader reads a MetaImage header. Unknown keys are ignored; keys that
// describe a layout this package cannot read are rejected.
func ParseHeader(r io.Reader) (Header, error) {
	var h Header
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return h, configErrorf("header line %d: missing '='", line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		seen[key] = true

		var err error
		switch key {
		case "NDims":
			if value != "3" {
				err = configErrorf("NDims %s not supported", value)
			}
		case "BinaryDataByteOrderMSB", "ElementByteOrderMSB":
			if strings.EqualFold(value, "true") {
				err = configErrorf("big-endian data not supported")
			}
		case "CompressedData":
			if strings.EqualFold(value, "true") {
				err = configErrorf("compressed data not supported")
			}
		case "DimSize":
			var f [3]float64
			f, err = parseTriple(value)
			for i := range f {
				h.Dimensions[i] = int(f[i])
				if float64(h.Dimensions[i]) != f[i] {
					err = configErrorf("DimSize %q is not integral", value)
				}
			}
		case "ElementSpacing", "ElementSize":
			h.ElementSpacing, err = parseTriple(value)
		case "Offset", "Origin", "Position":
			h.Offset, err = parseTriple(value)
		case "ElementType":
			h.ElementType, err = ParseDataType(value)
		case "ElementDataFile":
			h.ElementDataFile = value
		}
		if err != nil {
			return h, fmt.Errorf("header line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return h, ioError("read header", err)
	}
	for _, k := range []string{"DimSize", "ElementType", "ElementDataFile"} {
		if !seen[k] {
			return h, configErrorf("header missing %s", k)
		}
	}
	if h.ElementDataFile == "LOCAL" || h.ElementDataFile == "LIST" {
		return h, configErrorf("ElementDataFile %s not supported", h.ElementDataFile)
	}
	if !seen["ElementSpacing"] && !seen["ElementSize"] {
		h.ElementSpacing = [3]float64{1, 1, 1}
	}
	return h, nil
}

func parseTriple(s string) ([3]float64, error) {
	var out [3]float64
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return out, configErrorf("expected 3 values, got %q", s)
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return out, configErrorf("invalid number %q", f)
		}
		out[i] = v
	}
	return out, nil
}

// formatFloat prints the shortest representation that parses back exactly.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
