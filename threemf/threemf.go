// Package threemf implements the structural boundary between a 3MF
// scene archive and the in-memory assembly (§6.1): reading resources
// (meshes, components, level-sets, image3D stacks, implicit
// functions, functions-from-image3D, beam lattices) and build items
// out of a packaged zip+XML archive into a graph.Function/
// assembly.Assembly, and writing the inverse. This is an
// import/export boundary, not a format-validation layer: the reader
// is non-strict (§7 "the importer leaves the assembly in a consistent
// state").
//
// Like the teacher's own analogous boundary (package gltf, which
// decodes its JSON scene format with encoding/json), this package
// reaches for the matching standard-library serialization package —
// encoding/xml plus archive/zip for the packaged container — rather
// than a third-party library; no example repo in the retrieved set
// carries one for a zip+XML container format.
package threemf

import (
	"fmt"

	"github.com/quillfield/implicore/core"
)

// Unit is the closed set of length units a 3MF model may declare
// (§6.1 "Unit conversion"). The zero value is Millimeter, matching the
// format's own default.
type Unit int

const (
	Millimeter Unit = iota
	Micrometer
	Centimeter
	Meter
	Inch
	Foot
)

// ParseUnit maps a 3MF model's "unit" attribute string to a Unit.
// Unrecognized strings default to Millimeter, matching the format's
// documented default rather than failing the whole import over one
// bad attribute.
func ParseUnit(s string) Unit {
	switch s {
	case "micron":
		return Micrometer
	case "millimeter":
		return Millimeter
	case "centimeter":
		return Centimeter
	case "meter":
		return Meter
	case "inch":
		return Inch
	case "foot":
		return Foot
	default:
		return Millimeter
	}
}

// UnitsPerMM returns the factor that converts one unit of u into
// millimeters (§6.1: "converted from the model's unit... to
// millimeters... via a units_per_mm factor").
func (u Unit) UnitsPerMM() float32 {
	switch u {
	case Micrometer:
		return 0.001
	case Millimeter:
		return 1
	case Centimeter:
		return 10
	case Meter:
		return 1000
	case Inch:
		return 25.4
	case Foot:
		return 304.8
	default:
		return 1
	}
}

func wrapIO(format string, args ...interface{}) error {
	return fmt.Errorf("%w: threemf: %s", core.ErrExternalIO, fmt.Sprintf(format, args...))
}
