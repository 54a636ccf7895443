package threemf

import "encoding/xml"

// modelXML is the root <model> element of a 3MF archive's
// 3dmodel.model entry. Only the subset of the schema the core cares
// about is modeled: mesh/components objects, the implicit-function
// extension resources, and build items (§6.1).
type modelXML struct {
	XMLName   xml.Name      `xml:"model"`
	Unit      string        `xml:"unit,attr"`
	Resources resourcesXML  `xml:"resources"`
	Build     buildXML      `xml:"build"`
	Metadata  []metadataXML `xml:"metadata"`
}

type metadataXML struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type resourcesXML struct {
	Objects                []objectXML           `xml:"object"`
	Image3Ds               []image3DXML          `xml:"image3d"`
	BeamLattices           []beamLatticeXML      `xml:"beamlattice"`
	Functions              []implicitFunctionXML `xml:"implicitfunction"`
	FunctionsFromImage3D   []functionFromImage3D `xml:"functionfromimage3d"`
	LevelSets              []levelSetXML         `xml:"levelset"`
}

// objectXML covers both mesh objects (Mesh non-nil) and components
// objects (Components non-nil); a 3MF object is one or the other.
type objectXML struct {
	ID         uint64         `xml:"id,attr"`
	Type       string         `xml:"type,attr"`
	Name       string         `xml:"name,attr"`
	Mesh       *meshXML       `xml:"mesh"`
	Components *componentsXML `xml:"components"`
}

type meshXML struct {
	Vertices  []vertexXML   `xml:"vertices>vertex"`
	Triangles []triangleXML `xml:"triangles>triangle"`
}

type vertexXML struct {
	X float32 `xml:"x,attr"`
	Y float32 `xml:"y,attr"`
	Z float32 `xml:"z,attr"`
}

type triangleXML struct {
	V1 int `xml:"v1,attr"`
	V2 int `xml:"v2,attr"`
	V3 int `xml:"v3,attr"`
}

type componentsXML struct {
	Components []componentXML `xml:"component"`
}

type componentXML struct {
	ObjectID  uint64 `xml:"objectid,attr"`
	Transform string `xml:"transform,attr"`
}

type image3DXML struct {
	ID     uint64 `xml:"id,attr"`
	Path   string `xml:"path,attr"`
	Rows   int    `xml:"rows,attr"`
	Cols   int    `xml:"columns,attr"`
	Sheets int    `xml:"sheets,attr"`
}

type beamLatticeXML struct {
	ID        uint64     `xml:"id,attr"`
	Radius    float32    `xml:"radius,attr"`
	Vertices  []vertexXML `xml:"vertices>vertex"`
	Beams     []beamXML  `xml:"beams>beam"`
}

type beamXML struct {
	V1 int `xml:"v1,attr"`
	V2 int `xml:"v2,attr"`
}

// implicitFunctionXML is one <implicitfunction> resource: a complete
// node graph (§6.1 "Implicit functions map 1:1 to functions in the
// assembly"). Inputs/outputs declare the function's signature (Begin
// arguments, End outputs); Nodes are the body.
type implicitFunctionXML struct {
	ID      uint64       `xml:"id,attr"`
	Name    string       `xml:"name,attr"`
	Inputs  []portXML    `xml:"in>port"`
	Outputs []portXML    `xml:"out>port"`
	Nodes   []nodeXML    `xml:"nodes>node"`
}

// portXML declares one Begin argument or End output: a name and a
// semantic type tag ("scalar"|"vector"|"matrix"|"resourceid").
type portXML struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

// nodeXML is one <node> element inside an <implicitfunction>'s
// <nodes>. Type is the 3MF node-type string (§6.1's enumerated list,
// e.g. "add", "constvec", "functioncall"); Inputs carry either a bound
// Source ("nodeId.port") or a literal attribute value; the literal
// fields Value, X, Y, Z and Mat are only populated for constant-valued
// nodes.
type nodeXML struct {
	ID     string       `xml:"id,attr"`
	Type   string       `xml:"type,attr"`
	Name   string       `xml:"name,attr"`
	Inputs []nodeInputXML `xml:"in>port"`

	// Scalar/vector/matrix literal fields, meaningful only for
	// constant-valued nodes (§6.1 "Constants").
	Value string `xml:"value,attr"`
	X     string `xml:"x,attr"`
	Y     string `xml:"y,attr"`
	Z     string `xml:"z,attr"`
	Mat   string `xml:"matrix,attr"`

	// FunctionID is meaningful only for call-family node types.
	FunctionID uint64 `xml:"functionid,attr"`
	// ResourceID is meaningful only for resourceid/mesh-sdf node
	// types.
	ResourceID uint64 `xml:"resourceid,attr"`
	// ScalarOutput/VectorInput are meaningful only for
	// functiongradient/normalizedistancefield node types.
	ScalarOutput string `xml:"scalaroutput,attr"`
	VectorInput  string `xml:"vectorinput,attr"`
	StepSize     string `xml:"stepsize,attr"`
}

// nodeInputXML is one named input slot on a node: identifier names the
// node's own parameter ("A", "Pos", ...); source, if non-empty, is a
// "nodeId.port" reference per §6.1/§4.2 "Naming"; value is a literal
// fallback when source is empty.
type nodeInputXML struct {
	Identifier string `xml:"identifier,attr"`
	Source     string `xml:"source,attr"`
	Value      string `xml:"value,attr"`
}

type functionFromImage3D struct {
	ID      uint64 `xml:"id,attr"`
	Name    string `xml:"name,attr"`
	ImageID uint64 `xml:"imageid,attr"`
	Scale   string `xml:"scale,attr"`
	Offset  string `xml:"offset,attr"`
	TileU   string `xml:"filter,attr"` // wrap/mirror/clamp, reused across axes for simplicity
}

// levelSetXML is one <levelset> resource (§6.1 "Level-set object"):
// a reference to a scalar-producing function, optionally intersected
// with a mesh's bounding box or SDF, transformed, and unioned into the
// assembly.
type levelSetXML struct {
	ID         uint64  `xml:"id,attr"`
	FunctionID uint64  `xml:"functionid,attr"`
	MeshID     uint64  `xml:"meshid,attr"`
	Transform  string  `xml:"transform,attr"`
	BBoxOnly   bool    `xml:"bboxonly,attr"`
	// Fallback is the scene-wide fallback substituted for a NaN/Inf
	// distance (§3 "Assembly"); empty means none was recorded. An
	// attribute either parses to a finite float or is treated as
	// absent — the importer does not fail the whole resource over it.
	Fallback string `xml:"fallbackvalue,attr"`
}

type buildXML struct {
	Items []buildItemXML `xml:"item"`
}

type buildItemXML struct {
	ObjectID  uint64 `xml:"objectid,attr"`
	Transform string `xml:"transform,attr"`
	PartNumber string `xml:"partnumber,attr"`
}
