package threemf

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/quillfield/implicore/assembly"
	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/internal/idset"
	"github.com/quillfield/implicore/logsink"
	"github.com/quillfield/implicore/resource"
	"github.com/quillfield/implicore/value"
)

// modelEntryName is the archive-relative path 3MF readers and writers
// use for the root model part, per the format's packaging convention.
const modelEntryName = "3D/3dmodel.model"

// outputsPseudoNode names the <node> entry that binds a function's
// End parameters, the mirror image of graph.InputsPseudoNode for
// Begin (§4.2 "Naming", §6.1).
const outputsPseudoNode = "outputs"

// Importer reads a 3MF archive into an assembly.Assembly plus a
// resource.Memory table describing every mesh/image3D/beam-lattice
// resource it found (§6.1, §5 "Shared-resource policy"). A nil Sink
// discards diagnostics.
type Importer struct {
	Sink   logsink.Sink
	linker *assembly.Linker
}

func (im *Importer) sink() logsink.Sink {
	if im.Sink == nil {
		return logsink.SilentSink{}
	}
	return im.Sink
}

// Result is everything one Import call produces.
type Result struct {
	Assembly  *assembly.Assembly
	Resources *resource.Memory
	Meshes    map[uint64]MeshResource
	Unit      Unit
}

// Import reads a 3MF archive (a zip container with a 3D/3dmodel.model
// entry) and builds an Assembly from its resources and build items
// (§6.1). It is non-strict: a malformed or partially unreadable
// archive produces whatever resources parsed cleanly plus a Warning
// per failure, rather than aborting (§7 "the importer leaves the
// assembly in a consistent state").
func (im *Importer) Import(data []byte) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, wrapIO("not a valid zip archive: %v", err)
	}

	var modelFile *zip.File
	for _, f := range zr.File {
		if f.Name == modelEntryName {
			modelFile = f
			break
		}
	}
	if modelFile == nil {
		return nil, wrapIO("missing %s entry", modelEntryName)
	}
	rc, err := modelFile.Open()
	if err != nil {
		return nil, wrapIO("opening %s: %v", modelEntryName, err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, wrapIO("reading %s: %v", modelEntryName, err)
	}

	var m modelXML
	if err := xml.Unmarshal(raw, &m); err != nil {
		return nil, wrapIO("parsing %s: %v", modelEntryName, err)
	}

	unit := ParseUnit(m.Unit)
	asm := assembly.New()
	im.linker = assembly.NewLinker(asm, im.sink())
	resTable := resource.NewMemory()
	meshes := make(map[uint64]MeshResource)

	for _, obj := range m.Resources.Objects {
		if obj.Mesh != nil {
			resTable.Register(obj.ID, resource.KindMesh)
			meshes[obj.ID] = meshFromXML(obj.Mesh)
		} else if obj.Components != nil {
			resTable.Register(obj.ID, resource.KindComponentsObject)
		}
	}
	for _, img := range m.Resources.Image3Ds {
		resTable.Register(img.ID, resource.KindImage3D)
	}
	for _, bl := range m.Resources.BeamLattices {
		resTable.Register(bl.ID, resource.KindBeamLattice)
	}

	for _, fn := range m.Resources.Functions {
		if err := im.importFunction(asm, fn); err != nil {
			im.sink().Warningf("threemf: function %d: %v", fn.ID, err)
		}
	}
	for _, fi := range m.Resources.FunctionsFromImage3D {
		im.importFunctionFromImage3D(asm, fi)
	}

	im.linker.PropagateCallIO()

	if len(m.Resources.LevelSets) > 0 || len(m.Build.Items) > 0 {
		im.assembleScene(asm, unit, m)
	}

	ValidateResourceRefs(asm, resTable, im.sink())

	return &Result{Assembly: asm, Resources: resTable, Meshes: meshes, Unit: unit}, nil
}

// ValidateResourceRefs walks every resource-consuming node across asm
// and warns through sink for any ResourceRef absent from table (§5:
// "ids are opaque to the core and validated only at the 3MF boundary
// and by the GPU runtime"; this is that boundary check). It never
// mutates the assembly: a dangling reference is reported, not
// repaired, leaving the owning node's existing Valid flag as-is.
func ValidateResourceRefs(asm *assembly.Assembly, table resource.Table, sink logsink.Sink) {
	asm.Functions(func(_ uint64, f *graph.Function) {
		f.Nodes(func(n *graph.Node) {
			switch n.Kind {
			case graph.KindResourceId, graph.KindSignedDistanceToMesh, graph.KindUnsignedDistanceToMesh, graph.KindImageSampler:
			default:
				return
			}
			if n.ResourceRef == 0 {
				return
			}
			if _, ok := table.Lookup(n.ResourceRef); !ok {
				sink.Warningf("threemf: function %d: node %s: resource %d not found", f.ResourceID, n.UniqueName, n.ResourceRef)
			}
		})
	})
}

func meshFromXML(m *meshXML) MeshResource {
	mr := MeshResource{Vertices: make([]value.V3, len(m.Vertices)), Triangles: make([][3]int, len(m.Triangles))}
	for i, v := range m.Vertices {
		mr.Vertices[i] = value.V3{v.X, v.Y, v.Z}
	}
	for i, t := range m.Triangles {
		mr.Triangles[i] = [3]int{t.V1, t.V2, t.V3}
	}
	return mr
}

// importFunction builds one graph.Function from an <implicitfunction>
// resource: its signature (Begin arguments, End outputs), then every
// node, then every link (§6.1 "Implicit functions map 1:1 to
// functions").
func (im *Importer) importFunction(asm *assembly.Assembly, fx implicitFunctionXML) error {
	f := asm.AddIfMissing(fx.ID, fx.Name)

	for _, in := range fx.Inputs {
		f.AddArgument(in.Name, typeForTag(in.Type))
	}
	for _, out := range fx.Outputs {
		f.AddOutput(out.Name, typeForTag(out.Type), graph.Literal{})
	}

	byXMLID := make(map[string]*graph.Node, len(fx.Nodes))
	for _, nx := range fx.Nodes {
		// A node entry whose id is the "outputs" pseudo-node binds
		// End's parameters (the mirror image of how a source of
		// "inputs.Name" addresses Begin) rather than creating a new
		// node; it reuses the End node the signature loop above
		// already populated.
		if nx.ID == outputsPseudoNode {
			byXMLID[nx.ID] = f.Node(f.End())
			continue
		}
		kind, ok := KindForNodeType(nx.Type)
		if !ok {
			im.sink().Warningf("threemf: function %d: unknown node type %q, skipping", fx.ID, nx.Type)
			continue
		}
		n := f.CreateNode(kind)
		if nx.Name != "" {
			n.DisplayName = nx.Name
		}
		byXMLID[nx.ID] = n

		switch kind {
		case graph.KindFunctionCall:
			id, err := f.AddNodeParam(n.ID, graph.ParamSpec{Name: "FunctionId", Type: value.ResourceId, Modifiable: true})
			if err == nil {
				f.Parameter(id).Value = graph.ResourceLiteral(nx.FunctionID)
			}
			n.FunctionID = nx.FunctionID
		case graph.KindFunctionGradient, graph.KindNormalizeDistanceField:
			if pid, ok := n.ParamID("FunctionId"); ok {
				f.Parameter(pid).Value = graph.ResourceLiteral(nx.FunctionID)
			}
			n.FunctionID = nx.FunctionID
			n.ScalarOutput = nx.ScalarOutput
			n.VectorInput = nx.VectorInput
			if nx.StepSize != "" {
				if pid, ok := n.ParamID("StepSize"); ok {
					f.Parameter(pid).Value = graph.ScalarLiteral(parseFloat(nx.StepSize))
				}
			}
		case graph.KindResourceId, graph.KindSignedDistanceToMesh, graph.KindUnsignedDistanceToMesh, graph.KindImageSampler:
			n.ResourceRef = nx.ResourceID
			setResourceParams(f, n, nx.ResourceID)
		}

		if isConstantKind(kind) {
			applyConstant(f, n, nx)
		}
	}

	for _, nx := range fx.Nodes {
		n, ok := byXMLID[nx.ID]
		if !ok {
			continue
		}
		for _, in := range nx.Inputs {
			pid, ok := n.ParamID(in.Identifier)
			if !ok {
				continue
			}
			if in.Source == "" {
				if in.Value != "" {
					applyLiteralText(f.Parameter(pid), in.Value)
				}
				continue
			}
			portID, ok := im.resolveSource(f, byXMLID, in.Source)
			if !ok {
				im.sink().Warningf("threemf: function %d: node %s: unresolved source %q", fx.ID, nx.ID, in.Source)
				continue
			}
			if err := f.Link(portID, pid, true); err != nil {
				im.sink().Warningf("threemf: function %d: node %s: %v", fx.ID, nx.ID, err)
			}
		}
	}

	return f.Infer()
}

// resolveSource parses a "nodeId.port" source name (§6.1, §4.2
// "Naming"), with InputsPseudoNode denoting the function's Begin.
func (im *Importer) resolveSource(f *graph.Function, byXMLID map[string]*graph.Node, src string) (idset.ID, bool) {
	dot := strings.LastIndex(src, ".")
	if dot < 0 {
		return 0, false
	}
	nodeRef, portName := src[:dot], src[dot+1:]

	var n *graph.Node
	if nodeRef == graph.InputsPseudoNode {
		n = f.Node(f.Begin())
	} else {
		n = byXMLID[nodeRef]
	}
	if n == nil {
		return 0, false
	}
	return n.OutputID(portName)
}

func setResourceParams(f *graph.Function, n *graph.Node, resID uint64) {
	for _, name := range n.ParamNames() {
		if name == "FunctionId" {
			continue
		}
		pid, _ := n.ParamID(name)
		p := f.Parameter(pid)
		if p.Type == value.ResourceId {
			p.Value = graph.ResourceLiteral(resID)
		}
	}
}

func applyConstant(f *graph.Function, n *graph.Node, nx nodeXML) {
	switch n.Kind {
	case graph.KindConstantScalar:
		if pid, ok := n.ParamID("Value"); ok {
			f.Parameter(pid).Value = graph.ScalarLiteral(parseFloat(nx.Value))
			f.Parameter(pid).InputSourceRequired = false
		}
	case graph.KindConstantVector:
		setScalarParam(f, n, "X", nx.X)
		setScalarParam(f, n, "Y", nx.Y)
		setScalarParam(f, n, "Z", nx.Z)
	case graph.KindConstantMatrix:
		fields := strings.Fields(nx.Mat)
		for r := 0; r < 4 && r*4 < len(fields)+4; r++ {
			for c := 0; c < 4; c++ {
				idx := r*4 + c
				if idx >= len(fields) {
					continue
				}
				name := matrixParamName(r, c)
				if pid, ok := n.ParamID(name); ok {
					f.Parameter(pid).Value = graph.ScalarLiteral(parseFloat(fields[idx]))
					f.Parameter(pid).InputSourceRequired = false
				}
			}
		}
	}
}

func matrixParamName(r, c int) string {
	digits := "0123456789"
	return "M" + string(digits[r]) + string(digits[c])
}

func setScalarParam(f *graph.Function, n *graph.Node, name, text string) {
	if pid, ok := n.ParamID(name); ok {
		f.Parameter(pid).Value = graph.ScalarLiteral(parseFloat(text))
		f.Parameter(pid).InputSourceRequired = false
	}
}

func applyLiteralText(p *graph.Parameter, text string) {
	switch p.Type {
	case value.Scalar:
		p.Value = graph.ScalarLiteral(parseFloat(text))
	case value.ResourceId:
		if v, err := strconv.ParseUint(text, 10, 64); err == nil {
			p.Value = graph.ResourceLiteral(v)
		}
	}
}

func parseFloat(s string) float32 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	if err != nil {
		return 0
	}
	return float32(v)
}

func typeForTag(tag string) value.Type {
	switch tag {
	case "scalar":
		return value.Scalar
	case "vector":
		return value.Vec3
	case "matrix":
		return value.Mat4
	case "resourceid":
		return value.ResourceId
	default:
		return value.Invalid
	}
}

// importFunctionFromImage3D synthesizes a small managed function
// wrapping a KindImageSampler node, so a <functionfromimage3d>
// resource can be referenced by id exactly like an <implicitfunction>
// (§6.1 "Function-from-image-3D").
func (im *Importer) importFunctionFromImage3D(asm *assembly.Assembly, fi functionFromImage3D) {
	f := graph.NewFunction(fi.ID, fi.Name)
	f.Managed = true

	posPort := f.AddArgument("Pos", value.Vec3)
	rgbOut := f.AddOutput("RGB", value.Vec3, graph.Vec3Literal(value.V3{}))
	alphaOut := f.AddOutput("Alpha", value.Scalar, graph.ScalarLiteral(0))
	colorOut := f.AddOutput("Color", value.Vec3, graph.Vec3Literal(value.V3{}))

	sampler := f.CreateNode(graph.KindImageSampler)
	sampler.ResourceRef = fi.ImageID
	setResourceParams(f, sampler, fi.ImageID)
	setScalarParam(f, sampler, "Scale", defaultText(fi.Scale, "1"))
	setScalarParam(f, sampler, "Offset", defaultText(fi.Offset, "0"))

	if pid, ok := sampler.ParamID("Pos"); ok {
		f.Link(posPort, pid, true)
	}

	if rgbID, ok := sampler.OutputID("RGB"); ok {
		f.Link(rgbID, rgbOut, true)
	}
	if alphaID, ok := sampler.OutputID("Alpha"); ok {
		f.Link(alphaID, alphaOut, true)
	}
	if colorID, ok := sampler.OutputID("Color"); ok {
		f.Link(colorID, colorOut, true)
	}

	f.Infer()
	asm.InsertFunction(f)
}

func defaultText(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// assembleScene synthesizes the assembly's distinguished top-level
// function out of the archive's level-set resources and mesh build
// items (§3 "Assembly", §6.1): every item's world-space position is
// mapped back into its own local space by the item's (unit-scaled)
// inverse transform, evaluated, and unioned into one Distance output
// via KindMin. A level set paired with a mesh id is intersected with
// that mesh's signed distance via KindMax, approximating the format's
// bbox-only clipping (the node catalogue has no dedicated bbox-only
// opcode, so the exact mesh SDF stands in for it).
func (im *Importer) assembleScene(asm *assembly.Assembly, unit Unit, m modelXML) {
	sceneID := asm.NextResourceID()
	scene := graph.NewFunction(sceneID, "Scene")
	scene.Managed = true

	posArg := scene.AddArgument("Pos", value.Vec3)
	distOut := scene.AddOutput("Distance", value.Scalar, graph.ScalarLiteral(0))
	unitScale := unit.UnitsPerMM()

	var accumulator idset.ID
	haveAccum := false
	union := func(branch idset.ID) {
		if !haveAccum {
			accumulator = branch
			haveAccum = true
			return
		}
		n := scene.CreateNode(graph.KindMin)
		if aid, ok := n.ParamID("A"); ok {
			scene.Link(accumulator, aid, true)
		}
		if bid, ok := n.ParamID("B"); ok {
			scene.Link(branch, bid, true)
		}
		accumulator, _ = n.OutputID("Result")
	}

	for _, ls := range m.Resources.LevelSets {
		localPos := im.transformPos(scene, posArg, ls.Transform, unitScale)

		call := scene.CreateNode(graph.KindFunctionCall)
		fidParam, _ := scene.AddNodeParam(call.ID, graph.ParamSpec{Name: "FunctionId", Type: value.ResourceId, Modifiable: true})
		scene.Parameter(fidParam).Value = graph.ResourceLiteral(ls.FunctionID)
		im.linker.MirrorNode(scene, call)
		if pid, ok := call.ParamID("Pos"); ok {
			scene.Link(localPos, pid, true)
		}

		outName := firstScalarOutput(asm, ls.FunctionID)
		if outName == "" {
			im.sink().Warningf("threemf: level set %d: function %d has no scalar output", ls.ID, ls.FunctionID)
			continue
		}
		branch, ok := call.OutputID(outName)
		if !ok {
			continue
		}

		if ls.MeshID != 0 {
			sdf := scene.CreateNode(graph.KindSignedDistanceToMesh)
			sdf.ResourceRef = ls.MeshID
			setResourceParams(scene, sdf, ls.MeshID)
			if pid, ok := sdf.ParamID("Pos"); ok {
				scene.Link(localPos, pid, true)
			}
			combine := scene.CreateNode(graph.KindMax)
			if aid, ok := combine.ParamID("A"); ok {
				scene.Link(branch, aid, true)
			}
			if bid, ok := combine.ParamID("B"); ok {
				if sdfOut, ok := sdf.OutputID("Distance"); ok {
					scene.Link(sdfOut, bid, true)
				}
			}
			branch, _ = combine.OutputID("Result")
		}

		union(branch)
	}

	for _, item := range m.Build.Items {
		obj := findObject(m, item.ObjectID)
		if obj == nil || obj.Mesh == nil {
			continue
		}
		localPos := im.transformPos(scene, posArg, item.Transform, unitScale)
		sdf := scene.CreateNode(graph.KindSignedDistanceToMesh)
		sdf.ResourceRef = item.ObjectID
		setResourceParams(scene, sdf, item.ObjectID)
		if pid, ok := sdf.ParamID("Pos"); ok {
			scene.Link(localPos, pid, true)
		}
		if branch, ok := sdf.OutputID("Distance"); ok {
			union(branch)
		}
	}

	if haveAccum {
		scene.Link(accumulator, distOut, true)
	}
	scene.Infer()
	asm.InsertFunction(scene)
	asm.SetAssemblyFunction(sceneID)

	if fb, ok := parseFallback(m.Resources.LevelSets); ok {
		asm.SetFallback(graph.ScalarLiteral(fb))
	}
}

// transformPos builds the inverse of a 3MF build-item/level-set
// transform (scaled into millimeters) as a ConstantMatrix node and
// routes posPort through it via a Transform node, returning the
// resulting local-space output port.
func (im *Importer) transformPos(f *graph.Function, posPort idset.ID, transform string, unitsPerMM float32) idset.ID {
	var m value.M4
	m.FromFlat16(flat16FromTransform(transform))
	m[3][0] *= unitsPerMM
	m[3][1] *= unitsPerMM
	m[3][2] *= unitsPerMM
	var inv value.M4
	inv.Invert(&m)
	flat := inv.Flat16()

	matNode := f.CreateNode(graph.KindConstantMatrix)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if pid, ok := matNode.ParamID(matrixParamName(r, c)); ok {
				f.Parameter(pid).Value = graph.ScalarLiteral(flat[r*4+c])
				f.Parameter(pid).InputSourceRequired = false
			}
		}
	}
	matPort, _ := matNode.OutputID("Matrix")

	tr := f.CreateNode(graph.KindTransform)
	if pid, ok := tr.ParamID("Pos"); ok {
		f.Link(posPort, pid, true)
	}
	if pid, ok := tr.ParamID("Matrix"); ok {
		f.Link(matPort, pid, true)
	}
	resultPort, _ := tr.OutputID("Result")
	return resultPort
}

// flat16FromTransform parses a 3MF "t00 t01 t02 t10 t11 t12 t20 t21
// t22 t30 t31 t32" transform attribute (a row-major 4x3 matrix: three
// basis rows plus a translation row) into row-major Mat4 components,
// filling in the missing fourth column with the identity column. A
// missing or malformed attribute yields the identity transform.
func flat16FromTransform(s string) [16]float32 {
	var f [16]float32
	f[15] = 1
	fields := strings.Fields(s)
	if len(fields) != 12 {
		f[0], f[5], f[10] = 1, 1, 1
		return f
	}
	vals := make([]float32, 12)
	for i, tok := range fields {
		vals[i] = parseFloat(tok)
	}
	for r := 0; r < 4; r++ {
		for c := 0; c < 3; c++ {
			f[r*4+c] = vals[r*3+c]
		}
	}
	f[3*4+3] = 1
	return f
}

func firstScalarOutput(asm *assembly.Assembly, funcID uint64) string {
	callee, ok := asm.FindFunction(funcID)
	if !ok {
		return ""
	}
	end := callee.Node(callee.End())
	for _, name := range end.ParamNames() {
		pid, _ := end.ParamID(name)
		if callee.Parameter(pid).Type == value.Scalar {
			return name
		}
	}
	return ""
}

func findObject(m modelXML, id uint64) *objectXML {
	for i := range m.Resources.Objects {
		if m.Resources.Objects[i].ID == id {
			return &m.Resources.Objects[i]
		}
	}
	return nil
}

func parseFallback(levelSets []levelSetXML) (float32, bool) {
	for _, ls := range levelSets {
		if ls.Fallback == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(ls.Fallback), 32)
		if err != nil {
			continue
		}
		return float32(v), true
	}
	return 0, false
}
