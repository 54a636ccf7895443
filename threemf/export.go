package threemf

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/quillfield/implicore/assembly"
	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/value"
)

// Export writes every non-managed function in asm as an
// <implicitfunction> resource in a fresh 3MF archive (§6.1 "Export").
// Managed functions — lowering's synthesized helpers, and the
// functions this package itself synthesizes for functionfromimage3d
// resources and the assembled scene — are the core's own
// implementation detail and are not written back out.
func Export(asm *assembly.Assembly, w io.Writer) error {
	model := modelXML{Unit: "millimeter"}
	model.Metadata = []metadataXML{
		{Name: "Application", Value: "implicore"},
		{Name: "CreationDate", Value: time.Now().UTC().Format(time.RFC3339)},
	}

	asm.Functions(func(id uint64, f *graph.Function) {
		if f.Managed {
			return
		}
		model.Resources.Functions = append(model.Resources.Functions, functionToXML(id, f))
	})

	zw := zip.NewWriter(w)
	if err := writeContentTypes(zw); err != nil {
		return err
	}
	if err := writeRelationships(zw); err != nil {
		return err
	}
	entry, err := zw.Create(modelEntryName)
	if err != nil {
		return wrapIO("creating %s: %v", modelEntryName, err)
	}
	if _, err := entry.Write([]byte(xml.Header)); err != nil {
		return wrapIO("writing %s: %v", modelEntryName, err)
	}
	enc := xml.NewEncoder(entry)
	enc.Indent("", "  ")
	if err := enc.Encode(model); err != nil {
		return wrapIO("encoding %s: %v", modelEntryName, err)
	}
	return zw.Close()
}

func functionToXML(id uint64, f *graph.Function) implicitFunctionXML {
	fx := implicitFunctionXML{ID: id, Name: f.DisplayName}

	begin := f.Node(f.Begin())
	for _, name := range begin.OutputNames() {
		pid, _ := begin.OutputID(name)
		fx.Inputs = append(fx.Inputs, portXML{Name: name, Type: tagForType(f.Port(pid).Type)})
	}
	end := f.Node(f.End())
	for _, name := range end.ParamNames() {
		pid, _ := end.ParamID(name)
		fx.Outputs = append(fx.Outputs, portXML{Name: name, Type: tagForType(f.Parameter(pid).Type)})
	}

	f.Nodes(func(n *graph.Node) {
		if n.ID == f.Begin() || n.ID == f.End() {
			return
		}
		fx.Nodes = append(fx.Nodes, nodeToXML(f, n))
	})

	outputsNode := nodeXML{ID: outputsPseudoNode, Type: "end"}
	for _, name := range end.ParamNames() {
		pid, _ := end.ParamID(name)
		p := f.Parameter(pid)
		in := nodeInputXML{Identifier: name}
		if p.Bound() {
			in.Source = f.PortSourceName(f.Port(p.Source.Port))
		} else {
			in.Value = literalToText(p.Type, p.Value)
		}
		outputsNode.Inputs = append(outputsNode.Inputs, in)
	}
	fx.Nodes = append(fx.Nodes, outputsNode)

	return fx
}

func nodeToXML(f *graph.Function, n *graph.Node) nodeXML {
	nodeType, _ := NodeTypeForKind(n.Kind)
	nx := nodeXML{ID: n.UniqueName, Type: nodeType, Name: n.DisplayName}

	switch n.Kind {
	case graph.KindConstantScalar:
		if pid, ok := n.ParamID("Value"); ok {
			nx.Value = formatFloat(f.Parameter(pid).Value.Scalar)
		}
	case graph.KindConstantVector:
		nx.X = paramText(f, n, "X")
		nx.Y = paramText(f, n, "Y")
		nx.Z = paramText(f, n, "Z")
	case graph.KindConstantMatrix:
		nx.Mat = formatMatrix(f, n)
	case graph.KindFunctionCall:
		nx.FunctionID = n.FunctionID
	case graph.KindFunctionGradient, graph.KindNormalizeDistanceField:
		nx.FunctionID = n.FunctionID
		nx.ScalarOutput = n.ScalarOutput
		nx.VectorInput = n.VectorInput
		if pid, ok := n.ParamID("StepSize"); ok {
			nx.StepSize = formatFloat(f.Parameter(pid).Value.Scalar)
		}
	case graph.KindResourceId, graph.KindSignedDistanceToMesh, graph.KindUnsignedDistanceToMesh, graph.KindImageSampler:
		nx.ResourceID = n.ResourceRef
	}

	for _, name := range n.ParamNames() {
		if name == "FunctionId" || isConstantParamName(n.Kind, name) {
			continue
		}
		pid, _ := n.ParamID(name)
		p := f.Parameter(pid)
		in := nodeInputXML{Identifier: name}
		if p.Bound() {
			in.Source = f.PortSourceName(f.Port(p.Source.Port))
		} else {
			in.Value = literalToText(p.Type, p.Value)
		}
		nx.Inputs = append(nx.Inputs, in)
	}
	return nx
}

func isConstantParamName(k graph.Kind, name string) bool {
	switch k {
	case graph.KindConstantScalar:
		return name == "Value"
	case graph.KindConstantVector:
		return name == "X" || name == "Y" || name == "Z"
	case graph.KindConstantMatrix:
		return len(name) == 3 && name[0] == 'M'
	default:
		return false
	}
}

func paramText(f *graph.Function, n *graph.Node, name string) string {
	pid, ok := n.ParamID(name)
	if !ok {
		return ""
	}
	return formatFloat(f.Parameter(pid).Value.Scalar)
}

func formatMatrix(f *graph.Function, n *graph.Node) string {
	parts := make([]string, 0, 16)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			pid, ok := n.ParamID(matrixParamName(r, c))
			if !ok {
				parts = append(parts, "0")
				continue
			}
			parts = append(parts, formatFloat(f.Parameter(pid).Value.Scalar))
		}
	}
	return strings.Join(parts, " ")
}

func literalToText(t value.Type, lit graph.Literal) string {
	switch t {
	case value.Scalar:
		return formatFloat(lit.Scalar)
	case value.ResourceId:
		return strconv.FormatUint(lit.Resource, 10)
	default:
		return ""
	}
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func tagForType(t value.Type) string {
	switch t {
	case value.Scalar:
		return "scalar"
	case value.Vec3:
		return "vector"
	case value.Mat4:
		return "matrix"
	case value.ResourceId:
		return "resourceid"
	default:
		return ""
	}
}
