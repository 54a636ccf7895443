package threemf

import "github.com/quillfield/implicore/graph"

// nodeTypeToKind maps a 3MF <node type="..."> string to the
// corresponding graph.Kind (§6.1: "Each 3MF node type corresponds to a
// core node subtype"). kindToNodeType is built from this table so the
// two directions can never drift apart.
var nodeTypeToKind = map[string]graph.Kind{
	"add": graph.KindAdd, "sub": graph.KindSub, "mul": graph.KindMul, "div": graph.KindDiv,

	"constscalar": graph.KindConstantScalar,
	"constvec":    graph.KindConstantVector,
	"constmat":    graph.KindConstantMatrix,

	"composevector":   graph.KindComposeVector,
	"decomposevector": graph.KindDecomposeVector,
	"composematrix":   graph.KindComposeMatrix,
	"composematrixfromcolumns": graph.KindComposeMatrixFromColumns,
	"composematrixfromrows":    graph.KindComposeMatrixFromRows,

	"min": graph.KindMin, "max": graph.KindMax, "abs": graph.KindAbs,
	"clamp": graph.KindClamp, "select": graph.KindSelect,

	"sin": graph.KindSin, "cos": graph.KindCos, "tan": graph.KindTan,
	"asin": graph.KindAsin, "acos": graph.KindAcos, "atan": graph.KindAtan,
	"sinh": graph.KindSinh, "cosh": graph.KindCosh, "tanh": graph.KindTanh,

	"pow": graph.KindPow, "sqrt": graph.KindSqrt, "exp": graph.KindExp,
	"log": graph.KindLog, "log2": graph.KindLog2, "log10": graph.KindLog10,

	"fmod": graph.KindFmod, "mod": graph.KindMod,

	"sign": graph.KindSign, "round": graph.KindRound, "ceil": graph.KindCeil,
	"floor": graph.KindFloor, "fract": graph.KindFract,

	"length": graph.KindLength, "dot": graph.KindDot, "cross": graph.KindCross,

	"matvecmul":  graph.KindMatrixVectorMul,
	"transpose":  graph.KindTranspose,
	"inverse":    graph.KindInverse,
	"transform":  graph.KindTransform,

	"signeddistancetomesh":   graph.KindSignedDistanceToMesh,
	"unsigneddistancetomesh": graph.KindUnsignedDistanceToMesh,
	"imagesampler":           graph.KindImageSampler,
	"boxminmax":              graph.KindBoxMinMax,

	"functioncall":            graph.KindFunctionCall,
	"functiongradient":        graph.KindFunctionGradient,
	"normalizedistancefield":  graph.KindNormalizeDistanceField,

	"resourceid": graph.KindResourceId,
	"vectorfromscalar": graph.KindVectorFromScalar,
}

var kindToNodeType = func() map[graph.Kind]string {
	m := make(map[graph.Kind]string, len(nodeTypeToKind))
	for s, k := range nodeTypeToKind {
		m[k] = s
	}
	return m
}()

// KindForNodeType returns the graph.Kind for a 3MF node-type string.
func KindForNodeType(t string) (graph.Kind, bool) {
	k, ok := nodeTypeToKind[t]
	return k, ok
}

// NodeTypeForKind returns the 3MF node-type string for a graph.Kind,
// used by the exporter's inverse mapping (§6.1 "Export").
func NodeTypeForKind(k graph.Kind) (string, bool) {
	s, ok := kindToNodeType[k]
	return s, ok
}

// isConstantKind reports whether k's literal value lives directly on
// the node rather than behind a bound parameter source (§6.1
// "Constants set the node's literal parameter values... and clear
// their input_source_required flag").
func isConstantKind(k graph.Kind) bool {
	switch k {
	case graph.KindConstantScalar, graph.KindConstantVector, graph.KindConstantMatrix:
		return true
	default:
		return false
	}
}
