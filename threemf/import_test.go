package threemf_test

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillfield/implicore/assembly"
	"github.com/quillfield/implicore/graph"
	"github.com/quillfield/implicore/logsink"
	"github.com/quillfield/implicore/resource"
	"github.com/quillfield/implicore/threemf"
	"github.com/quillfield/implicore/value"
)

const fixtureModel = `<?xml version="1.0" encoding="UTF-8"?>
<model unit="millimeter">
  <resources>
    <implicitfunction id="1" name="Radius">
      <in><port name="Pos" type="vector"/></in>
      <out><port name="Distance" type="scalar"/></out>
      <nodes>
        <node id="n1" type="constscalar" value="0.5"></node>
        <node id="outputs" type="end">
          <in><port identifier="Distance" source="n1.Result"/></in>
        </node>
      </nodes>
    </implicitfunction>
  </resources>
  <build/>
</model>`

func buildArchive(t *testing.T, modelText string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create("3D/3dmodel.model")
	require.NoError(t, err)
	_, err = entry.Write([]byte(modelText))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestImportBuildsFunctionFromConstant(t *testing.T) {
	data := buildArchive(t, fixtureModel)
	rec := &logsink.Recording{}
	im := &threemf.Importer{Sink: rec}

	result, err := im.Import(data)
	require.NoError(t, err)
	require.NotNil(t, result)

	f, ok := result.Assembly.FindFunction(1)
	require.True(t, ok)
	assert.Equal(t, "Radius", f.DisplayName)

	end := f.Node(f.End())
	pid, ok := end.ParamID("Distance")
	require.True(t, ok)
	p := f.Parameter(pid)
	require.True(t, p.Bound())

	var foundConst *graph.Node
	f.Nodes(func(n *graph.Node) {
		if n.Kind == graph.KindConstantScalar {
			foundConst = n
		}
	})
	require.NotNil(t, foundConst)
	vid, _ := foundConst.ParamID("Value")
	assert.Equal(t, float32(0.5), f.Parameter(vid).Value.Scalar)

	for _, e := range rec.Events {
		assert.NotEqual(t, logsink.Warning, e.Severity, e.Message)
	}
}

func TestImportMissingModelEntryFails(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	require.NoError(t, zw.Close())

	im := &threemf.Importer{}
	_, err := im.Import(buf.Bytes())
	assert.Error(t, err)
}

func TestValidateResourceRefsWarnsOnDanglingReference(t *testing.T) {
	asm := assembly.New()
	f := asm.AddIfMissing(1, "F")
	n := f.CreateNode(graph.KindResourceId)
	n.ResourceRef = 42

	mockCtrl := gomock.NewController(t)
	table := NewMockTable(mockCtrl)
	table.EXPECT().Lookup(uint64(42)).Return(resource.KindMesh, false)

	rec := &logsink.Recording{}
	threemf.ValidateResourceRefs(asm, table, rec)

	require.Len(t, rec.Events, 1)
	assert.Equal(t, logsink.Warning, rec.Events[0].Severity)
}

func TestValidateResourceRefsSilentWhenResolved(t *testing.T) {
	asm := assembly.New()
	f := asm.AddIfMissing(1, "F")
	n := f.CreateNode(graph.KindResourceId)
	n.ResourceRef = 7

	table := resource.NewMemory()
	table.Register(7, resource.KindMesh)

	rec := &logsink.Recording{}
	threemf.ValidateResourceRefs(asm, table, rec)

	assert.Empty(t, rec.Events)
}

func TestExportOmitsManagedFunctions(t *testing.T) {
	asm := assembly.New()
	plain := asm.AddIfMissing(1, "Plain")
	plain.AddArgument("Pos", value.Vec3)
	plain.AddOutput("Distance", value.Scalar, graph.ScalarLiteral(0))

	managed := asm.AddIfMissing(2, "Helper")
	managed.Managed = true

	var buf bytes.Buffer
	require.NoError(t, threemf.Export(asm, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var modelBytes []byte
	for _, zf := range zr.File {
		if zf.Name == "3D/3dmodel.model" {
			rc, err := zf.Open()
			require.NoError(t, err)
			defer rc.Close()
			buf2 := new(bytes.Buffer)
			_, err = buf2.ReadFrom(rc)
			require.NoError(t, err)
			modelBytes = buf2.Bytes()
		}
	}
	require.NotNil(t, modelBytes)
	assert.Contains(t, string(modelBytes), `id="1"`)
	assert.NotContains(t, string(modelBytes), `id="2"`)
}
