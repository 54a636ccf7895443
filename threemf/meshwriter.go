package threemf

import (
	"archive/zip"
	"encoding/xml"
	"io"

	"github.com/quillfield/implicore/value"
)

// MeshResource is a mesh's tessellated geometry: an indexed triangle
// list in the resource's own local space (§6.2 "Mesh export"). It
// never carries node references — only vertex/triangle data, matching
// the writer's own "inspects geometry, never nodes" boundary.
type MeshResource struct {
	Vertices  []value.V3
	Triangles [][3]int
	// PartNumber is an optional identifier copied onto the build
	// item, surfaced by slicers as a part label.
	PartNumber string
}

// Provider answers geometry queries by resource key, the only
// interface WriteMesh depends on (§6.2: "uses only ResourceKey →
// MeshResource queries on the core; it never inspects nodes").
type Provider interface {
	Mesh(key uint64) (MeshResource, bool)
}

// MapProvider is a Provider backed by a plain map, sufficient for the
// importer's round-trip Meshes result and for tests.
type MapProvider map[uint64]MeshResource

func (p MapProvider) Mesh(key uint64) (MeshResource, bool) {
	m, ok := p[key]
	return m, ok
}

// vertexDedupTolerance is the distance below which two vertices in
// the same mesh are merged into one, matching the format's usual
// floating-point wire precision (§6.2).
const vertexDedupTolerance = 1e-6

// WriteMesh writes a minimal 3MF-core archive containing one object
// per key (in the order given), each with one identity-transform
// build item (§6.2 "Minimal mesh writer"). Vertices within
// vertexDedupTolerance of one another are merged and triangle winding
// is assumed already CCW, matching every MeshResource's own
// convention; the writer performs no re-winding.
func WriteMesh(w io.Writer, p Provider, keys []uint64) error {
	zw := zip.NewWriter(w)

	if err := writeContentTypes(zw); err != nil {
		return err
	}
	if err := writeRelationships(zw); err != nil {
		return err
	}

	model := modelXML{Unit: "millimeter"}
	for _, key := range keys {
		mesh, ok := p.Mesh(key)
		if !ok {
			continue
		}
		obj := objectXML{ID: key, Type: "model", Mesh: buildMeshXML(mesh)}
		model.Resources.Objects = append(model.Resources.Objects, obj)

		item := buildItemXML{ObjectID: key, Transform: "1 0 0 0 1 0 0 0 1 0 0 0"}
		if mesh.PartNumber != "" {
			item.PartNumber = mesh.PartNumber
		}
		model.Build.Items = append(model.Build.Items, item)
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

func buildMeshXML(mesh MeshResource) *meshXML {
	mx := &meshXML{}
	unique, remap := dedupVertices(mesh.Vertices)
	mx.Vertices = make([]vertexXML, len(unique))
	for i, v := range unique {
		mx.Vertices[i] = vertexXML{X: v[0], Y: v[1], Z: v[2]}
	}
	mx.Triangles = make([]triangleXML, 0, len(mesh.Triangles))
	for _, t := range mesh.Triangles {
		mx.Triangles = append(mx.Triangles, triangleXML{
			V1: remap[t[0]], V2: remap[t[1]], V3: remap[t[2]],
		})
	}
	return mx
}

// dedupVertices merges vertices within vertexDedupTolerance of one
// another and returns the deduplicated list plus the original-index →
// deduplicated-index remap triangles need.
func dedupVertices(vertices []value.V3) ([]value.V3, []int) {
	remap := make([]int, len(vertices))
	var unique []value.V3
	for i, v := range vertices {
		found := -1
		for j, u := range unique {
			if closeEnough(v, u) {
				found = j
				break
			}
		}
		if found < 0 {
			found = len(unique)
			unique = append(unique, v)
		}
		remap[i] = found
	}
	return unique, remap
}

func closeEnough(a, b value.V3) bool {
	for i := range a {
		d := a[i] - b[i]
		if d < -vertexDedupTolerance || d > vertexDedupTolerance {
			return false
		}
	}
	return true
}

func writeContentTypes(zw *zip.Writer) error {
	f, err := zw.Create("[Content_Types].xml")
	if err != nil {
		return wrapIO("creating content types: %v", err)
	}
	_, err = io.WriteString(f, xml.Header+`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`+
		`<Default Extension="model" ContentType="application/vnd.ms-package.3dmanufacturing-3dmodel+xml"/>`+
		`</Types>`)
	if err != nil {
		return wrapIO("writing content types: %v", err)
	}
	return nil
}

func writeRelationships(zw *zip.Writer) error {
	f, err := zw.Create("_rels/.rels")
	if err != nil {
		return wrapIO("creating relationships: %v", err)
	}
	_, err = io.WriteString(f, xml.Header+`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		`<Relationship Target="/`+modelEntryName+`" Id="rel0" Type="http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"/>`+
		`</Relationships>`)
	if err != nil {
		return wrapIO("writing relationships: %v", err)
	}
	return nil
}
