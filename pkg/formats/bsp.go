package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// BSP format errors.
var (
	ErrInvalidBSPMagic       = errors.New("invalid BSP magic: expected 'IBSP'")
	ErrUnsupportedBSPVersion = errors.New("unsupported BSP version")
	ErrTruncatedBSPData      = errors.New("truncated BSP data")
	ErrBadLumpSize           = errors.New("bad BSP lump size")
)

// BSP versions.
const (
	BSPVersionQuake2 = 38
	BSPVersionQ2W    = 69
)

const bspMagic = "IBSP"

// Lump indices.
const (
	LumpEntities = iota
	LumpPlanes
	LumpVertexes
	LumpVisibility
	LumpNodes
	LumpTexinfo
	LumpFaces
	LumpLighting
	LumpLeafs
	LumpLeafFaces
	LumpLeafBrushes
	LumpEdges
	LumpFaceEdges
	LumpModels
	LumpBrushes
	LumpBrushSides
	LumpPop
	LumpAreas
	LumpAreaPortals
	LumpNormals
	NumLumps
)

// Texinfo surface flags.
const (
	SurfLight     = 0x1
	SurfSlick     = 0x2
	SurfSky       = 0x4
	SurfWarp      = 0x8
	SurfBlend33   = 0x10
	SurfBlend66   = 0x20
	SurfFlowing   = 0x40
	SurfNoDraw    = 0x80
	SurfHint      = 0x100
	SurfSkip      = 0x200
	SurfAlphaTest = 0x400
	SurfPhong     = 0x800
	SurfMaterial  = 0x1000
)

// BSPLump locates one lump in the file.
type BSPLump struct {
	Offset int32
	Length int32
}

// BSPPlane is a splitting plane.
type BSPPlane struct {
	Normal mgl32.Vec3
	Dist   float32
	Type   int32
}

// BSPNode is an interior node. Negative children are -(leaf+1).
type BSPNode struct {
	PlaneNum  int32
	Children  [2]int32
	Mins      [3]int16
	Maxs      [3]int16
	FirstFace uint16
	NumFaces  uint16
}

// BSPTexinfo holds the texture axes of a face. Vecs[i] is xyz axis plus offset.
type BSPTexinfo struct {
	Vecs        [2]mgl32.Vec4
	Flags       int32
	Value       int32
	Texture     [32]byte
	NextTexinfo int32
}

// Name returns the texture name without padding.
func (t *BSPTexinfo) Name() string {
	return strings.TrimRight(string(t.Texture[:]), "\x00")
}

// BSPEdge joins two vertexes.
type BSPEdge struct {
	V [2]uint16
}

// BSPFace is a planar polygon.
type BSPFace struct {
	PlaneNum    uint16
	Side        int16
	FirstEdge   int32
	NumEdges    int16
	Texinfo     int16
	Styles      [4]uint8
	LightOffset int32 // -1 = unlit
}

// BSPLeaf is a convex region of the tree.
type BSPLeaf struct {
	Contents       int32
	Cluster        int16
	Area           int16
	Mins           [3]int16
	Maxs           [3]int16
	FirstLeafFace  uint16
	NumLeafFaces   uint16
	FirstLeafBrush uint16
	NumLeafBrushes uint16
}

// BSPModel is the world (index 0) or an inline submodel.
type BSPModel struct {
	Mins      mgl32.Vec3
	Maxs      mgl32.Vec3
	Origin    mgl32.Vec3
	HeadNode  int32
	FirstFace int32
	NumFaces  int32
}

// BSP is a decoded map file. Only the lumps the renderer draws from are kept.
type BSP struct {
	Version    int32
	Entities   string
	Planes     []BSPPlane
	Vertexes   []mgl32.Vec3
	Normals    []mgl32.Vec3 // per vertex, Q2W only
	Visibility []byte
	Nodes      []BSPNode
	Texinfos   []BSPTexinfo
	Faces      []BSPFace
	Lighting   []byte
	Leafs      []BSPLeaf
	LeafFaces  []uint16
	Edges      []BSPEdge
	FaceEdges  []int32
	Models     []BSPModel
}

// Directional reports whether lighting samples interleave a direction with
// each color.
func (b *BSP) Directional() bool { return b.Version == BSPVersionQ2W }

// FaceVertex returns the index of the i-th winding vertex of f.
func (b *BSP) FaceVertex(f *BSPFace, i int) (int, error) {
	fe := int(f.FirstEdge) + i
	if fe < 0 || fe >= len(b.FaceEdges) {
		return 0, fmt.Errorf("%w: face edge %d of %d", ErrTruncatedBSPData, fe, len(b.FaceEdges))
	}
	e := b.FaceEdges[fe]
	side := 0
	if e < 0 {
		e, side = -e, 1
	}
	// -MinInt32 overflows back to negative
	if e < 0 || int(e) >= len(b.Edges) {
		return 0, fmt.Errorf("%w: edge %d of %d", ErrTruncatedBSPData, e, len(b.Edges))
	}
	v := int(b.Edges[e].V[side])
	if v >= len(b.Vertexes) {
		return 0, fmt.Errorf("%w: vertex %d of %d", ErrTruncatedBSPData, v, len(b.Vertexes))
	}
	return v, nil
}

// LoadBSP reads and parses a BSP file from disk.
func LoadBSP(path string) (*BSP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading BSP file: %w", err)
	}
	return ParseBSP(data)
}

// ParseBSP parses a BSP file from raw bytes.
func ParseBSP(data []byte) (*BSP, error) {
	if len(data) < 8 {
		return nil, ErrTruncatedBSPData
	}
	if string(data[0:4]) != bspMagic {
		return nil, ErrInvalidBSPMagic
	}

	version := int32(binary.LittleEndian.Uint32(data[4:]))
	numLumps := 0
	switch version {
	case BSPVersionQuake2:
		numLumps = LumpNormals
	case BSPVersionQ2W:
		numLumps = NumLumps
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBSPVersion, version)
	}

	lumps := make([]BSPLump, NumLumps)
	r := bytes.NewReader(data[8:])
	if err := binary.Read(r, binary.LittleEndian, lumps[:numLumps]); err != nil {
		return nil, fmt.Errorf("%w: reading lump directory", ErrTruncatedBSPData)
	}
	for i, l := range lumps[:numLumps] {
		if l.Offset < 0 || l.Length < 0 || int64(l.Offset)+int64(l.Length) > int64(len(data)) {
			return nil, fmt.Errorf("%w: lump %d at %d+%d exceeds %d bytes", ErrTruncatedBSPData, i, l.Offset, l.Length, len(data))
		}
	}

	bsp := &BSP{Version: version}
	lump := func(i int) []byte {
		l := lumps[i]
		return data[l.Offset : l.Offset+l.Length]
	}

	bsp.Entities = strings.TrimRight(string(lump(LumpEntities)), "\x00")
	bsp.Visibility = lump(LumpVisibility)
	bsp.Lighting = lump(LumpLighting)

	var err error
	if bsp.Planes, err = readLump[BSPPlane](lump(LumpPlanes), "planes"); err != nil {
		return nil, err
	}
	if bsp.Vertexes, err = readLump[mgl32.Vec3](lump(LumpVertexes), "vertexes"); err != nil {
		return nil, err
	}
	if bsp.Nodes, err = readLump[BSPNode](lump(LumpNodes), "nodes"); err != nil {
		return nil, err
	}
	if bsp.Texinfos, err = readLump[BSPTexinfo](lump(LumpTexinfo), "texinfo"); err != nil {
		return nil, err
	}
	if bsp.Faces, err = readLump[BSPFace](lump(LumpFaces), "faces"); err != nil {
		return nil, err
	}
	if bsp.Leafs, err = readLump[BSPLeaf](lump(LumpLeafs), "leafs"); err != nil {
		return nil, err
	}
	if bsp.LeafFaces, err = readLump[uint16](lump(LumpLeafFaces), "leaf faces"); err != nil {
		return nil, err
	}
	if bsp.Edges, err = readLump[BSPEdge](lump(LumpEdges), "edges"); err != nil {
		return nil, err
	}
	if bsp.FaceEdges, err = readLump[int32](lump(LumpFaceEdges), "face edges"); err != nil {
		return nil, err
	}
	if bsp.Models, err = readLump[BSPModel](lump(LumpModels), "models"); err != nil {
		return nil, err
	}

	if version == BSPVersionQ2W {
		if bsp.Normals, err = readLump[mgl32.Vec3](lump(LumpNormals), "normals"); err != nil {
			return nil, err
		}
		if len(bsp.Normals) != len(bsp.Vertexes) {
			return nil, fmt.Errorf("%w: %d normals for %d vertexes", ErrBadLumpSize, len(bsp.Normals), len(bsp.Vertexes))
		}
	}

	return bsp, nil
}

// readLump decodes a lump of fixed-size records.
func readLump[T any](data []byte, name string) ([]T, error) {
	var zero T
	size := binary.Size(zero)
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%w: %s lump is %d bytes, not a multiple of %d", ErrBadLumpSize, name, len(data), size)
	}
	out := make([]T, len(data)/size)
	if len(out) == 0 {
		return out, nil
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("%w: reading %s", ErrTruncatedBSPData, name)
	}
	return out, nil
}

// MarshalBinary encodes b in its version's layout, lumps 4-byte aligned.
func (b *BSP) MarshalBinary() ([]byte, error) {
	numLumps := LumpNormals
	switch b.Version {
	case BSPVersionQuake2:
	case BSPVersionQ2W:
		numLumps = NumLumps
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBSPVersion, b.Version)
	}

	payload := make([]any, NumLumps)
	payload[LumpEntities] = []byte(b.Entities)
	payload[LumpPlanes] = b.Planes
	payload[LumpVertexes] = b.Vertexes
	payload[LumpVisibility] = b.Visibility
	payload[LumpNodes] = b.Nodes
	payload[LumpTexinfo] = b.Texinfos
	payload[LumpFaces] = b.Faces
	payload[LumpLighting] = b.Lighting
	payload[LumpLeafs] = b.Leafs
	payload[LumpLeafFaces] = b.LeafFaces
	payload[LumpEdges] = b.Edges
	payload[LumpFaceEdges] = b.FaceEdges
	payload[LumpModels] = b.Models
	payload[LumpNormals] = b.Normals

	var body bytes.Buffer
	lumps := make([]BSPLump, numLumps)
	start := 8 + numLumps*8
	for i := 0; i < numLumps; i++ {
		for body.Len()%4 != 0 {
			body.WriteByte(0)
		}
		lumps[i].Offset = int32(start + body.Len())
		if p := payload[i]; p != nil {
			if err := binary.Write(&body, binary.LittleEndian, p); err != nil {
				return nil, fmt.Errorf("encoding lump %d: %w", i, err)
			}
		}
		lumps[i].Length = int32(start+body.Len()) - lumps[i].Offset
	}

	var out bytes.Buffer
	out.Grow(start + body.Len())
	out.WriteString(bspMagic)
	binary.Write(&out, binary.LittleEndian, b.Version)
	binary.Write(&out, binary.LittleEndian, lumps)
	out.Write(body.Bytes())
	return out.Bytes(), nil
}
