package wire

import "encoding/binary"

// LayerSettings controls the depth-discontinuity rejection shared by every
// generator kind when rasterizing the k-th layer against layer k-1.
type LayerSettings struct {
	DepthBaseThreshold  float32
	DepthSlopeThreshold float32
	UseObjectIDs        bool
}

// QuadSettings configures the quad-based mesh generator.
type QuadSettings struct {
	DepthThreshold float32
}

// LineSettings configures the line-based mesh generator.
type LineSettings struct {
	LaplaceThreshold float32
	NormalScale      float32
	LineLengthMin    uint32
}

// LoopSettings configures the loop-based (depth-contour) mesh generator.
type LoopSettings struct {
	DepthBaseThreshold  float32
	DepthSlopeThreshold float32
	NormalThreshold     float32
	TriangleScale       float32
	LoopLengthMin       uint32
	UseNormals          bool
	UseObjectIDs        bool
}

// MeshSettings is the tagged-sum replacement for the original C++ union of
// generator-specific settings: Kind selects which of Quad/Line/Loop is the
// active payload, exactly as REDESIGN FLAGS requires. The wire format still
// carries all three payload shapes (fixed record), but only the one
// matching Kind is meaningful.
type MeshSettings struct {
	Kind     MeshGeneratorKind
	DepthMax float32
	Layer    LayerSettings
	Quad     QuadSettings
	Line     LineSettings
	Loop     LoopSettings
}

// DefaultMeshSettings returns the original implementation's documented
// defaults for the given generator kind (see original_source/shared/source/protocol.hpp).
func DefaultMeshSettings(kind MeshGeneratorKind) MeshSettings {
	s := MeshSettings{
		Kind:     kind,
		DepthMax: 0.995,
		Layer: LayerSettings{
			DepthBaseThreshold:  0.5,
			DepthSlopeThreshold: 0.5,
			UseObjectIDs:        true,
		},
	}
	switch kind {
	case MeshGeneratorQuad:
		s.Quad = QuadSettings{DepthThreshold: 0.001}
	case MeshGeneratorLine:
		s.Line = LineSettings{LaplaceThreshold: 0.003, NormalScale: 0.5, LineLengthMin: 10}
	case MeshGeneratorLoop:
		s.Loop = LoopSettings{
			DepthBaseThreshold:  0.001,
			DepthSlopeThreshold: 0.007,
			NormalThreshold:     3.14159265358 * 0.22222222,
			TriangleScale:       2.0,
			LoopLengthMin:       80,
			UseNormals:          true,
			UseObjectIDs:        true,
		}
	}
	return s
}

const meshSettingsSize = 4 + 4 + (4 + 4 + 1 + 3) + 4 + (4 + 4 + 4) + (4 + 4 + 4 + 4 + 4 + 1 + 1 + 2)

func (m MeshSettings) Encode() []byte {
	b := make([]byte, TagSize+meshSettingsSize)
	binary.LittleEndian.PutUint32(b, uint32(TypeMeshSettings))
	p := b[TagSize:]
	binary.LittleEndian.PutUint32(p[0:], uint32(m.Kind))
	binary.LittleEndian.PutUint32(p[4:], float32bits(m.DepthMax))
	off := 8
	binary.LittleEndian.PutUint32(p[off:], float32bits(m.Layer.DepthBaseThreshold))
	off += 4
	binary.LittleEndian.PutUint32(p[off:], float32bits(m.Layer.DepthSlopeThreshold))
	off += 4
	putBool(p[off:off+1], m.Layer.UseObjectIDs)
	off += 4 // 1 byte + 3 pad
	binary.LittleEndian.PutUint32(p[off:], float32bits(m.Quad.DepthThreshold))
	off += 4
	binary.LittleEndian.PutUint32(p[off:], float32bits(m.Line.LaplaceThreshold))
	off += 4
	binary.LittleEndian.PutUint32(p[off:], float32bits(m.Line.NormalScale))
	off += 4
	binary.LittleEndian.PutUint32(p[off:], m.Line.LineLengthMin)
	off += 4
	binary.LittleEndian.PutUint32(p[off:], float32bits(m.Loop.DepthBaseThreshold))
	off += 4
	binary.LittleEndian.PutUint32(p[off:], float32bits(m.Loop.DepthSlopeThreshold))
	off += 4
	binary.LittleEndian.PutUint32(p[off:], float32bits(m.Loop.NormalThreshold))
	off += 4
	binary.LittleEndian.PutUint32(p[off:], float32bits(m.Loop.TriangleScale))
	off += 4
	binary.LittleEndian.PutUint32(p[off:], m.Loop.LoopLengthMin)
	off += 4
	putBool(p[off:off+1], m.Loop.UseNormals)
	putBool(p[off+1:off+2], m.Loop.UseObjectIDs)
	return b
}

func DecodeMeshSettings(payload []byte) (MeshSettings, error) {
	var m MeshSettings
	if len(payload) < meshSettingsSize {
		return m, &ErrShortPacket{Type: TypeMeshSettings, Got: len(payload), Want: meshSettingsSize}
	}
	m.Kind = MeshGeneratorKind(binary.LittleEndian.Uint32(payload[0:]))
	m.DepthMax = float32frombits(binary.LittleEndian.Uint32(payload[4:]))
	off := 8
	m.Layer.DepthBaseThreshold = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	m.Layer.DepthSlopeThreshold = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	m.Layer.UseObjectIDs = payload[off] != 0
	off += 4
	m.Quad.DepthThreshold = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	m.Line.LaplaceThreshold = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	m.Line.NormalScale = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	m.Line.LineLengthMin = binary.LittleEndian.Uint32(payload[off:])
	off += 4
	m.Loop.DepthBaseThreshold = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	m.Loop.DepthSlopeThreshold = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	m.Loop.NormalThreshold = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	m.Loop.TriangleScale = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	m.Loop.LoopLengthMin = binary.LittleEndian.Uint32(payload[off:])
	off += 4
	m.Loop.UseNormals = payload[off] != 0
	m.Loop.UseObjectIDs = payload[off+1] != 0
	return m, nil
}
