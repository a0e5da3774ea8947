package wire

import "encoding/binary"

// Stage-time slot indices for ViewMetadata.StageTimes. Meaning depends on
// the session's mesh generator kind; unused slots for a given kind stay
// zero. All measurements are milliseconds, mirroring the original
// implementation's per-pass GPU/CPU timer breakdown.
const (
	StageVector = iota
	StageSplit
	StageBase
	StageCombine
	StageDistribute
	StageDiscard
	StageWrite
	StageCPU
	StageLoopSimplification
	StageTriangulation
	StageLoopInfo
	StageLoopSort
	StageSweepLine
	StageAdjacentTwo
	StageAdjacentOne
	StageIntervalSearch
	StageIntervalUpdate
	StageInsideOutside
	StageContourSplit
	StageContour
	// Line-generator specific slots reuse the tail of the array.
	StageEdgeDetection = StageVector
	StageQuadTree      = StageSplit
	StageLineTrace     = StageBase
	stageCount         = 24
)

// ViewMetadata carries per-view timing and count diagnostics for one layer
// response. It replaces the original's per-generator-kind union with a
// fixed stage-time array shared across generator kinds (see StageVector..).
type ViewMetadata struct {
	TimeLayer           float32
	TimeImageEncode     float32
	TimeGeometryEncode  float32
	StageTimes          [stageCount]float32
	LoopCount           uint32
	SegmentCount        uint32
	PointCount          uint32
	LineCount           uint32
}

const viewMetadataSize = 4 + 4 + 4 + stageCount*4 + 4 + 4 + 4 + 4

func putViewMetadata(b []byte, v ViewMetadata) {
	binary.LittleEndian.PutUint32(b[0:], float32bits(v.TimeLayer))
	binary.LittleEndian.PutUint32(b[4:], float32bits(v.TimeImageEncode))
	binary.LittleEndian.PutUint32(b[8:], float32bits(v.TimeGeometryEncode))
	off := 12
	for i := 0; i < stageCount; i++ {
		binary.LittleEndian.PutUint32(b[off:], float32bits(v.StageTimes[i]))
		off += 4
	}
	binary.LittleEndian.PutUint32(b[off:], v.LoopCount)
	off += 4
	binary.LittleEndian.PutUint32(b[off:], v.SegmentCount)
	off += 4
	binary.LittleEndian.PutUint32(b[off:], v.PointCount)
	off += 4
	binary.LittleEndian.PutUint32(b[off:], v.LineCount)
}

func getViewMetadata(b []byte) ViewMetadata {
	var v ViewMetadata
	v.TimeLayer = float32frombits(binary.LittleEndian.Uint32(b[0:]))
	v.TimeImageEncode = float32frombits(binary.LittleEndian.Uint32(b[4:]))
	v.TimeGeometryEncode = float32frombits(binary.LittleEndian.Uint32(b[8:]))
	off := 12
	for i := 0; i < stageCount; i++ {
		v.StageTimes[i] = float32frombits(binary.LittleEndian.Uint32(b[off:]))
		off += 4
	}
	v.LoopCount = binary.LittleEndian.Uint32(b[off:])
	off += 4
	v.SegmentCount = binary.LittleEndian.Uint32(b[off:])
	off += 4
	v.PointCount = binary.LittleEndian.Uint32(b[off:])
	off += 4
	v.LineCount = binary.LittleEndian.Uint32(b[off:])
	return v
}

// LayerResponseHeader is the fixed-size record preceding the geometry and
// image blobs of a LayerResponse packet (S->C).
type LayerResponseHeader struct {
	RequestID    uint32
	LayerIndex   uint32
	GeometryBytes uint32
	ImageBytes   uint32
	ViewMeta     [ViewCountMax]ViewMetadata
	ViewMatrices [ViewCountMax]Matrix
	VertexCounts [ViewCountMax]uint32
	IndexCounts  [ViewCountMax]uint32
}

const layerResponseHeaderSize = 4 + 4 + 4 + 4 +
	ViewCountMax*viewMetadataSize +
	ViewCountMax*MatrixSize +
	ViewCountMax*4 +
	ViewCountMax*4

// EncodeLayerResponse serializes the full LayerResponse packet: tag, header,
// geometry blob, image (video elementary stream) blob.
func EncodeLayerResponse(h LayerResponseHeader, geometry, image []byte) []byte {
	h.GeometryBytes = uint32(len(geometry))
	h.ImageBytes = uint32(len(image))

	total := TagSize + layerResponseHeaderSize + len(geometry) + len(image)
	b := make([]byte, total)
	binary.LittleEndian.PutUint32(b, uint32(TypeLayerResponse))
	p := b[TagSize:]

	binary.LittleEndian.PutUint32(p[0:], h.RequestID)
	binary.LittleEndian.PutUint32(p[4:], h.LayerIndex)
	binary.LittleEndian.PutUint32(p[8:], h.GeometryBytes)
	binary.LittleEndian.PutUint32(p[12:], h.ImageBytes)
	off := 16
	for i := 0; i < ViewCountMax; i++ {
		putViewMetadata(p[off:], h.ViewMeta[i])
		off += viewMetadataSize
	}
	for i := 0; i < ViewCountMax; i++ {
		PutMatrix(p[off:], h.ViewMatrices[i])
		off += MatrixSize
	}
	for i := 0; i < ViewCountMax; i++ {
		binary.LittleEndian.PutUint32(p[off:], h.VertexCounts[i])
		off += 4
	}
	for i := 0; i < ViewCountMax; i++ {
		binary.LittleEndian.PutUint32(p[off:], h.IndexCounts[i])
		off += 4
	}
	off += copy(p[off:], geometry)
	copy(p[off:], image)
	return b
}

// DecodeLayerResponse parses the payload following the type tag into a
// header plus geometry/image blob slices that alias the input buffer.
func DecodeLayerResponse(payload []byte) (LayerResponseHeader, []byte, []byte, error) {
	var h LayerResponseHeader
	if len(payload) < layerResponseHeaderSize {
		return h, nil, nil, &ErrShortPacket{Type: TypeLayerResponse, Got: len(payload), Want: layerResponseHeaderSize}
	}
	h.RequestID = binary.LittleEndian.Uint32(payload[0:])
	h.LayerIndex = binary.LittleEndian.Uint32(payload[4:])
	h.GeometryBytes = binary.LittleEndian.Uint32(payload[8:])
	h.ImageBytes = binary.LittleEndian.Uint32(payload[12:])
	off := 16
	for i := 0; i < ViewCountMax; i++ {
		h.ViewMeta[i] = getViewMetadata(payload[off:])
		off += viewMetadataSize
	}
	for i := 0; i < ViewCountMax; i++ {
		h.ViewMatrices[i] = GetMatrix(payload[off:])
		off += MatrixSize
	}
	for i := 0; i < ViewCountMax; i++ {
		h.VertexCounts[i] = binary.LittleEndian.Uint32(payload[off:])
		off += 4
	}
	for i := 0; i < ViewCountMax; i++ {
		h.IndexCounts[i] = binary.LittleEndian.Uint32(payload[off:])
		off += 4
	}
	want := off + int(h.GeometryBytes) + int(h.ImageBytes)
	if len(payload) < want {
		return h, nil, nil, &ErrShortPacket{Type: TypeLayerResponse, Got: len(payload), Want: want}
	}
	geometry := payload[off : off+int(h.GeometryBytes)]
	image := payload[off+int(h.GeometryBytes) : want]
	return h, geometry, image, nil
}
