package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// Header layout (little-endian), matching the geometry blob format:
//
//	offset 0    size 256         huffman code-length table
//	offset 256  size 4           index_count
//	offset 260  size 4           index_bytes
//	offset 264  size 4           vertex_count
//	offset 268  size 4           vertex_bytes
//	offset 272  size index_bytes  huffman-packed index stream
//	offset 272+index_bytes        huffman-packed vertex stream
const (
	headerLengthTableSize = symbolCount
	headerSize            = headerLengthTableSize + 4 + 4 + 4 + 4
)

// depthQuantScale converts a normalized [0,1] depth sample to the 15-bit
// integer domain used for delta coding, matching the 1/2*2^-15 max
// quantization error the wire contract documents.
const depthQuantScale = 0x7FFF

// Encode compresses indices and vertices into the geometry wire blob. The
// output is a pure function of the input: identical inputs always encode to
// identical bytes.
func Encode(indices []wire.Index, vertices []wire.Vertex) ([]byte, error) {
	deltaIndices := make([]uint32, len(indices))
	var lastIndex int32
	for i, idx := range indices {
		deltaIndices[i] = zigzag32(int32(idx) - lastIndex)
		lastIndex = int32(idx)
	}

	deltaVertices := make([]uint16, 0, len(vertices)*3)
	var lastX, lastY, lastDepth int16
	for _, v := range vertices {
		depth := int16(uint16(v.Z*depthQuantScale + 0.5))

		dx := zigzag16(int16(v.X) - lastX)
		dy := zigzag16(int16(v.Y) - lastY)
		dd := zigzag16(depth - lastDepth)

		deltaVertices = append(deltaVertices, dx, dy, dd)

		lastX, lastY, lastDepth = int16(v.X), int16(v.Y), depth
	}

	indexBytes := uint32LEBytes(deltaIndices)
	vertexBytes := uint16LEBytes(deltaVertices)

	huff, err := newHuffmanFromHistogram(indexBytes, vertexBytes)
	if err != nil {
		return nil, fmt.Errorf("codec: build huffman table: %w", err)
	}

	packedIndices := huff.encode(indexBytes)
	packedVertices := huff.encode(vertexBytes)

	buf := make([]byte, headerSize+len(packedIndices)+len(packedVertices))
	lengths := huff.lengths()
	copy(buf[0:headerLengthTableSize], lengths[:])
	binary.LittleEndian.PutUint32(buf[256:], uint32(len(indices)))
	binary.LittleEndian.PutUint32(buf[260:], uint32(len(packedIndices)))
	binary.LittleEndian.PutUint32(buf[264:], uint32(len(vertices)))
	binary.LittleEndian.PutUint32(buf[268:], uint32(len(packedVertices)))
	copy(buf[headerSize:], packedIndices)
	copy(buf[headerSize+len(packedIndices):], packedVertices)

	return buf, nil
}

// Decode expands a geometry wire blob back into indices and vertices.
// decode(encode(idx, vtx)) reproduces idx and (x,y) exactly; z is recovered
// to within 1/2*2^-15 due to the 15-bit depth quantization in Encode.
func Decode(buf []byte) ([]wire.Index, []wire.Vertex, error) {
	if len(buf) < headerSize {
		return nil, nil, fmt.Errorf("codec: buffer too small for header: got %d want at least %d", len(buf), headerSize)
	}

	var lengths [symbolCount]byte
	copy(lengths[:], buf[0:headerLengthTableSize])

	indexCount := binary.LittleEndian.Uint32(buf[256:])
	indexBytesLen := binary.LittleEndian.Uint32(buf[260:])
	vertexCount := binary.LittleEndian.Uint32(buf[264:])
	vertexBytesLen := binary.LittleEndian.Uint32(buf[268:])

	indexOff := headerSize
	vertexOff := headerSize + int(indexBytesLen)
	want := vertexOff + int(vertexBytesLen)
	if len(buf) < want {
		return nil, nil, fmt.Errorf("codec: buffer too small for payload: got %d want %d", len(buf), want)
	}

	huff, err := newHuffmanFromLengths(lengths)
	if err != nil {
		return nil, nil, fmt.Errorf("codec: rebuild huffman table: %w", err)
	}

	indexBytes, err := huff.decode(buf[indexOff:vertexOff], int(indexCount)*4)
	if err != nil {
		return nil, nil, fmt.Errorf("codec: decode index stream: %w", err)
	}
	vertexBytes, err := huff.decode(buf[vertexOff:want], int(vertexCount)*3*2)
	if err != nil {
		return nil, nil, fmt.Errorf("codec: decode vertex stream: %w", err)
	}

	indices := make([]wire.Index, indexCount)
	var lastIndex int32
	for i := uint32(0); i < indexCount; i++ {
		encoded := binary.LittleEndian.Uint32(indexBytes[i*4:])
		idx := unzigzag32(encoded) + lastIndex
		indices[i] = wire.Index(idx)
		lastIndex = idx
	}

	vertices := make([]wire.Vertex, vertexCount)
	var lastX, lastY, lastDepth int16
	for i := uint32(0); i < vertexCount; i++ {
		off := i * 6
		dx := binary.LittleEndian.Uint16(vertexBytes[off:])
		dy := binary.LittleEndian.Uint16(vertexBytes[off+2:])
		dd := binary.LittleEndian.Uint16(vertexBytes[off+4:])

		x := unzigzag16(dx) + lastX
		y := unzigzag16(dy) + lastY
		depth := unzigzag16(dd) + lastDepth

		vertices[i] = wire.Vertex{
			X: uint16(x),
			Y: uint16(y),
			Z: float32(uint16(depth)) / float32(depthQuantScale),
		}

		lastX, lastY, lastDepth = x, y, depth
	}

	return indices, vertices, nil
}

func zigzag32(delta int32) uint32 {
	if delta < 0 {
		return (uint32(-delta) << 1) | 1
	}
	return uint32(delta) << 1
}

func unzigzag32(encoded uint32) int32 {
	v := int32(encoded >> 1)
	if encoded&1 != 0 {
		return -v
	}
	return v
}

func zigzag16(delta int16) uint16 {
	if delta < 0 {
		return (uint16(-delta) << 1) | 1
	}
	return uint16(delta) << 1
}

func unzigzag16(encoded uint16) int16 {
	v := int16(encoded >> 1)
	if encoded&1 != 0 {
		return -v
	}
	return v
}

func uint32LEBytes(v []uint32) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:], x)
	}
	return out
}

func uint16LEBytes(v []uint16) []byte {
	out := make([]byte, len(v)*2)
	for i, x := range v {
		binary.LittleEndian.PutUint16(out[i*2:], x)
	}
	return out
}

// QuantizeDepth mirrors the lossy z quantization Encode performs, exposed so
// callers (tests, the client decode session) can compute the expected
// round-tripped depth for a given input without going through the full
// encode/decode cycle.
func QuantizeDepth(z float32) float32 {
	q := uint16(z*depthQuantScale + 0.5)
	return float32(q) / float32(depthQuantScale)
}
