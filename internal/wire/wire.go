// Package wire implements the binary packet format described in the
// protocol section of the streaming pipeline design: a 4-byte little-endian
// type tag followed by a fixed-size record, with layer responses and log
// packets trailing variable-length blobs after their record.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Type identifies the kind of packet on the wire. The numeric values are
// part of the wire contract and must never be renumbered.
type Type uint32

const (
	TypeSessionCreate  Type = 0 // C->S
	TypeSessionDestroy Type = 1 // C->S
	TypeRenderRequest  Type = 2 // C->S
	TypeMeshSettings   Type = 3 // C->S
	TypeVideoSettings  Type = 4 // C->S
	TypeLayerResponse  Type = 5 // S->C
	TypeLogInit        Type = 6 // C->S
	TypeLogWrite       Type = 7 // C->S
	TypeServerEvent    Type = 8 // S->C
)

func (t Type) String() string {
	switch t {
	case TypeSessionCreate:
		return "SessionCreate"
	case TypeSessionDestroy:
		return "SessionDestroy"
	case TypeRenderRequest:
		return "RenderRequest"
	case TypeMeshSettings:
		return "MeshSettings"
	case TypeVideoSettings:
		return "VideoSettings"
	case TypeLayerResponse:
		return "LayerResponse"
	case TypeLogInit:
		return "LogInit"
	case TypeLogWrite:
		return "LogWrite"
	case TypeServerEvent:
		return "ServerEvent"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(t))
	}
}

// Fixed sizes from the wire contract.
const (
	NameMax       = 1024 // fixed NUL-terminated/padded string field length
	ViewCountMax  = 6    // views per request/response
	ExportCount   = 4    // export file name slots on RenderRequest
	MatrixFloats  = 16   // column-major 4x4 matrix
	TagSize       = 4    // every packet begins with a 4-byte LE type tag
	MatrixSize    = MatrixFloats * 4
	stringPadZero = 0
)

// Matrix is a column-major 4x4 matrix of 32-bit floats.
type Matrix [MatrixFloats]float32

// PutMatrix writes m to b (must have len(b) >= MatrixSize) in column-major,
// little-endian IEEE-754 binary32 order.
func PutMatrix(b []byte, m Matrix) {
	for i, f := range m {
		binary.LittleEndian.PutUint32(b[i*4:], float32bits(f))
	}
}

// GetMatrix reads a Matrix from b (must have len(b) >= MatrixSize).
func GetMatrix(b []byte) Matrix {
	var m Matrix
	for i := range m {
		m[i] = float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return m
}

// Vertex is the 8-byte wire vertex: (u16 x, u16 y, f32 z), z in [0,1]
// normalized device depth.
type Vertex struct {
	X, Y uint16
	Z    float32
}

const VertexSize = 8

// PutVertex writes v to b (must have len(b) >= VertexSize).
func PutVertex(b []byte, v Vertex) {
	binary.LittleEndian.PutUint16(b[0:], v.X)
	binary.LittleEndian.PutUint16(b[2:], v.Y)
	binary.LittleEndian.PutUint32(b[4:], float32bits(v.Z))
}

// GetVertex reads a Vertex from b (must have len(b) >= VertexSize).
func GetVertex(b []byte) Vertex {
	return Vertex{
		X: binary.LittleEndian.Uint16(b[0:]),
		Y: binary.LittleEndian.Uint16(b[2:]),
		Z: float32frombits(binary.LittleEndian.Uint32(b[4:])),
	}
}

// Index is the 4-byte wire triangle index.
type Index = uint32

// PutString writes s into a fixed NameMax-byte NUL-terminated/padded ASCII
// field. s is truncated if it would not fit with its terminator.
func PutString(b []byte, s string) {
	if len(b) < NameMax {
		panic("wire: string field buffer too small")
	}
	n := len(s)
	if n > NameMax-1 {
		n = NameMax - 1
	}
	copy(b, s[:n])
	for i := n; i < NameMax; i++ {
		b[i] = stringPadZero
	}
}

// GetString reads a fixed NameMax-byte field, stopping at the first NUL.
func GetString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ErrShortPacket is returned by Decode* functions when a payload is smaller
// than the fixed record it is expected to carry. Callers treat this as a
// protocol error: log, drop the packet, keep the connection.
type ErrShortPacket struct {
	Type     Type
	Got, Want int
}

func (e *ErrShortPacket) Error() string {
	return fmt.Sprintf("wire: short %s packet: got %d bytes, want at least %d", e.Type, e.Got, e.Want)
}

func float32bits(f float32) uint32 {
	return math.Float32bits(f)
}

func float32frombits(b uint32) float32 {
	return math.Float32frombits(b)
}
