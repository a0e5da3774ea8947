package wire

import "encoding/binary"

// MeshGeneratorKind selects which mesh generation algorithm a session uses.
type MeshGeneratorKind uint32

const (
	MeshGeneratorQuad MeshGeneratorKind = 0x00
	MeshGeneratorLine MeshGeneratorKind = 0x01
	MeshGeneratorLoop MeshGeneratorKind = 0x02
)

// VideoCodec selects the hardware video codec a session encodes with.
type VideoCodec uint32

const (
	VideoCodecH264 VideoCodec = 0x00
	VideoCodecH265 VideoCodec = 0x01
	VideoCodecAV1  VideoCodec = 0x02
)

// VideoMode selects constant-bitrate or constant-quality encoding.
type VideoMode uint32

const (
	VideoModeCBR VideoMode = 0x00
	VideoModeCQ  VideoMode = 0x01
)

// SessionCreate is the C->S config record that opens a session.
// Wire layout (little-endian, matches §6 field-exact sizes):
//
//	tag(4) mesh_generator(4) video_codec(4) chroma_subsampling(1,+3 pad)
//	projection_matrix(64) resolution_w(4) resolution_h(4) layer_count(4)
//	view_count(4) scene_file_name(1024) scene_scale(4) scene_exposure(4)
//	scene_indirect_intensity(4) sky_file_name(1024) sky_intensity(4)
//	export_enabled(1)
type SessionCreate struct {
	MeshGenerator           MeshGeneratorKind
	VideoCodec              VideoCodec
	ChromaSubsampling       bool
	ProjectionMatrix        Matrix
	ResolutionW             uint32
	ResolutionH             uint32
	LayerCount              uint32
	ViewCount               uint32
	SceneFileName           string
	SceneScale              float32
	SceneExposure           float32
	SceneIndirectIntensity  float32
	SkyFileName             string
	SkyIntensity            float32
	ExportEnabled           bool
}

const sessionCreateSize = 4 + 4 + 1 + 3 + MatrixSize + 4 + 4 + 4 + 4 + NameMax + 4 + 4 + 4 + NameMax + 4 + 1

// Encode serializes a SessionCreate packet including its leading type tag.
func (s SessionCreate) Encode() []byte {
	b := make([]byte, TagSize+sessionCreateSize)
	binary.LittleEndian.PutUint32(b, uint32(TypeSessionCreate))
	p := b[TagSize:]
	binary.LittleEndian.PutUint32(p[0:], uint32(s.MeshGenerator))
	binary.LittleEndian.PutUint32(p[4:], uint32(s.VideoCodec))
	putBool(p[8:9], s.ChromaSubsampling)
	off := 12
	PutMatrix(p[off:], s.ProjectionMatrix)
	off += MatrixSize
	binary.LittleEndian.PutUint32(p[off:], s.ResolutionW)
	off += 4
	binary.LittleEndian.PutUint32(p[off:], s.ResolutionH)
	off += 4
	binary.LittleEndian.PutUint32(p[off:], s.LayerCount)
	off += 4
	binary.LittleEndian.PutUint32(p[off:], s.ViewCount)
	off += 4
	PutString(p[off:off+NameMax], s.SceneFileName)
	off += NameMax
	binary.LittleEndian.PutUint32(p[off:], float32bits(s.SceneScale))
	off += 4
	binary.LittleEndian.PutUint32(p[off:], float32bits(s.SceneExposure))
	off += 4
	binary.LittleEndian.PutUint32(p[off:], float32bits(s.SceneIndirectIntensity))
	off += 4
	PutString(p[off:off+NameMax], s.SkyFileName)
	off += NameMax
	binary.LittleEndian.PutUint32(p[off:], float32bits(s.SkyIntensity))
	off += 4
	putBool(p[off:off+1], s.ExportEnabled)
	return b
}

// DecodeSessionCreate parses the payload following the type tag (payload
// does not include the tag itself).
func DecodeSessionCreate(payload []byte) (SessionCreate, error) {
	var s SessionCreate
	if len(payload) < sessionCreateSize {
		return s, &ErrShortPacket{Type: TypeSessionCreate, Got: len(payload), Want: sessionCreateSize}
	}
	s.MeshGenerator = MeshGeneratorKind(binary.LittleEndian.Uint32(payload[0:]))
	s.VideoCodec = VideoCodec(binary.LittleEndian.Uint32(payload[4:]))
	s.ChromaSubsampling = payload[8] != 0
	off := 12
	s.ProjectionMatrix = GetMatrix(payload[off:])
	off += MatrixSize
	s.ResolutionW = binary.LittleEndian.Uint32(payload[off:])
	off += 4
	s.ResolutionH = binary.LittleEndian.Uint32(payload[off:])
	off += 4
	s.LayerCount = binary.LittleEndian.Uint32(payload[off:])
	off += 4
	s.ViewCount = binary.LittleEndian.Uint32(payload[off:])
	off += 4
	s.SceneFileName = GetString(payload[off : off+NameMax])
	off += NameMax
	s.SceneScale = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	s.SceneExposure = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	s.SceneIndirectIntensity = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	s.SkyFileName = GetString(payload[off : off+NameMax])
	off += NameMax
	s.SkyIntensity = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	s.ExportEnabled = payload[off] != 0
	return s, nil
}

// RenderRequest is the C->S per-frame render trigger.
//
//	tag(4) request_id(4) export_file_names(4*1024) view_matrices(6*64)
type RenderRequest struct {
	RequestID       uint32
	ExportFileNames [ExportCount]string
	ViewMatrices    [ViewCountMax]Matrix
}

const renderRequestSize = 4 + ExportCount*NameMax + ViewCountMax*MatrixSize

func (r RenderRequest) Encode() []byte {
	b := make([]byte, TagSize+renderRequestSize)
	binary.LittleEndian.PutUint32(b, uint32(TypeRenderRequest))
	p := b[TagSize:]
	binary.LittleEndian.PutUint32(p[0:], r.RequestID)
	off := 4
	for i := 0; i < ExportCount; i++ {
		PutString(p[off:off+NameMax], r.ExportFileNames[i])
		off += NameMax
	}
	for i := 0; i < ViewCountMax; i++ {
		PutMatrix(p[off:], r.ViewMatrices[i])
		off += MatrixSize
	}
	return b
}

func DecodeRenderRequest(payload []byte) (RenderRequest, error) {
	var r RenderRequest
	if len(payload) < renderRequestSize {
		return r, &ErrShortPacket{Type: TypeRenderRequest, Got: len(payload), Want: renderRequestSize}
	}
	r.RequestID = binary.LittleEndian.Uint32(payload[0:])
	off := 4
	for i := 0; i < ExportCount; i++ {
		r.ExportFileNames[i] = GetString(payload[off : off+NameMax])
		off += NameMax
	}
	for i := 0; i < ViewCountMax; i++ {
		r.ViewMatrices[i] = GetMatrix(payload[off:])
		off += MatrixSize
	}
	return r, nil
}

// VideoSettings is the C->S encoder reconfiguration record.
//
//	tag(4) mode(4) framerate(4) bitrate(4) quality(4)
type VideoSettings struct {
	Mode      VideoMode
	Framerate uint32
	Bitrate   float32
	Quality   float32
}

const videoSettingsSize = 4 + 4 + 4 + 4

func (v VideoSettings) Encode() []byte {
	b := make([]byte, TagSize+videoSettingsSize)
	binary.LittleEndian.PutUint32(b, uint32(TypeVideoSettings))
	p := b[TagSize:]
	binary.LittleEndian.PutUint32(p[0:], uint32(v.Mode))
	binary.LittleEndian.PutUint32(p[4:], v.Framerate)
	binary.LittleEndian.PutUint32(p[8:], float32bits(v.Bitrate))
	binary.LittleEndian.PutUint32(p[12:], float32bits(v.Quality))
	return b
}

func DecodeVideoSettings(payload []byte) (VideoSettings, error) {
	var v VideoSettings
	if len(payload) < videoSettingsSize {
		return v, &ErrShortPacket{Type: TypeVideoSettings, Got: len(payload), Want: videoSettingsSize}
	}
	v.Mode = VideoMode(binary.LittleEndian.Uint32(payload[0:]))
	v.Framerate = binary.LittleEndian.Uint32(payload[4:])
	v.Bitrate = float32frombits(binary.LittleEndian.Uint32(payload[8:]))
	v.Quality = float32frombits(binary.LittleEndian.Uint32(payload[12:]))
	return v, nil
}

func putBool(b []byte, v bool) {
	if v {
		b[0] = 1
	} else {
		b[0] = 0
	}
}
