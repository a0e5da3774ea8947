package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionCreateRoundTrip(t *testing.T) {
	in := SessionCreate{
		MeshGenerator:          MeshGeneratorLoop,
		VideoCodec:             VideoCodecH265,
		ChromaSubsampling:      true,
		ProjectionMatrix:       Matrix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		ResolutionW:            1920,
		ResolutionH:            1080,
		LayerCount:             3,
		ViewCount:              6,
		SceneFileName:          "scenes/office.gltf",
		SceneScale:             1.5,
		SceneExposure:          1.0,
		SceneIndirectIntensity: 0.8,
		SkyFileName:            "sky.hdr",
		SkyIntensity:           2.0,
		ExportEnabled:          true,
	}
	frame := in.Encode()

	tag, payload, err := PeekType(frame)
	require.NoError(t, err)
	require.Equal(t, TypeSessionCreate, tag)

	out, err := DecodeSessionCreate(payload)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestSessionCreateShortPacket(t *testing.T) {
	_, err := DecodeSessionCreate(make([]byte, 4))
	require.Error(t, err)
}

func TestRenderRequestRoundTrip(t *testing.T) {
	in := RenderRequest{RequestID: 42}
	in.ExportFileNames[0] = "color.ppm"
	in.ViewMatrices[0] = Matrix{1}
	frame := in.Encode()

	tag, payload, err := PeekType(frame)
	require.NoError(t, err)
	require.Equal(t, TypeRenderRequest, tag)

	out, err := DecodeRenderRequest(payload)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestMeshSettingsRoundTrip(t *testing.T) {
	in := DefaultMeshSettings(MeshGeneratorLoop)
	frame := in.Encode()
	_, payload, err := PeekType(frame)
	require.NoError(t, err)

	out, err := DecodeMeshSettings(payload)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestLayerResponseRoundTrip(t *testing.T) {
	var h LayerResponseHeader
	h.RequestID = 7
	h.LayerIndex = 1
	h.VertexCounts[0] = 3
	h.IndexCounts[0] = 3
	h.ViewMeta[0].TimeLayer = 1.25
	h.ViewMeta[0].LoopCount = 4

	geometry := []byte{1, 2, 3, 4}
	image := []byte{9, 9, 9}

	frame := EncodeLayerResponse(h, geometry, image)
	tag, payload, err := PeekType(frame)
	require.NoError(t, err)
	require.Equal(t, TypeLayerResponse, tag)

	outH, outGeom, outImg, err := DecodeLayerResponse(payload)
	require.NoError(t, err)
	require.Equal(t, uint32(4), outH.GeometryBytes)
	require.Equal(t, uint32(3), outH.ImageBytes)
	require.Equal(t, h.VertexCounts, outH.VertexCounts)
	require.Equal(t, float32(1.25), outH.ViewMeta[0].TimeLayer)
	require.Equal(t, geometry, outGeom)
	require.Equal(t, image, outImg)
}

func TestLogInitRoundTrip(t *testing.T) {
	in := LogInit{Interval: LogIntervalPerFrame, Columns: []string{"fps", "latency_ms"}}
	frame := in.Encode()
	_, payload, err := PeekType(frame)
	require.NoError(t, err)

	out, err := DecodeLogInit(payload)
	require.NoError(t, err)
	require.Equal(t, in.Interval, out.Interval)
	require.Equal(t, in.Columns, out.Columns)
}

func TestLogWriteRoundTrip(t *testing.T) {
	in := LogWrite{Interval: LogIntervalPerLayerWrite, Values: []float32{1, 2.5, -3}}
	frame := in.Encode()
	_, payload, err := PeekType(frame)
	require.NoError(t, err)

	out, err := DecodeLogWrite(payload)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestServerEventRoundTrip(t *testing.T) {
	in := ServerEvent{Action: ServerActionNextCondition}
	frame := in.Encode()
	_, payload, err := PeekType(frame)
	require.NoError(t, err)

	out, err := DecodeServerEvent(payload)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestStringFieldTruncatesAndTerminates(t *testing.T) {
	b := make([]byte, NameMax)
	PutString(b, "hello")
	require.Equal(t, "hello", GetString(b))

	overlong := make([]byte, NameMax+8)
	for i := range overlong {
		overlong[i] = 'a'
	}
	PutString(b, string(overlong))
	got := GetString(b)
	require.Less(t, len(got), NameMax)
}
