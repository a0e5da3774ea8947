package httpadmin

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStore() *memStore { return &memStore{files: map[string][]byte{}} }

func (m *memStore) Read(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return data, nil
}

func (m *memStore) Write(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func TestScenesListsWhatSceneListerReturns(t *testing.T) {
	store := newMemStore()
	h := NewHandler(zerolog.Nop(), func() []string { return []string{"sponza.gltf", "cube.gltf"} }, store)
	mux := http.NewServeMux()
	h.Register(mux)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/scenes")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFilesRoundTrip(t *testing.T) {
	store := newMemStore()
	h := NewHandler(zerolog.Nop(), func() []string { return nil }, store)
	mux := http.NewServeMux()
	h.Register(mux)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	body := []byte("P6\n1 1\n255\n\x01\x02\x03")
	resp, err := http.Post(ts.URL+"/files/capture0.ppm?type=color", "application/octet-stream", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp2, err := http.Get(ts.URL + "/files/capture0.ppm")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, "image/x-portable-pixmap", resp2.Header.Get("Content-Type"))
}

func TestFilesRejectsPathTraversal(t *testing.T) {
	store := newMemStore()
	h := NewHandler(zerolog.Nop(), func() []string { return nil }, store)
	mux := http.NewServeMux()
	h.Register(mux)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/files/../../etc/passwd")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEncodeColorPPMRejectsWrongLength(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeColorPPM(&buf, 2, 2, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestEncodeColorPPMWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	rgb := make([]byte, 2*2*3)
	require.NoError(t, EncodeColorPPM(&buf, 2, 2, rgb))
	require.Equal(t, "P6\n2 2\n255\n", buf.String()[:len("P6\n2 2\n255\n")])
}

func TestEncodeDepthPFMWritesHeaderAndFlipsRows(t *testing.T) {
	var buf bytes.Buffer
	depth := []float32{1, 2, 3, 4}
	require.NoError(t, EncodeDepthPFM(&buf, 2, 2, depth))
	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, []byte("Pf\n2 2\n-1.0\n")))
}

func TestEncodeDepthPFMRejectsWrongLength(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeDepthPFM(&buf, 2, 2, []float32{1})
	require.True(t, errors.Is(err, err) && err != nil)
}

func TestEncodeMeshOBJWritesVerticesAndFaces(t *testing.T) {
	var buf bytes.Buffer
	vertices := []wire.Vertex{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}}
	indices := []wire.Index{0, 1, 2}
	require.NoError(t, EncodeMeshOBJ(&buf, indices, vertices))
	out := buf.String()
	require.Contains(t, out, "v 0 0 0.000000")
	require.Contains(t, out, "f 1 2 3")
}
