// Package httpadmin implements the HTTP side channel the original
// implementation's export/capture harness used for offline inspection: a
// scene listing, and a files endpoint to fetch or push capture artifacts
// (color images as PPM, depth images as PFM, meshes as OBJ), grounded on
// original_source/server/source/export.hpp's export_color_image/
// export_depth_image/export_mesh functions.
package httpadmin

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"

	"github.com/rs/zerolog"

	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// ArtifactKind selects the export format POST /files/<path> writes the
// request body out as.
type ArtifactKind string

const (
	ArtifactColorImage ArtifactKind = "color"
	ArtifactDepthImage ArtifactKind = "depth"
	ArtifactMesh       ArtifactKind = "mesh"
	ArtifactLog        ArtifactKind = "log"
)

// SceneLister reports the scene files the server can currently render, for
// GET /scenes.
type SceneLister func() []string

// FileStore is the filesystem-like capture store GET/POST /files/<path>
// reads from and writes to. A real deployment backs this with os.Root or
// equivalent; tests use an in-memory map.
type FileStore interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
}

// Handler serves the admin HTTP surface.
type Handler struct {
	log    zerolog.Logger
	scenes SceneLister
	store  FileStore
}

func NewHandler(log zerolog.Logger, scenes SceneLister, store FileStore) *Handler {
	return &Handler{log: log, scenes: scenes, store: store}
}

// Register mounts the admin endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/scenes", h.handleScenes)
	mux.HandleFunc("/files/", h.handleFiles)
}

func (h *Handler) handleScenes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	scenes := h.scenes()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(scenes); err != nil {
		h.log.Error().Err(err).Msg("encode scene list")
	}
}

func (h *Handler) handleFiles(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/files/")
	if path == "" || strings.Contains(path, "..") {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		data, err := h.store.Read(path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", contentTypeFor(path))
		_, _ = w.Write(data)

	case http.MethodPost:
		kind := ArtifactKind(r.URL.Query().Get("type"))
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.store.Write(path, body); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.log.Info().Str("path", path).Str("kind", string(kind)).Int("bytes", len(body)).Msg("stored capture artifact")
		w.WriteHeader(http.StatusCreated)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".ppm":
		return "image/x-portable-pixmap"
	case ".pfm":
		return "image/x-portable-floatmap"
	case ".obj":
		return "model/obj"
	case ".bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// EncodeColorPPM writes rgb (tightly packed RGB8 rows, top-to-bottom) as a
// binary PPM (P6), the format export_color_image wrote.
func EncodeColorPPM(w io.Writer, width, height int, rgb []byte) error {
	if len(rgb) != width*height*3 {
		return fmt.Errorf("httpadmin: color buffer has %d bytes, want %d", len(rgb), width*height*3)
	}
	header := fmt.Sprintf("P6\n%d %d\n255\n", width, height)
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err := w.Write(rgb)
	return err
}

// EncodeDepthPFM writes a single-channel float32 depth buffer as a binary
// PFM (Pf), the format export_depth_image wrote. PFM rows are stored
// bottom-to-top by convention; depth is supplied top-to-bottom and flipped
// here.
func EncodeDepthPFM(w io.Writer, width, height int, depth []float32) error {
	if len(depth) != width*height {
		return fmt.Errorf("httpadmin: depth buffer has %d samples, want %d", len(depth), width*height)
	}
	header := fmt.Sprintf("Pf\n%d %d\n-1.0\n", width, height)
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	row := make([]byte, width*4)
	for y := height - 1; y >= 0; y-- {
		for x := 0; x < width; x++ {
			bits := math.Float32bits(depth[y*width+x])
			row[x*4+0] = byte(bits)
			row[x*4+1] = byte(bits >> 8)
			row[x*4+2] = byte(bits >> 16)
			row[x*4+3] = byte(bits >> 24)
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// EncodeMeshOBJ writes indices/vertices as a Wavefront OBJ, matching
// export_mesh's role as a debug/inspection artifact (not a wire format).
func EncodeMeshOBJ(w io.Writer, indices []wire.Index, vertices []wire.Vertex) error {
	for _, v := range vertices {
		if _, err := fmt.Fprintf(w, "v %d %d %f\n", v.X, v.Y, v.Z); err != nil {
			return err
		}
	}
	for i := 0; i+2 < len(indices); i += 3 {
		if _, err := fmt.Fprintf(w, "f %d %d %d\n", indices[i]+1, indices[i+1]+1, indices[i+2]+1); err != nil {
			return err
		}
	}
	return nil
}

// EncodeThumbnailBMP produces a quick preview thumbnail of a captured
// color buffer using golang.org/x/image's BMP encoder, for browsing capture
// artifacts without a PPM-aware viewer.
func EncodeThumbnailBMP(w io.Writer, img image.Image) error {
	return bmp.Encode(w, img)
}
