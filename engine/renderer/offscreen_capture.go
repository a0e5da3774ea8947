package renderer

import (
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
)

// offscreenTarget holds the GPU-side color and depth attachments for a
// headless render pass plus the cached pass descriptor built against them.
// Unlike the swapchain-backed main render target, both attachments are
// created with CopySrc usage and their StoreOp is Store rather than
// Discard, since the whole point of this target is to read the rendered
// color and depth buffers back to the CPU afterward.
type offscreenTarget struct {
	width, height int

	colorTexture *wgpu.Texture
	colorView    *wgpu.TextureView
	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView

	passDescriptor *wgpu.RenderPassDescriptor
}

const bytesPerRowAlignment = 256

// align256 rounds n up to the next multiple of 256, the row-pitch alignment
// wgpu requires for CopyTextureToBuffer destinations.
func align256(n uint32) uint32 {
	return (n + bytesPerRowAlignment - 1) &^ (bytesPerRowAlignment - 1)
}

// ConfigureOffscreenTarget creates (or re-creates, on a size change) the
// color and depth attachments a headless render pass writes into. Must be
// called once before the first BeginOffscreenFrame for a given size.
func (b *wgpuRendererBackendImpl) ConfigureOffscreenTarget(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	colorTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Offscreen Color Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("failed to create offscreen color texture: %w", err)
	}
	colorView, err := colorTexture.CreateView(nil)
	if err != nil {
		colorTexture.Release()
		return fmt.Errorf("failed to create offscreen color view: %w", err)
	}

	depthTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Offscreen Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		colorView.Release()
		colorTexture.Release()
		return fmt.Errorf("failed to create offscreen depth texture: %w", err)
	}
	depthView, err := depthTexture.CreateView(nil)
	if err != nil {
		depthTexture.Release()
		colorView.Release()
		colorTexture.Release()
		return fmt.Errorf("failed to create offscreen depth view: %w", err)
	}

	if b.offscreen != nil {
		b.releaseOffscreenLocked()
	}

	b.offscreen = &offscreenTarget{
		width:        width,
		height:       height,
		colorTexture: colorTexture,
		colorView:    colorView,
		depthTexture: depthTexture,
		depthView:    depthView,
		passDescriptor: &wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{
				{
					View:    colorView,
					LoadOp:  wgpu.LoadOpClear,
					StoreOp: wgpu.StoreOpStore,
					ClearValue: wgpu.Color{
						R: 0, G: 0, B: 0, A: 1,
					},
				},
			},
			DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
				View:            depthView,
				DepthLoadOp:     wgpu.LoadOpClear,
				DepthStoreOp:    wgpu.StoreOpStore,
				DepthClearValue: 1.0,
			},
		},
	}
	return nil
}

func (b *wgpuRendererBackendImpl) releaseOffscreenLocked() {
	if b.offscreen == nil {
		return
	}
	b.offscreen.depthView.Release()
	b.offscreen.depthTexture.Release()
	b.offscreen.colorView.Release()
	b.offscreen.colorTexture.Release()
	b.offscreen = nil
}

// BeginOffscreenFrame opens a command encoder and render pass targeting the
// offscreen color/depth attachments instead of the swapchain. Mirrors
// BeginFrame's bookkeeping, reusing the same frame* fields since a layer
// pipeline driving this path never also drives the interactive swapchain
// path concurrently.
func (b *wgpuRendererBackendImpl) BeginOffscreenFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.offscreen == nil {
		return fmt.Errorf("ConfigureOffscreenTarget must be called before BeginOffscreenFrame")
	}
	if b.framePass != nil {
		return fmt.Errorf("previous offscreen frame not yet ended")
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create offscreen command encoder: %w", err)
	}

	pass := encoder.BeginRenderPass(b.offscreen.passDescriptor)

	b.frameEncoder = encoder
	b.framePass = pass
	return nil
}

// EndOffscreenFrame ends the render pass and submits it to the queue,
// leaving the offscreen color/depth textures populated for ReadOffscreen*.
func (b *wgpuRendererBackendImpl) EndOffscreenFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return fmt.Errorf("no offscreen frame in progress")
	}

	b.framePass.End()

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
		b.framePass = nil
		return fmt.Errorf("failed to finish offscreen command buffer: %w", err)
	}

	b.queue.Submit(commandBuffer)

	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
	b.framePass = nil
	return nil
}

// ReadOffscreenColor copies the offscreen color attachment back to a tightly
// packed RGBA8 buffer (width*height*4 bytes, row-major, no padding).
func (b *wgpuRendererBackendImpl) ReadOffscreenColor() ([]byte, error) {
	b.mu.Lock()
	target := b.offscreen
	b.mu.Unlock()
	if target == nil {
		return nil, fmt.Errorf("offscreen target not configured")
	}
	return b.copyTextureToCPU(target.colorTexture, target.width, target.height, 4, readRGBA8)
}

// ReadOffscreenDepth copies the offscreen depth attachment back to a
// tightly packed []float32 of normalized device depth values.
func (b *wgpuRendererBackendImpl) ReadOffscreenDepth() ([]float32, error) {
	b.mu.Lock()
	target := b.offscreen
	b.mu.Unlock()
	if target == nil {
		return nil, fmt.Errorf("offscreen target not configured")
	}
	raw, err := b.copyTextureToCPU(target.depthTexture, target.width, target.height, 4, readDepth32)
	if err != nil {
		return nil, err
	}
	return raw.([]float32), nil
}

type rowReader func(packed []byte, width, height int) any

func readRGBA8(packed []byte, width, height int) any { return packed }

func readDepth32(packed []byte, width, height int) any {
	out := make([]float32, width*height)
	for i := range out {
		out[i] = float32frombytes(packed[i*4 : i*4+4])
	}
	return out
}

func float32frombytes(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}

// copyTextureToCPU encodes a CopyTextureToBuffer into a dedicated
// command buffer, submits it, maps the destination buffer for read, and
// strips wgpu's required 256-byte row padding before handing the tightly
// packed result to the given reader.
func (b *wgpuRendererBackendImpl) copyTextureToCPU(tex *wgpu.Texture, width, height, bytesPerTexel int, read rowReader) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	unpaddedBytesPerRow := uint32(width * bytesPerTexel)
	paddedBytesPerRow := align256(unpaddedBytesPerRow)
	bufSize := uint64(paddedBytesPerRow) * uint64(height)

	readbackBuf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "Offscreen Readback Buffer",
		Size:             bufSize,
		Usage:            wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readback buffer: %w", err)
	}
	defer readbackBuf.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create copy command encoder: %w", err)
	}

	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  paddedBytesPerRow,
				RowsPerImage: uint32(height),
			},
			Buffer: readbackBuf,
		},
		&wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
	)

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return nil, fmt.Errorf("failed to finish copy command buffer: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()

	mapDone := make(chan error, 1)
	readbackBuf.MapAsync(wgpu.MapModeRead, 0, bufSize, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapDone <- fmt.Errorf("buffer map failed with status %v", status)
			return
		}
		mapDone <- nil
	})

	for {
		b.device.Poll(true, nil)
		select {
		case err := <-mapDone:
			if err != nil {
				return nil, err
			}
			goto mapped
		default:
		}
	}
mapped:
	mapped := readbackBuf.GetMappedRange(0, uint(bufSize))
	packed := make([]byte, width*bytesPerTexel*height)
	for y := 0; y < height; y++ {
		srcOff := uint32(y) * paddedBytesPerRow
		dstOff := y * width * bytesPerTexel
		copy(packed[dstOff:dstOff+width*bytesPerTexel], mapped[srcOff:srcOff+unpaddedBytesPerRow])
	}
	readbackBuf.Unmap()

	return read(packed, width, height), nil
}
