package pipeline

import (
	"sync"
)

// FramesPerLayer is the fixed capacity of each layer's Frame pool, matching
// the original implementation's SESSION_FRAME_COUNT.
const FramesPerLayer = 8

// FramePool is one layer's fixed-size ring of reusable Frames. A session
// owns one FramePool per layer. Acquire blocks the caller's choice between
// waiting and backing off: it returns ok=false immediately if no Frame is
// Empty, so the render loop can apply the ErrBusy/re-enqueue policy instead
// of stalling the whole session on one slow layer.
type FramePool struct {
	mu     sync.Mutex
	frames [FramesPerLayer]*Frame
	empty  []*Frame
	active []*Frame
}

// NewFramePool allocates a full pool of empty Frames.
func NewFramePool() *FramePool {
	p := &FramePool{}
	p.empty = make([]*Frame, 0, FramesPerLayer)
	for i := range p.frames {
		f := &Frame{State: FrameEmpty}
		p.frames[i] = f
		p.empty = append(p.empty, f)
	}
	return p
}

// Acquire takes one Empty Frame from the pool and marks it Recorded, or
// returns ok=false if the pool is exhausted.
func (p *FramePool) Acquire() (*Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.empty) == 0 {
		return nil, false
	}
	f := p.empty[len(p.empty)-1]
	p.empty = p.empty[:len(p.empty)-1]
	f.State = FrameRecorded
	p.active = append(p.active, f)
	return f, true
}

// Release returns a Frame to the empty set once it has been sent (or
// abandoned during teardown). It must currently be tracked as active.
func (p *FramePool) Release(f *Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, a := range p.active {
		if a == f {
			p.active = append(p.active[:i], p.active[i+1:]...)
			break
		}
	}
	f.Reset()
	p.empty = append(p.empty, f)
}

// Active returns a snapshot of the currently active (non-Empty) frames, in
// acquisition order, for the render thread's check_frames-equivalent sweep.
func (p *FramePool) Active() []*Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Frame, len(p.active))
	copy(out, p.active)
	return out
}

// Len reports how many frames are currently active (in flight).
func (p *FramePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}
