// Package workerpool runs the per-view mesh triangulation workers and the
// single submit worker that assembles a completed layer and hands it to the
// transport, mirroring the original implementation's WorkerPool (one
// goroutine per view plus a submit goroutine, front-of-queue FIFO submit
// ordering) translated into goroutines, a mutex and two condition
// variables.
package workerpool

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/streamproxy/internal/pipeline"
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// Triangulator produces the index/vertex streams for one view of one Frame.
// It is supplied by the mesh generator currently active on the session.
type Triangulator func(view int, frame *pipeline.Frame) ([]wire.Index, []wire.Vertex, error)

// Submitter hands a fully assembled layer (concatenated per-view geometry
// plus the frame's encoded image) to the transport layer for delivery to
// the client. It is called from the single submit worker, so layers are
// always submitted in the FIFO order frames were enqueued.
type Submitter func(frame *pipeline.Frame, indices []wire.Index, vertices []wire.Vertex) error

// workItem is the Go analog of the original's WorkerFrame: one Frame's
// per-view mesh results in progress, plus the completion flags the mesh
// workers set and the submit worker waits on.
type workItem struct {
	frame    *pipeline.Frame
	indices  [][]wire.Index
	vertices [][]wire.Vertex
	complete []bool
}

// Pool runs ViewCount mesh-worker goroutines (one per camera view) and one
// submit-worker goroutine over a shared input queue, matching the original
// worker_mesh/worker_submit split: mesh workers race to claim the first
// not-yet-complete-for-their-view item; the submit worker only ever pops
// the queue's front item, and only once every view has completed it, so
// layers submit to the client in the order they were enqueued regardless of
// per-view triangulation time.
type Pool struct {
	viewCount    int
	triangulate  Triangulator
	submit       Submitter
	onMeshError  func(view int, frame *pipeline.Frame, err error)
	onSubmitError func(frame *pipeline.Frame, err error)

	mu           sync.Mutex
	inputCond    *sync.Cond
	meshCond     *sync.Cond
	inputQueue   []*workItem
	outputQueue  []*pipeline.Frame
	active       bool

	wg sync.WaitGroup
}

// New constructs a Pool. Start must be called before Submit is used.
func New(viewCount int, triangulate Triangulator, submit Submitter) *Pool {
	p := &Pool{
		viewCount:   viewCount,
		triangulate: triangulate,
		submit:      submit,
	}
	p.inputCond = sync.NewCond(&p.mu)
	p.meshCond = sync.NewCond(&p.mu)
	return p
}

// OnMeshError/OnSubmitError register optional error observers, used by the
// session to turn a generator or transport failure into a session.Error.
func (p *Pool) OnMeshError(f func(view int, frame *pipeline.Frame, err error)) { p.onMeshError = f }
func (p *Pool) OnSubmitError(f func(frame *pipeline.Frame, err error))         { p.onSubmitError = f }

// Start launches the mesh and submit goroutines.
func (p *Pool) Start() {
	p.mu.Lock()
	p.active = true
	p.mu.Unlock()

	for view := 0; view < p.viewCount; view++ {
		p.wg.Add(1)
		go p.runMeshWorker(view)
	}
	p.wg.Add(1)
	go p.runSubmitWorker()
}

// Stop deactivates the pool, wakes every waiting goroutine, and joins them,
// returning every Frame still queued (input or output) so the caller can
// release them back to their FramePool, matching WorkerPool::destroy.
func (p *Pool) Stop() []*pipeline.Frame {
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()
	p.inputCond.Broadcast()
	p.meshCond.Broadcast()
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	var frames []*pipeline.Frame
	for _, item := range p.inputQueue {
		frames = append(frames, item.frame)
	}
	frames = append(frames, p.outputQueue...)
	p.inputQueue = nil
	p.outputQueue = nil
	return frames
}

// Submit enqueues a Frame for mesh triangulation and eventual submission.
// The Frame must already be in FrameGpuInFlight or later with its GPU work
// recorded; Submit only tracks bookkeeping state, it does not itself touch
// the GPU.
func (p *Pool) Submit(frame *pipeline.Frame) {
	item := &workItem{
		frame:    frame,
		indices:  make([][]wire.Index, p.viewCount),
		vertices: make([][]wire.Vertex, p.viewCount),
		complete: make([]bool, p.viewCount),
	}

	p.mu.Lock()
	p.inputQueue = append(p.inputQueue, item)
	p.mu.Unlock()
	p.inputCond.Broadcast()
}

// Reclaim drains and returns every Frame the submit worker has finished
// with, for the caller to release back to its FramePool.
func (p *Pool) Reclaim() []*pipeline.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.outputQueue
	p.outputQueue = nil
	return out
}

func (p *Pool) runMeshWorker(view int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		var item *workItem
		for {
			for _, candidate := range p.inputQueue {
				if !candidate.complete[view] {
					item = candidate
					break
				}
			}
			if item != nil {
				break
			}
			if !p.active {
				p.mu.Unlock()
				return
			}
			p.inputCond.Wait()
		}
		p.mu.Unlock()

		indices, vertices, err := p.triangulate(view, item.frame)
		if err != nil {
			if p.onMeshError != nil {
				p.onMeshError(view, item.frame, err)
			}
			indices, vertices = nil, nil
		}

		p.mu.Lock()
		item.indices[view] = indices
		item.vertices[view] = vertices
		item.complete[view] = true
		p.mu.Unlock()
		p.meshCond.Broadcast()
	}
}

func (p *Pool) runSubmitWorker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		var item *workItem
		for {
			if len(p.inputQueue) > 0 && allComplete(p.inputQueue[0]) {
				item = p.inputQueue[0]
				break
			}
			if !p.active {
				p.mu.Unlock()
				return
			}
			p.meshCond.Wait()
		}
		p.inputQueue = p.inputQueue[1:]
		p.mu.Unlock()

		indices, vertices := concatViews(item)
		if err := p.submit(item.frame, indices, vertices); err != nil {
			if p.onSubmitError != nil {
				p.onSubmitError(item.frame, err)
			} else {
				panic(fmt.Sprintf("workerpool: unhandled submit error: %v", err))
			}
		}

		p.mu.Lock()
		p.outputQueue = append(p.outputQueue, item.frame)
		p.mu.Unlock()
	}
}

func allComplete(item *workItem) bool {
	for _, c := range item.complete {
		if !c {
			return false
		}
	}
	return true
}

func concatViews(item *workItem) ([]wire.Index, []wire.Vertex) {
	var indices []wire.Index
	var vertices []wire.Vertex
	for view := range item.indices {
		indices = append(indices, item.indices[view]...)
		vertices = append(vertices, item.vertices[view]...)
	}
	return indices, vertices
}
