// Package session implements the server-side session state machine: the
// Idle/Active states, SessionCreate/SessionDestroy transitions, and the
// "latest request wins" render-request coalescing rule.
package session

import (
	"sync"

	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// State is the coarse session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

// Config is the session's active rendering configuration, derived from a
// SessionCreate packet. Invariant: at most one Config is active at a time.
type Config struct {
	Resolution struct{ W, H uint32 }
	LayerCount uint32
	ViewCount  uint32
	Generator  wire.MeshGeneratorKind
	Codec      wire.VideoCodec
	Chroma     bool
	Projection wire.Matrix
	SceneFile  string
	Export     bool
}

func configFromPacket(p wire.SessionCreate) Config {
	var c Config
	c.Resolution.W = p.ResolutionW
	c.Resolution.H = p.ResolutionH
	c.LayerCount = p.LayerCount
	c.ViewCount = p.ViewCount
	c.Generator = p.MeshGenerator
	c.Codec = p.VideoCodec
	c.Chroma = p.ChromaSubsampling
	c.Projection = p.ProjectionMatrix
	c.SceneFile = p.SceneFileName
	c.Export = p.ExportEnabled
	return c
}

// Machine is the thread-safe server session state machine. It owns no GPU
// or network resources itself; Create/Destroy hooks let the pipeline layer
// attach and detach those resources as the state transitions.
type Machine struct {
	mu     sync.Mutex
	state  State
	config Config

	coalescer requestCoalescer

	// onCreate/onDestroy are invoked while holding the lock is released,
	// so they may themselves call back into the Machine (e.g. to read the
	// current Config) without deadlocking.
	onCreate  func(Config) error
	onDestroy func()
}

// NewMachine constructs an idle Machine. onCreate is called synchronously
// from HandleSessionCreate to allocate session resources (frame pools, mesh
// generator, encoder); a non-nil error from onCreate is treated as
// Fatal/KindSession and the Machine stays Idle. onDestroy is called from
// HandleSessionDestroy and whenever a fatal error tears the session down.
func NewMachine(onCreate func(Config) error, onDestroy func()) *Machine {
	return &Machine{onCreate: onCreate, onDestroy: onDestroy}
}

// State returns the current coarse state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Config returns the active session configuration. Only meaningful while
// State() == StateActive.
func (m *Machine) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// HandleSessionCreate processes a SessionCreate packet. Per §4.1, a
// SessionCreate received while already Active is a fatal session error: the
// existing session is torn down and the Machine returns to Idle, and the
// error is returned to the caller for logging. On success the Machine moves
// to Active.
func (m *Machine) HandleSessionCreate(p wire.SessionCreate) *Error {
	m.mu.Lock()
	if m.state == StateActive {
		m.state = StateIdle
		destroy := m.onDestroy
		m.mu.Unlock()
		if destroy != nil {
			destroy()
		}
		return Fatalf(KindSession, "SessionCreate received while a session is already active")
	}
	m.mu.Unlock()

	cfg := configFromPacket(p)
	if m.onCreate != nil {
		if err := m.onCreate(cfg); err != nil {
			return Fatalf(KindSession, "session create failed: %v", err)
		}
	}

	m.mu.Lock()
	m.state = StateActive
	m.config = cfg
	m.coalescer = requestCoalescer{}
	m.mu.Unlock()
	return nil
}

// HandleSessionDestroy tears down the active session (idempotent if already
// Idle) and transitions to Idle.
func (m *Machine) HandleSessionDestroy() {
	m.mu.Lock()
	wasActive := m.state == StateActive
	m.state = StateIdle
	destroy := m.onDestroy
	m.mu.Unlock()

	if wasActive && destroy != nil {
		destroy()
	}
}

// HandleTransportClose treats connection loss as an implicit SessionDestroy.
func (m *Machine) HandleTransportClose() {
	m.HandleSessionDestroy()
}

// SubmitRenderRequest applies the "latest request wins" coalescing rule: if
// called while Idle, the request is rejected (no rendering work outside a
// session). Otherwise it replaces any not-yet-dispatched pending request.
func (m *Machine) SubmitRenderRequest(r wire.RenderRequest) *Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive {
		return Transientf(KindSession, "RenderRequest received while idle, dropped")
	}
	m.coalescer.submit(r)
	return nil
}

// TakeLatestRenderRequest removes and returns the most recently coalesced
// pending request, if any. Called once per render-loop tick by the render
// thread.
func (m *Machine) TakeLatestRenderRequest() (wire.RenderRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coalescer.take()
}

// Requeue puts a request back at the head of the pending slot, used when a
// render step fails with ErrBusy and must be retried next tick. A newer
// request submitted in the meantime still wins over the requeued one.
func (m *Machine) Requeue(r wire.RenderRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coalescer.requeue(r)
}

// requestCoalescer holds at most one pending RenderRequest, keeping only the
// one with the numerically-latest request id (wraparound is treated as
// "latest observed wins" per the spec, not a total order).
type requestCoalescer struct {
	pending  wire.RenderRequest
	hasValue bool
}

func (c *requestCoalescer) submit(r wire.RenderRequest) {
	if !c.hasValue {
		c.pending = r
		c.hasValue = true
		return
	}
	c.pending = r
}

func (c *requestCoalescer) requeue(r wire.RenderRequest) {
	if !c.hasValue {
		c.pending = r
		c.hasValue = true
	}
	// If a newer request already arrived, it stays; the requeued one is
	// dropped since it has already been superseded.
}

func (c *requestCoalescer) take() (wire.RenderRequest, bool) {
	if !c.hasValue {
		return wire.RenderRequest{}, false
	}
	r := c.pending
	c.hasValue = false
	return r, true
}
