package workerpool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamproxy/internal/pipeline"
	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

const testViewCount = 6

func TestPoolSubmitsFramesInFIFOOrder(t *testing.T) {
	var mu sync.Mutex
	var submittedOrder []uint32
	done := make(chan struct{})

	triangulate := func(view int, frame *pipeline.Frame) ([]wire.Index, []wire.Vertex, error) {
		// The first-submitted frame's last view finishes last, to verify
		// the submit worker still waits for full completion before
		// honoring FIFO order over a faster, later frame.
		if frame.RequestID == 1 && view == testViewCount-1 {
			time.Sleep(5 * time.Millisecond)
		}
		return []wire.Index{wire.Index(view)}, []wire.Vertex{{X: uint16(view)}}, nil
	}

	submit := func(frame *pipeline.Frame, indices []wire.Index, vertices []wire.Vertex) error {
		mu.Lock()
		submittedOrder = append(submittedOrder, frame.RequestID)
		n := len(submittedOrder)
		mu.Unlock()
		if n == 2 {
			close(done)
		}
		return nil
	}

	p := New(testViewCount, triangulate, submit)
	p.Start()
	defer p.Stop()

	f1 := &pipeline.Frame{RequestID: 1}
	f2 := &pipeline.Frame{RequestID: 2}
	p.Submit(f1)
	p.Submit(f2)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for both frames to submit")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []uint32{1, 2}, submittedOrder)
}

func TestPoolConcatenatesAllViews(t *testing.T) {
	triangulate := func(view int, frame *pipeline.Frame) ([]wire.Index, []wire.Vertex, error) {
		return []wire.Index{wire.Index(view)}, []wire.Vertex{{X: uint16(view)}}, nil
	}

	gotIndices := make(chan []wire.Index, 1)
	submit := func(frame *pipeline.Frame, indices []wire.Index, vertices []wire.Vertex) error {
		gotIndices <- indices
		return nil
	}

	p := New(testViewCount, triangulate, submit)
	p.Start()
	defer p.Stop()

	p.Submit(&pipeline.Frame{RequestID: 7})

	select {
	case indices := <-gotIndices:
		require.Len(t, indices, testViewCount)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for submit")
	}
}

func TestStopReturnsUnfinishedFrames(t *testing.T) {
	block := make(chan struct{})
	triangulate := func(view int, frame *pipeline.Frame) ([]wire.Index, []wire.Vertex, error) {
		<-block
		return nil, nil, nil
	}
	submit := func(frame *pipeline.Frame, indices []wire.Index, vertices []wire.Vertex) error {
		return nil
	}

	p := New(testViewCount, triangulate, submit)
	p.Start()

	f := &pipeline.Frame{RequestID: 9}
	p.Submit(f)

	time.Sleep(10 * time.Millisecond)
	close(block)
	frames := p.Stop()
	require.Contains(t, frames, f)
}
