package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// FrameBuffer holds a copy of the most recent frame so that viewers can
// watch the pipeline without reading from the camera themselves.
type FrameBuffer struct {
	mu    sync.Mutex
	frame gocv.Mat
	set   bool
}

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{frame: gocv.NewMat()}
}

// Publish replaces the held frame with a copy of frame.
func (b *FrameBuffer) Publish(frame *gocv.Mat) {
	if frame == nil || frame.Empty() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	frame.CopyTo(&b.frame)
	b.set = true
}

// Snapshot returns a clone of the held frame. The caller must close it.
func (b *FrameBuffer) Snapshot() (gocv.Mat, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.set {
		return gocv.NewMat(), false
	}
	return b.frame.Clone(), true
}

// Close releases the held frame.
func (b *FrameBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set = false
	return b.frame.Close()
}
