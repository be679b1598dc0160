package server

import (
	"fmt"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/ivory/internal/keyboard"
	"github.com/ayusman/ivory/internal/vision"
)

// streamInterval paces the debug stream at about 15 FPS.
const streamInterval = 66 * time.Millisecond

// FrameSource provides the latest camera frame.
type FrameSource interface {
	Snapshot() (gocv.Mat, bool)
}

// ModelSource provides the keyboard model in use and the keys pressed in
// the latest frame.
type ModelSource interface {
	Model() *keyboard.Model
	LastResult() keyboard.MatchResult
}

// StreamHandler serves MJPEG frames with the calibrated keyboard drawn on top.
type StreamHandler struct {
	frames FrameSource
	model  ModelSource
}

// NewStreamHandler creates a new StreamHandler. model may be nil to stream
// plain frames.
func NewStreamHandler(frames FrameSource, model ModelSource) *StreamHandler {
	return &StreamHandler{frames: frames, model: model}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame, ok := h.frames.Snapshot()
		if !ok {
			frame.Close()
			continue
		}
		if h.model != nil {
			vision.DrawKeyboard(&frame, h.model.Model(), h.model.LastResult().Pressed())
		}

		// Encode as JPEG
		buf, err := gocv.IMEncode(".jpg", frame)
		frame.Close()
		if err != nil {
			continue
		}

		// Write MJPEG frame
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
		_, werr := w.Write(buf.GetBytes())
		fmt.Fprintf(w, "\r\n")
		buf.Close()
		if werr != nil {
			return
		}

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
