package api

import "net/http"

// RecalibrateHandler queues a calibration run on POST.
type RecalibrateHandler struct {
	calibrator Calibrator
}

// NewRecalibrateHandler creates a new RecalibrateHandler.
func NewRecalibrateHandler(c Calibrator) *RecalibrateHandler {
	return &RecalibrateHandler{calibrator: c}
}

// ServeHTTP answers 202 when a run was queued and 409 when one is already
// pending.
func (h *RecalibrateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.calibrator.RequestRecalibration() {
		writeError(w, http.StatusConflict, "recalibration already pending")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
