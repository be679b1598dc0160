// Package api provides HTTP API handlers for the ivory daemon.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/ivory/internal/geometry"
	"github.com/ayusman/ivory/internal/keyboard"
	"github.com/ayusman/ivory/internal/store"
)

// ErrActiveCalibration is returned by handlers refusing to delete the model
// in use.
var ErrActiveCalibration = errors.New("calibration is active")

// Calibrator is the running pipeline as seen by the API.
type Calibrator interface {
	// RequestRecalibration queues a calibration run and reports whether a
	// new request was queued.
	RequestRecalibration() bool
	// Activate switches matching to a stored calibration. It fails with
	// keyboard.ErrOrientationMismatch when the calibration was made for the
	// other camera orientation.
	Activate(id string) error
	// ActiveID returns the ID of the calibration in use, or "".
	ActiveID() string
}

// CalibrationHandler handles HTTP requests for calibration resources.
type CalibrationHandler struct {
	store      *store.Store
	calibrator Calibrator
}

// NewCalibrationHandler creates a new CalibrationHandler. calibrator may be
// nil, in which case activation is unavailable.
func NewCalibrationHandler(s *store.Store, c Calibrator) *CalibrationHandler {
	return &CalibrationHandler{store: s, calibrator: c}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/calibrations, /api/calibrations/{id} or
	// /api/calibrations/{id}/activate
	path := strings.TrimPrefix(r.URL.Path, "/api/calibrations")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, action, _ := strings.Cut(path, "/")
	switch {
	case action == "activate" && r.Method == http.MethodPost:
		h.activate(w, r, id)
	case action != "":
		writeError(w, http.StatusNotFound, "not found")
	case r.Method == http.MethodGet:
		h.get(w, r, id)
	case r.Method == http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type calibrationResponse struct {
	ID          string                 `json:"id"`
	Strategy    string                 `json:"strategy"`
	Orientation string                 `json:"orientation"`
	Quad        keyboard.PerimeterQuad `json:"quad"`
	Active      bool                   `json:"active"`
	CreatedAt   string                 `json:"created_at"`
}

type keyResponse struct {
	Number  int              `json:"number"`
	Color   string           `json:"color"`
	Polygon geometry.Polygon `json:"polygon"`
}

type calibrationDetailResponse struct {
	calibrationResponse
	Perimeter  geometry.Polygon `json:"perimeter"`
	Boundaries []float64        `json:"boundaries"`
	Keys       []keyResponse    `json:"keys"`
}

type listCalibrationsResponse struct {
	Calibrations []calibrationResponse `json:"calibrations"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toResponse converts a store.Calibration to a calibrationResponse.
func toResponse(c *store.Calibration, activeID string) calibrationResponse {
	return calibrationResponse{
		ID:          c.ID,
		Strategy:    string(c.Strategy),
		Orientation: string(c.Model.Orientation()),
		Quad:        c.Model.Quad(),
		Active:      c.ID == activeID,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}

// toDetail adds the camera-space key outlines to a calibrationResponse.
func toDetail(c *store.Calibration, activeID string) calibrationDetailResponse {
	m := c.Model
	keys := m.Keys()
	out := calibrationDetailResponse{
		calibrationResponse: toResponse(c, activeID),
		Perimeter:           m.Orientation().ApplyPolygon(m.Perimeter()),
		Boundaries:          m.Boundaries(),
		Keys:                make([]keyResponse, len(keys)),
	}
	for i, k := range keys {
		out.Keys[i] = keyResponse{Number: k.Number, Color: string(k.Color), Polygon: m.CameraPolygon(k)}
	}
	return out
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// activeID returns the calibration in use, falling back to the stored setting
// when no pipeline is attached.
func (h *CalibrationHandler) activeID() string {
	if h.calibrator != nil {
		return h.calibrator.ActiveID()
	}
	id, err := h.store.Settings().Get(store.SettingActiveCalibration)
	if err != nil {
		return ""
	}
	return id
}

// list handles GET /api/calibrations and returns all calibrations, newest first.
func (h *CalibrationHandler) list(w http.ResponseWriter, r *http.Request) {
	calibrations, err := h.store.Calibrations().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list calibrations")
		return
	}

	active := h.activeID()
	response := listCalibrationsResponse{
		Calibrations: make([]calibrationResponse, len(calibrations)),
	}
	for i, c := range calibrations {
		response.Calibrations[i] = toResponse(c, active)
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/calibrations/{id} and returns the calibration with
// its key outlines.
func (h *CalibrationHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.store.Calibrations().Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "calibration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get calibration")
		return
	}

	writeJSON(w, http.StatusOK, toDetail(c, h.activeID()))
}

// delete handles DELETE /api/calibrations/{id}. The active calibration
// cannot be deleted.
func (h *CalibrationHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if id == h.activeID() {
		writeError(w, http.StatusConflict, ErrActiveCalibration.Error())
		return
	}

	if err := h.store.Calibrations().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "calibration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete calibration")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// activate handles POST /api/calibrations/{id}/activate.
func (h *CalibrationHandler) activate(w http.ResponseWriter, r *http.Request, id string) {
	if h.calibrator == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not running")
		return
	}

	if err := h.calibrator.Activate(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "calibration not found")
			return
		}
		if errors.Is(err, keyboard.ErrOrientationMismatch) {
			writeError(w, http.StatusConflict, "calibration was made for the other camera orientation")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to activate calibration")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"active": id})
}
