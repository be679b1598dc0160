package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/ivory/internal/keyboard"
	"github.com/ayusman/ivory/internal/store"
	"github.com/ayusman/ivory/internal/testscene"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func saveCalibration(t *testing.T, s *store.Store, id string, at time.Time) {
	t.Helper()
	m, err := testscene.DefaultScene().Model()
	if err != nil {
		t.Fatalf("build scene model: %v", err)
	}
	c := &store.Calibration{ID: id, Strategy: store.StrategyTouch, Model: m, CreatedAt: at}
	if err := s.Calibrations().Save(c); err != nil {
		t.Fatalf("save calibration: %v", err)
	}
}

type fakeCalibrator struct {
	mu        sync.Mutex
	active    string
	pending   bool
	requests  int
	activated []string
	store     *store.Store
	err       error
}

func (f *fakeCalibrator) RequestRecalibration() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	if f.pending {
		return false
	}
	f.pending = true
	return true
}

func (f *fakeCalibrator) Activate(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.store.Calibrations().Get(id); err != nil {
		return err
	}
	if f.err != nil {
		return f.err
	}
	f.active = id
	f.activated = append(f.activated, id)
	return nil
}

func (f *fakeCalibrator) ActiveID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func TestCalibrationHandler_List(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	saveCalibration(t, s, "older", base)
	saveCalibration(t, s, "newer", base.Add(time.Hour))
	if err := s.Settings().Set(store.SettingActiveCalibration, "older"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	handler := NewCalibrationHandler(s, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/calibrations", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listCalibrationsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Calibrations) != 2 {
		t.Fatalf("expected 2 calibrations, got %d", len(response.Calibrations))
	}
	if response.Calibrations[0].ID != "newer" {
		t.Errorf("expected newest first, got %q", response.Calibrations[0].ID)
	}
	if response.Calibrations[0].Active || !response.Calibrations[1].Active {
		t.Error("expected only the stored active calibration to be flagged")
	}
	if response.Calibrations[1].Quad.UpperLeft.X != 140 {
		t.Errorf("unexpected quad %+v", response.Calibrations[1].Quad)
	}
}

func TestCalibrationHandler_ListEmpty(t *testing.T) {
	handler := NewCalibrationHandler(newTestStore(t), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calibrations", nil))

	var response listCalibrationsResponse
	json.NewDecoder(rec.Body).Decode(&response)
	if response.Calibrations == nil || len(response.Calibrations) != 0 {
		t.Errorf("expected empty list, got %v", response.Calibrations)
	}
}

func TestCalibrationHandler_Get(t *testing.T) {
	s := newTestStore(t)
	saveCalibration(t, s, "cal-1", time.Now())
	handler := NewCalibrationHandler(s, nil)

	t.Run("returns camera space keys", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calibrations/cal-1", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		var response calibrationDetailResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.ID != "cal-1" || response.Orientation != "upright" {
			t.Errorf("unexpected calibration %+v", response.calibrationResponse)
		}
		if len(response.Keys) != 88 || len(response.Boundaries) != 51 {
			t.Fatalf("got %d keys and %d boundaries", len(response.Keys), len(response.Boundaries))
		}

		// Key 0 (A0) sits at the left edge for an upright camera.
		for _, v := range response.Keys[0].Polygon {
			if v.X < 140 || v.X > 170 {
				t.Errorf("A0 vertex %v outside the left end of the keyboard", v)
			}
		}
	})

	t.Run("returns 404 for unknown id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calibrations/missing", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("rejects unknown actions", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/calibrations/cal-1/export", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("rejects unsupported methods", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/calibrations/cal-1", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}

func TestCalibrationHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	saveCalibration(t, s, "keep", time.Now())
	saveCalibration(t, s, "drop", time.Now())
	cal := &fakeCalibrator{active: "keep", store: s}
	handler := NewCalibrationHandler(s, cal)

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"active calibration is protected", "keep", http.StatusConflict},
		{"inactive calibration is deleted", "drop", http.StatusNoContent},
		{"missing calibration", "drop", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/calibrations/"+tt.id, nil))
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}

	if _, err := s.Calibrations().Get("keep"); err != nil {
		t.Errorf("active calibration should survive: %v", err)
	}
}

func TestCalibrationHandler_Activate(t *testing.T) {
	s := newTestStore(t)
	saveCalibration(t, s, "cal-1", time.Now())

	t.Run("switches the pipeline", func(t *testing.T) {
		cal := &fakeCalibrator{store: s}
		handler := NewCalibrationHandler(s, cal)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/calibrations/cal-1/activate", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if cal.ActiveID() != "cal-1" {
			t.Errorf("active = %q, want cal-1", cal.ActiveID())
		}

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/calibrations/missing/activate", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("rejects the other orientation", func(t *testing.T) {
		cal := &fakeCalibrator{
			store: s,
			err:   fmt.Errorf("calibration cal-1 is for an upright camera: %w", keyboard.ErrOrientationMismatch),
		}
		handler := NewCalibrationHandler(s, cal)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/calibrations/cal-1/activate", nil))
		if rec.Code != http.StatusConflict {
			t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
		}
		if cal.ActiveID() != "" {
			t.Errorf("active = %q, want none", cal.ActiveID())
		}
	})

	t.Run("unavailable without a pipeline", func(t *testing.T) {
		handler := NewCalibrationHandler(s, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/calibrations/cal-1/activate", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
		}
	})
}

func TestRecalibrateHandler(t *testing.T) {
	cal := &fakeCalibrator{}
	handler := NewRecalibrateHandler(cal)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/recalibrate", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("first request: expected status %d, got %d", http.StatusAccepted, rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/recalibrate", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("second request: expected status %d, got %d", http.StatusConflict, rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recalibrate", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
	if cal.requests != 2 {
		t.Errorf("expected 2 requests to reach the calibrator, got %d", cal.requests)
	}
}

