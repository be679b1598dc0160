// Package app wires calibration, per-frame key matching and result delivery
// into the running ivory daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/ayusman/ivory/internal/calibration"
	"github.com/ayusman/ivory/internal/capture"
	"github.com/ayusman/ivory/internal/config"
	"github.com/ayusman/ivory/internal/detector"
	"github.com/ayusman/ivory/internal/keyboard"
	"github.com/ayusman/ivory/internal/observe"
	"github.com/ayusman/ivory/internal/store"
	"github.com/ayusman/ivory/internal/transport"
)

// Config holds the collaborators of an App. Only Settings is required; nil
// collaborators are built from Settings.
type Config struct {
	Settings *config.Config
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	// Sender receives results in addition to the WebSocket hub and the
	// configured bridge.
	Sender  transport.Sender
	Metrics *observe.Metrics
	// Console prompts the operator during touch calibration and, when
	// enabled, confirms the perimeter. Defaults to stdin and stdout.
	Console *calibration.ConsolePrompter
}

// App is the main application that calibrates the keyboard and turns camera
// frames into key presses.
type App struct {
	settings *config.Config
	store    *store.Store
	camera   capture.Camera
	motion   *capture.MotionDetector
	detector detector.Detector
	console  *calibration.ConsolePrompter
	metrics  *observe.Metrics

	hub        *transport.Hub
	bridge     *transport.Bridge
	dispatcher *transport.Dispatcher
	frames     *capture.FrameBuffer

	recalibrate chan struct{}

	mu         sync.RWMutex
	model      *keyboard.Model
	matcher    *keyboard.Matcher
	activeID   string
	lastResult keyboard.MatchResult
	enabled    bool
	onResult   func(keyboard.MatchResult)
	onState    func(calibration.State)
}

// New creates a new App instance with the given configuration.
func New(cfg Config) (*App, error) {
	if cfg.Settings == nil {
		return nil, errors.New("app: settings are required")
	}
	if err := config.Validate(cfg.Settings); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	s := cfg.Settings

	a := &App{
		settings:    s,
		store:       cfg.Store,
		camera:      cfg.Camera,
		motion:      capture.NewMotionDetector(s.Calibration.MotionThreshold),
		detector:    cfg.Detector,
		console:     cfg.Console,
		metrics:     cfg.Metrics,
		hub:         transport.NewHub(),
		frames:      capture.NewFrameBuffer(),
		recalibrate: make(chan struct{}, 1),
		lastResult:  keyboard.EmptyResult(),
		enabled:     true,
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(s.Camera.Capture())
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.console == nil {
		a.console = calibration.NewConsolePrompter(os.Stdin, os.Stdout)
	}

	// Try MediaPipe first, fall back to mock detector
	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(s.Detector.Detector()); err == nil {
			a.detector = mp
			log.Println("Using MediaPipe hand detection")
		} else {
			log.Printf("MediaPipe not available (%v), using mock detector", err)
			a.detector = detector.NewMockDetector()
		}
	}

	senders := transport.Fanout{a.hub}
	if s.Transport.BridgeCommand != "" {
		a.bridge = transport.NewBridge(s.Transport.BridgeCommand, s.Transport.BridgeArgs...)
		senders = append(senders, a.bridge)
	}
	if cfg.Sender != nil {
		senders = append(senders, cfg.Sender)
	}
	a.dispatcher = transport.NewDispatcher(senders, a.metrics)

	return a, nil
}

// SetEnabled enables or disables key matching. Frames are still read while
// disabled so the camera does not fall behind.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether key matching is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// OnResult registers fn to observe every frame's match result. fn runs on
// the frame loop and must not block.
func (a *App) OnResult(fn func(keyboard.MatchResult)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onResult = fn
}

// OnCalibrationState registers fn to observe calibration state transitions.
func (a *App) OnCalibrationState(fn func(calibration.State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onState = fn
}

// Model returns the keyboard model in use, or nil before calibration.
func (a *App) Model() *keyboard.Model {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// ActiveID returns the stored calibration in use, or "" when the model was
// not persisted.
func (a *App) ActiveID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.activeID
}

// LastResult returns the most recent frame's match result.
func (a *App) LastResult() keyboard.MatchResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastResult
}

// Hub returns the WebSocket hub that receives every result.
func (a *App) Hub() *transport.Hub {
	return a.hub
}

// Frames returns the buffer holding the latest processed frame.
func (a *App) Frames() *capture.FrameBuffer {
	return a.frames
}

// RequestRecalibration asks the frame loop to calibrate again before the
// next frame. It reports false when a request is already pending.
func (a *App) RequestRecalibration() bool {
	select {
	case a.recalibrate <- struct{}{}:
		log.Println("Recalibration requested")
		return true
	default:
		return false
	}
}

// Activate switches matching to the stored calibration id and makes it the
// one loaded on the next start.
func (a *App) Activate(id string) error {
	if a.store == nil {
		return errors.New("app: no store configured")
	}
	c, err := a.store.Calibrations().Get(id)
	if err != nil {
		return err
	}
	if o := c.Model.Orientation(); o != a.settings.Camera.Orientation {
		return fmt.Errorf("app: calibration %s is for a %s camera, camera is %s: %w",
			c.ID, o, a.settings.Camera.Orientation, keyboard.ErrOrientationMismatch)
	}
	if err := a.store.Settings().Set(store.SettingActiveCalibration, c.ID); err != nil {
		return fmt.Errorf("app: save active calibration: %w", err)
	}
	a.install(c.Model, c.ID)
	log.Printf("Activated calibration %s", c.ID)
	return nil
}

// install makes m the model used by the frame loop.
func (a *App) install(m *keyboard.Model, id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.model = m
	a.matcher = keyboard.NewMatcher(m)
	a.activeID = id
}

// Calibrate runs the configured calibration protocol, stores the accepted
// model and starts matching against it. The camera must be open.
func (a *App) Calibrate(ctx context.Context) (*keyboard.Model, error) {
	s := a.settings
	log.Printf("Calibrating (%s strategy, %s camera)", s.Calibration.Strategy, s.Camera.Orientation)

	sup := a.supervisor()
	m, err := sup.Run(ctx)
	if err != nil {
		return nil, err
	}

	id := ""
	if a.store != nil {
		c := &store.Calibration{Strategy: store.Strategy(s.Calibration.Strategy), Model: m}
		if err := a.store.Calibrations().Save(c); err != nil {
			log.Printf("Failed to save calibration: %v", err)
		} else if err := a.store.Settings().Set(store.SettingActiveCalibration, c.ID); err != nil {
			log.Printf("Failed to mark calibration %s active: %v", c.ID, err)
		} else {
			id = c.ID
			log.Printf("Saved calibration %s", c.ID)
		}
	}

	a.install(m, id)
	return m, nil
}

// supervisor assembles the calibration state machine from the settings.
func (a *App) supervisor() *calibration.Supervisor {
	s := a.settings
	o := s.Camera.Orientation

	var sampler calibration.Sampler
	switch s.Calibration.Strategy {
	case config.StrategyTape:
		sampler = &calibration.TapeSampler{
			Camera:      a.camera,
			Segmenter:   s.Tape.Segmenter(),
			Config:      s.Tape.Gates(),
			Orientation: o,
		}
	default:
		sampler = &calibration.TouchSampler{
			Source:   &detector.Tracker{Camera: a.camera, Detector: a.detector, Orientation: o},
			Prompter: a.console,
			Config:   s.Touch.Sampling(),
		}
	}

	sup := &calibration.Supervisor{
		Sampler: sampler,
		BlackKeys: &calibration.BlackKeySampler{
			Camera:       a.camera,
			Segmenter:    s.BlackKeys.Segmenter(),
			Motion:       a.motion,
			WarmupFrames: s.Calibration.WarmupFrames,
		},
		Builder:     &keyboard.Builder{Orientation: o, BlackKeyMinArea: s.BlackKeys.MinArea},
		Signaler:    a.dispatcher,
		MaxAttempts: s.Calibration.MaxAttempts,
		Timeout:     s.Calibration.Timeout,
		Metrics:     a.metrics,
		OnState: func(st calibration.State) {
			log.Printf("calibration: %s", st)
			a.mu.RLock()
			fn := a.onState
			a.mu.RUnlock()
			if fn != nil {
				fn(st)
			}
		},
	}
	if s.Calibration.Confirm {
		sup.Confirmer = a.console
	}
	return sup
}

// loadSaved installs the active stored calibration, falling back to the
// newest one. It reports whether a model was installed.
func (a *App) loadSaved() bool {
	if a.store == nil || !a.settings.Calibration.ReuseSaved {
		return false
	}

	var (
		c   *store.Calibration
		err error
	)
	if id, serr := a.store.Settings().Get(store.SettingActiveCalibration); serr == nil {
		c, err = a.store.Calibrations().Get(id)
	} else {
		c, err = a.store.Calibrations().Latest()
	}
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("Failed to load saved calibration: %v", err)
		}
		return false
	}
	if c.Model.Orientation() != a.settings.Camera.Orientation {
		log.Printf("Saved calibration %s is for a %s camera, recalibrating", c.ID, c.Model.Orientation())
		return false
	}

	a.install(c.Model, c.ID)
	log.Printf("Loaded saved calibration %s from %s", c.ID, c.CreatedAt.Format("2006-01-02 15:04"))
	return true
}

// Close releases the camera, detector and transport.
func (a *App) Close() error {
	a.dispatcher.Wait()

	var errs []error
	if a.camera.IsOpen() {
		errs = append(errs, a.camera.Close())
	}
	a.motion.Close()
	if a.detector != nil {
		errs = append(errs, a.detector.Close())
	}
	if a.bridge != nil {
		errs = append(errs, a.bridge.Close())
	}
	a.hub.Close()
	errs = append(errs, a.frames.Close())
	return errors.Join(errs...)
}

var _ io.Closer = (*App)(nil)
