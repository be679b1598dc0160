package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/ivory/internal/calibration"
)

// Load reads the YAML configuration file at path over Default and validates
// the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r. Fields the document does not
// name keep their default values. An empty document yields Default.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Camera
	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		errs = append(errs, fmt.Errorf("camera: width and height must be positive, got %dx%d", cfg.Camera.Width, cfg.Camera.Height))
	}
	if cfg.Camera.FPS <= 0 {
		errs = append(errs, fmt.Errorf("camera.fps must be positive, got %d", cfg.Camera.FPS))
	}
	if len(cfg.Camera.FourCC) != 4 {
		errs = append(errs, fmt.Errorf("camera.fourcc %q must be four characters", cfg.Camera.FourCC))
	}
	if !cfg.Camera.Orientation.IsValid() {
		errs = append(errs, fmt.Errorf("camera.orientation %q is invalid; valid values: inverted, upright", cfg.Camera.Orientation))
	}

	// Detector
	if cfg.Detector.MaxHands < 1 || cfg.Detector.MaxHands > 2 {
		errs = append(errs, fmt.Errorf("detector.max_hands must be 1 or 2, got %d", cfg.Detector.MaxHands))
	}
	errs = appendFraction(errs, "detector.min_confidence", cfg.Detector.MinConfidence)
	errs = appendFraction(errs, "detector.min_tracking_confidence", cfg.Detector.MinTrackingConf)

	// Calibration
	if !cfg.Calibration.Strategy.IsValid() {
		errs = append(errs, fmt.Errorf("calibration.strategy %q is invalid; valid values: touch, tape", cfg.Calibration.Strategy))
	}
	if cfg.Calibration.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("calibration.max_attempts must be at least 1, got %d", cfg.Calibration.MaxAttempts))
	}
	if cfg.Calibration.Timeout < 0 {
		errs = append(errs, fmt.Errorf("calibration.timeout must not be negative, got %s", cfg.Calibration.Timeout))
	}
	if cfg.Calibration.WarmupFrames < 0 {
		errs = append(errs, fmt.Errorf("calibration.warmup_frames must not be negative, got %d", cfg.Calibration.WarmupFrames))
	}
	if cfg.Calibration.MotionThreshold <= 0 || cfg.Calibration.MotionThreshold > 100 {
		errs = append(errs, fmt.Errorf("calibration.motion_threshold must be in (0, 100] percent, got %g", cfg.Calibration.MotionThreshold))
	}

	// Segmentation
	errs = appendSegment(errs, "tape", cfg.Tape.Segment)
	errs = appendSegment(errs, "black_keys", cfg.BlackKeys.Segment)

	// Tape gates
	if len(cfg.Tape.XBands) == 0 {
		errs = append(errs, errors.New("tape.x_bands must name at least one band"))
	}
	for i, b := range cfg.Tape.XBands {
		if b.Min >= b.Max {
			errs = append(errs, fmt.Errorf("tape.x_bands[%d]: min %d must be below max %d", i, b.Min, b.Max))
		}
	}
	if cfg.Tape.UpperYFraction <= 0 || cfg.Tape.UpperYFraction > 1 {
		errs = append(errs, fmt.Errorf("tape.upper_y_fraction must be in (0, 1], got %g", cfg.Tape.UpperYFraction))
	}
	if cfg.Tape.AreaMin < 0 || cfg.Tape.AreaMin >= cfg.Tape.AreaMax {
		errs = append(errs, fmt.Errorf("tape: area_min %g must be non-negative and below area_max %g", cfg.Tape.AreaMin, cfg.Tape.AreaMax))
	}
	errs = appendFraction(errs, "tape.pair_tolerance_fraction", cfg.Tape.PairToleranceFraction)
	if cfg.Tape.MaxSkew < 0 {
		errs = append(errs, fmt.Errorf("tape.max_skew must not be negative, got %d", cfg.Tape.MaxSkew))
	}

	// Black keys
	if cfg.BlackKeys.MinArea < 0 {
		errs = append(errs, fmt.Errorf("black_keys.min_area must not be negative, got %g", cfg.BlackKeys.MinArea))
	}

	// Touch
	if cfg.Touch.Ticks < 1 {
		errs = append(errs, fmt.Errorf("touch.ticks must be at least 1, got %d", cfg.Touch.Ticks))
	}
	if cfg.Touch.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("touch.tick_interval must not be negative, got %s", cfg.Touch.TickInterval))
	}
	if cfg.Touch.MissLimit < 1 {
		errs = append(errs, fmt.Errorf("touch.miss_limit must be at least 1, got %d", cfg.Touch.MissLimit))
	}
	for _, tb := range []struct {
		name string
		band *calibration.Band
	}{{"left_band", cfg.Touch.LeftBand}, {"right_band", cfg.Touch.RightBand}} {
		if tb.band != nil && tb.band.Min >= tb.band.Max {
			errs = append(errs, fmt.Errorf("touch.%s: min %d must be below max %d", tb.name, tb.band.Min, tb.band.Max))
		}
	}

	// Server and store
	if cfg.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if cfg.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}

	// Transport
	if cfg.Transport.BridgeCommand == "" && len(cfg.Transport.BridgeArgs) > 0 {
		errs = append(errs, errors.New("transport.bridge_args set without transport.bridge_command"))
	}

	return errors.Join(errs...)
}

func appendFraction(errs []error, field string, v float64) []error {
	if v < 0 || v > 1 {
		return append(errs, fmt.Errorf("%s must be in [0, 1], got %g", field, v))
	}
	return errs
}

func appendSegment(errs []error, section string, s Segment) []error {
	if s.Kernel < 1 {
		errs = append(errs, fmt.Errorf("%s.kernel must be at least 1, got %d", section, s.Kernel))
	}
	for _, c := range []struct {
		name       string
		value, max float64
	}{
		{"h", s.Lower.H, 179}, {"s", s.Lower.S, 255}, {"v", s.Lower.V, 255},
		{"h", s.Upper.H, 179}, {"s", s.Upper.S, 255}, {"v", s.Upper.V, 255},
	} {
		if c.value < 0 || c.value > c.max {
			errs = append(errs, fmt.Errorf("%s: %s must be in [0, %g], got %g", section, c.name, c.max, c.value))
		}
	}
	if s.Lower.H > s.Upper.H || s.Lower.S > s.Upper.S || s.Lower.V > s.Upper.V {
		errs = append(errs, fmt.Errorf("%s: lower bound %+v exceeds upper bound %+v", section, s.Lower, s.Upper))
	}
	return errs
}
