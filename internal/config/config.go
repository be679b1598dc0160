// Package config loads the YAML configuration of the ivory daemon.
package config

import (
	"time"

	"github.com/ayusman/ivory/internal/calibration"
	"github.com/ayusman/ivory/internal/capture"
	"github.com/ayusman/ivory/internal/detector"
	"github.com/ayusman/ivory/internal/keyboard"
	"github.com/ayusman/ivory/internal/vision"
)

// Strategy selects how the keyboard corners are sampled.
type Strategy string

const (
	StrategyTouch Strategy = "touch"
	StrategyTape  Strategy = "tape"
)

// IsValid reports whether s is a known strategy.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyTouch, StrategyTape:
		return true
	}
	return false
}

// Config is the root configuration.
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Detector    DetectorConfig    `yaml:"detector"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Tape        TapeConfig        `yaml:"tape"`
	BlackKeys   BlackKeysConfig   `yaml:"black_keys"`
	Touch       TouchConfig       `yaml:"touch"`
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Transport   TransportConfig   `yaml:"transport"`
}

// CameraConfig selects and configures the capture device.
type CameraConfig struct {
	Device      int                  `yaml:"device"`
	Width       int                  `yaml:"width"`
	Height      int                  `yaml:"height"`
	FPS         int                  `yaml:"fps"`
	FourCC      string               `yaml:"fourcc"`
	Orientation keyboard.Orientation `yaml:"orientation"`
}

// Capture returns the camera settings for capture.NewCamera.
func (c CameraConfig) Capture() capture.Config {
	return capture.Config{
		DeviceID: c.Device,
		Width:    c.Width,
		Height:   c.Height,
		FPS:      c.FPS,
		FourCC:   c.FourCC,
	}
}

// DetectorConfig tunes the hand landmark service.
type DetectorConfig struct {
	MaxHands        int     `yaml:"max_hands"`
	MinConfidence   float64 `yaml:"min_confidence"`
	MinTrackingConf float64 `yaml:"min_tracking_confidence"`
}

// Detector returns the settings for detector.NewMediaPipeDetector.
func (c DetectorConfig) Detector() detector.Config {
	return detector.Config{
		MaxHands:        c.MaxHands,
		MinConfidence:   c.MinConfidence,
		MinTrackingConf: c.MinTrackingConf,
	}
}

// CalibrationConfig controls the calibration protocol.
type CalibrationConfig struct {
	Strategy Strategy `yaml:"strategy"`
	// MaxAttempts bounds the retries of one calibration run.
	MaxAttempts int `yaml:"max_attempts"`
	// Timeout bounds one calibration run; zero means no limit.
	Timeout time.Duration `yaml:"timeout"`
	// Confirm asks the operator to accept the perimeter before building.
	Confirm bool `yaml:"confirm"`
	// WarmupFrames is how many frames may be discarded waiting for a still
	// frame before black-key sampling.
	WarmupFrames    int     `yaml:"warmup_frames"`
	MotionThreshold float64 `yaml:"motion_threshold"`
	// ReuseSaved loads the active stored calibration on start.
	ReuseSaved bool `yaml:"reuse_saved"`
}

// Segment is an HSV range with its morphology kernel.
type Segment struct {
	Lower  vision.HSV `yaml:"lower"`
	Upper  vision.HSV `yaml:"upper"`
	Kernel int        `yaml:"kernel"`
}

// Segmenter returns the vision segmenter for s.
func (s Segment) Segmenter() vision.Segmenter {
	return vision.Segmenter{Lower: s.Lower, Upper: s.Upper, Kernel: s.Kernel}
}

// TapeConfig configures marker segmentation and the marker gates.
type TapeConfig struct {
	Segment               `yaml:",inline"`
	XBands                []calibration.Band `yaml:"x_bands"`
	UpperYFraction        float64            `yaml:"upper_y_fraction"`
	AreaMin               float64            `yaml:"area_min"`
	AreaMax               float64            `yaml:"area_max"`
	PairToleranceFraction float64            `yaml:"pair_tolerance_fraction"`
	MaxSkew               int                `yaml:"max_skew"`
}

// Gates returns the marker gate thresholds.
func (c TapeConfig) Gates() calibration.TapeConfig {
	return calibration.TapeConfig{
		XBands:                append([]calibration.Band(nil), c.XBands...),
		UpperYFraction:        c.UpperYFraction,
		AreaMin:               c.AreaMin,
		AreaMax:               c.AreaMax,
		PairToleranceFraction: c.PairToleranceFraction,
		MaxSkew:               c.MaxSkew,
	}
}

// BlackKeysConfig configures black key segmentation.
type BlackKeysConfig struct {
	Segment `yaml:",inline"`
	MinArea float64 `yaml:"min_area"`
}

// TouchConfig configures touch calibration.
type TouchConfig struct {
	Ticks        int               `yaml:"ticks"`
	TickInterval time.Duration     `yaml:"tick_interval"`
	MissLimit    int               `yaml:"miss_limit"`
	LeftBand     *calibration.Band `yaml:"left_band"`
	RightBand    *calibration.Band `yaml:"right_band"`
}

// Sampling returns the touch sampler settings.
func (c TouchConfig) Sampling() calibration.TouchConfig {
	return calibration.TouchConfig{
		Ticks:        c.Ticks,
		TickInterval: c.TickInterval,
		MissLimit:    c.MissLimit,
		LeftBand:     c.LeftBand,
		RightBand:    c.RightBand,
	}
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// StoreConfig locates the calibration database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// TransportConfig configures the actuator bridge. An empty BridgeCommand
// disables it; WebSocket clients are always served.
type TransportConfig struct {
	BridgeCommand string   `yaml:"bridge_command"`
	BridgeArgs    []string `yaml:"bridge_args"`
}

// Default returns the configuration of the reference rig: an upside-down
// 1920x700 camera and touch calibration.
func Default() *Config {
	tape := calibration.DefaultTapeConfig()
	touch := calibration.DefaultTouchConfig()
	cam := capture.DefaultConfig()
	det := detector.DefaultConfig()

	return &Config{
		Camera: CameraConfig{
			Device:      cam.DeviceID,
			Width:       cam.Width,
			Height:      cam.Height,
			FPS:         cam.FPS,
			FourCC:      cam.FourCC,
			Orientation: keyboard.OrientationInverted,
		},
		Detector: DetectorConfig{
			MaxHands:        det.MaxHands,
			MinConfidence:   det.MinConfidence,
			MinTrackingConf: det.MinTrackingConf,
		},
		Calibration: CalibrationConfig{
			Strategy:        StrategyTouch,
			MaxAttempts:     calibration.DefaultMaxAttempts,
			Confirm:         true,
			WarmupFrames:    10,
			MotionThreshold: capture.DefaultMotionThreshold,
			ReuseSaved:      true,
		},
		Tape: TapeConfig{
			Segment: Segment{
				Lower:  vision.HSV{H: 60, S: 115, V: 60},
				Upper:  vision.HSV{H: 100, S: 255, V: 255},
				Kernel: 8,
			},
			XBands:                tape.XBands,
			UpperYFraction:        tape.UpperYFraction,
			AreaMin:               tape.AreaMin,
			AreaMax:               tape.AreaMax,
			PairToleranceFraction: tape.PairToleranceFraction,
			MaxSkew:               tape.MaxSkew,
		},
		BlackKeys: BlackKeysConfig{
			Segment: Segment{
				Lower:  vision.HSV{H: 0, S: 0, V: 0},
				Upper:  vision.HSV{H: 160, S: 160, V: 130},
				Kernel: 3,
			},
			MinArea: keyboard.DefaultBlackKeyMinArea,
		},
		Touch: TouchConfig{
			Ticks:        touch.Ticks,
			TickInterval: touch.TickInterval,
			MissLimit:    touch.MissLimit,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8088",
			StaticDir: "web",
		},
		Store: StoreConfig{
			Path: "ivory.db",
		},
	}
}
