package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/ivory/internal/config"
	"github.com/ayusman/ivory/internal/keyboard"
)

const sampleYAML = `
camera:
  device: 2
  orientation: upright
calibration:
  strategy: tape
  max_attempts: 3
  timeout: 90s
  confirm: false
tape:
  lower: {h: 50, s: 100, v: 50}
  upper: {h: 90, s: 255, v: 255}
  kernel: 6
  x_bands:
    - {min: 0, max: 300}
touch:
  ticks: 8
  tick_interval: 500ms
  right_band: {min: -1, max: 200}
transport:
  bridge_command: python3
  bridge_args: [ble_bridge.py, --device, "AA:BB"]
`

func TestDefault_IsValid(t *testing.T) {
	if err := config.Validate(config.Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Camera.Device != 2 {
		t.Errorf("camera.device: got %d, want 2", cfg.Camera.Device)
	}
	if cfg.Camera.Orientation != keyboard.OrientationUpright {
		t.Errorf("camera.orientation: got %q, want upright", cfg.Camera.Orientation)
	}
	if cfg.Camera.Width != 1920 || cfg.Camera.FPS != 60 {
		t.Errorf("camera defaults lost: %+v", cfg.Camera)
	}
	if cfg.Calibration.Strategy != config.StrategyTape {
		t.Errorf("calibration.strategy: got %q, want tape", cfg.Calibration.Strategy)
	}
	if cfg.Calibration.Timeout != 90*time.Second {
		t.Errorf("calibration.timeout: got %s, want 90s", cfg.Calibration.Timeout)
	}
	if cfg.Calibration.Confirm {
		t.Error("calibration.confirm: got true, want false")
	}
	if !cfg.Calibration.ReuseSaved {
		t.Error("calibration.reuse_saved default lost")
	}
	if cfg.Tape.Kernel != 6 || cfg.Tape.Lower.H != 50 {
		t.Errorf("tape segment: got %+v", cfg.Tape.Segment)
	}
	if len(cfg.Tape.XBands) != 1 || cfg.Tape.XBands[0].Max != 300 {
		t.Errorf("tape.x_bands: got %+v", cfg.Tape.XBands)
	}
	if cfg.Tape.AreaMax != 500 {
		t.Errorf("tape.area_max default lost: got %g", cfg.Tape.AreaMax)
	}
	if cfg.Touch.TickInterval != 500*time.Millisecond || cfg.Touch.Ticks != 8 {
		t.Errorf("touch: got %+v", cfg.Touch)
	}
	if cfg.Touch.RightBand == nil || cfg.Touch.RightBand.Max != 200 {
		t.Errorf("touch.right_band: got %+v", cfg.Touch.RightBand)
	}
	if cfg.Touch.LeftBand != nil {
		t.Errorf("touch.left_band: got %+v, want nil", cfg.Touch.LeftBand)
	}
	if len(cfg.Transport.BridgeArgs) != 3 {
		t.Errorf("transport.bridge_args: got %v", cfg.Transport.BridgeArgs)
	}
}

func TestLoadFromReader_EmptyIsDefault(t *testing.T) {
	for _, doc := range []string{"", "{}"} {
		cfg, err := config.LoadFromReader(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", doc, err)
		}
		if cfg.Calibration.MaxAttempts != config.Default().Calibration.MaxAttempts {
			t.Errorf("max_attempts: got %d", cfg.Calibration.MaxAttempts)
		}
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("camera:\n  resolution: 4k\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"orientation", "camera:\n  orientation: sideways\n", "camera.orientation"},
		{"fourcc", "camera:\n  fourcc: MJ\n", "camera.fourcc"},
		{"strategy", "calibration:\n  strategy: guess\n", "calibration.strategy"},
		{"attempts", "calibration:\n  max_attempts: 0\n", "calibration.max_attempts"},
		{"timeout", "calibration:\n  timeout: -1s\n", "calibration.timeout"},
		{"motion threshold", "calibration:\n  motion_threshold: 0\n", "calibration.motion_threshold"},
		{"hsv range", "tape:\n  upper: {h: 200, s: 255, v: 255}\n", "tape: h"},
		{"hsv order", "black_keys:\n  lower: {h: 10, s: 200, v: 0}\n", "black_keys: lower bound"},
		{"kernel", "black_keys:\n  kernel: 0\n", "black_keys.kernel"},
		{"band", "tape:\n  x_bands: [{min: 10, max: 5}]\n", "tape.x_bands[0]"},
		{"no bands", "tape:\n  x_bands: []\n", "tape.x_bands"},
		{"area", "tape:\n  area_min: 600\n", "tape: area_min"},
		{"touch band", "touch:\n  left_band: {min: 5, max: 5}\n", "touch.left_band"},
		{"miss limit", "touch:\n  miss_limit: 0\n", "touch.miss_limit"},
		{"hands", "detector:\n  max_hands: 3\n", "detector.max_hands"},
		{"store", "store:\n  path: \"\"\n", "store.path"},
		{"bridge args", "transport:\n  bridge_args: [x]\n", "transport.bridge_args"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := config.Default()
	cfg.Camera.FPS = 0
	cfg.Touch.Ticks = 0
	cfg.Server.Addr = ""

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"camera.fps", "touch.ticks", "server.addr"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ivory.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Calibration.MaxAttempts != 3 {
		t.Errorf("calibration.max_attempts: got %d, want 3", cfg.Calibration.MaxAttempts)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConversions(t *testing.T) {
	cfg := config.Default()

	if got := cfg.Camera.Capture(); got.Width != cfg.Camera.Width || got.FourCC != "MJPG" {
		t.Errorf("Capture() = %+v", got)
	}
	seg := cfg.BlackKeys.Segmenter()
	if seg.Kernel != 3 || seg.Upper.V != 130 {
		t.Errorf("Segmenter() = %+v", seg)
	}
	gates := cfg.Tape.Gates()
	gates.XBands[0].Min = 999
	if cfg.Tape.XBands[0].Min == 999 {
		t.Error("Gates() shares the band slice with the config")
	}
	if got := cfg.Touch.Sampling(); got.Ticks != 5 || got.MissLimit != 50 {
		t.Errorf("Sampling() = %+v", got)
	}
	if got := cfg.Detector.Detector(); got.MaxHands != 2 {
		t.Errorf("Detector() = %+v", got)
	}
}
