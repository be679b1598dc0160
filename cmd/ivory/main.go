package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/ivory/internal/app"
	"github.com/ayusman/ivory/internal/calibration"
	"github.com/ayusman/ivory/internal/config"
	"github.com/ayusman/ivory/internal/keyboard"
	"github.com/ayusman/ivory/internal/observe"
	"github.com/ayusman/ivory/internal/server"
	"github.com/ayusman/ivory/internal/store"
	"github.com/ayusman/ivory/internal/tray"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	dataDir := flag.String("data", defaultDataDir(), "directory for the calibration database")
	recalibrate := flag.Bool("calibrate", false, "ignore saved calibrations and calibrate on start")
	withTray := flag.Bool("tray", false, "show a system tray menu")
	flag.Parse()

	fmt.Println("Ivory - Piano Key Tracking")

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *recalibrate {
		cfg.Calibration.ReuseSaved = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}
	defer provider.Shutdown(context.Background())
	metrics, err := provider.Metrics()
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	st, err := openStore(*dataDir, cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	a, err := app.New(app.Config{Settings: cfg, Store: st, Metrics: metrics})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}
	defer a.Close()

	webDir := findWebDir(cfg.Server.StaticDir)
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}
	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Calibrator: a,
		Frames:     a.Frames(),
		Model:      a,
		Keys:       a.Hub(),
		Metrics:    provider.Handler(),
	}).HTTPServer(cfg.Server.Addr)

	var t *tray.Tray
	if *withTray {
		t = newTray(a, "http://"+cfg.Server.Addr, stop)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return a.Run(gctx)
	})
	g.Go(func() error {
		fmt.Printf("Starting server on %s\n", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if t != nil {
			t.Quit()
		}
		return srv.Shutdown(sctx)
	})

	// The tray must own the main goroutine on macOS.
	if t != nil {
		t.Run()
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("ivory: %v", err)
	}
}

func newTray(a *app.App, url string, quit func()) *tray.Tray {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnRecalibrate(func() { a.RequestRecalibration() })
	t.OnDashboard(func() {
		if err := openBrowser(url); err != nil {
			log.Printf("Failed to open dashboard: %v", err)
		}
	})
	t.OnQuit(quit)
	a.OnCalibrationState(func(st calibration.State) { t.SetStatus(string(st)) })

	var last []int
	a.OnResult(func(r keyboard.MatchResult) {
		keys := r.Pressed()
		if !equalKeys(keys, last) {
			t.SetLastKeys(keys)
			last = keys
		}
	})
	return t
}

func equalKeys(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".ivory")
}

// openStore opens the calibration database. A relative path is taken from
// dataDir.
func openStore(dataDir, path string) (*store.Store, error) {
	if !filepath.IsAbs(path) {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		path = filepath.Join(dataDir, path)
	}
	return store.New(path)
}

// findWebDir searches for the web directory named dir relative to the
// working directory and its parents, then under ~/.ivory.
// Returns the first existing directory or empty string if none found.
func findWebDir(dir string) string {
	if dir == "" {
		return ""
	}
	if filepath.IsAbs(dir) {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		return ""
	}

	for _, p := range []string{dir, filepath.Join("..", dir), filepath.Join("..", "..", dir)} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeWebDir := filepath.Join(defaultDataDir(), dir)
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
