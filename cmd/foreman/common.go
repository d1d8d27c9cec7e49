package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"

	"github.com/ShayCichocki/foreman/internal/config"
	"github.com/ShayCichocki/foreman/internal/launcher"
	"github.com/ShayCichocki/foreman/internal/logging"
	"github.com/ShayCichocki/foreman/internal/profile"
	"github.com/ShayCichocki/foreman/internal/session"
	"github.com/ShayCichocki/foreman/internal/strategy"
	"github.com/ShayCichocki/foreman/internal/tracker"
	"github.com/ShayCichocki/foreman/internal/tui"
	"github.com/ShayCichocki/foreman/pkg/models"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (overrides discovery)")
}

// runtime holds the wired-up pieces every orchestration command needs.
type runtime struct {
	cfg      *config.Config
	registry *profile.Registry
	tracker  *tracker.Tracker
	runner   strategy.Runner
	logger   *logging.DebugLogger

	store   *session.Store
	watcher *profile.Watcher
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// newRuntime loads config, the profile catalog, the conversation store and
// the launcher, and returns them ready for a dispatcher or pipeline.
func newRuntime() (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := CheckAgentCLI(cfg.Agent.Binary); err != nil {
		return nil, err
	}

	logger := logging.NopLogger()
	if cfg.LogFile != "" {
		logger, err = logging.NewDebugLogger(cfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
	}

	registry := profile.NewRegistry()
	profiles, err := profile.LoadDir(cfg.Profiles.Dir)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("load profiles from %s: %w", cfg.Profiles.Dir, err)
	}
	if len(profiles) == 0 {
		logger.Close()
		return nil, fmt.Errorf("no role profiles found in %s", cfg.Profiles.Dir)
	}
	for _, p := range profiles {
		if err := registry.Register(p); err != nil {
			logger.Close()
			return nil, fmt.Errorf("register profile %q: %w", p.Name, err)
		}
	}
	logger.Log("loaded %d profiles from %s", len(profiles), cfg.Profiles.Dir)

	rt := &runtime{
		cfg:      cfg,
		registry: registry,
		tracker:  tracker.New(),
		logger:   logger,
	}

	if cfg.Profiles.Watch {
		rt.watcher, err = profile.NewWatcher(cfg.Profiles.Dir, registry, func(n int, err error) {
			if err != nil {
				logger.Log("profile reload failed: %v", err)
				return
			}
			logger.Log("profile catalog reloaded: %d roles", n)
		})
		if err != nil {
			logger.Log("profile watcher unavailable: %v", err)
			rt.watcher = nil
		}
	}

	rt.store, err = session.Open(filepath.Join(cfg.DataDir, "sessions.db"))
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}

	rt.runner = strategy.NewRunner(&launcher.Launcher{
		Binary:  cfg.Agent.Binary,
		Model:   cfg.Agent.Model,
		WorkDir: cfg.Agent.WorkDir,
		Store:   rt.store,
		Logger:  logger,
	})
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.watcher != nil {
		rt.watcher.Close()
	}
	if rt.store != nil {
		rt.store.Close()
	}
	if rt.logger != nil {
		rt.logger.Close()
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt, shutting down...")
		cancel()
	}()
	return ctx, cancel
}

// withStatusUI runs dispatch while showing the live status display, unless
// headless is set, and returns the outcome.
func withStatusUI(rt *runtime, headless, pipeline bool, dispatch func(context.Context) models.Outcome) (models.Outcome, error) {
	ctx, cancel := signalContext()
	defer cancel()

	if headless {
		return dispatch(ctx), nil
	}

	finished := make(chan struct{})
	var outcome models.Outcome
	go func() {
		outcome = dispatch(ctx)
		close(finished)
	}()

	model := tui.NewStatusModel(rt.tracker, pipeline, rt.cfg.TUI.RefreshRate, finished)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return models.Outcome{}, fmt.Errorf("status display: %w", err)
	}
	// The user may have quit the display early; wait for the dispatch.
	cancel()
	<-finished
	return outcome, nil
}

func printOutcome(o models.Outcome) error {
	switch o.Kind {
	case models.OutcomeSuccess:
		color.Green("✓ done (%s)", o.Elapsed.Round(time.Millisecond))
		fmt.Println(o.Text)
		return nil
	case models.OutcomeBusy:
		color.Yellow("role %q is busy: %s", o.Role, o.Text)
	case models.OutcomeNotFound:
		color.Yellow("%s", o.Text)
	case models.OutcomeCancelled:
		color.Yellow("cancelled: %s", o.Text)
	case models.OutcomeTimedOut:
		color.Red("timed out: %s", o.Text)
	default:
		color.Red("✗ failed: %s", o.Text)
	}
	return fmt.Errorf("dispatch did not succeed")
}
