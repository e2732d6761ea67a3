// Package main provides the CLI entrypoint for lapwatch.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/lapwatch/internal/clock"
	"github.com/verte-zerg/lapwatch/internal/config"
	"github.com/verte-zerg/lapwatch/internal/indicator"
	"github.com/verte-zerg/lapwatch/internal/input"
	"github.com/verte-zerg/lapwatch/internal/model"
	"github.com/verte-zerg/lapwatch/internal/press"
	"github.com/verte-zerg/lapwatch/internal/replay"
	"github.com/verte-zerg/lapwatch/internal/report"
	"github.com/verte-zerg/lapwatch/internal/stopwatch"
	"github.com/verte-zerg/lapwatch/internal/tui"
)

const (
	defaultVariant      = string(model.VariantRelease)
	defaultLongPress    = int(press.DefaultLongPress)
	defaultTickMs       = int(clock.DefaultTick / time.Millisecond)
	defaultHoldPollMs   = int(press.DefaultHoldPoll / time.Millisecond)
	defaultConfirmPulse = int(indicator.DefaultPulse / time.Millisecond)
)

var (
	runVariant   string
	runLongPress int
	runTickMs    int
	runHoldPoll  int
	runPulse     int
	runHeadless  bool
	runLogFile   string
	runVerbose   bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lapwatch",
		Short:         "One-button lap stopwatch",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runStopwatchCmd,
	}

	rootCmd.Flags().StringVar(&runVariant, "variant", defaultVariant, "press classifier (release or staged)")
	rootCmd.Flags().IntVar(&runLongPress, "long-press", defaultLongPress, "long-press threshold in centiseconds")
	rootCmd.Flags().IntVar(&runTickMs, "tick", defaultTickMs, "clock tick period in milliseconds")
	rootCmd.Flags().IntVar(&runHoldPoll, "hold-poll", defaultHoldPollMs, "staged variant re-evaluation period in milliseconds")
	rootCmd.Flags().IntVar(&runPulse, "confirm-pulse", defaultConfirmPulse, "reset confirmation pulse in milliseconds")
	rootCmd.Flags().BoolVar(&runHeadless, "headless", false, "print to stdout instead of the TUI")
	rootCmd.PersistentFlags().StringVar(&runLogFile, "log-file", "", "log file (default: state dir while the TUI runs, stderr otherwise)")
	rootCmd.PersistentFlags().BoolVar(&runVerbose, "verbose", false, "log classifier transitions")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newSourcesCmd())
	rootCmd.AddCommand(newReplayCmd())

	return rootCmd
}

func runStopwatchCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := resolveConfig(cmd, fileCfg)
	if err != nil {
		return err
	}

	headless := runHeadless || !term.IsTerminal(int(os.Stdout.Fd()))
	log, closeLog, err := newLogger(!headless)
	if err != nil {
		return err
	}
	defer closeLog()
	defer func() {
		if cerr := input.CloseRPIO(); cerr != nil {
			log.WithError(cerr).Warn("failed to release gpio")
		}
	}()

	var sw *stopwatch.Stopwatch
	sources, err := input.Build(cfg.Sources, input.Deps{
		Scheduler: clock.TickerScheduler{},
		OnSampleError: func(err error) {
			sw.Fault(err)
		},
	})
	if err != nil {
		return fmt.Errorf("invalid input configuration: %w", err)
	}

	led, err := indicator.Open(cfg.Indicator)
	if err != nil {
		return err
	}
	var ind *indicator.Indicator
	if led != nil {
		ind = indicator.New(led, cfg.ConfirmPulse)
		defer ind.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if headless {
		printer := report.NewPrinter(os.Stdout, false)
		sw, err = newSession(cfg, sources, log, printer, ind)
		if err != nil {
			return err
		}
		if _, ok := sw.VirtualButton(); ok && len(sw.Sources()) == 1 {
			logErrln("no hardware input configured; the virtual key cannot be pressed in headless mode")
		}
		runErr := sw.Run(ctx)
		printer.Summary(sw.Clock().Read(), sw.Laps().Records())
		return runErr
	}

	renderer := tui.NewRenderer()
	sw, err = newSession(cfg, sources, log, renderer, ind)
	if err != nil {
		return err
	}
	var button tui.Button
	if vb, ok := sw.VirtualButton(); ok {
		button = vb
	}
	program := tea.NewProgram(tui.NewModel(sw.Config(), button), tea.WithAltScreen())
	renderer.Attach(program)

	done := make(chan error, 1)
	go func() {
		err := sw.Run(ctx)
		renderer.Stopped(err)
		done <- err
	}()
	_, runErr := program.Run()
	cancel()
	sessionErr := <-done
	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	return sessionErr
}

func newSession(cfg model.Config, sources []input.Source, log logrus.FieldLogger, r stopwatch.Renderer, ind *indicator.Indicator) (*stopwatch.Stopwatch, error) {
	opts := []stopwatch.Option{stopwatch.WithLogger(log), stopwatch.WithRenderer(r)}
	if ind != nil {
		opts = append(opts, stopwatch.WithRenderer(ind))
	}
	return stopwatch.New(cfg, sources, opts...)
}

func resolveConfig(cmd *cobra.Command, fileCfg config.FileConfig) (model.Config, error) {
	applyStringConfig(cmd, "variant", &runVariant, fileCfg.Stopwatch.Variant)
	applyIntConfig(cmd, "long-press", &runLongPress, fileCfg.Stopwatch.LongPressCs)
	applyIntConfig(cmd, "tick", &runTickMs, fileCfg.Stopwatch.TickMs)
	applyIntConfig(cmd, "hold-poll", &runHoldPoll, fileCfg.Stopwatch.HoldPollMs)
	applyIntConfig(cmd, "confirm-pulse", &runPulse, fileCfg.Stopwatch.ConfirmPulseMs)

	if err := validateConfig(); err != nil {
		return model.Config{}, err
	}
	return model.Config{
		Variant:      model.Variant(runVariant),
		LongPressCs:  uint64(runLongPress),
		Tick:         time.Duration(runTickMs) * time.Millisecond,
		HoldPoll:     time.Duration(runHoldPoll) * time.Millisecond,
		ConfirmPulse: time.Duration(runPulse) * time.Millisecond,
		Sources:      fileCfg.ModelSources(),
		Indicator:    fileCfg.Indicator.Model(),
	}, nil
}

func newLogger(tuiActive bool) (*logrus.Logger, func(), error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if runVerbose {
		log.SetLevel(logrus.DebugLevel)
	}
	path := runLogFile
	if path == "" && tuiActive {
		path = config.DefaultLogPath()
	}
	if path == "" {
		log.SetOutput(os.Stderr)
		return log, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return log, func() {
		if cerr := f.Close(); cerr != nil {
			logErrf("failed to close log file: %v\n", cerr)
		}
	}, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List and validate configured input sources",
		Args:  cobra.NoArgs,
		RunE:  runSourcesCmd,
	}
}

func runSourcesCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return writeSources(cmd.OutOrStdout(), fileCfg.ModelSources())
}

func writeSources(w io.Writer, raw []model.SourceConfig) error {
	cfgs := make([]model.SourceConfig, 0, len(raw))
	status := make([]string, 0, len(raw))
	invalid := 0
	for _, c := range raw {
		c = input.WithDefaults(c)
		cfgs = append(cfgs, c)
		if !c.Enabled {
			status = append(status, "disabled")
			continue
		}
		if err := input.Validate(c); err != nil {
			var cfgErr *input.ConfigError
			if errors.As(err, &cfgErr) && cfgErr.Reason != "" {
				status = append(status, cfgErr.Reason)
			} else {
				status = append(status, err.Error())
			}
			invalid++
			continue
		}
		status = append(status, "ok")
	}
	for _, line := range report.FormatSources(cfgs, status) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d invalid source(s)", invalid)
	}
	return nil
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <script.toml>",
		Short: "Run an edge script deterministically and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplayCmd,
	}
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	script, err := replay.Load(args[0])
	if err != nil {
		return err
	}
	log, closeLog, err := newLogger(false)
	if err != nil {
		return err
	}
	defer closeLog()

	printer := report.NewPrinter(cmd.OutOrStdout(), false)
	res, err := replay.Run(script, printer, log)
	if err != nil {
		return err
	}
	printer.Summary(res.Elapsed, res.Laps)
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "running=%t state=%s confirms=%d\n", res.Running, res.State, res.Confirms); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# lapwatch configuration
# Uncomment a value to enable it. CLI flags override config values.

[stopwatch]
# variant = %q            # release or staged
# long-press-cs = %d        # Long-press threshold (centiseconds)
# tick-ms = %d              # Clock tick period
# hold-poll-ms = %d        # Staged variant re-evaluation period while held
# confirm-pulse-ms = %d     # Reset confirmation pulse

# Without [[source]] entries the keyboard drives a virtual button.
# [[source]]
# name = "boot"
# kind = "gpio"            # gpio, touch or hall
# binding = "rpio"         # rpio, sysfs or virtual
# pin = 0
# pull = "up"
# trigger = "low"          # gpio: low/high, touch: below/above, hall: outside/inside

# [[source]]
# name = "pad"
# kind = "touch"
# binding = "sysfs"
# path = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"
# low = %d
# high = %d

# [indicator]
# binding = "rpio"
# pin = 2
`,
		defaultVariant,
		defaultLongPress,
		defaultTickMs,
		defaultHoldPollMs,
		defaultConfirmPulse,
		input.DefaultTouchLow,
		input.DefaultTouchHigh,
	)
}

func validateConfig() error {
	if !model.Variant(runVariant).Valid() {
		return fmt.Errorf("--variant must be %q or %q", model.VariantRelease, model.VariantStaged)
	}
	if runLongPress <= 0 {
		return fmt.Errorf("--long-press must be > 0")
	}
	if runTickMs <= 0 {
		return fmt.Errorf("--tick must be > 0")
	}
	if runHoldPoll <= 0 {
		return fmt.Errorf("--hold-poll must be > 0")
	}
	if runPulse < 0 {
		return fmt.Errorf("--confirm-pulse must be >= 0")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
