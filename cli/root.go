package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-looper/config"
	"go-looper/debug"
	"go-looper/engine"
	"go-looper/history"
	"go-looper/looper"
	"go-looper/midi"
	"go-looper/theme"
	"go-looper/tui"
)

var rootFlags struct {
	config     string
	state      string
	historyDir string
	in         string
	out        string
	tempo      uint32
	palette    string
	autosave   bool
	debug      bool
}

var rootCmd = &cobra.Command{
	Use:   "go-looper",
	Short: "Live MIDI looper",
	Long: `Records what you play on a MIDI input, snaps it to the grid and loops
it on a MIDI output together with a metronome. Takes of different lengths
loop against each other; the whole loop is as long as their least common
multiple.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLooper(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.config, "config", "", "config file (default ~/.config/go-looper/config.json)")
	pf.StringVar(&rootFlags.state, "state", "", "state file (overrides the config)")
	pf.StringVar(&rootFlags.historyDir, "history-dir", "", "archive directory (default ~/.config/go-looper/history)")

	f := rootCmd.Flags()
	f.StringVar(&rootFlags.in, "in", "", "MIDI input port name or part of it")
	f.StringVar(&rootFlags.out, "out", "", "MIDI output port name or part of it")
	f.Uint32Var(&rootFlags.tempo, "tempo", 0, "starting tempo in bpm")
	f.StringVar(&rootFlags.palette, "palette", "", "builtin palette name or .gpl file")
	f.BoolVar(&rootFlags.autosave, "autosave", false, "save the state file after every change")
	f.BoolVar(&rootFlags.debug, "debug", false, "write a debug log to ~/.config/go-looper/debug.log")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

// configPath is the file the config is read from and ports are remembered in
func configPath() (string, error) {
	if rootFlags.config != "" {
		return rootFlags.config, nil
	}
	return config.ConfigPath()
}

// loadConfig returns the config on disk and the one to run with, which has
// the command line flags applied on top.
func loadConfig(cmd *cobra.Command) (onDisk, effective *config.Config, err error) {
	path, err := configPath()
	if err != nil {
		onDisk = config.DefaultConfig()
	} else if onDisk, err = config.LoadFrom(path); err != nil {
		return nil, nil, err
	}

	eff := *onDisk
	flags := cmd.Flags()
	if flags.Changed("state") {
		eff.StateFile = rootFlags.state
	}
	if flags.Changed("in") {
		eff.InputPort = rootFlags.in
	}
	if flags.Changed("out") {
		eff.OutputPort = rootFlags.out
	}
	if flags.Changed("tempo") {
		eff.Tempo = rootFlags.tempo
	}
	if flags.Changed("palette") {
		eff.Palette = rootFlags.palette
	}
	if flags.Changed("autosave") {
		eff.Autosave = rootFlags.autosave
	}
	if err := eff.Validate(); err != nil {
		return nil, nil, err
	}
	return onDisk, &eff, nil
}

func historyDir() (string, error) {
	if rootFlags.historyDir != "" {
		return rootFlags.historyDir, nil
	}
	return history.Dir()
}

// exportPath puts the MIDI file next to the state file
func exportPath(stateFile string) string {
	return strings.TrimSuffix(stateFile, filepath.Ext(stateFile)) + ".mid"
}

func engineOptions(cfg *config.Config, log *zap.Logger) engine.Options {
	histDir, err := historyDir()
	if err != nil {
		log.Warn("history disabled", zap.Error(err))
		histDir = ""
	}
	return engine.Options{
		StateFile:     cfg.StateFile,
		HistoryDir:    histDir,
		HistoryLimit:  cfg.HistoryLimit,
		LoopSleep:     cfg.LoopSleep(),
		Autosave:      cfg.Autosave,
		AutosaveDelay: cfg.AutosaveDelay(),
		LooperOptions: []looper.Option{
			looper.WithMeasure(cfg.Measure()),
			looper.WithControls(cfg.Controls()),
			looper.WithMetronome(cfg.MetronomeSettings()),
		},
		Logger: log,
	}
}

func runLooper(cmd *cobra.Command) error {
	onDisk, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if rootFlags.debug {
		path, err := debug.DefaultPath()
		if err != nil {
			return err
		}
		if err := debug.Enable(path); err != nil {
			return err
		}
		defer func() {
			debug.Disable()
			fmt.Fprintf(cmd.ErrOrStderr(), "debug log %s (session %s)\n", path, debug.Session())
		}()
	}
	log := debug.L()
	log.Info("starting", zap.String("state", cfg.StateFile), zap.Uint32("tempo", cfg.Tempo))

	palette, err := theme.Load(cfg.Palette)
	if err != nil {
		return err
	}

	tracker := midi.NewNoteTracker(nil, debug.Named("out"))
	eng := engine.New(tracker, engineOptions(cfg, log))
	// a bad state file is shown in the status line; start empty
	_ = eng.LoadInitial()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	devices := midi.NewDeviceManager(cfg.InputPort, cfg.OutputPort, debug.Named("midi"))
	p := tea.NewProgram(tui.NewModel(eng, theme.New(palette), exportPath(cfg.StateFile)), tea.WithAltScreen())

	go devices.Run(ctx)
	go forwardDevices(devices.Events(), eng, p, onDisk, log)

	engineDone := make(chan error, 1)
	go func() { engineDone <- eng.Run(ctx) }()

	_, err = p.Run()
	cancel()
	if runErr := <-engineDone; !errors.Is(runErr, context.Canceled) && err == nil {
		err = runErr
	}
	return err
}

// forwardDevices is the only reader of the device events. The engine gets
// the ports, the UI gets the names and the config remembers them.
func forwardDevices(events <-chan midi.DeviceEvent, eng *engine.Manager, p *tea.Program, onDisk *config.Config, log *zap.Logger) {
	for ev := range events {
		eng.HandleDeviceEvent(ev)

		switch ev.Type {
		case midi.InputConnected:
			onDisk.RememberPorts(ev.Name, "")
			saveConfig(onDisk, log)
		case midi.OutputConnected:
			onDisk.RememberPorts("", ev.Name)
			saveConfig(onDisk, log)
		}

		p.Send(tui.DeviceEventMsg(ev))
	}
}

func saveConfig(cfg *config.Config, log *zap.Logger) {
	path, err := configPath()
	if err == nil {
		err = cfg.SaveTo(path)
	}
	if err != nil {
		log.Warn("remember ports", zap.Error(err))
	}
}
