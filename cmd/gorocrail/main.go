package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/gorocrail/gorocrail/internal/cliconfig"
	"github.com/gorocrail/gorocrail/pkg/frame"
	"github.com/gorocrail/gorocrail/pkg/log"
	"github.com/gorocrail/gorocrail/pkg/rocrail"
	"github.com/gorocrail/gorocrail/plugins/schedulefile"
)

const helpDescription = `
Connect to a Rocrail server, mirror its layout state, and run scheduled
automation against the model railway.

Highlights:
  - Mirrors sensors, locomotives, blocks, switches, signals and routes in memory.
  - Declarative TOML schedules with fast-clock time patterns and conditions,
    hot-reloaded on file change.
  - Monitor mode logs clock ticks and sensor events as they arrive.
  - Configure via file (~/.gorocrail/config.toml), GOROCRAIL_* env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  gorocrail --host rocrail.local --monitor
  gorocrail --schedule /etc/gorocrail/schedule.toml
  gorocrail --config $HOME/.gorocrail/config.toml --verbose
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logger := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "gorocrail",
		Short:   "Rocrail client with layout mirroring and scheduled automation",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.gorocrail/config.toml),
			// then env, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			if cfg.Verbose {
				logger = logger.Level(zerolog.DebugLevel)
			} else {
				logger = logger.Level(zerolog.InfoLevel)
			}

			logger.Info().
				Str("addr", cfg.Addr()).
				Str("schedule", cfg.Schedule).
				Bool("monitor", cfg.Monitor).
				Msg("configuration")

			libCfg := rocrail.Config{
				Host:        cfg.Host,
				Port:        cfg.Port,
				DialTimeout: cfg.DialTimeout,
				ReadTimeout: cfg.ReadTimeout,
				StopTimeout: cfg.StopTimeout,
				RequestPlan: cfg.RequestPlan,
			}
			libCfg.Scheduler.Workers = cfg.Workers
			libCfg.Scheduler.QueueSize = cfg.QueueSize
			libCfg.Scheduler.DefaultTimeout = cfg.ActionTimeout

			opts := []rocrail.Option{
				rocrail.WithLogger(log.NewZerologAdapterWithLogger(logger)),
				rocrail.WithEventHandler(&cliEventHandler{logger: logger, monitor: cfg.Monitor}),
			}
			if cfg.Schedule != "" {
				opts = append(opts, schedulefile.WithDefaultScheduleFile(cfg.Schedule))
			}

			c, err := rocrail.New(libCfg, opts...)
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if err := c.Start(ctx); err != nil {
				return fmt.Errorf("start client: %w", err)
			}

			// Detect a crash (connection loss) while waiting for a signal.
			doneCh := make(chan struct{})
			go func() {
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if c.Status() == rocrail.StateCrashed {
							close(doneCh)
							return
						}
					}
				}
			}()

			select {
			case <-sigCh:
				logger.Info().Msg("received signal, stopping...")
			case <-doneCh:
				logger.Error().Msg("connection lost")
				return fmt.Errorf("connection to %s lost", cfg.Addr())
			}

			if err := c.Stop(); err != nil {
				return fmt.Errorf("stop client: %w", err)
			}
			return nil
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.gorocrail/config.toml)")
	root.Flags().StringVar(&cfg.Host, "host", cfg.Host, "Rocrail server host")
	root.Flags().IntVar(&cfg.Port, "port", cfg.Port, "Rocrail client service port")
	root.Flags().StringVar(&cfg.Schedule, "schedule", cfg.Schedule, "TOML schedule file with automation actions")

	root.Flags().DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "connect timeout")
	root.Flags().DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "socket read poll timeout")
	if err := root.Flags().MarkHidden("read-timeout"); err != nil {
		logger.Info().Err(err).Msg("failed to hide read-timeout flag")
	}
	root.Flags().DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "graceful shutdown grace period")
	if err := root.Flags().MarkHidden("stop-timeout"); err != nil {
		logger.Info().Err(err).Msg("failed to hide stop-timeout flag")
	}

	root.Flags().DurationVar(&cfg.ActionTimeout, "timeout", cfg.ActionTimeout, "default action timeout")
	root.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "action worker pool size")
	root.Flags().IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "pending action queue size")

	root.Flags().BoolVar(&cfg.RequestPlan, "request-plan", cfg.RequestPlan, "request the layout plan on connect")
	root.Flags().BoolVar(&cfg.Monitor, "monitor", cfg.Monitor, "log clock ticks and sensor events")
	root.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "enable debug logging")

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("gorocrail")
		os.Exit(1)
	}
}

// cliEventHandler logs client events to the console. In monitor mode it
// also logs every clock tick and sensor report as they arrive.
type cliEventHandler struct {
	rocrail.BaseEventHandler
	logger  zerolog.Logger
	monitor bool
}

func (h *cliEventHandler) OnStateChange(event rocrail.StateChangeEvent) {
	h.logger.Info().
		Str("from", event.Previous.String()).
		Str("to", event.Current.String()).
		Str("reason", event.Reason).
		Msg("state change")
}

func (h *cliEventHandler) OnDocument(event rocrail.DocumentEvent) {
	if !h.monitor {
		return
	}
	for _, el := range event.Document.Root.Children {
		h.logElement(el)
	}
}

func (h *cliEventHandler) logElement(el *frame.Element) {
	switch el.Name {
	case "clock":
		h.logger.Info().
			Str("time", fmt.Sprintf("%s:%s", el.GetAttr("hour"), el.GetAttr("minute"))).
			Str("divider", el.GetAttr("divider")).
			Msg("clock")
	case "fb":
		h.logger.Info().
			Str("id", el.GetAttr("id")).
			Str("state", el.GetAttr("state")).
			Msg("sensor")
	case "lc":
		h.logger.Debug().
			Str("id", el.GetAttr("id")).
			Str("speed", el.GetAttr("V")).
			Str("block", el.GetAttr("blockid")).
			Msg("locomotive")
	default:
		h.logger.Debug().Str("element", el.Name).Msg("document")
	}
}

func (h *cliEventHandler) OnActionDone(event rocrail.ActionDoneEvent) {
	if event.Err != nil {
		h.logger.Error().
			Str("action", event.Name).
			Dur("elapsed", event.Elapsed).
			Err(event.Err).
			Msg("action failed")
		return
	}
	h.logger.Info().
		Str("action", event.Name).
		Dur("elapsed", event.Elapsed).
		Msg("action done")
}

func (h *cliEventHandler) OnUnexpectedDisconnect(event rocrail.DisconnectEvent) {
	h.logger.Error().
		Int("locomotives", len(event.Snapshot.Locomotives)).
		Int("blocks", len(event.Snapshot.Blocks)).
		Msg("unexpected disconnect, state snapshot preserved")
}
