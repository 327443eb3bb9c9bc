// Package commands implements the snap2pdf cobra command tree.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/snap2pdf/cmd/snap2pdf/ui"
	"github.com/spherical/snap2pdf/internal/app"
	"github.com/spherical/snap2pdf/internal/config"
	"github.com/spherical/snap2pdf/internal/domain"
)

var (
	cfgFile string
	verbose bool
	noColor bool
	outDir  string
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "snap2pdf",
	Short: "Turn camera snapshots into PDFs and edit PDF documents",
	Long: `snap2pdf captures a still from a local camera as a one-page PDF and
merges, splits, extracts text from and annotates PDF documents. Every
command produces exactly one output file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.InitUI(noColor, verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", "", "directory outputs are written to")
}

// SetVersion sets the version reported by `snap2pdf version`.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		ui.Error("%s", describeError(err))
		return 1
	}
	return 0
}

// loadConfig reads .env, the config file and flag overrides.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Observability.LogLevel = "debug"
	}
	if outDir != "" {
		cfg.Output.Dir = outDir
	}
	return cfg, nil
}

// session is one command invocation's wiring.
type session struct {
	ctx    context.Context
	app    *app.App
	events chan domain.WorkflowEvent
	stop   func()
}

// newSession loads config, applies the command's overrides, builds the App
// and cancels ctx on SIGINT/SIGTERM.
func newSession(cmd *cobra.Command, overrides ...func(*config.Config)) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("invalid configuration", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	events := make(chan domain.WorkflowEvent, 64)
	a, err := app.New(ctx, cfg, app.WithNoColor(noColor), app.WithEvents(events))
	if err != nil {
		cancel()
		return nil, err
	}
	return &session{
		ctx:    ctx,
		app:    a,
		events: events,
		stop: func() {
			_ = a.Close()
			cancel()
		},
	}, nil
}
