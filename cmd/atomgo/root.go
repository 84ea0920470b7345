package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/atomgo/demo"
	"github.com/YuminosukeSato/atomgo/internal/config"
	"github.com/YuminosukeSato/atomgo/pkg/log"
)

// Set with -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
)

// flags shared by every subcommand
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "atomgo",
		Short:         "AutoML pipeline demo: clean a tabular dataset, fit classifiers, compare them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "override log format (json, console)")

	root.AddCommand(newServeCmd(g), newRunCmd(g), newVersionCmd())
	return root
}

// setup loads the config, applies flag overrides and installs the logger.
func (g *globalFlags) setup(logOut io.Writer) (*config.Config, log.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := log.SetupLogger(log.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: logOut})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newController(cfg *config.Config, logger log.Logger) *demo.Controller {
	return demo.NewController(
		demo.WithLogger(logger),
		demo.WithRandomState(cfg.Pipeline.RandomState),
		demo.WithTestSize(cfg.Pipeline.TestSize),
		demo.WithNEstimators(cfg.Pipeline.NEstimators),
		demo.WithNJobs(cfg.Pipeline.NJobs),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("atomgo %s (%s)\n", version, commit)
		},
	}
}
