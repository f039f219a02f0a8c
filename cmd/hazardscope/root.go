package main

import (
	"github.com/spf13/cobra"

	"github.com/crimson-sun/hazardscope/internal/config"
	"github.com/crimson-sun/hazardscope/internal/logging"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configFile string
	logLevel   string
	logJSON    bool
	cfg        config.Config
}

func rootCommand() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "hazardscope",
		Short:         "Construction-site hazard image analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&g.logJSON, "log-json", false, "Emit JSON logs on stderr")

	versionCmd := versionCommand()
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		cfg, err := config.Load(g.configFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = g.logLevel
		}
		if cmd.Flags().Changed("log-json") {
			cfg.Log.JSON = g.logJSON
		}
		logging.Init(cfg.Log.JSON, logging.ParseLevel(cfg.Log.Level))
		g.cfg = cfg
		return nil
	}

	root.AddCommand(
		serveCommand(g),
		analyzeCommand(g),
		ingestCommand(g),
		versionCmd,
	)
	return root
}
