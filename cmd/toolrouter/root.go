package main

import (
	"io"

	"github.com/effective-security/toolrouter/config"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "cmd")

type rootOptions struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "toolrouter",
		Short:         "TechBay customer support tool router",
		Long:          "Routes the customer queries to the department tools selected by the language model.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to the config file, the environment is used if not set")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newAskCmd(opts))
	return cmd
}

// loadConfig loads the configuration and sets up the logger
func (o *rootOptions) loadConfig(logOut io.Writer) (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}

	xlog.SetFormatter(xlog.NewStringFormatter(logOut))
	level := cfg.Log.LogLevel()
	if o.verbose {
		level = xlog.DEBUG
	}
	xlog.SetGlobalLogLevel(level)
	return cfg, nil
}
