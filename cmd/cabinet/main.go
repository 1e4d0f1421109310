package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cab "github.com/secDre4mer/cabreader"
	"github.com/secDre4mer/cabreader/config"
)

var (
	argConfig   string
	argLogLevel string
	argWorkers  int

	currentConfig *config.Config
	logger        zerolog.Logger
)

var RootCmd = &cobra.Command{
	Use:               "cabinet",
	Short:             "List, extract and test Microsoft cabinet files",
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

func init() {
	addGlobalFlags(RootCmd.PersistentFlags())
}

func addGlobalFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&argConfig, "config", "c", "", "Configuration file")
	flags.StringVar(&argLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.IntVarP(&argWorkers, "workers", "j", 0, "Folders to decompress in parallel")
}

func setup(cmd *cobra.Command, args []string) error {
	currentConfig = new(config.Config)
	if argConfig != "" {
		var err error
		if currentConfig, err = config.ReadFile(argConfig); err != nil {
			return err
		}
	}
	if argLogLevel != "" {
		currentConfig.LogLevel = argLogLevel
	}
	if cmd.Flags().Changed("workers") {
		if argWorkers < 0 {
			return errors.New("workers must not be negative")
		}
		currentConfig.Workers = argWorkers
	}
	level, err := currentConfig.Level()
	if err != nil {
		return err
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	return nil
}

func openCabinet(path string) (*cab.Cabinet, error) {
	opts, err := currentConfig.Options(logger)
	if err != nil {
		return nil, err
	}
	c, err := cab.OpenFile(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
