package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keithlinneman/quarry/internal/cfg"
	"github.com/keithlinneman/quarry/internal/log"
	v "github.com/keithlinneman/quarry/internal/version"
)

const envPrefix = "QUARRY_"

func newRootCmd() *cobra.Command {
	var conf cfg.App

	root := &cobra.Command{
		Use:           v.AppName,
		Short:         "flat-file CMS server and bundle tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.FillFromEnv(cmd.Root().PersistentFlags(), envPrefix, func(format string, args ...any) {
				fmt.Fprintf(os.Stderr, format+"\n", args...)
			})
		},
	}
	cfg.Register(root.PersistentFlags(), &conf)

	root.AddCommand(
		newServeCmd(&conf),
		newExportCmd(&conf),
		newImportCmd(&conf),
		newPublishCmd(&conf),
		newPullCmd(&conf),
		newUserCmd(&conf),
		newVersionCmd(),
	)
	return root
}

// newLogger builds the process logger from config. Shared by every
// subcommand that does more than print to stdout.
func newLogger(conf *cfg.App) (log.Logger, error) {
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	stLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		return nil, err
	}
	return log.New(log.Options{
		App:               v.AppName,
		Version:           v.Version,
		Commit:            v.Commit,
		Level:             lvl,
		StacktraceLevel:   stLvl,
		JsonFormat:        conf.LogJSON,
		IncludeErrorLinks: conf.IncludeErrorLinks,
		MaxErrorLinks:     conf.MaxErrorLinks,
	})
}
