package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keithlinneman/quarry/internal/bundle"
	"github.com/keithlinneman/quarry/internal/cfg"
)

func newImportCmd(conf *cfg.App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <bundle.tar.gz> <dir>",
		Short: "Extract and verify a content bundle into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := bundle.Extract(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("extracted %s into %s\n  files: %d\n  version: %s\n",
				args[0], args[1], m.Summary.TotalFiles, m.Version)
			return nil
		},
	}
}
