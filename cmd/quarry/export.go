package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keithlinneman/quarry/internal/bundle"
	"github.com/keithlinneman/quarry/internal/cfg"
)

func newExportCmd(conf *cfg.App) *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "export <output.tar.gz>",
		Short: "Package the project into a content bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, hash, err := bundle.ExportFile(os.DirFS(conf.ProjectDir), version, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("wrote %s\n  files: %d\n  size: %d bytes\n  sha256: %s\n",
				args[0], m.Summary.TotalFiles, m.Summary.TotalSize, hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "bundle-version", "", "version label recorded in the manifest")
	return cmd
}
