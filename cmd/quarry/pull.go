package main

import (
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/spf13/cobra"

	"github.com/keithlinneman/quarry/internal/bundle"
	"github.com/keithlinneman/quarry/internal/cfg"
	"github.com/keithlinneman/quarry/internal/cryptoutil"
)

func newPullCmd(conf *cfg.App) *cobra.Command {
	var extractDir string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download and extract the currently published bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if conf.BundleS3Bucket == "" || conf.BundleSSMParam == "" {
				return fmt.Errorf("--bundle-s3-bucket and --bundle-ssm-param are required")
			}

			ctx := cmd.Context()
			lg, err := newLogger(conf)
			if err != nil {
				return err
			}
			defer lg.Sync()

			opts := bundle.PullOptions{
				Logger:     lg.With("component", "pull"),
				SSMParam:   conf.BundleSSMParam,
				S3Bucket:   conf.BundleS3Bucket,
				S3Prefix:   conf.BundleS3Prefix,
				ExtractDir: extractDir,
			}
			if conf.BundleKeyARN != "" {
				awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
				if err != nil {
					return fmt.Errorf("loading AWS config: %w", err)
				}
				opts.Verifier = cryptoutil.NewKMSVerifier(kms.NewFromConfig(awsCfg), conf.BundleKeyARN)
			}

			puller, err := bundle.NewPuller(ctx, opts)
			if err != nil {
				return err
			}
			dir, m, hash, err := puller.Pull(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("pulled bundle %s\n  version: %s\n  files: %d\n  dir: %s\n",
				hash, m.Version, m.Summary.TotalFiles, dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&extractDir, "extract-dir", "", "extract under this directory (default: temp dir)")
	return cmd
}
