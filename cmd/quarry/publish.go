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

func newPublishCmd(conf *cfg.App) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <bundle.tar.gz>",
		Short: "Upload a content bundle to S3 and mark it current",
		Long: `Uploads the bundle under its content hash, optionally signs the hash
with KMS, and points the SSM parameter at it so servers pick it up.`,
		Args: cobra.ExactArgs(1),
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

			opts := bundle.PublishOptions{
				Logger:   lg.With("component", "publish"),
				S3Bucket: conf.BundleS3Bucket,
				S3Prefix: conf.BundleS3Prefix,
				SSMParam: conf.BundleSSMParam,
			}
			if conf.BundleKeyARN != "" {
				awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
				if err != nil {
					return fmt.Errorf("loading AWS config: %w", err)
				}
				opts.Signer = cryptoutil.NewKMSSigner(kms.NewFromConfig(awsCfg), conf.BundleKeyARN)
			}

			publisher, err := bundle.NewPublisher(ctx, opts)
			if err != nil {
				return err
			}
			hash, err := publisher.Publish(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("published %s\n  sha256: %s\n  param: %s\n", args[0], hash, conf.BundleSSMParam)
			return nil
		},
	}
}
