package bundle

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/keithlinneman/quarry/internal/cryptoutil"
	"github.com/keithlinneman/quarry/internal/log"
	"github.com/keithlinneman/quarry/internal/xerrors"
)

type PublishOptions struct {
	Logger log.Logger

	// S3 location for bundles: s3://{bucket}/{prefix}/{hash}.tar.gz
	S3Bucket string
	S3Prefix string

	// SSM parameter updated to the new bundle hash after upload.
	SSMParam string

	// Signer signs the bundle hash; the signature is uploaded next to
	// the bundle as {hash}.tar.gz.sig. Optional.
	Signer *cryptoutil.KMSSigner

	// AWS config (uses default if nil)
	AWSConfig *aws.Config
}

type Publisher struct {
	opts      PublishOptions
	s3Client  *s3.Client
	ssmClient *ssm.Client
	logger    log.Logger
}

func NewPublisher(ctx context.Context, opts PublishOptions) (*Publisher, error) {
	if opts.S3Bucket == "" {
		return nil, xerrors.New("S3Bucket is required")
	}
	if opts.SSMParam == "" {
		return nil, xerrors.New("SSMParam is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	awsCfg, err := resolveAWSConfig(ctx, opts.AWSConfig)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		opts:      opts,
		s3Client:  s3.NewFromConfig(awsCfg),
		ssmClient: ssm.NewFromConfig(awsCfg),
		logger:    opts.Logger,
	}, nil
}

// Publish uploads a bundle, its signature, and flips the SSM pointer
// so pullers pick it up. Returns the bundle hash.
func (p *Publisher) Publish(ctx context.Context, bundlePath string) (string, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return "", xerrors.Wrapf(err, "open %s", bundlePath)
	}
	hash, size, err := cryptoutil.SHA256HexReader(f)
	f.Close()
	if err != nil {
		return "", xerrors.Wrapf(err, "hash %s", bundlePath)
	}

	key := s3Key(p.opts.S3Prefix, hash)
	p.logger.Info(ctx, "uploading bundle",
		"bucket", p.opts.S3Bucket,
		"key", key,
		"bytes", size,
	)

	body, err := os.Open(bundlePath)
	if err != nil {
		return "", xerrors.Wrapf(err, "open %s", bundlePath)
	}
	defer body.Close()

	_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.opts.S3Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/gzip"),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "put s3://%s/%s", p.opts.S3Bucket, key)
	}

	if p.opts.Signer != nil {
		// the hash is verified against the bundle bytes on pull, so
		// signing the hex digest covers the artifact
		sig, err := p.opts.Signer.Sign(ctx, []byte(hash))
		if err != nil {
			return "", xerrors.Wrap(err, "sign bundle hash")
		}
		_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(p.opts.S3Bucket),
			Key:    aws.String(key + ".sig"),
			Body:   bytes.NewReader(sig),
		})
		if err != nil {
			return "", xerrors.Wrapf(err, "put signature s3://%s/%s.sig", p.opts.S3Bucket, key)
		}
	}

	_, err = p.ssmClient.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(p.opts.SSMParam),
		Value:     aws.String(hash),
		Type:      ssmtypes.ParameterTypeString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "put SSM parameter %s", p.opts.SSMParam)
	}

	p.logger.Info(ctx, "bundle published",
		"hash", hash,
		"ssm_param", p.opts.SSMParam,
	)
	return hash, nil
}

// s3Key returns the S3 object key for a given hash
func s3Key(prefix, hash string) string {
	if prefix != "" {
		return fmt.Sprintf("%s/%s.tar.gz", prefix, hash)
	}
	return fmt.Sprintf("%s.tar.gz", hash)
}

func resolveAWSConfig(ctx context.Context, override *aws.Config) (aws.Config, error) {
	if override != nil {
		return *override, nil
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, xerrors.Wrap(err, "load AWS config")
	}
	return awsCfg, nil
}
