package bundle

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/quarry/internal/cryptoutil"
	"github.com/keithlinneman/quarry/internal/log"
	"github.com/keithlinneman/quarry/internal/xerrors"
)

type PullOptions struct {
	Logger log.Logger

	// SSM parameter containing the current bundle hash
	SSMParam string

	// S3 location for bundles: s3://{bucket}/{prefix}/{hash}.tar.gz
	S3Bucket string
	S3Prefix string

	// Local directory for extracted bundles. Each bundle extracts into
	// a {hash} subdirectory so swaps are atomic. Empty means a temp
	// directory.
	ExtractDir string

	// Verifier checks the bundle signature. Optional; nil skips
	// signature verification (local development).
	Verifier *cryptoutil.KMSVerifier

	// AWS config (uses default if nil)
	AWSConfig *aws.Config
}

type Puller struct {
	opts      PullOptions
	ssmClient *ssm.Client
	s3Client  *s3.Client
	logger    log.Logger
}

func NewPuller(ctx context.Context, opts PullOptions) (*Puller, error) {
	if opts.SSMParam == "" {
		return nil, xerrors.New("SSMParam is required")
	}
	if opts.S3Bucket == "" {
		return nil, xerrors.New("S3Bucket is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	awsCfg, err := resolveAWSConfig(ctx, opts.AWSConfig)
	if err != nil {
		return nil, err
	}

	return &Puller{
		opts:      opts,
		ssmClient: ssm.NewFromConfig(awsCfg),
		s3Client:  s3.NewFromConfig(awsCfg),
		logger:    opts.Logger,
	}, nil
}

// CurrentHash gets the published bundle hash from SSM.
func (p *Puller) CurrentHash(ctx context.Context) (string, error) {
	out, err := p.ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(p.opts.SSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", p.opts.SSMParam)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", p.opts.SSMParam)
	}

	hash := strings.TrimSpace(*out.Parameter.Value)
	if hash == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", p.opts.SSMParam)
	}
	return hash, nil
}

// Download fetches a bundle by hash, verifies the checksum and (when a
// verifier is configured) the signature, and returns the temp path.
func (p *Puller) Download(ctx context.Context, hash string) (string, error) {
	key := s3Key(p.opts.S3Prefix, hash)

	p.logger.Info(ctx, "downloading bundle",
		"bucket", p.opts.S3Bucket,
		"key", key,
		"expected_hash", hash,
	)

	out, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.opts.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get S3 object s3://%s/%s", p.opts.S3Bucket, key)
	}
	defer out.Body.Close()

	tmpFile, err := os.CreateTemp("", "quarry-bundle-*.tar.gz")
	if err != nil {
		return "", xerrors.Wrap(err, "create temp file")
	}
	tmpPath := tmpFile.Name()

	actualHash, written, err := cryptoutil.SHA256HexReader(io.TeeReader(io.LimitReader(out.Body, maxBundleSize+1), tmpFile))
	tmpFile.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", xerrors.Wrap(err, "download bundle")
	}
	if written > maxBundleSize {
		os.Remove(tmpPath)
		return "", xerrors.Newf("bundle exceeds max size (%d bytes, limit %d)", written, maxBundleSize)
	}

	p.logger.Info(ctx, "downloaded bundle",
		"bytes", written,
		"actual_hash", actualHash,
	)

	// constant-time comparison is project policy for all hash checks,
	// even non-secret ones
	if !cryptoutil.HashEqual(actualHash, hash) {
		os.Remove(tmpPath)
		return "", xerrors.Newf("checksum mismatch: expected %s, got %s", hash, actualHash)
	}

	if p.opts.Verifier != nil {
		if err := p.verifySignature(ctx, key, hash); err != nil {
			os.Remove(tmpPath)
			return "", err
		}
	}

	return tmpPath, nil
}

func (p *Puller) verifySignature(ctx context.Context, key, hash string) error {
	out, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.opts.S3Bucket),
		Key:    aws.String(key + ".sig"),
	})
	if err != nil {
		return xerrors.Wrapf(err, "get signature s3://%s/%s.sig", p.opts.S3Bucket, key)
	}
	defer out.Body.Close()

	sig, err := io.ReadAll(io.LimitReader(out.Body, 1<<14))
	if err != nil {
		return xerrors.Wrap(err, "read signature")
	}

	if err := p.opts.Verifier.VerifySignature(ctx, []byte(hash), sig); err != nil {
		return xerrors.Wrap(err, "bundle signature verification failed")
	}
	return nil
}

// Pull downloads the current bundle and extracts it. Returns the
// extracted directory, the manifest and the bundle hash.
func (p *Puller) Pull(ctx context.Context) (string, *Manifest, string, error) {
	hash, err := p.CurrentHash(ctx)
	if err != nil {
		return "", nil, "", err
	}
	dir, m, err := p.PullHash(ctx, hash)
	return dir, m, hash, err
}

// PullHash downloads and extracts a specific bundle by hash.
func (p *Puller) PullHash(ctx context.Context, hash string) (string, *Manifest, error) {
	bundlePath, err := p.Download(ctx, hash)
	if err != nil {
		return "", nil, err
	}
	defer os.Remove(bundlePath)

	extractDir := p.opts.ExtractDir
	if extractDir == "" {
		extractDir, err = os.MkdirTemp("", "quarry-site-*")
		if err != nil {
			return "", nil, xerrors.Wrap(err, "create extract dir")
		}
	} else {
		// hash subdirectory so a new bundle never overwrites the one
		// being served
		extractDir = filepath.Join(extractDir, hash)
	}

	p.logger.Info(ctx, "extracting bundle",
		"hash", hash,
		"dest", extractDir,
	)

	m, err := Extract(bundlePath, extractDir)
	if err != nil {
		return "", nil, xerrors.Wrap(err, "extract bundle")
	}

	p.logger.Info(ctx, "extracted bundle",
		"hash", hash,
		"dest", extractDir,
		"files", m.Summary.TotalFiles,
	)
	return extractDir, m, nil
}
