// Package s3archive mirrors checkpoint and trace files to S3 after a turn
// completes, an optional durability layer on top of the local filesystem
// store. Grounded on aws-sdk-go-v2's standard
// config.LoadDefaultConfig/credentials wiring and the s3.Client.PutObject
// call shape.
package s3archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Archiver uploads local files to a fixed bucket/prefix in S3.
type Archiver struct {
	client *s3.Client
	Bucket string
	Prefix string
}

// Config carries the settings needed to construct an Archiver. AccessKeyID
// and SecretAccessKey may both be empty, in which case the default AWS
// credential chain (environment, shared config, instance role) is used.
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// New constructs an Archiver from cfg, resolving AWS credentials and region
// via the standard aws-sdk-go-v2 config loader.
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("s3archive: load aws config: %w", err)
	}

	return &Archiver{
		client: s3.NewFromConfig(awsCfg),
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
	}, nil
}

// ArchiveFile uploads the file at localPath under <Prefix>/<uuid>-<basename>,
// returning the object key written. The uuid prefix keeps concurrent
// archival of same-named files (e.g. a checkpoint re-saved mid-turn) from
// colliding under the same key.
func (a *Archiver) ArchiveFile(ctx context.Context, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("s3archive: read %s: %w", localPath, err)
	}

	key := objectKey(a.Prefix, uuid.NewString(), localPath)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("s3archive: put object %s: %w", key, err)
	}
	return key, nil
}

// objectKey builds the S3 key for one archived file: <prefix>/<id>-<base>,
// with a forward-slash path regardless of the host OS's separator.
func objectKey(prefix, id, localPath string) string {
	return filepath.ToSlash(filepath.Join(prefix, id+"-"+filepath.Base(localPath)))
}

// ArchiveTurn mirrors both the checkpoint file and the trace file produced
// by one turn, returning the keys written in (checkpoint, trace) order. A
// failure to archive the checkpoint does not prevent attempting the trace.
func (a *Archiver) ArchiveTurn(ctx context.Context, checkpointPath, tracePath string) (checkpointKey, traceKey string, err error) {
	checkpointKey, cpErr := a.ArchiveFile(ctx, checkpointPath)
	traceKey, traceErr := a.ArchiveFile(ctx, tracePath)
	if cpErr != nil {
		return checkpointKey, traceKey, cpErr
	}
	return checkpointKey, traceKey, traceErr
}
