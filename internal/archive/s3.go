// Package archive copies terminal artifacts (response record and playback
// audio) to an S3-compatible object store for retention beyond the local
// disk.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Archiver uploads artifacts under prefix/<task_id>/.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
	log    zerolog.Logger
}

type Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // S3-compatible stores (MinIO); empty for AWS
	AccessKey string
	SecretKey string
}

// New builds an archiver and verifies the bucket is reachable.
func New(ctx context.Context, opts Options, log zerolog.Logger) (*Archiver, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}

	a := &Archiver{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
		log:    log.With().Str("component", "archive").Logger(),
	}

	if _, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &a.bucket}); err != nil {
		return nil, fmt.Errorf("head bucket %s: %w", a.bucket, err)
	}
	a.log.Info().Str("bucket", a.bucket).Str("prefix", a.prefix).Msg("artifact archive ready")
	return a, nil
}

// Archive uploads the given local files under the task's key prefix.
// Missing files are skipped; a failed upload is logged and skipped so
// archival never fails the task.
func (a *Archiver) Archive(ctx context.Context, taskID string, paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				a.log.Warn().Err(err).Str("path", path).Msg("archive read failed")
			}
			continue
		}

		key := a.key(taskID, filepath.Base(path))
		ct := contentType(path)
		_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &a.bucket,
			Key:         &key,
			Body:        f,
			ContentType: &ct,
		})
		f.Close()
		if err != nil {
			a.log.Warn().Err(err).Str("key", key).Msg("archive upload failed")
			continue
		}
		a.log.Debug().Str("key", key).Msg("artifact archived")
	}
}

func (a *Archiver) key(taskID, name string) string {
	if a.prefix != "" {
		return a.prefix + "/" + taskID + "/" + name
	}
	return taskID + "/" + name
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "application/json"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
