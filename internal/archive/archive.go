// Package archive uploads match result snapshots to S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gosimple/slug"

	"github.com/mcoot/fairway/internal/model"
)

// Config holds archive settings. An empty Bucket disables archiving.
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // Custom endpoint for R2, MinIO and friends
	AccessKeyID     string
	SecretAccessKey string
}

// DefaultConfig returns the default archive configuration
func DefaultConfig() Config {
	return Config{
		Prefix: "results",
		Region: "auto",
	}
}

// Enabled reports whether a bucket is configured
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// S3Archiver writes each result as a JSON object
type S3Archiver struct {
	client *s3.Client
	cfg    Config
	logger *slog.Logger
}

// NewS3Archiver builds an S3 client from cfg. Static credentials are used
// when given, otherwise the default AWS credential chain.
func NewS3Archiver(ctx context.Context, cfg Config, logger *slog.Logger) (*S3Archiver, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archiver{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "archive")),
	}, nil
}

// ObjectKey returns the key a result is stored under
func (a *S3Archiver) ObjectKey(result *model.MatchResult) string {
	return ObjectKey(a.cfg.Prefix, result)
}

// ObjectKey builds "<prefix>/<slug(title)>-<matchID>.json"
func ObjectKey(prefix string, result *model.MatchResult) string {
	name := string(result.MatchID)
	if s := slug.Make(result.Title); s != "" {
		name = s + "-" + name
	}
	return path.Join(prefix, name+".json")
}

// ArchiveResult uploads the result snapshot
func (a *S3Archiver) ArchiveResult(ctx context.Context, result *model.MatchResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	key := a.ObjectKey(result)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload result %s: %w", result.ID, err)
	}

	a.logger.Debug("result archived",
		slog.String("result_id", string(result.ID)),
		slog.String("key", key),
	)
	return nil
}

// NopArchiver archives nothing
type NopArchiver struct{}

func (NopArchiver) ArchiveResult(context.Context, *model.MatchResult) error {
	return nil
}
