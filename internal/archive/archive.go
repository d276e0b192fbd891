// Package archive uploads completed analysis outcomes to S3. Archival is
// optional and best-effort: an empty bucket disables it and upload
// failures never affect the analysis.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/model"
)

// objectPutter is the slice of the S3 client the archiver needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver writes one JSON object per completed analysis.
type Archiver struct {
	client objectPutter
	bucket string
	prefix string
	logger zerolog.Logger
}

// New creates an archiver from the standard AWS config chain with optional
// overrides. An empty bucket returns a disabled archiver, never an error.
func New(ctx context.Context, cfg model.ArchiveConfig, logger zerolog.Logger) (*Archiver, error) {
	log := logger.With().Str("component", "archive").Logger()
	if cfg.Bucket == "" {
		log.Info().Msg("archival disabled, no bucket configured")
		return &Archiver{logger: log}, nil
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	log.Info().Str("bucket", cfg.Bucket).Msg("archival enabled")
	return &Archiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: log,
	}, nil
}

// Enabled reports whether uploads will happen.
func (a *Archiver) Enabled() bool {
	return a != nil && a.client != nil
}

// Archive uploads the payload as JSON under <prefix><urlHash>/<resultID>.json.
// A disabled archiver silently succeeds.
func (a *Archiver) Archive(ctx context.Context, urlHash, resultID string, payload any) error {
	if !a.Enabled() {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	key := fmt.Sprintf("%s%s/%s.json", a.prefix, urlHash, resultID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	a.logger.Debug().Str("key", key).Int("bytes", len(body)).Msg("outcome archived")
	return nil
}
