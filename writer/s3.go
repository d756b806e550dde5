package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	appconfig "sectorflow/config"
	"sectorflow/logger"
)

// Uploader copies finished output files to S3 under partitioned keys. Uploads
// are rate limited so a run with many sectors and policies does not burst the
// bucket.
type Uploader struct {
	config  *appconfig.Config
	client  *s3.Client
	limiter *rate.Limiter
	runID   string
	log     *logger.Log
}

// NewUploader configures the AWS SDK and validates credentials up front, so a
// misconfigured run fails before any dataset is produced.
func NewUploader(cfg *appconfig.Config) (*Uploader, error) {
	log := logger.GetLogger()
	ctx := context.Background()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("s3_uploader").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	rps := cfg.Storage.S3.UploadsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Storage.S3.UploadBurst
	if burst <= 0 {
		burst = rps
	}

	u := &Uploader{
		config:  cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		runID:   uuid.New().String(),
		log:     log,
	}

	log.WithComponent("s3_uploader").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
		"run_id":     u.runID,
	}).Info("s3 uploader initialized")

	return u, nil
}

// RunID identifies this run's uploads; all keys share it.
func (u *Uploader) RunID() string { return u.runID }

// key builds the partitioned object key:
// <prefix>/run=<id>/policy=<slug>/sector=<sector>/<filename>.
func (u *Uploader) key(policySlug, sector, filename string) string {
	parts := []string{}
	if p := strings.Trim(u.config.Storage.S3.Prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts,
		fmt.Sprintf("run=%s", u.runID),
		fmt.Sprintf("policy=%s", policySlug),
		fmt.Sprintf("sector=%s", sector),
		filename,
	)
	return strings.Join(parts, "/")
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// UploadFile reads a produced output file and puts it under the partitioned
// key for its policy and sector.
func (u *Uploader) UploadFile(ctx context.Context, localPath, policySlug, sector string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read output file: %w", err)
	}
	key := u.key(policySlug, sector, filepath.Base(localPath))
	return u.upload(ctx, key, data, contentTypeFor(localPath))
}

func (u *Uploader) upload(ctx context.Context, key string, data []byte, contentType string) error {
	if err := u.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for upload slot: %w", err)
	}

	log := u.log.WithComponent("s3_uploader").WithFields(logger.Fields{
		"s3_key":    key,
		"data_size": len(data),
	})

	start := time.Now()
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"sectorflow-version": u.config.Sectorflow.Version,
			"run-id":             u.runID,
		},
	})
	if err != nil {
		log.WithError(err).
			WithEnv("S3_BUCKET").
			WithFields(logger.Fields{"bucket": u.config.Storage.S3.Bucket}).
			Error("failed to upload to S3")
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", u.config.Storage.S3.Bucket, err)
	}

	log.WithFields(logger.Fields{"duration_ms": time.Since(start).Milliseconds()}).
		Info("uploaded to S3")
	return nil
}
