package backtest

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/pra-edge/internal/config"
	"github.com/yourusername/pra-edge/internal/metrics"
)

// ObjectPutter is the subset of the S3 client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader copies report artifacts to a bucket under prefix/<date>/.
type S3Uploader struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *logrus.Entry
}

// NewS3Uploader builds an uploader from config. Static credentials are used
// when both keys are set; otherwise the default AWS chain applies.
func NewS3Uploader(ctx context.Context, cfg config.S3Config, logger *logrus.Logger) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return NewS3UploaderWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3UploaderWithClient wires an existing client
func NewS3UploaderWithClient(client ObjectPutter, bucket, prefix string, logger *logrus.Logger) *S3Uploader {
	return &S3Uploader{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.WithField("component", "s3_uploader"),
	}
}

// Key returns the object key for a local artifact.
func (u *S3Uploader) Key(r *Result, localPath string) string {
	return u.keyAt(r.CompletedAt, localPath)
}

func (u *S3Uploader) keyAt(completed time.Time, localPath string) string {
	return path.Join(u.prefix, "date="+completed.UTC().Format("2006-01-02"), filepath.Base(localPath))
}

// Upload puts every artifact and returns the keys written. It stops at the
// first failure.
func (u *S3Uploader) Upload(ctx context.Context, r *Result, paths []string) ([]string, error) {
	return u.upload(ctx, r.CompletedAt, paths)
}

// UploadWalkForward puts the pooled walk-forward artifacts under the date the
// run completed.
func (u *S3Uploader) UploadWalkForward(ctx context.Context, wf *WalkForwardResult, paths []string) ([]string, error) {
	return u.upload(ctx, wf.CompletedAt, paths)
}

func (u *S3Uploader) upload(ctx context.Context, completed time.Time, paths []string) ([]string, error) {
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return keys, &ReportError{Format: "s3", Path: p, Err: err}
		}

		key := u.keyAt(completed, p)
		contentType := mime.TypeByExtension(filepath.Ext(p))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			metrics.RecordReportArtifact("s3", "error")
			return keys, &ReportError{Format: "s3", Path: key, Err: err}
		}
		metrics.RecordReportArtifact("s3", "success")
		u.logger.WithFields(logrus.Fields{"bucket": u.bucket, "key": key, "size": len(data)}).Info("Artifact uploaded")
		keys = append(keys, key)
	}
	return keys, nil
}
