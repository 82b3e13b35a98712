package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/utils"
)

// ObjectPutter is the part of the S3 client the archiver needs
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config locates the archive bucket
type S3Config struct {
	Bucket  string
	Region  string
	Prefix  string
	PodName string
	// Endpoint overrides the S3 endpoint (MinIO, localstack); path-style addressing is used with it
	Endpoint string
}

// S3Archiver writes committed audit batches to S3 as JSON Lines.
// Entries carry the prompt hash only, never the prompt.
type S3Archiver struct {
	client  ObjectPutter
	bucket  string
	prefix  string
	podName string
	now     func() time.Time
	logger  *utils.Logger
}

// NewS3Archiver loads the default AWS credential chain and builds an archiver
func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3ArchiverWithClient(client, cfg), nil
}

// NewS3ArchiverWithClient builds an archiver on an existing client
func NewS3ArchiverWithClient(client ObjectPutter, cfg S3Config) *S3Archiver {
	podName := cfg.PodName
	if podName == "" {
		podName = "gateway"
	}
	return &S3Archiver{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		podName: podName,
		now:     time.Now,
		logger:  utils.NewLogger("audit-s3"),
	}
}

// ArchiveBatch uploads entries as one object and returns nil for an empty batch
func (a *S3Archiver) ArchiveBatch(ctx context.Context, entries []*models.AuditEntry) error {
	_, err := a.WriteBatch(ctx, entries)
	return err
}

// WriteBatch uploads entries and returns the object key.
// Keys look like audit/2025/11/30/gateway-0-20251130-143022-123456789.jsonl
func (a *S3Archiver) WriteBatch(ctx context.Context, entries []*models.AuditEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	now := a.now().UTC()
	key := fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%d.jsonl",
		a.prefix,
		now.Year(),
		now.Month(),
		now.Day(),
		a.podName,
		now.Format("20060102-150405"),
		now.Nanosecond(),
	)

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	written := 0
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			a.logger.Error("Failed to encode audit entry", "id", entry.ID, "error", err)
			continue
		}
		written++
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audit batch to S3: %w", err)
	}

	a.logger.Info("Archived audit batch", "key", key, "count", written, "bytes", buf.Len())
	return key, nil
}
