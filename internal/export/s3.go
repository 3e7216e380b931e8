package export

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Destination uploads snapshots to an S3-compatible bucket. The key may
// contain {date} and {time}, expanded from the snapshot time, to keep one
// object per day or per run instead of overwriting a single object.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Destination creates an S3 destination. A non-empty endpoint selects
// path-style addressing, which MinIO and similar servers need.
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Destination{client: client, bucket: bucket, key: key}, nil
}

func (d *S3Destination) Name() string {
	return "s3://" + d.bucket + "/" + d.key
}

// objectKey expands the key template for a snapshot taken at t.
func (d *S3Destination) objectKey(t time.Time) string {
	t = t.UTC()
	return strings.NewReplacer(
		"{date}", t.Format("2006-01-02"),
		"{time}", t.Format("20060102T150405Z"),
	).Replace(d.key)
}

// Write uploads snap. The object metadata records when the snapshot was
// taken and what it holds, so a bucket listing answers "how stale and how
// many failures" without downloading the object.
func (d *S3Destination) Write(ctx context.Context, snap *Snapshot) error {
	key := d.objectKey(snap.Taken)
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(snap.Data),
		ContentType: aws.String("application/x-ndjson"),
		Metadata: map[string]string{
			"snapshot-time": snap.Taken.UTC().Format(time.RFC3339),
			"event-count":   strconv.Itoa(snap.Events),
			"failed-count":  strconv.Itoa(snap.Stats.Failed),
			"digest":        snap.Digest,
		},
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", d.bucket, key, err)
	}
	return nil
}
