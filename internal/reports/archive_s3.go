package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/beaivisible/discovery-engine/internal/domain"
)

// S3Archive stores report documents in S3 so reports survive database
// pruning and can be shared with the dashboard via presigned links.
type S3Archive struct {
	client *s3.Client
	bucket string
}

// NewS3Archive creates an S3-backed report archive.
func NewS3Archive(ctx context.Context, bucket, region string) (*S3Archive, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for report archive: %w", err)
	}

	return &S3Archive{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

func (a *S3Archive) objectKey(r *domain.DiscoveryReport) string {
	return fmt.Sprintf("reports/%s/%s.json", r.TenantID, r.AuditID)
}

// Archive writes the report JSON to S3 and returns its object key.
func (a *S3Archive) Archive(ctx context.Context, r *domain.DiscoveryReport) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}

	key := a.objectKey(r)
	contentType := "application/json"
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("S3 PutObject %s/%s: %w", a.bucket, key, err)
	}

	return key, nil
}
