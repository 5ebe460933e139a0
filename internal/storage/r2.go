package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/config"
)

// R2Store keeps artifacts in a Cloudflare R2 bucket. Expiry is left to the
// bucket's lifecycle rules; keys are "<kind>/<id>".
type R2Store struct {
	s3Client   *s3.Client
	bucketName string
	publicURL  string
}

// NewR2Store creates an R2-backed store.
func NewR2Store(cfg *config.R2Config) (*R2Store, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("R2 configuration incomplete")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: endpoint}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithEndpointResolverWithOptions(r2Resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &R2Store{
		s3Client:   s3.NewFromConfig(awsCfg),
		bucketName: cfg.BucketName,
		publicURL:  cfg.PublicURL,
	}, nil
}

// NewR2StoreWithClient wraps an existing S3 client.
func NewR2StoreWithClient(client *s3.Client, bucketName, publicURL string) *R2Store {
	return &R2Store{s3Client: client, bucketName: bucketName, publicURL: publicURL}
}

func r2Key(kind Kind, id string) string {
	return fmt.Sprintf("%s/%s", kind, id)
}

func (s *R2Store) Put(ctx context.Context, kind Kind, data []byte, mimeType string) (string, error) {
	id := NewID()
	if err := s.PutWithID(ctx, kind, id, data, mimeType); err != nil {
		return "", err
	}
	return id, nil
}

func (s *R2Store) PutWithID(ctx context.Context, kind Kind, id string, data []byte, mimeType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(r2Key(kind, id)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}

func (s *R2Store) Get(ctx context.Context, kind Kind, id string) (*Artifact, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(r2Key(kind, id)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to download from R2: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read R2 object: %w", err)
	}

	mimeType := aws.ToString(out.ContentType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &Artifact{Data: data, MIMEType: mimeType}, nil
}

func (s *R2Store) Delete(ctx context.Context, kind Kind, id string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(r2Key(kind, id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from R2: %w", err)
	}
	return nil
}

// PublicURL returns the CDN URL for an artifact when a public domain is set.
func (s *R2Store) PublicURL(kind Kind, id string) string {
	if s.publicURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", s.publicURL, r2Key(kind, id))
}
