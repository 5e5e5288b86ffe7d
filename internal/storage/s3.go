package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/RMahshie/arpe/pkg/models"
)

// S3Service reads batches of Touchstone files from S3/MinIO
type S3Service interface {
	ListFiles(ctx context.Context, prefix string) ([]string, error)
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	LoadPrefix(ctx context.Context, prefix string) ([]models.InputFile, error)
}

type s3Service struct {
	client   *s3.Client
	bucket   string
	maxBytes int64
}

// S3Config holds configuration for S3 service
type S3Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	// MaxObjectBytes limits the size of a downloaded object; 0 means no limit.
	MaxObjectBytes int64
}

// NewS3Service creates a new S3 service instance
func NewS3Service(ctx context.Context, cfg S3Config) (S3Service, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}

	region := cfg.Region
	opts := []func(*config.LoadOptions) error{}
	if cfg.Endpoint != "" {
		region = "us-east-1" // MinIO doesn't care about region
	}
	opts = append(opts, config.WithRegion(region))
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "http://" + endpoint
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true // MinIO requires path-style URLs
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &s3Service{
		client:   client,
		bucket:   cfg.Bucket,
		maxBytes: cfg.MaxObjectBytes,
	}, nil
}

// ListFiles returns the keys of all Touchstone objects under prefix, sorted
func (s *s3Service) ListFiles(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if IsTouchstone(key) {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// DownloadFile downloads a file from S3/MinIO
func (s *s3Service) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer result.Body.Close()

	var body io.Reader = result.Body
	if s.maxBytes > 0 {
		body = io.LimitReader(result.Body, s.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", key, s.maxBytes)
	}
	return data, nil
}

// LoadPrefix downloads every Touchstone object under prefix. Files are named
// by their key relative to prefix. A listing failure or a cancelled context
// fails the whole batch; a failed download is returned with Err set.
func (s *s3Service) LoadPrefix(ctx context.Context, prefix string) ([]models.InputFile, error) {
	keys, err := s.ListFiles(ctx, prefix)
	if err != nil {
		return nil, err
	}
	files := make([]models.InputFile, 0, len(keys))
	for _, key := range keys {
		data, err := s.DownloadFile(ctx, key)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		name := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
		if name == "" {
			name = key
		}
		files = append(files, models.InputFile{Name: name, Content: data, Err: err})
	}
	return files, nil
}
