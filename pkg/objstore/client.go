package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/eunmann/s3-log-levels/internal/logctx"
)

// Config holds the connection settings shared by every client instance.
// It is a plain value and safe to copy between goroutines.
type Config struct {
	// Endpoint overrides the S3 endpoint, e.g. a MinIO URL. Empty uses AWS.
	Endpoint string
	// Region defaults to us-east-1 when empty and no region is configured
	// in the environment.
	Region string
	// AccessKey and SecretKey select static credentials. When both are
	// empty the default AWS credential chain is used.
	AccessKey string
	SecretKey string
	// PathStyle forces path-style addressing. It is implied by Endpoint.
	PathStyle bool
	// PageSize is the ListObjectsV2 MaxKeys value. 0 uses the service default.
	PageSize int32
}

// Client provides S3 list and get operations.
type Client struct {
	s3Client *s3.Client
	pageSize int32
}

// NewClient creates a client from cfg using the AWS default configuration
// chain for anything cfg leaves unset.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}

	return NewClientWithConfig(awsCfg, cfg), nil
}

// NewClientWithConfig creates a client from an already loaded AWS config.
func NewClientWithConfig(awsCfg aws.Config, cfg Config) *Client {
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3Client: s3Client,
		pageSize: cfg.PageSize,
	}
}

// S3 returns the underlying SDK client.
func (c *Client) S3() *s3.Client {
	return c.s3Client
}

// List walks every object under prefix using ListObjectsV2 pagination.
func (c *Client) List(ctx context.Context, bucket, prefix string, fn func(ObjectInfo) error) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if c.pageSize > 0 {
		input.MaxKeys = aws.Int32(c.pageSize)
	}

	log := logctx.FromContext(ctx)
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, input)

	pages := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list s3://%s/%s page %d: %w", bucket, prefix, pages+1, describeAPIError(err))
		}
		pages++

		log.Debug().
			Int("page", pages).
			Int("objects", len(page.Contents)).
			Msg("listed page")

		for _, obj := range page.Contents {
			info := ObjectInfo{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if err := fn(info); err != nil {
				return err
			}
		}
	}
	return nil
}

// Open streams an object body. The body is read from the network as the
// caller consumes it.
func (c *Client) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, describeAPIError(err))
	}
	return resp.Body, nil
}

// apiError keeps the original error for errors.Is/As while putting the
// service error code first in the message.
type apiError struct {
	code string
	err  error
}

func (e *apiError) Error() string { return e.code + ": " + e.err.Error() }
func (e *apiError) Unwrap() error { return e.err }

func describeAPIError(err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) && ae.ErrorCode() != "" {
		return &apiError{code: ae.ErrorCode(), err: err}
	}
	return err
}
