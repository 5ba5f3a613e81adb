package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/avstrong/hotel/internal/document"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Region   string
	Bucket   string
	Prefix   string
	Endpoint string
}

// S3 stores issued invoice documents in a bucket.
type S3 struct {
	client putter
	bucket string
	prefix string
}

func New(ctx context.Context, conf Config) (*S3, error) {
	opts := make([]func(*config.LoadOptions) error, 0, 1)
	if conf.Region != "" {
		opts = append(opts, config.WithRegion(conf.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newWithClient(client, conf), nil
}

func newWithClient(client putter, conf Config) *S3 {
	return &S3{client: client, bucket: conf.Bucket, prefix: conf.Prefix}
}

func (a *S3) Put(ctx context.Context, key string, body []byte) error {
	//nolint:exhaustruct
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(path.Join(a.prefix, key)),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(document.ContentType),
	})
	if err != nil {
		return fmt.Errorf("put %v to bucket %v: %w", key, a.bucket, err)
	}

	return nil
}
