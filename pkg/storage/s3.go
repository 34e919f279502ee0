package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Config holds S3-compatible storage configuration.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string

	// AccessKey is the AWS access key ID (required).
	AccessKey string

	// SecretKey is the AWS secret access key (required).
	SecretKey string

	// Endpoint is the custom S3 endpoint URL (optional, for MinIO or other
	// S3-compatible services).
	Endpoint string

	// Region is the AWS region (default: us-east-1).
	Region string

	// Prefix is prepended to every object key (default: attachments).
	Prefix string

	// PathStyle enables path-style URLs (required for MinIO).
	PathStyle bool
}

const (
	defaultRegion = "us-east-1"
	defaultPrefix = "attachments"
)

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = defaultRegion
	}
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
}

func (c *Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	return nil
}

// S3 is a Store backed by S3-compatible object storage. The original
// filename rides along as object metadata.
type S3 struct {
	client *s3.Client
	cfg    Config
}

// NewS3 creates an S3 store with the given configuration.
func NewS3(cfg Config) (*S3, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)
		},
	}
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	}

	return &S3{client: s3.New(s3.Options{}, opts...), cfg: cfg}, nil
}

func (s *S3) key(id uuid.UUID) string {
	return s.cfg.Prefix + "/" + id.String()
}

// Save implements Store.
func (s *S3) Save(ctx context.Context, f *File) error {
	if len(f.Content) == 0 {
		return ErrEmptyFile
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = detectContentType(f.Name, f.Content)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(s.key(f.ID)),
		Body:          bytes.NewReader(f.Content),
		ContentLength: aws.Int64(int64(len(f.Content))),
		ContentType:   aws.String(contentType),
		Metadata:      map[string]string{"filename": f.Name},
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return wrapS3Error(err, ErrUploadFailed)
	}
	return nil
}

// Load implements Store.
func (s *S3) Load(ctx context.Context, id uuid.UUID) (*File, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, wrapS3Error(err, ErrFileNotFound)
	}
	defer output.Body.Close()

	content, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to read object body: %w", err)
	}

	f := &File{ID: id, Content: content}
	if output.ContentType != nil {
		f.ContentType = *output.ContentType
	}
	if name, ok := output.Metadata["filename"]; ok {
		f.Name = name
	}
	return f, nil
}

// Delete implements Store.
func (s *S3) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return wrapS3Error(err, ErrDeleteFailed)
	}
	return nil
}

var (
	_ Store = (*S3)(nil)
	_ Store = (*Local)(nil)
)
