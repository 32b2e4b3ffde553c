// Package s3store implements the object store on Amazon S3 (or any S3-compatible
// endpoint such as MinIO or LocalStack).
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"ai-speech-upload-service/internal/objectstore"
	"ai-speech-upload-service/internal/observability/logging"
)

// API is the subset of the S3 client the store uses.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Presigner signs PutObject requests.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Store struct {
	client    API
	presigner Presigner
	bucket    string
	now       func() time.Time
	logger    zerolog.Logger
}

// New wraps an S3 client. The presign client is derived from it.
func New(client *s3.Client, bucket string) *Store {
	return NewWithPresigner(client, s3.NewPresignClient(client), bucket)
}

func NewWithPresigner(client API, presigner Presigner, bucket string) *Store {
	return &Store{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		now:       time.Now,
		logger:    logging.WithComponent("s3-object-store"),
	}
}

func (s *Store) Name() string {
	return "S3[" + s.bucket + "]"
}

func (s *Store) IsReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func (s *Store) PresignPut(ctx context.Context, path string, ttl time.Duration) (objectstore.Presigned, error) {
	if path == "" {
		return objectstore.Presigned{}, fmt.Errorf("path cannot be empty")
	}

	expiresAt := s.now().Add(ttl)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		s.logger.Error().Err(err).Str("key", path).Msg("Failed to presign upload")
		return objectstore.Presigned{}, err
	}

	return objectstore.Presigned{URL: req.URL, ExpiresAt: expiresAt}, nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("key cannot be empty")
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}

	s.logger.Error().Err(err).Str("key", path).Msg("Failed to check object existence")
	return false, fmt.Errorf("failed to check object existence: %w", err)
}

func (s *Store) Get(ctx context.Context, path string, w io.Writer) (int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, objectstore.ErrObjectNotFound
		}
		return 0, fmt.Errorf("failed to get object %s: %w", path, err)
	}
	defer out.Body.Close()

	n, err := io.Copy(w, out.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read object %s: %w", path, err)
	}
	return n, nil
}

func (s *Store) Put(ctx context.Context, path string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("audio/wav"),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("key", path).Msg("Failed to put object")
		return fmt.Errorf("failed to put object %s: %w", path, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
