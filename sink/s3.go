package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/justapithecus/strata/types"
)

// MultipartThreshold is the buffered size at which an S3 sink switches
// from a single PutObject to a multipart upload. It equals the minimum
// part size S3 accepts for non-terminal parts.
const MultipartThreshold = 5 << 20

// ObjectStore is the minimal object-store surface sinks need. The real
// implementation wraps the AWS SDK S3 client; stubs are used in tests.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, body []byte) error
	CreateMultipartUpload(ctx context.Context, bucket, key string) (uploadID string, err error)
	UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, body []byte) (etag string, err error)
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []s3types.CompletedPart) error
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

// S3Client wraps the AWS SDK client as an ObjectStore.
type S3Client struct {
	client *s3.Client
}

// NewS3Client builds an S3 client for the configured endpoint. The
// default credential chain is used; path-style addressing is forced for
// S3-compatible providers (MinIO, R2, etc.).
func NewS3Client(ctx context.Context, settings *types.S3Settings) (*S3Client, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if settings.Region != "" {
		opts = append(opts, awsconfig.WithRegion(settings.Region))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := settings.Endpoint
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.BaseEndpoint = &endpoint
		o.UsePathStyle = true
	})

	return &S3Client{client: client}, nil
}

// PutObject implements ObjectStore.
func (c *S3Client) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	return err
}

// CreateMultipartUpload implements ObjectStore.
func (c *S3Client) CreateMultipartUpload(ctx context.Context, bucket, key string) (string, error) {
	out, err := c.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.UploadId), nil
}

// UploadPart implements ObjectStore.
func (c *S3Client) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, body []byte) (string, error) {
	out, err := c.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(body),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.ETag), nil
}

// CompleteMultipartUpload implements ObjectStore.
func (c *S3Client) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []s3types.CompletedPart) error {
	_, err := c.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &s3types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	return err
}

// AbortMultipartUpload implements ObjectStore.
func (c *S3Client) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	_, err := c.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	return err
}

// BucketExists implements ObjectStore via a HEAD request.
func (c *S3Client) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var _ ObjectStore = (*S3Client)(nil)

// S3Sink streams to one object. Small objects are buffered and written
// with a single PutObject at flush; once the buffer crosses
// MultipartThreshold the sink switches to a multipart upload and streams
// full parts as they fill.
type S3Sink struct {
	store  ObjectStore
	bucket string
	key    string
	ctx    context.Context

	buf      []byte
	flushed  int64 // bytes already shipped as multipart parts
	uploadID string
	parts    []s3types.CompletedPart
	done     bool
}

// NewS3Sink creates a sink for the object at bucket/key.
func NewS3Sink(ctx context.Context, store ObjectStore, bucket, key string) *S3Sink {
	return &S3Sink{store: store, bucket: bucket, key: key, ctx: ctx}
}

// Write implements Sink. Offsets must fall within the unshipped tail of
// the object; metadata rewrites at offset zero are accepted while the
// sink is still buffering.
func (s *S3Sink) Write(offset int64, p []byte) error {
	if s.done {
		return fmt.Errorf("write %s: sink already finalized", s.key)
	}
	if offset < s.flushed {
		return WrapWriteError(fmt.Errorf("offset %d precedes %d bytes already uploaded", offset, s.flushed), s.key)
	}

	pos := offset - s.flushed
	if pos == 0 && len(s.buf) > 0 {
		// A rewrite of the buffered object replaces it outright.
		s.buf = s.buf[:0]
	}
	if gap := pos - int64(len(s.buf)); gap > 0 {
		s.buf = append(s.buf, make([]byte, gap)...)
	}
	if end := pos + int64(len(p)); end > int64(len(s.buf)) {
		s.buf = s.buf[:pos]
		s.buf = append(s.buf, p...)
	} else {
		copy(s.buf[pos:], p)
	}

	return s.shipFullParts()
}

// shipFullParts uploads buffered data in MultipartThreshold-sized parts,
// keeping any remainder buffered.
func (s *S3Sink) shipFullParts() error {
	for len(s.buf) >= MultipartThreshold {
		if s.uploadID == "" {
			id, err := s.store.CreateMultipartUpload(s.ctx, s.bucket, s.key)
			if err != nil {
				return WrapWriteError(err, s.key)
			}
			s.uploadID = id
		}

		part := s.buf[:MultipartThreshold]
		partNumber := int32(len(s.parts) + 1)
		etag, err := s.store.UploadPart(s.ctx, s.bucket, s.key, s.uploadID, partNumber, part)
		if err != nil {
			return WrapWriteError(err, s.key)
		}
		s.parts = append(s.parts, s3types.CompletedPart{
			ETag:       &etag,
			PartNumber: &partNumber,
		})

		s.flushed += MultipartThreshold
		s.buf = append([]byte(nil), s.buf[MultipartThreshold:]...)
	}
	return nil
}

// Flush implements Sink. A buffered sink performs its single PutObject;
// a multipart sink uploads the terminal part and completes the upload.
func (s *S3Sink) Flush() error {
	if s.done {
		return nil
	}
	s.done = true

	if s.uploadID == "" {
		return WrapFlushError(s.store.PutObject(s.ctx, s.bucket, s.key, s.buf), s.key)
	}

	if len(s.buf) > 0 {
		partNumber := int32(len(s.parts) + 1)
		etag, err := s.store.UploadPart(s.ctx, s.bucket, s.key, s.uploadID, partNumber, s.buf)
		if err != nil {
			_ = s.store.AbortMultipartUpload(s.ctx, s.bucket, s.key, s.uploadID)
			return WrapFlushError(err, s.key)
		}
		s.parts = append(s.parts, s3types.CompletedPart{
			ETag:       &etag,
			PartNumber: &partNumber,
		})
	}

	if err := s.store.CompleteMultipartUpload(s.ctx, s.bucket, s.key, s.uploadID, s.parts); err != nil {
		_ = s.store.AbortMultipartUpload(s.ctx, s.bucket, s.key, s.uploadID)
		return WrapFlushError(err, s.key)
	}
	return nil
}

var _ Sink = (*S3Sink)(nil)

// S3Factory creates object sinks in one bucket.
type S3Factory struct {
	store  ObjectStore
	bucket string
	ctx    context.Context
}

// NewS3Factory creates a factory targeting bucket through store.
func NewS3Factory(ctx context.Context, store ObjectStore, bucket string) *S3Factory {
	return &S3Factory{store: store, bucket: bucket, ctx: ctx}
}

// MakeSink implements Factory.
func (f *S3Factory) MakeSink(key string) (Sink, error) {
	return NewS3Sink(f.ctx, f.store, f.bucket, key), nil
}

// MakeDataSinks implements Factory. Object stores have no directories,
// so no creation pass is needed.
func (f *S3Factory) MakeDataSinks(base string, dims *types.Dimensions, partsAlong PartsFunc) ([]Sink, error) {
	paths := ConstructDataPaths(base, dims, partsAlong)
	sinks := make([]Sink, len(paths))
	for i, path := range paths {
		sinks[i] = NewS3Sink(f.ctx, f.store, f.bucket, path)
	}
	return sinks, nil
}

var _ Factory = (*S3Factory)(nil)
