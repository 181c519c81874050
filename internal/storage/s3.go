package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client defines the subset of S3 operations used by the gateway.
// This interface enables testing with mocks.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Gateway is a Gateway backed by an S3-compatible object store. The owning
// identity of each file is recorded as object metadata and checked at open.
type S3Gateway struct {
	client S3Client
	bucket string
}

// S3Config holds configuration for the S3 backend.
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// NewS3Gateway creates an S3Gateway using the provided configuration.
func NewS3Gateway(ctx context.Context, cfg S3Config) (*S3Gateway, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: cfg.ForcePathStyle,
			}, nil
		},
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		config.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		// Disable request checksums so PutObject works with unseekable
		// streams over plain HTTP.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3Gateway{client: client, bucket: cfg.Bucket}, nil
}

// NewS3GatewayWithClient creates an S3Gateway with a pre-configured client
// (for testing).
func NewS3GatewayWithClient(client S3Client, bucket string) *S3Gateway {
	return &S3Gateway{client: client, bucket: bucket}
}

// Open implements Gateway.
func (g *S3Gateway) Open(ctx context.Context, fileID, owner, editor string) (Handle, error) {
	if err := ValidateFileID(fileID); err != nil {
		return nil, err
	}
	key := FileIDToPath(fileID)

	out, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("head object %q: %w", key, err)
	}

	// Objects tagged with an owner are only served to that owner or the
	// acting editor. Untagged objects predate tagging and stay accessible.
	if stored, ok := out.Metadata["owner"]; ok && stored != "" {
		if stored != owner && stored != editor {
			return nil, ErrNotFound
		}
	}

	modTime := ""
	if out.LastModified != nil {
		modTime = Timestamp(*out.LastModified)
	}

	return &s3Handle{
		g:       g,
		key:     key,
		size:    safeContentLength(out.ContentLength),
		modTime: modTime,
	}, nil
}

// EnsureFolder implements Gateway. Object stores have no real folders;
// prefixes come into existence with the first object that uses them.
func (g *S3Gateway) EnsureFolder(ctx context.Context, editor, dir string) error {
	return nil
}

// Exists implements Gateway.
func (g *S3Gateway) Exists(ctx context.Context, editor, p string) (bool, error) {
	_, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(p),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object %q: %w", p, err)
	}
	return true, nil
}

// Create implements Gateway. The acting editor becomes the owner of the new
// object.
func (g *S3Gateway) Create(ctx context.Context, editor, p string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(p),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
		ContentType:   aws.String(contentTypeForFile(p)),
	}
	if editor != "" {
		input.Metadata = map[string]string{"owner": editor}
	}
	if _, err := g.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %q: %w", p, err)
	}
	return PathToFileID(p), nil
}

type s3Handle struct {
	g       *S3Gateway
	key     string
	size    int64
	modTime string
}

func (h *s3Handle) Name() string    { return path.Base(h.key) }
func (h *s3Handle) Size() int64     { return h.size }
func (h *s3Handle) ModTime() string { return h.modTime }
func (h *s3Handle) Dir() string     { return path.Dir(h.key) }

func (h *s3Handle) Read(ctx context.Context) (io.ReadCloser, error) {
	out, err := h.g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.g.bucket),
		Key:    aws.String(h.key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object %q: %w", h.key, err)
	}
	return out.Body, nil
}

func (h *s3Handle) Write(ctx context.Context, r io.Reader, size int64) (string, error) {
	// Buffer the body so the AWS SDK can seek for payload signing.
	seekBody, err := toSeekableReader(r)
	if err != nil {
		return "", fmt.Errorf("buffering body for %q: %w", h.key, err)
	}

	_, err = h.g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.g.bucket),
		Key:           aws.String(h.key),
		Body:          seekBody,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentTypeForFile(h.key)),
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", h.key, err)
	}

	// PutObject responses carry no LastModified; re-stat so the returned
	// timestamp matches what the next HeadObject will report.
	out, err := h.g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.g.bucket),
		Key:    aws.String(h.key),
	})
	if err != nil {
		return "", fmt.Errorf("head object %q after write: %w", h.key, err)
	}
	h.size = safeContentLength(out.ContentLength)
	if out.LastModified != nil {
		h.modTime = Timestamp(*out.LastModified)
	}
	return h.modTime, nil
}

// maxUploadSize is the maximum body size accepted by Write (256 MB).
const maxUploadSize = 256 << 20

// toSeekableReader ensures the reader is seekable (required by the AWS SDK
// for payload signing). If the reader already implements io.ReadSeeker it is
// returned as-is; otherwise the content is buffered into a bytes.Reader.
// Reads are limited to maxUploadSize to prevent memory exhaustion.
func toSeekableReader(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	limited := io.LimitReader(r, maxUploadSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(data) > maxUploadSize {
		return nil, fmt.Errorf("request body exceeds %d byte limit", maxUploadSize)
	}
	return bytes.NewReader(data), nil
}

func contentTypeForFile(key string) string {
	ext := strings.ToLower(path.Ext(key))
	types := map[string]string{
		".odt":  "application/vnd.oasis.opendocument.text",
		".ods":  "application/vnd.oasis.opendocument.spreadsheet",
		".odp":  "application/vnd.oasis.opendocument.presentation",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".doc":  "application/msword",
		".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		".xls":  "application/vnd.ms-excel",
		".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		".ppt":  "application/vnd.ms-powerpoint",
		".pdf":  "application/pdf",
		".txt":  "text/plain",
		".csv":  "text/csv",
	}
	if ct, ok := types[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

func safeContentLength(cl *int64) int64 {
	if cl != nil {
		return *cl
	}
	return 0
}

// isS3NotFound checks if an error is an S3 "not found" error. HeadObject
// 404s surface without a typed NoSuchKey, hence the string checks.
func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	return strings.Contains(err.Error(), "NotFound") ||
		strings.Contains(err.Error(), "404") ||
		strings.Contains(err.Error(), "NoSuchKey")
}
