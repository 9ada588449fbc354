package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options holds connection settings for s3:// roots.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	ReadOnly  bool
}

// s3API is the subset of *s3.Client used by S3Backend.
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Backend stores cache objects under bucket/prefix. PutObject is atomic on
// the S3 side, so Put needs no temp object.
type S3Backend struct {
	client   s3API
	bucket   string
	prefix   string
	readOnly bool
}

// NewS3Backend connects to the bucket named in an s3://bucket/prefix URI.
func NewS3Backend(ctx context.Context, uri string, opts S3Options) (*S3Backend, error) {
	bucket, prefix, err := parseS3URI(uri)
	if err != nil {
		return nil, err
	}

	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = true
	})

	return newS3Backend(client, bucket, prefix, opts.ReadOnly), nil
}

func newS3Backend(client s3API, bucket, prefix string, readOnly bool) *S3Backend {
	return &S3Backend{
		client:   client,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		readOnly: readOnly,
	}
}

func (b *S3Backend) Type() string { return "s3" }

func (b *S3Backend) Location(key string) string {
	return "s3://" + b.bucket + "/" + b.objectKey(key)
}

func (b *S3Backend) Stat(ctx context.Context, key string) (Info, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return Info{}, ErrNotFound
		}
		return Info{}, fmt.Errorf("head object %s: %w", key, err)
	}

	info := Info{Key: cleanKey(key)}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, nil
}

func (b *S3Backend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return out.Body, nil
}

func (b *S3Backend) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	if b.readOnly {
		return ErrReadOnly
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
		Body:   body,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := b.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// MkdirAll is a no-op: S3 has no directories.
func (b *S3Backend) MkdirAll(_ context.Context, _ string) error {
	if b.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (b *S3Backend) List(ctx context.Context, prefix string) ([]Info, error) {
	objectPrefix := b.objectKey(prefix)
	if objectPrefix != "" {
		objectPrefix += "/"
	}

	var out []Info
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(objectPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			info := Info{Key: b.relativeKey(*obj.Key)}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if obj.LastModified != nil {
				info.ModTime = *obj.LastModified
			}
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (b *S3Backend) objectKey(key string) string {
	rel := cleanKey(key)
	if b.prefix == "" {
		return rel
	}
	if rel == "" {
		return b.prefix
	}
	return path.Join(b.prefix, rel)
}

func (b *S3Backend) relativeKey(objectKey string) string {
	if b.prefix == "" {
		return objectKey
	}
	return strings.TrimPrefix(strings.TrimPrefix(objectKey, b.prefix), "/")
}

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}

func parseS3URI(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %s", uri)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 uri missing bucket: %s", uri)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}
