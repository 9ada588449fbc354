package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 keeps objects in memory and mimics the not-found errors of the SDK.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(body)))}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = body
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key), Size: aws.Int64(int64(len(f.objects[key])))})
	}
	return out, nil
}

func TestS3BackendRoundTrip(t *testing.T) {
	fake := newFakeS3()
	backend := newS3Backend(fake, "sdc", "cache/mms", false)
	key := "mms1/fgm/srvy/l2/2015/10/file_v1.0.0.cdf"

	if _, err := backend.Stat(context.Background(), key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := backend.Put(context.Background(), key, strings.NewReader("abcd"), 4); err != nil {
		t.Fatalf("put error: %v", err)
	}
	if _, ok := fake.objects["cache/mms/"+key]; !ok {
		t.Fatalf("object stored under unexpected key: %v", fake.objects)
	}

	info, err := backend.Stat(context.Background(), key)
	if err != nil || info.Size != 4 {
		t.Fatalf("unexpected stat %+v %v", info, err)
	}
	if loc := backend.Location(key); loc != "s3://sdc/cache/mms/"+key {
		t.Fatalf("unexpected location %s", loc)
	}

	list, err := backend.List(context.Background(), "mms1/fgm")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(list) != 1 || list[0].Key != key {
		t.Fatalf("unexpected listing %+v", list)
	}
}

func TestS3BackendReadOnly(t *testing.T) {
	backend := newS3Backend(newFakeS3(), "sdc", "", true)
	if err := backend.Put(context.Background(), "a", strings.NewReader("x"), 1); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if _, err := backend.Open(context.Background(), "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseS3URI(t *testing.T) {
	bucket, prefix, err := parseS3URI("s3://bucket/some/prefix/")
	if err != nil || bucket != "bucket" || prefix != "some/prefix" {
		t.Fatalf("unexpected parse result %q %q %v", bucket, prefix, err)
	}
	if _, _, err := parseS3URI("s3:///nobucket"); err == nil {
		t.Fatalf("missing bucket should fail")
	}
	if !IsS3URI("s3://x") || IsS3URI("/data") {
		t.Fatalf("IsS3URI misclassified roots")
	}
}
