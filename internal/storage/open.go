package storage

import (
	"context"
	"strings"
)

// Open 根据 root 的格式选择后端：s3://bucket/prefix 使用 S3，其余视为本地目录。
func Open(ctx context.Context, root string, s3Opts S3Options, readOnly bool) (Backend, error) {
	if IsS3URI(root) {
		s3Opts.ReadOnly = readOnly
		b, err := NewS3Backend(ctx, root, s3Opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	b, err := NewFSBackend(root, FSOptions{ReadOnly: readOnly})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// IsS3URI reports whether root addresses an S3 bucket.
func IsS3URI(root string) bool {
	return strings.HasPrefix(strings.TrimSpace(root), "s3://")
}
