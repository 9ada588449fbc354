package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Backend 负责管理缓存对象的读写。键使用 URL 路径风格（/ 分隔），布局为：
//
//	<root>/mms<probe>/<instrument>/<rate>/<level>[/<datatype>]/<YYYY>/<MM>[/<DD>]/<file>
type Backend interface {
	// Stat 返回对象大小等信息；对象不存在时返回 ErrNotFound。
	Stat(ctx context.Context, key string) (Info, error)

	// Open 返回对象正文的流式 Reader；对象不存在时返回 ErrNotFound。
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Put 将 body 写入 key。实现需保证最终键上的原子性，并在失败时清理中间产物；
	// 父目录按需创建。size < 0 表示未知长度。
	Put(ctx context.Context, key string, body io.Reader, size int64) error

	// MkdirAll 幂等地创建目录，目录已存在不是错误。
	MkdirAll(ctx context.Context, dir string) error

	// List 递归列出 prefix 下的所有文件（不含目录）。prefix 不存在时返回空结果。
	List(ctx context.Context, prefix string) ([]Info, error)

	// Location 返回 key 对外可见的完整路径，例如绝对文件路径或 s3://bucket/key。
	Location(key string) string

	// Type 返回后端类型标识（"fs"、"s3"）。
	Type() string
}

// Info 描述一个已存储对象。
type Info struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// ErrNotFound 表示对象不存在。
var ErrNotFound = errors.New("storage object not found")

// ErrReadOnly 表示后端拒绝写入，例如只读镜像。
var ErrReadOnly = errors.New("storage backend is read-only")
