package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// FSOptions 控制文件系统后端的可选行为。
type FSOptions struct {
	// Fs 为底层文件系统，默认 afero.NewOsFs()；测试可注入 afero.NewMemMapFs()。
	Fs afero.Fs
	// ReadOnly 为 true 时拒绝 Put/MkdirAll，供镜像目录使用。
	ReadOnly bool
}

// FSBackend 以 root 为根目录提供磁盘缓存，通过 entryLock 避免同一 key 并发写入。
type FSBackend struct {
	fs       afero.Fs
	root     string
	readOnly bool

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// NewFSBackend 以 root 为根目录构建磁盘后端；可写后端会确保根目录存在。
func NewFSBackend(root string, opts FSOptions) (*FSBackend, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root required")
	}

	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	abs := filepath.Clean(root)
	if _, isOS := fsys.(*afero.OsFs); isOS {
		resolved, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve storage root: %w", err)
		}
		abs = resolved
	}

	if !opts.ReadOnly {
		if err := fsys.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("create storage root: %w", err)
		}
	}

	return &FSBackend{
		fs:       fsys,
		root:     abs,
		readOnly: opts.ReadOnly,
		locks:    make(map[string]*entryLock),
	}, nil
}

// Root returns the absolute root directory.
func (b *FSBackend) Root() string {
	return b.root
}

func (b *FSBackend) Type() string { return "fs" }

func (b *FSBackend) Location(key string) string {
	filePath, err := b.path(key)
	if err != nil {
		return filepath.Join(b.root, filepath.FromSlash(key))
	}
	return filePath
}

func (b *FSBackend) Stat(ctx context.Context, key string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	filePath, err := b.path(key)
	if err != nil {
		return Info{}, err
	}

	info, err := b.fs.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, ErrNotFound
		}
		return Info{}, err
	}
	if info.IsDir() {
		return Info{}, ErrNotFound
	}
	return Info{Key: cleanKey(key), Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (b *FSBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := b.Stat(ctx, key); err != nil {
		return nil, err
	}
	filePath, err := b.path(key)
	if err != nil {
		return nil, err
	}
	f, err := b.fs.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (b *FSBackend) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	if b.readOnly {
		return ErrReadOnly
	}
	unlock := b.lockEntry(key)
	defer unlock()

	filePath, err := b.path(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	if err := b.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tempFile, err := afero.TempFile(b.fs, dir, ".mmsync-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	written, err := CopyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && size >= 0 && written != size {
		err = fmt.Errorf("short write for %s: wrote %d of %d bytes", key, written, size)
	}
	if err != nil {
		b.fs.Remove(tempName)
		return err
	}

	if err := b.fs.Rename(tempName, filePath); err != nil {
		b.fs.Remove(tempName)
		return err
	}
	return nil
}

func (b *FSBackend) MkdirAll(_ context.Context, dir string) error {
	if b.readOnly {
		return ErrReadOnly
	}
	dirPath, err := b.path(dir)
	if err != nil {
		return err
	}
	return b.fs.MkdirAll(dirPath, 0o755)
}

func (b *FSBackend) List(ctx context.Context, prefix string) ([]Info, error) {
	base, err := b.path(prefix)
	if err != nil {
		return nil, err
	}
	if _, err := b.fs.Stat(base); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []Info
	walkErr := afero.Walk(b.fs, base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".mmsync-") {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		out = append(out, Info{Key: filepath.ToSlash(rel), Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (b *FSBackend) lockEntry(key string) func() {
	key = cleanKey(key)
	b.mu.Lock()
	lock := b.locks[key]
	if lock == nil {
		lock = &entryLock{}
		b.locks[key] = lock
	}
	lock.refs++
	b.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		b.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(b.locks, key)
		}
		b.mu.Unlock()
	}
}

func (b *FSBackend) path(key string) (string, error) {
	rel := cleanKey(key)
	if rel == "" {
		return b.root, nil
	}
	filePath := filepath.Join(b.root, filepath.FromSlash(rel))
	if filePath != b.root && !strings.HasPrefix(filePath, b.root+string(filepath.Separator)) {
		return "", errors.New("invalid storage key")
	}
	return filePath, nil
}

// cleanKey 将任意键规范化为不带前导 / 的相对路径。
func cleanKey(key string) string {
	rel := path.Clean("/" + filepath.ToSlash(key))
	return strings.TrimPrefix(rel, "/")
}

// CopyWithContext copies src to dst, checking ctx between chunks.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
