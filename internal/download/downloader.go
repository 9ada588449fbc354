// Package download fetches SDC files into the primary cache.
//
// The body is streamed into a staging file first and only installed at the
// final key once the transfer completed with the expected length. A failed or
// canceled transfer never touches the final key, and the staging file is
// removed on every path.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync/atomic"

	"github.com/cheggaaa/pb/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/mmsync/mmsync/internal/metrics"
	"github.com/mmsync/mmsync/internal/storage"
)

// Source 提供远程文件正文，*sdc.Client 满足该接口。
type Source interface {
	Download(ctx context.Context, fileName string) (io.ReadCloser, int64, error)
}

// Options 配置暂存目录与进度条。
type Options struct {
	// TempDir 为暂存目录，空值使用系统临时目录。
	TempDir string
	// Fs 为暂存文件所在文件系统，默认 afero.NewOsFs()。
	Fs afero.Fs
	// Progress 为 true 时向 Output 输出进度条。
	Progress bool
	Output   io.Writer
	Logger   *logrus.Logger
}

// Downloader 把远程文件安装到主缓存，同一目标的并发请求合并为一次传输。
type Downloader struct {
	source   Source
	backend  storage.Backend
	fs       afero.Fs
	tempDir  string
	progress bool
	output   io.Writer
	logger   *logrus.Logger

	inflight  singleflight.Group
	transfers atomic.Int64
}

// Result 描述一次安装结果。
type Result struct {
	Key      string
	Location string
	Bytes    int64
	// Shared 为 true 表示结果来自同一目标的另一并发请求。
	Shared bool
}

// ErrLengthMismatch 表示收到的字节数与 Content-Length 或目录大小不符。
var ErrLengthMismatch = errors.New("download length mismatch")

// New 构建 Downloader。
func New(source Source, backend storage.Backend, opts Options) *Downloader {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Downloader{
		source:   source,
		backend:  backend,
		fs:       fsys,
		tempDir:  tempDir,
		progress: opts.Progress,
		output:   output,
		logger:   logger,
	}
}

// Transfers returns how many remote transfers have been started.
func (d *Downloader) Transfers() int64 {
	return d.transfers.Load()
}

// Fetch 下载 fileName 并安装到 key。size 为目录报告的文件大小，未知时传 -1；
// 接收字节数与 Content-Length 或 size 不一致时不安装。
func (d *Downloader) Fetch(ctx context.Context, key, fileName string, size int64) (Result, error) {
	location := d.backend.Location(key)
	v, err, shared := d.inflight.Do(location, func() (any, error) {
		return d.fetch(ctx, key, fileName, size)
	})
	if err != nil {
		return Result{}, err
	}
	res := v.(Result)
	res.Shared = shared
	return res, nil
}

func (d *Downloader) fetch(ctx context.Context, key, fileName string, size int64) (Result, error) {
	d.transfers.Add(1)
	location := d.backend.Location(key)

	body, length, err := d.source.Download(ctx, fileName)
	if err != nil {
		metrics.RecordDownload(0, false)
		return Result{}, fmt.Errorf("download %s: %w", fileName, err)
	}
	defer body.Close()

	if err := d.fs.MkdirAll(d.tempDir, 0o755); err != nil {
		metrics.RecordDownload(0, false)
		return Result{}, fmt.Errorf("create staging dir: %w", err)
	}
	staging, err := afero.TempFile(d.fs, d.tempDir, "mmsync-dl-*")
	if err != nil {
		metrics.RecordDownload(0, false)
		return Result{}, fmt.Errorf("create staging file: %w", err)
	}
	stagingName := staging.Name()
	defer d.fs.Remove(stagingName)

	total := length
	if total < 0 {
		total = size
	}
	written, err := d.stream(ctx, staging, body, total, fileName)
	closeErr := staging.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && length >= 0 && written != length {
		err = fmt.Errorf("%w: %s received %d of %d bytes", ErrLengthMismatch, fileName, written, length)
	}
	if err == nil && size >= 0 && written != size {
		err = fmt.Errorf("%w: %s received %d bytes, catalog reports %d", ErrLengthMismatch, fileName, written, size)
	}
	if err != nil {
		metrics.RecordDownload(0, false)
		return Result{}, err
	}

	if err := d.backend.MkdirAll(ctx, path.Dir(key)); err != nil {
		metrics.RecordDownload(0, false)
		return Result{}, fmt.Errorf("create directory for %s: %w", location, err)
	}
	staged, err := d.fs.Open(stagingName)
	if err != nil {
		metrics.RecordDownload(0, false)
		return Result{}, fmt.Errorf("reopen staging file: %w", err)
	}
	err = d.backend.Put(ctx, key, staged, written)
	staged.Close()
	if err != nil {
		metrics.RecordDownload(0, false)
		return Result{}, fmt.Errorf("install %s: %w", location, err)
	}

	metrics.RecordDownload(written, true)
	d.logger.WithFields(logrus.Fields{
		"action":   "download",
		"file":     fileName,
		"location": location,
		"bytes":    written,
	}).Info("file_downloaded")

	return Result{Key: key, Location: location, Bytes: written}, nil
}

func (d *Downloader) stream(ctx context.Context, dst io.Writer, body io.Reader, length int64, fileName string) (int64, error) {
	reader := body
	if d.progress {
		bar := pb.New64(length)
		bar.SetTemplate(pb.Full)
		bar.SetWriter(d.output)
		bar.Set(pb.Bytes, true)
		bar.Set("prefix", fileName+" ")
		bar.Start()
		defer bar.Finish()
		reader = bar.NewProxyReader(body)
	}
	return storage.CopyWithContext(ctx, dst, reader)
}
