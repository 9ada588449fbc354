package loader

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mmsync/mmsync/internal/cache"
	"github.com/mmsync/mmsync/internal/download"
	"github.com/mmsync/mmsync/internal/filter"
	"github.com/mmsync/mmsync/internal/logging"
	"github.com/mmsync/mmsync/internal/metrics"
	"github.com/mmsync/mmsync/internal/mirror"
	"github.com/mmsync/mmsync/internal/sdc"
	"github.com/mmsync/mmsync/internal/storage"
)

// Catalog 查询远程文件目录，*sdc.Client 满足该接口。
type Catalog interface {
	FileInfo(ctx context.Context, q sdc.Query) ([]sdc.RemoteFile, error)
}

// Fetcher 把远程文件安装到主缓存，*download.Downloader 满足该接口。
type Fetcher interface {
	Fetch(ctx context.Context, key, fileName string, size int64) (download.Result, error)
}

// Options 为 Engine 的全部依赖与参数，不存在进程级全局配置。
type Options struct {
	// Catalog 与 Fetcher 为空时只使用本地缓存与镜像。
	Catalog Catalog
	Fetcher Fetcher
	// Primary 为可写主缓存，必填。
	Primary storage.Backend
	// Mirror 为只读镜像，可为空。
	Mirror storage.Backend
	// IntervalFilter 默认 sdc.InInterval。
	IntervalFilter sdc.IntervalFilter
	Ingestor       Ingestor
	// NoDownload 全局禁用远程访问。
	NoDownload      bool
	GroupWorkers    int
	DownloadWorkers int
	Logger          *logrus.Logger
}

var (
	// ErrPrimaryRequired 表示未配置主缓存。
	ErrPrimaryRequired = errors.New("primary storage backend is required")
	// ErrFetcherRequired 表示配置了 Catalog 却没有 Fetcher。
	ErrFetcherRequired = errors.New("catalog configured without a fetcher")
	// ErrNoIngestor 表示 ModeIngest 请求缺少 Ingestor。
	ErrNoIngestor = errors.New("ingest mode requires an ingestor")
)

// Engine 执行同步请求。Engine 本身无可变状态，可被多个请求并发使用。
type Engine struct {
	catalog         Catalog
	fetcher         Fetcher
	primary         storage.Backend
	mirror          storage.Backend
	interval        sdc.IntervalFilter
	ingestor        Ingestor
	noDownload      bool
	groupWorkers    int
	downloadWorkers int
	logger          *logrus.Logger
}

// NewEngine 校验依赖并构建 Engine。
func NewEngine(opts Options) (*Engine, error) {
	if opts.Primary == nil {
		return nil, ErrPrimaryRequired
	}
	if opts.Catalog != nil && opts.Fetcher == nil {
		return nil, ErrFetcherRequired
	}
	interval := opts.IntervalFilter
	if interval == nil {
		interval = sdc.InInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		catalog:         opts.Catalog,
		fetcher:         opts.Fetcher,
		primary:         opts.Primary,
		mirror:          opts.Mirror,
		interval:        interval,
		ingestor:        opts.Ingestor,
		noDownload:      opts.NoDownload,
		groupWorkers:    atLeastOne(opts.GroupWorkers),
		downloadWorkers: atLeastOne(opts.DownloadWorkers),
		logger:          logger,
	}, nil
}

// run 保存一次 Sync 调用内的状态。
type run struct {
	engine    *Engine
	req       Request
	id        string
	layout    cache.Layout
	resolver  *cache.Resolver
	fallback  *mirror.Fallback
	acc       *Accumulator
	remoteOff atomic.Bool

	mu        sync.Mutex
	available []string
}

// Sync 执行一次同步。单个分组或文件的失败只记录日志，不会中断其他分组；
// 只有请求非法或 ctx 被取消时返回错误。
func (e *Engine) Sync(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	req, err := req.Normalize()
	if err != nil {
		return Result{}, err
	}
	if req.Mode == ModeIngest && e.ingestor == nil {
		return Result{}, ErrNoIngestor
	}

	layout := cache.Layout{Instrument: req.Instrument}
	r := &run{
		engine:   e,
		req:      req,
		id:       uuid.NewString(),
		layout:   layout,
		resolver: cache.NewResolver(e.primary, layout),
		fallback: mirror.New(e.mirror, e.primary, layout, e.interval, e.logger),
		acc:      NewAccumulator(),
	}
	r.remoteOff.Store(e.noDownload || req.NoUpdate || e.catalog == nil)

	groups := Groups(req)
	for _, g := range groups {
		if err := r.acc.Register(g); err != nil {
			return Result{}, err
		}
	}

	e.logger.WithFields(logrus.Fields{
		"action":     "sync",
		"sync_id":    r.id,
		"instrument": req.Instrument,
		"trange":     req.TimeRange.String(),
		"groups":     len(groups),
		"mode":       req.Mode.String(),
		"remote":     !r.remoteOff.Load(),
	}).Info("sync_started")

	var eg errgroup.Group
	eg.SetLimit(e.groupWorkers)
	for _, g := range groups {
		eg.Go(func() error {
			r.group(ctx, g)
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	result := r.result(ctx)
	metrics.RecordSync(req.Mode.String(), time.Since(started))
	e.logger.WithFields(logrus.Fields{
		"action":   "sync",
		"sync_id":  r.id,
		"kind":     string(result.Kind),
		"items":    len(result.Items()),
		"no_data":  result.NoData,
		"duration": time.Since(started).String(),
	}).Info("sync_finished")
	return result, nil
}

func (r *run) log(g cache.GroupKey) *logrus.Entry {
	return r.engine.logger.WithFields(logging.GroupFields(r.id, r.req.Instrument, g.Probe, g.DataRate, g.Level, g.Datatype))
}

// group drives one group through query, resolve and fallback.
func (r *run) group(ctx context.Context, g cache.GroupKey) {
	e := r.engine
	log := r.log(g)
	found := false

	if !r.remoteOff.Load() {
		files, err := e.catalog.FileInfo(ctx, sdc.Query{
			Window:     sdc.Window(r.req.TimeRange, g.DataRate),
			Probe:      g.Probe,
			Instrument: r.req.Instrument,
			DataRate:   g.DataRate,
			Level:      g.Level,
			Descriptor: g.Datatype,
		})
		switch {
		case err == nil:
			files = e.interval(files, r.req.TimeRange)
			if r.req.Mode == ModeAvailable {
				r.addAvailable(log, files)
				return
			}
			found = r.resolveRemote(ctx, g, files, log)
		case ctx.Err() != nil:
			return
		case sdc.IsUnreachable(err):
			if r.remoteOff.CompareAndSwap(false, true) {
				log.WithError(err).Warn("catalog_unreachable")
			}
		default:
			fields := logrus.Fields{"action": "catalog_query"}
			if statusErr, ok := sdc.AsStatusError(err); ok {
				fields["status"] = statusErr.Code
				fields["url"] = statusErr.URL
				fields["body"] = statusErr.Body
			}
			log.WithFields(fields).WithError(err).Warn("catalog_request_failed")
		}
	}

	if r.req.Mode == ModeAvailable || found {
		return
	}
	r.resolveLocal(ctx, g, log)
}

func (r *run) addAvailable(log *logrus.Entry, files []sdc.RemoteFile) {
	names := make([]string, 0, len(files))
	for _, f := range files {
		log.WithFields(logrus.Fields{
			"file":    f.FileName,
			"size_mb": math.Round(float64(f.Size)/(1024*1024)*10) / 10,
		}).Info("file_available")
		names = append(names, f.FileName)
	}
	r.mu.Lock()
	r.available = append(r.available, names...)
	r.mu.Unlock()
}

// resolveRemote 处理目录返回的文件：命中直接登记，未命中交给下载器。返回是否解析到任何文件。
func (r *run) resolveRemote(ctx context.Context, g cache.GroupKey, files []sdc.RemoteFile, log *logrus.Entry) bool {
	e := r.engine
	var found atomic.Bool

	var eg errgroup.Group
	eg.SetLimit(e.downloadWorkers)
	for _, f := range files {
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := r.resolver.Lookup(ctx, g, f)
			if err != nil {
				log.WithError(err).WithField("file", f.FileName).Warn("cache_lookup_failed")
			}
			if res.Hit {
				r.acc.Add(g, res.Location)
				metrics.RecordResolved("cache")
				log.WithFields(logging.FileFields(f.FileName, res.Location, "cache")).Debug("file_resolved")
				found.Store(true)
				return nil
			}
			if r.acc.Seen(res.Location) {
				r.acc.Add(g, res.Location)
				found.Store(true)
				return nil
			}

			dl, err := e.fetcher.Fetch(ctx, res.Key, f.FileName, f.Size)
			if err != nil {
				log.WithError(err).WithFields(logrus.Fields{
					"file":       f.FileName,
					"location":   res.Location,
					"local_size": res.LocalSize,
					"size":       f.Size,
				}).Warn("download_failed")
				return nil
			}
			r.acc.Add(g, dl.Location)
			metrics.RecordResolved("download")
			log.WithFields(logging.FileFields(f.FileName, dl.Location, "download")).Info("file_resolved")
			found.Store(true)
			return nil
		})
	}
	_ = eg.Wait()
	return found.Load()
}

// resolveLocal 扫描主缓存，再从镜像补齐主缓存中没有的文件。
func (r *run) resolveLocal(ctx context.Context, g cache.GroupKey, log *logrus.Entry) {
	e := r.engine
	keys, err := r.layout.Scan(ctx, e.primary, g, r.req.TimeRange, e.interval)
	if err != nil {
		log.WithError(err).Warn("local_scan_failed")
	}
	for _, key := range keys {
		r.acc.Add(g, e.primary.Location(key))
		metrics.RecordResolved("local")
	}
	log.WithField("files", len(keys)).Info("local_files_found")

	if !r.fallback.Enabled() {
		return
	}
	paths, err := r.fallback.Resolve(ctx, g, r.req.TimeRange, r.acc.GroupSet(g))
	if err != nil {
		log.WithError(err).Warn("mirror_scan_failed")
	}
	for _, p := range paths {
		r.acc.Add(g, p)
		metrics.RecordResolved("mirror")
	}
}

// result 按模式组装结果，版本过滤在每个分组排序之后进行。
func (r *run) result(ctx context.Context) Result {
	log := r.engine.logger.WithFields(logrus.Fields{"action": "sync", "sync_id": r.id})

	if r.req.Mode == ModeAvailable {
		r.mu.Lock()
		names := sortedUnique(r.available)
		r.mu.Unlock()
		if len(names) == 0 {
			log.Warn("no_files_available")
		}
		return Result{Kind: KindAvailable, Available: names, NoData: len(names) == 0}
	}

	groups := r.acc.Keys()
	perGroup := make([]GroupFiles, 0, len(groups))
	merged := []string{}
	for _, g := range groups {
		candidates := r.acc.Group(g)
		filtered := filter.Apply(candidates, r.req.Policy)
		if len(filtered) == 0 {
			r.log(g).WithField("group", g.String()).Info("no_matching_versions")
		}
		perGroup = append(perGroup, GroupFiles{Group: g, Paths: filtered})
		merged = append(merged, filtered...)
	}
	merged = sortedUnique(merged)

	if r.req.Mode == ModeIngest {
		return r.ingest(ctx, perGroup, log)
	}

	if len(merged) == 0 {
		log.Warn("no_data_loaded")
	}
	return Result{Kind: KindPaths, Paths: merged, Groups: perGroup, NoData: len(merged) == 0}
}

func (r *run) ingest(ctx context.Context, perGroup []GroupFiles, log *logrus.Entry) Result {
	variables := []string{}
	for _, gf := range perGroup {
		if len(gf.Paths) == 0 {
			continue
		}
		names, err := r.engine.ingestor.Ingest(ctx, gf.Group, gf.Paths)
		if err != nil {
			r.log(gf.Group).WithError(err).Warn("ingest_failed")
			continue
		}
		variables = append(variables, names...)
	}
	variables = sortedUnique(variables)
	if len(variables) == 0 {
		log.Warn("no_data_loaded")
	}
	return Result{Kind: KindVariables, Variables: variables, Groups: perGroup, NoData: len(variables) == 0}
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
