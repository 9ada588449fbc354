package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mmsync/mmsync/internal/config"
	"github.com/mmsync/mmsync/internal/download"
	"github.com/mmsync/mmsync/internal/loader"
	"github.com/mmsync/mmsync/internal/logging"
	"github.com/mmsync/mmsync/internal/retry"
	"github.com/mmsync/mmsync/internal/sdc"
	"github.com/mmsync/mmsync/internal/server"
	"github.com/mmsync/mmsync/internal/server/routes"
	"github.com/mmsync/mmsync/internal/storage"
	"github.com/mmsync/mmsync/internal/version"
)

// engineDeps 持有同步引擎及其依赖，close 释放 SDC 会话的空闲连接。
type engineDeps struct {
	engine  *loader.Engine
	primary storage.Backend
	mirror  storage.Backend
	session *sdc.Session
}

func (d *engineDeps) close() {
	if d.session != nil {
		d.session.Close()
	}
}

func s3Options(cfg *config.Config) storage.S3Options {
	return storage.S3Options{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	}
}

// buildEngine 按配置组装存储后端、SDC 客户端、下载器与同步引擎。
func buildEngine(ctx context.Context, cfg *config.Config, logger *logrus.Logger, interactive bool) (*engineDeps, error) {
	primary, err := storage.Open(ctx, cfg.Global.LocalDataDir, s3Options(cfg), false)
	if err != nil {
		return nil, fmt.Errorf("打开数据目录失败: %w", err)
	}

	deps := &engineDeps{primary: primary}
	if cfg.Global.HasMirror() {
		mirror, err := storage.Open(ctx, cfg.Global.MirrorDataDir, s3Options(cfg), true)
		if err != nil {
			return nil, fmt.Errorf("打开镜像目录失败: %w", err)
		}
		deps.mirror = mirror
	}

	opts := loader.Options{
		Primary:         primary,
		Mirror:          deps.mirror,
		NoDownload:      cfg.Global.NoDownload,
		GroupWorkers:    cfg.Global.GroupWorkers,
		DownloadWorkers: cfg.Global.DownloadWorkers,
		Logger:          logger,
	}
	if !cfg.Global.NoDownload {
		deps.session = sdc.NewSession(server.NewSDCClient(cfg), cfg.Global.Username, cfg.Global.Password, version.UserAgent())
		client := sdc.NewClient(cfg.Global.SDCBaseURL, deps.session,
			retry.FromSettings(cfg.Global.MaxRetries, cfg.Global.InitialBackoff.DurationValue()))
		opts.Catalog = client
		opts.Fetcher = download.New(client, primary, download.Options{
			TempDir:  cfg.Global.TempDir,
			Progress: cfg.Global.ShowProgress && interactive,
			Output:   stdErr,
			Logger:   logger,
		})
	}

	deps.engine, err = loader.NewEngine(opts)
	if err != nil {
		return nil, err
	}
	return deps, nil
}

// startHTTPServer 在 ctx 结束前持续提供服务，收到信号后优雅关闭。
func startHTTPServer(ctx context.Context, cfg *config.Config, deps *engineDeps, logger *logrus.Logger, configPath string) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Syncer:     deps.engine,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterStatusRoutes(app, routes.Status{
		Version:       version.Full(),
		StorageType:   deps.primary.Type(),
		LocalDataDir:  cfg.Global.LocalDataDir,
		MirrorEnabled: deps.mirror != nil,
		RemoteEnabled: !cfg.Global.NoDownload,
		AuthMode:      cfg.Global.AuthMode(),
		SDCBaseURL:    cfg.Global.SDCBaseURL,
	})

	fields := logging.BaseFields("listen", configPath)
	fields["port"] = port
	logger.WithFields(fields).Info("Fiber 服务启动")

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			logger.WithError(err).Warn("shutdown_failed")
		}
	}()
	return app.Listen(fmt.Sprintf(":%d", port))
}
