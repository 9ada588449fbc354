package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/mmsync/mmsync/internal/config"
	"github.com/mmsync/mmsync/internal/filter"
	"github.com/mmsync/mmsync/internal/loader"
	"github.com/mmsync/mmsync/internal/logging"
	"github.com/mmsync/mmsync/internal/trange"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	serve       bool

	available  bool
	start      string
	end        string
	instrument string
	probes     []string
	rates      []string
	levels     []string
	datatypes  []string
	cdfVersion string
	latest     bool
	major      bool
	minVersion string
	noUpdate   bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	// 同步模式下 stdout 只输出结果列表，日志写入 stderr。
	console := stdErr
	if opts.serve {
		console = stdOut
	}
	logger, err := logging.InitLogger(cfg.Global, console)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["local_data_dir"] = cfg.Global.LocalDataDir
		fields["mirror"] = cfg.Global.HasMirror()
		fields["auth_mode"] = cfg.Global.AuthMode()
		fields["no_download"] = cfg.Global.NoDownload
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 启动顺序为“配置 → 存储后端 → SDC 会话 → 下载器 → 同步引擎”，
	// CLI 同步与 serve 模式共享同一组实例。
	deps, err := buildEngine(ctx, cfg, logger, !opts.serve)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化同步引擎失败: %v\n", err)
		return 1
	}
	defer deps.close()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["storage_type"] = deps.primary.Type()
	fields["mirror"] = deps.mirror != nil
	fields["auth_mode"] = cfg.Global.AuthMode()
	fields["serve"] = opts.serve
	logger.WithFields(fields).Info("配置加载完成")

	if opts.serve {
		if err := startHTTPServer(ctx, cfg, deps, logger, opts.configPath); err != nil {
			fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
			return 1
		}
		return 0
	}

	req, err := opts.request()
	if err != nil {
		fmt.Fprintf(stdErr, "请求参数错误: %v\n", err)
		return 2
	}

	result, err := deps.engine.Sync(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(stdErr, "同步已取消")
			return 130
		}
		fmt.Fprintf(stdErr, "同步失败: %v\n", err)
		return 1
	}
	for _, item := range result.Items() {
		fmt.Fprintln(stdOut, item)
	}
	logger.WithFields(logrus.Fields{
		"action":  "sync_cli",
		"kind":    string(result.Kind),
		"items":   len(result.Items()),
		"no_data": result.NoData,
	}).Debug("sync_cli_done")
	return 0
}

// request 将 CLI 选项转换为同步请求。
func (o cliOptions) request() (loader.Request, error) {
	if o.start == "" || o.end == "" {
		return loader.Request{}, errors.New("需要同时指定 -start 与 -end")
	}
	r, err := trange.Parse(o.start, o.end)
	if err != nil {
		return loader.Request{}, err
	}
	mode := loader.ModePaths
	if o.available {
		mode = loader.ModeAvailable
	}
	return loader.Request{
		TimeRange:  r,
		Instrument: o.instrument,
		Probes:     o.probes,
		DataRates:  o.rates,
		Levels:     o.levels,
		Datatypes:  o.datatypes,
		Mode:       mode,
		NoUpdate:   o.noUpdate,
		Policy: filter.Policy{
			Version:    o.cdfVersion,
			Latest:     o.latest,
			Major:      o.major,
			MinVersion: o.minVersion,
		},
	}, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("mmsync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		opts       cliOptions
		configFlag string
		probes     string
		rates      string
		levels     string
		datatypes  string
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 MMSYNC_CONFIG 覆盖）")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	fs.BoolVar(&opts.serve, "serve", false, "启动 HTTP 服务")
	fs.BoolVar(&opts.available, "available", false, "仅列出远程可用文件，不下载")
	fs.StringVar(&opts.start, "start", "", "起始时间，例如 2015-10-16 或 2015-10-16/13:06")
	fs.StringVar(&opts.end, "end", "", "结束时间（不含）")
	fs.StringVar(&opts.instrument, "instrument", loader.DefaultInstrument, "仪器，例如 fgm、fpi")
	fs.StringVar(&probes, "probe", loader.DefaultProbe, "探测器编号，逗号分隔")
	fs.StringVar(&rates, "rate", loader.DefaultDataRate, "数据率，逗号分隔（srvy、fast、brst）")
	fs.StringVar(&levels, "level", loader.DefaultLevel, "数据级别，逗号分隔")
	fs.StringVar(&datatypes, "datatype", "", "descriptor，逗号分隔，默认无")
	fs.StringVar(&opts.cdfVersion, "cdf-version", "", "仅保留指定版本")
	fs.BoolVar(&opts.latest, "latest", false, "每个文件仅保留最高版本")
	fs.BoolVar(&opts.major, "major", false, "保留最高主版本下的全部版本")
	fs.StringVar(&opts.minVersion, "min-version", "", "保留不低于该版本的文件")
	fs.BoolVar(&opts.noUpdate, "no-update", false, "只使用本地缓存与镜像")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("MMSYNC_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}
	opts.configPath = path
	opts.probes = splitList(probes)
	opts.rates = splitList(rates)
	opts.levels = splitList(levels)
	opts.datatypes = splitList(datatypes)

	return opts, nil
}

// splitList 按逗号拆分参数并去除空白项。
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
