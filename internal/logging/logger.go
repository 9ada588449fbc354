package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mmsync/mmsync/internal/config"
)

// InitLogger 根据全局配置初始化 JSON 结构化日志。
// console 是未配置 LogFilePath 或日志文件不可用时的输出目标，为 nil 时使用 stderr；
// CLI 同步模式下 stdout 只用于输出结果列表。
func InitLogger(cfg config.GlobalConfig, console io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别: %w", err)
	}
	if console == nil {
		console = os.Stderr
	}

	output, outErr := openLogFile(cfg)
	if output == nil {
		output = console
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	// 第三方包直接使用 logrus 标准 logger 的输出保持一致。
	logrus.SetFormatter(logger.Formatter)
	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.GetLevel())

	if outErr != nil {
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   cfg.LogFilePath,
		}).Warn(outErr.Error())
	}
	return logger, nil
}

// openLogFile 返回滚动日志文件；未配置时返回 nil，目录不可用时返回 nil 与原因。
func openLogFile(cfg config.GlobalConfig) (io.Writer, error) {
	if cfg.LogFilePath == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0o755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}, nil
}
