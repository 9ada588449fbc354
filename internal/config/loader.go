package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DataDirEnv 可覆盖配置中的 LocalDataDir。
const DataDirEnv = "MMS_DATA_DIR"

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	if err := v.BindEnv("LocalDataDir", DataDirEnv); err != nil {
		return nil, fmt.Errorf("绑定环境变量失败: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var err error
	if cfg.Global.LocalDataDir, err = absDataDir(cfg.Global.LocalDataDir); err != nil {
		return nil, fmt.Errorf("无法解析数据目录: %w", err)
	}
	if cfg.Global.HasMirror() {
		if cfg.Global.MirrorDataDir, err = absDataDir(cfg.Global.MirrorDataDir); err != nil {
			return nil, fmt.Errorf("无法解析镜像目录: %w", err)
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("LocalDataDir", "./mms_data")
	v.SetDefault("MirrorDataDir", "")
	v.SetDefault("TempDir", "")
	v.SetDefault("SDCBaseURL", "https://lasp.colorado.edu/mms/sdc")
	v.SetDefault("NoDownload", false)
	v.SetDefault("MaxRetries", 3)
	v.SetDefault("InitialBackoff", "1s")
	v.SetDefault("RequestTimeout", "60s")
	v.SetDefault("GroupWorkers", 4)
	v.SetDefault("DownloadWorkers", 4)
	v.SetDefault("ShowProgress", false)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.InitialBackoff.DurationValue() == 0 {
		g.InitialBackoff = Duration(time.Second)
	}
	if g.RequestTimeout.DurationValue() == 0 {
		g.RequestTimeout = Duration(60 * time.Second)
	}
	if g.GroupWorkers == 0 {
		g.GroupWorkers = 4
	}
	if g.DownloadWorkers == 0 {
		g.DownloadWorkers = 4
	}
	g.LocalDataDir = strings.TrimSpace(g.LocalDataDir)
	g.MirrorDataDir = strings.TrimSpace(g.MirrorDataDir)
	g.SDCBaseURL = strings.TrimRight(strings.TrimSpace(g.SDCBaseURL), "/")
}

// absDataDir 将本地目录转换为绝对路径，s3:// 保持原样。
func absDataDir(dir string) (string, error) {
	if isS3(dir) {
		return dir, nil
	}
	return filepath.Abs(dir)
}

func isS3(dir string) bool {
	return strings.HasPrefix(strings.ToLower(dir), "s3://")
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
