package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别: "+g.LogLevel)
	}
	if g.LocalDataDir == "" {
		return newFieldError("Global.LocalDataDir", "不能为空")
	}
	if err := wrapFieldError("Global.LocalDataDir", "地址无效", validateDataDir(g.LocalDataDir)); err != nil {
		return err
	}
	if g.MirrorDataDir != "" {
		if err := wrapFieldError("Global.MirrorDataDir", "地址无效", validateDataDir(g.MirrorDataDir)); err != nil {
			return err
		}
		if g.MirrorDataDir == g.LocalDataDir {
			return newFieldError("Global.MirrorDataDir", "不能与 LocalDataDir 相同")
		}
	}
	if err := wrapFieldError("Global.SDCBaseURL", "地址无效", validateBaseURL(g.SDCBaseURL)); err != nil {
		return err
	}
	if (g.Username == "") != (g.Password == "") {
		return newFieldError("Global.Username/Password", "必须同时提供或同时留空")
	}
	if g.MaxRetries < 0 {
		return newFieldError("Global.MaxRetries", "不能为负数")
	}
	if g.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("Global.InitialBackoff", "必须大于 0")
	}
	if g.RequestTimeout.DurationValue() <= 0 {
		return newFieldError("Global.RequestTimeout", "必须大于 0")
	}
	if g.GroupWorkers < 1 {
		return newFieldError("Global.GroupWorkers", "必须大于 0")
	}
	if g.DownloadWorkers < 1 {
		return newFieldError("Global.DownloadWorkers", "必须大于 0")
	}

	if usesS3(g) {
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			return newFieldError("S3.AccessKey/SecretKey", "必须同时提供或同时留空")
		}
		if c.S3.Endpoint != "" {
			if err := wrapFieldError("S3.Endpoint", "地址无效", validateBaseURL(c.S3.Endpoint)); err != nil {
				return err
			}
		}
	}

	return nil
}

func usesS3(g GlobalConfig) bool {
	return isS3(g.LocalDataDir) || isS3(g.MirrorDataDir)
}

func validateDataDir(dir string) error {
	if !isS3(dir) {
		return nil
	}
	rest := dir[len("s3://"):]
	bucket, _, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return errors.New("s3 地址缺少 bucket")
	}
	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("缺少地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
