package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fixturePath 返回 testdata 下的配置，并屏蔽外部 MMS_DATA_DIR 对结果的影响。
func fixturePath(t *testing.T, name string) string {
	t.Helper()
	t.Setenv(DataDirEnv, "")
	return filepath.Join("testdata", name)
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}
