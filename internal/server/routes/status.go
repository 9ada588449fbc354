package routes

import (
	"github.com/gofiber/fiber/v3"
)

// Status 描述服务当前的存储与远程配置，供 /-/status 诊断接口输出。
type Status struct {
	Version       string `json:"version"`
	StorageType   string `json:"storage_type"`
	LocalDataDir  string `json:"local_data_dir"`
	MirrorEnabled bool   `json:"mirror_enabled"`
	RemoteEnabled bool   `json:"remote_enabled"`
	AuthMode      string `json:"auth_mode"`
	SDCBaseURL    string `json:"sdc_base_url"`
}

// RegisterStatusRoutes 暴露 /-/status 诊断接口，供运维确认数据目录与 SDC 访问方式。
func RegisterStatusRoutes(app *fiber.App, status Status) {
	if app == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(status)
	})
}
