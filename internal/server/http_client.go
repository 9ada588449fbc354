package server

import (
	"net"
	"net/http"
	"time"

	"github.com/mmsync/mmsync/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   16,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

const defaultRequestTimeout = 60 * time.Second

// NewSDCClient 返回用于目录查询与文件下载的 http.Client。
// RequestTimeout 只限制等待响应头的时间；正文传输时长不设上限，由调用方 ctx 控制，
// 大文件下载不会因总耗时超过 RequestTimeout 而中断。
func NewSDCClient(cfg *config.Config) *http.Client {
	timeout := defaultRequestTimeout
	if cfg != nil && cfg.Global.RequestTimeout.DurationValue() > 0 {
		timeout = cfg.Global.RequestTimeout.DurationValue()
	}

	transport := defaultTransport.Clone()
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}
