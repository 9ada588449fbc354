package sdc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mmsync/mmsync/internal/metrics"
	"github.com/mmsync/mmsync/internal/retry"
)

// DefaultBaseURL is the public root of the LASP MMS SDC.
const DefaultBaseURL = "https://lasp.colorado.edu/mms/sdc"

// 错误正文最多保留的字节数。
const maxErrorBody = 4 * 1024

// Query 描述一次 file_info 查询。Descriptor 为空时不带 descriptor 参数。
type Query struct {
	Window     QueryWindow
	Probe      string
	Instrument string
	DataRate   string
	Level      string
	Descriptor string
}

// Client 封装 file_info 与 download 两个接口，请求经 Transport 发出并按 retry 配置重试。
type Client struct {
	baseURL   string
	transport Transport
	retry     retry.Config
}

// NewClient 构建 SDC 客户端，baseURL 为空时使用 DefaultBaseURL。
func NewClient(baseURL string, transport Transport, retryCfg retry.Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL:   base,
		transport: transport,
		retry:     retryCfg,
	}
}

func (c *Client) area() string {
	if c.transport != nil && c.transport.Authenticated() {
		return "sitl"
	}
	return "public"
}

// FileInfoURL 返回 file_info 查询地址。
func (c *Client) FileInfoURL(q Query) string {
	params := url.Values{}
	params.Set("start_date", q.Window.StartParam)
	params.Set("end_date", q.Window.EndParam)
	params.Set("sc_id", "mms"+q.Probe)
	params.Set("instrument_id", q.Instrument)
	params.Set("data_rate_mode", q.DataRate)
	params.Set("data_level", q.Level)
	if q.Descriptor != "" {
		params.Set("descriptor", q.Descriptor)
	}
	return fmt.Sprintf("%s/%s/files/api/v1/file_info/science?%s", c.baseURL, c.area(), params.Encode())
}

// DownloadURL 返回单个文件的下载地址。
func (c *Client) DownloadURL(fileName string) string {
	params := url.Values{}
	params.Set("file", fileName)
	return fmt.Sprintf("%s/%s/files/api/v1/download/science?%s", c.baseURL, c.area(), params.Encode())
}

// FileInfo 查询窗口内的候选文件。非 2xx 返回 *StatusError，连接失败返回 *UnreachableError。
func (c *Client) FileInfo(ctx context.Context, q Query) ([]RemoteFile, error) {
	target := c.FileInfoURL(q)

	body, err := retry.DoWithResult(ctx, c.retry, func() ([]byte, error) {
		resp, err := c.get(ctx, target)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, retry.Retryable(&UnreachableError{URL: target, Err: err})
		}
		return data, nil
	})
	if err != nil {
		err = retry.Unwrap(err)
		recordCatalogError(err)
		return nil, err
	}

	var decoded fileInfoResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		metrics.RecordCatalogRequest("decode_error")
		return nil, fmt.Errorf("decode file_info response from %s: %w", target, err)
	}

	files := make([]RemoteFile, 0, len(decoded.Files))
	for _, w := range decoded.Files {
		f, err := w.remoteFile()
		if err != nil {
			metrics.RecordCatalogRequest("decode_error")
			return nil, err
		}
		files = append(files, f)
	}
	metrics.RecordCatalogRequest("ok")
	return files, nil
}

// Download 打开文件正文流，返回 Content-Length（未知时为 -1）。调用方负责关闭。
func (c *Client) Download(ctx context.Context, fileName string) (io.ReadCloser, int64, error) {
	target := c.DownloadURL(fileName)
	resp, err := retry.DoWithResult(ctx, c.retry, func() (*http.Response, error) {
		return c.get(ctx, target)
	})
	if err != nil {
		return nil, 0, retry.Unwrap(err)
	}
	return resp.Body, resp.ContentLength, nil
}

// get 发送 GET 请求；成功时返回 2xx 响应，其余情况下响应已关闭。
func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	if c.transport == nil {
		return nil, errors.New("sdc transport is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, retry.Retryable(&UnreachableError{URL: target, Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		statusErr := &StatusError{Code: resp.StatusCode, URL: target, Body: string(data)}
		if resp.StatusCode >= 500 {
			return nil, retry.Retryable(statusErr)
		}
		return nil, statusErr
	}
	return resp, nil
}

func recordCatalogError(err error) {
	switch {
	case IsUnreachable(err):
		metrics.RecordCatalogRequest("unreachable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.RecordCatalogRequest("canceled")
	default:
		metrics.RecordCatalogRequest("http_error")
	}
}
