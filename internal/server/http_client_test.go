package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/mmsync/mmsync/internal/config"
	"github.com/mmsync/mmsync/internal/download"
	"github.com/mmsync/mmsync/internal/retry"
	"github.com/mmsync/mmsync/internal/sdc"
	"github.com/mmsync/mmsync/internal/storage"
)

func timeoutConfig(d time.Duration) *config.Config {
	return &config.Config{Global: config.GlobalConfig{RequestTimeout: config.Duration(d)}}
}

func TestNewSDCClientBoundsResponseHeaders(t *testing.T) {
	client := NewSDCClient(timeoutConfig(45 * time.Second))
	if client.Timeout != 0 {
		t.Fatalf("client must not cap the whole transfer, got %s", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("unexpected transport type %T", client.Transport)
	}
	if transport == defaultTransport {
		t.Fatalf("transport must be cloned per client")
	}
	if transport.ResponseHeaderTimeout != 45*time.Second {
		t.Fatalf("expected header timeout 45s, got %s", transport.ResponseHeaderTimeout)
	}
}

func TestNewSDCClientDefaultTimeout(t *testing.T) {
	transport := NewSDCClient(nil).Transport.(*http.Transport)
	if transport.ResponseHeaderTimeout != defaultRequestTimeout {
		t.Fatalf("expected default header timeout, got %s", transport.ResponseHeaderTimeout)
	}
}

func TestNewSDCClientFailsWhenHeadersAreLate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client := NewSDCClient(timeoutConfig(100 * time.Millisecond))
	resp, err := client.Get(srv.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatalf("expected header timeout error")
	}
}

// 正文分多块缓慢返回，总耗时超过 RequestTimeout，但下载仍应成功。
func TestSlowChunkedDownloadOutlivesRequestTimeout(t *testing.T) {
	const chunk = "0123456789"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "40")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for i := 0; i < 4; i++ {
			w.Write([]byte(chunk))
			flusher.Flush()
			time.Sleep(150 * time.Millisecond)
		}
	}))
	defer srv.Close()

	session := sdc.NewSession(NewSDCClient(timeoutConfig(300*time.Millisecond)), "", "", "mmsync-test")
	defer session.Close()
	client := sdc.NewClient(srv.URL, session, retry.Config{MaxAttempts: 1})

	fsys := afero.NewMemMapFs()
	backend, err := storage.NewFSBackend("/data", storage.FSOptions{Fs: fsys})
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	d := download.New(client, backend, download.Options{TempDir: "/staging", Fs: fsys, Logger: logger})

	key := "mms1/fpi/brst/l2/des-dist/2015/10/16/mms1_fpi_brst_l2_des-dist_20151016130524_v3.3.0.cdf"
	res, err := d.Fetch(context.Background(), key, "mms1_fpi_brst_l2_des-dist_20151016130524_v3.3.0.cdf", 40)
	if err != nil {
		t.Fatalf("slow but healthy transfer failed: %v", err)
	}
	if res.Bytes != 40 {
		t.Fatalf("expected 40 bytes, got %d", res.Bytes)
	}
	data, err := afero.ReadFile(fsys, backend.Location(key))
	if err != nil || string(data) != strings.Repeat(chunk, 4) {
		t.Fatalf("installed file mismatch: %q %v", data, err)
	}
}
