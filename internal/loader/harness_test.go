package loader

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/mmsync/mmsync/internal/download"
	"github.com/mmsync/mmsync/internal/retry"
	"github.com/mmsync/mmsync/internal/sdc"
	"github.com/mmsync/mmsync/internal/storage"
	"github.com/mmsync/mmsync/internal/trange"
)

type catalogFile struct {
	name    string
	timetag string
	body    string
}

// fakeSDC 模拟 file_info 与 download 两个接口。
type fakeSDC struct {
	srv *httptest.Server

	mu        sync.Mutex
	catalog   map[string][]catalogFile
	status    map[string]int
	failFiles map[string]bool
	queries   []string

	downloads atomic.Int32
}

func catalogKey(probe, instrument, rate, level, descriptor string) string {
	return strings.Join([]string{"mms" + probe, instrument, rate, level, descriptor}, "|")
}

func newFakeSDC(t *testing.T) *fakeSDC {
	t.Helper()
	f := &fakeSDC{
		catalog:   make(map[string][]catalogFile),
		status:    make(map[string]int),
		failFiles: make(map[string]bool),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSDC) add(key string, files ...catalogFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalog[key] = append(f.catalog[key], files...)
}

func (f *fakeSDC) serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case strings.HasSuffix(r.URL.Path, "/file_info/science"):
		key := strings.Join([]string{q.Get("sc_id"), q.Get("instrument_id"), q.Get("data_rate_mode"), q.Get("data_level"), q.Get("descriptor")}, "|")
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.RawQuery)
		status := f.status[key]
		files := append([]catalogFile(nil), f.catalog[key]...)
		f.mu.Unlock()
		if status != 0 {
			http.Error(w, "catalog failure", status)
			return
		}
		type record struct {
			FileName string `json:"file_name"`
			Timetag  string `json:"timetag"`
			FileSize int64  `json:"file_size"`
		}
		out := struct {
			Files []record `json:"files"`
		}{Files: []record{}}
		for _, cf := range files {
			out.Files = append(out.Files, record{FileName: cf.name, Timetag: cf.timetag, FileSize: int64(len(cf.body))})
		}
		_ = json.NewEncoder(w).Encode(out)
	case strings.HasSuffix(r.URL.Path, "/download/science"):
		name := q.Get("file")
		f.downloads.Add(1)
		f.mu.Lock()
		fail := f.failFiles[name]
		var body string
		found := false
		for _, files := range f.catalog {
			for _, cf := range files {
				if cf.name == name {
					body, found = cf.body, true
				}
			}
		}
		f.mu.Unlock()
		if fail || !found {
			http.Error(w, "no such file", http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, body)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSDC) lastQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type harness struct {
	fs      afero.Fs
	primary *storage.FSBackend
	mirror  *storage.FSBackend
	engine  *Engine
}

type harnessOptions struct {
	baseURL    string
	noDownload bool
	mirrorSeed map[string]string
	ingestor   Ingestor
	noCatalog  bool
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	fsys := afero.NewMemMapFs()
	primary, err := storage.NewFSBackend("/data", storage.FSOptions{Fs: fsys})
	if err != nil {
		t.Fatalf("primary: %v", err)
	}

	h := &harness{fs: fsys, primary: primary}
	var mirrorBackend storage.Backend
	if opts.mirrorSeed != nil {
		writer, err := storage.NewFSBackend("/mirror", storage.FSOptions{Fs: fsys})
		if err != nil {
			t.Fatalf("mirror writer: %v", err)
		}
		for key, body := range opts.mirrorSeed {
			if err := writer.Put(context.Background(), key, strings.NewReader(body), int64(len(body))); err != nil {
				t.Fatalf("seed mirror: %v", err)
			}
		}
		h.mirror, err = storage.NewFSBackend("/mirror", storage.FSOptions{Fs: fsys, ReadOnly: true})
		if err != nil {
			t.Fatalf("mirror: %v", err)
		}
		mirrorBackend = h.mirror
	}

	logger := quietLogger()
	engineOpts := Options{
		Primary:         primary,
		Mirror:          mirrorBackend,
		Ingestor:        opts.ingestor,
		NoDownload:      opts.noDownload,
		GroupWorkers:    4,
		DownloadWorkers: 2,
		Logger:          logger,
	}
	if !opts.noCatalog {
		client := sdc.NewClient(opts.baseURL, sdc.NewSession(nil, "", "", "mmsync-test"),
			retry.Config{MaxAttempts: 1, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1})
		engineOpts.Catalog = client
		engineOpts.Fetcher = download.New(client, primary, download.Options{TempDir: "/staging", Fs: fsys, Logger: logger})
	}

	h.engine, err = NewEngine(engineOpts)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return h
}

func (h *harness) read(t *testing.T, location string) string {
	t.Helper()
	data, err := afero.ReadFile(h.fs, location)
	if err != nil {
		t.Fatalf("read %s: %v", location, err)
	}
	return string(data)
}

func mustRange(t *testing.T, start, end string) trange.Range {
	t.Helper()
	r, err := trange.Parse(start, end)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	return r
}

// closedURL 返回一个已关闭服务器的地址，请求会在连接层失败。
func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}
