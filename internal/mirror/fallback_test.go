package mirror

import (
	"context"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/mmsync/mmsync/internal/cache"
	"github.com/mmsync/mmsync/internal/storage"
	"github.com/mmsync/mmsync/internal/trange"
)

const mirrorKey = "mms1/fgm/srvy/l2/2015/10/mms1_fgm_srvy_l2_20151016_v4.18.0.cdf"

var group = cache.GroupKey{Probe: "1", DataRate: "srvy", Level: "l2"}

type fixture struct {
	fs       afero.Fs
	primary  *storage.FSBackend
	mirror   *storage.FSBackend
	fallback *Fallback
}

func newFixture(t *testing.T, seed map[string]string) fixture {
	t.Helper()
	fsys := afero.NewMemMapFs()
	writer, err := storage.NewFSBackend("/mirror", storage.FSOptions{Fs: fsys})
	if err != nil {
		t.Fatalf("mirror writer: %v", err)
	}
	for key, body := range seed {
		if err := writer.Put(context.Background(), key, strings.NewReader(body), int64(len(body))); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
	mirror, err := storage.NewFSBackend("/mirror", storage.FSOptions{Fs: fsys, ReadOnly: true})
	if err != nil {
		t.Fatalf("mirror: %v", err)
	}
	primary, err := storage.NewFSBackend("/data", storage.FSOptions{Fs: fsys})
	if err != nil {
		t.Fatalf("primary: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return fixture{
		fs:       fsys,
		primary:  primary,
		mirror:   mirror,
		fallback: New(mirror, primary, cache.Layout{Instrument: "fgm"}, nil, logger),
	}
}

func day(t *testing.T) trange.Range {
	t.Helper()
	r, err := trange.Parse("2015-10-16", "2015-10-17")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	return r
}

func TestResolveCopiesMirrorFile(t *testing.T) {
	fx := newFixture(t, map[string]string{mirrorKey: "mirror-bytes"})

	got, err := fx.fallback.Resolve(context.Background(), group, day(t), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{"/data/" + mirrorKey}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	data, err := afero.ReadFile(fx.fs, "/data/"+mirrorKey)
	if err != nil || string(data) != "mirror-bytes" {
		t.Fatalf("primary copy missing: %q %v", data, err)
	}
	if ok, _ := afero.Exists(fx.fs, "/mirror/"+mirrorKey); !ok {
		t.Fatalf("mirror file must not be moved")
	}
}

func TestResolveSkipsKnownLocations(t *testing.T) {
	fx := newFixture(t, map[string]string{mirrorKey: "mirror-bytes"})
	skip := map[string]struct{}{"/data/" + mirrorKey: {}}

	got, err := fx.fallback.Resolve(context.Background(), group, day(t), skip)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected nothing, got %v", got)
	}
	if ok, _ := afero.Exists(fx.fs, "/data/"+mirrorKey); ok {
		t.Fatalf("skipped file must not be copied")
	}
}

func TestResolveEmptyMirror(t *testing.T) {
	fx := newFixture(t, nil)
	got, err := fx.fallback.Resolve(context.Background(), group, day(t), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected nothing, got %v", got)
	}
}

func TestResolveWithoutMirror(t *testing.T) {
	var fb *Fallback
	if fb.Enabled() {
		t.Fatalf("nil fallback must be disabled")
	}
	fb = New(nil, nil, cache.Layout{Instrument: "fgm"}, nil, nil)
	got, err := fb.Resolve(context.Background(), group, day(t), nil)
	if err != nil || got != nil {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
}

func TestResolveReplacesStalePrimaryCopy(t *testing.T) {
	fx := newFixture(t, map[string]string{mirrorKey: "mirror-bytes"})
	if err := fx.primary.Put(context.Background(), mirrorKey, strings.NewReader("old"), 3); err != nil {
		t.Fatalf("seed primary: %v", err)
	}

	if _, err := fx.fallback.Resolve(context.Background(), group, day(t), nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	data, _ := afero.ReadFile(fx.fs, "/data/"+mirrorKey)
	if string(data) != "mirror-bytes" {
		t.Fatalf("expected mirror content, got %q", data)
	}
}
