package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCacheLookup(t *testing.T) {
	before := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit"))
	RecordCacheLookup(true)
	if got := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit")); got != before+1 {
		t.Fatalf("expected hit counter to grow by 1, got %v -> %v", before, got)
	}
}

func TestRecordDownloadCountsBytesOnSuccessOnly(t *testing.T) {
	before := testutil.ToFloat64(downloadBytesTotal)
	RecordDownload(100, true)
	RecordDownload(50, false)
	if got := testutil.ToFloat64(downloadBytesTotal); got != before+100 {
		t.Fatalf("expected +100 bytes, got %v -> %v", before, got)
	}
}
