package observability

import (
	"testing"
	"time"

	"github.com/danmuck/sealdrop/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordWireRequest("REGISTRATION", "REGISTRATION_SUCCEEDED", 3*time.Millisecond)
	ConnOpened()
	ConnClosed()
	RecordTransfer(true)
	RecordTransfer(false)
}

func TestChunkAndVerdictCounters(t *testing.T) {
	before := testutil.ToFloat64(chunkBytes)
	RecordChunk(734)
	RecordChunk(16)
	if got := testutil.ToFloat64(chunkBytes) - before; got != 750 {
		t.Fatalf("unexpected chunk byte delta: %v", got)
	}

	v := verdicts.WithLabelValues("CRC_VALID")
	before = testutil.ToFloat64(v)
	RecordVerdict("CRC_VALID")
	if got := testutil.ToFloat64(v) - before; got != 1 {
		t.Fatalf("unexpected verdict delta: %v", got)
	}
}
