package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
)

func TestFrameResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ResultRecord},
		{&vedirect.FrameError{Err: vedirect.ErrChecksumMismatch}, ResultChecksumMismatch},
		{&vedirect.FrameError{Err: vedirect.ErrMalformedField}, ResultMalformed},
		{fmt.Errorf("wrapped: %w", vedirect.ErrUnknownNumericFormat), ResultUnknownNumeric},
		{vedirect.ErrUnexpectedEndOfStream, ResultEndOfStream},
		{fmt.Errorf("boom"), ResultOther},
	}
	for _, tt := range tests {
		if got := FrameResult(tt.err); got != tt.want {
			t.Errorf("FrameResult(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestIncFrame(t *testing.T) {
	before := testutil.ToFloat64(FrameCount.WithLabelValues("test-inc", ResultChecksumMismatch))
	IncFrame("test-inc", &vedirect.FrameError{Err: vedirect.ErrChecksumMismatch})
	IncFrame("test-inc", nil)
	if got := testutil.ToFloat64(FrameCount.WithLabelValues("test-inc", ResultChecksumMismatch)); got != before+1 {
		t.Errorf("checksum_mismatch = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(FrameCount.WithLabelValues("test-inc", ResultRecord)); got != 1 {
		t.Errorf("record = %v, want 1", got)
	}
}

func TestAddBytes(t *testing.T) {
	AddBytes("test-bytes", 10)
	AddBytes("test-bytes", 5)
	if got := testutil.ToFloat64(ByteCount.WithLabelValues("test-bytes")); got != 15 {
		t.Errorf("bytes = %v, want 15", got)
	}
}
