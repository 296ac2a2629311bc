package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
)

var (
	// Counters
	FrameCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vedirect_frames_total",
		Help: "Frames completed per device, by outcome",
	}, []string{"device", "result"})

	FieldErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vedirect_field_errors_total",
		Help: "Values that could not be decoded, by label",
	}, []string{"device", "label"})

	ByteCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vedirect_bytes_total",
		Help: "Raw bytes read from each device",
	}, []string{"device"})

	ReconnectCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vedirect_reconnects_total",
		Help: "Connection attempts after a device was lost",
	}, []string{"device"})

	PublishCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vedirect_mqtt_publish_total",
		Help: "MQTT publishes, by status",
	}, []string{"status"})

	// Gauges
	ConnectedDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vedirect_connected_devices",
		Help: "Devices with an open connection",
	})

	LastRecordTime = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vedirect_last_record_timestamp_seconds",
		Help: "Unix time of the last good record per device",
	}, []string{"device"})
)

// Frame results
const (
	ResultRecord           = "record"
	ResultChecksumMismatch = "checksum_mismatch"
	ResultMalformed        = "malformed"
	ResultUnknownNumeric   = "unknown_numeric"
	ResultEndOfStream      = "end_of_stream"
	ResultOther            = "other"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// FrameResult maps a parser error to its result label. nil is a record.
func FrameResult(err error) string {
	switch {
	case err == nil:
		return ResultRecord
	case errors.Is(err, vedirect.ErrChecksumMismatch):
		return ResultChecksumMismatch
	case errors.Is(err, vedirect.ErrMalformedField):
		return ResultMalformed
	case errors.Is(err, vedirect.ErrUnknownNumericFormat):
		return ResultUnknownNumeric
	case errors.Is(err, vedirect.ErrUnexpectedEndOfStream):
		return ResultEndOfStream
	default:
		return ResultOther
	}
}

// IncFrame counts one completed frame.
func IncFrame(device string, err error) {
	FrameCount.WithLabelValues(device, FrameResult(err)).Inc()
}

// IncFieldError counts one undecodable value.
func IncFieldError(device, label string) {
	FieldErrorCount.WithLabelValues(device, label).Inc()
}

// AddBytes counts raw input.
func AddBytes(device string, n int) {
	ByteCount.WithLabelValues(device).Add(float64(n))
}

// IncReconnect counts a reconnect attempt.
func IncReconnect(device string) {
	ReconnectCount.WithLabelValues(device).Inc()
}

// IncPublish counts an MQTT publish.
func IncPublish(status string) {
	PublishCount.WithLabelValues(status).Inc()
}

// DeviceConnected adjusts the connected devices gauge.
func DeviceConnected(up bool) {
	if up {
		ConnectedDevices.Inc()
	} else {
		ConnectedDevices.Dec()
	}
}

// SetLastRecord records when a device last produced a good record.
func SetLastRecord(device string, unix float64) {
	LastRecordTime.WithLabelValues(device).Set(unix)
}
