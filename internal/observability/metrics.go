package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	attendancePersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "study_bot",
		Subsystem: "ledger",
		Name:      "last_record_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent attendance record written to Postgres.",
	})
	attendanceRecordCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "study_bot",
		Subsystem: "ledger",
		Name:      "records_total",
		Help:      "Number of attendance records written, labeled by status.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(attendancePersistGauge, attendanceRecordCounter)
}

// RecordAttendancePersisted updates the ledger watermark gauge and counts the
// write by status.
func RecordAttendancePersisted(status string, ts time.Time) {
	attendanceRecordCounter.WithLabelValues(status).Inc()
	if ts.IsZero() {
		return
	}
	attendancePersistGauge.Set(float64(ts.Unix()))
}
