package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	reminderScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_scans_total",
			Help: "Total number of completed reminder scans",
		},
	)
	remindersSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Total number of birthday reminders by delivery status",
		},
		[]string{"status"},
	)
	reminderScanDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminder_scan_duration_seconds",
			Help:    "Duration of reminder scans in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of storage operations by backend, operation and status",
		},
		[]string{"backend", "op", "status"},
	)
)

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// RecordReminderScan observes one finished scan and its delivery outcome.
func RecordReminderScan(sent, failed int, duration time.Duration) {
	reminderScansTotal.Inc()
	reminderScanDurationSeconds.Observe(duration.Seconds())
	remindersSentTotal.WithLabelValues("ok").Add(float64(sent))
	remindersSentTotal.WithLabelValues("error").Add(float64(failed))
}

// RecordStorageOp counts a store call.
func RecordStorageOp(backend, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	storageOperationsTotal.WithLabelValues(backend, op, status).Inc()
}
