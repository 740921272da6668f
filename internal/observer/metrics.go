package observer

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	ruleLabels       = []string{"trigger_type", "company_id", "result"}
	recordLabels     = []string{"record", "entity", "company_id"}
	staleLabels      = []string{"entity", "company_id"}
	runLabels        = []string{"company_id", "status"}
	publishLabels    = []string{"company_id", "status"}
	dbOperationLabel = []string{"operation", "entity", "company_id", "status"}

	// RuleExecutionsTotal counts rule executions by outcome.
	RuleExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_automation_rule_executions_total",
			Help: "Total number of automation rule executions, labeled by result.",
		},
		ruleLabels,
	)

	// RecordsCreatedTotal counts tasks, notifications and activities written by automations.
	RecordsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_automation_records_created_total",
			Help: "Total number of records created by automations, labeled by record kind and target entity.",
		},
		recordLabels,
	)

	// RecordWriteFailuresTotal counts inserts that failed and were skipped.
	RecordWriteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_automation_record_write_failures_total",
			Help: "Total number of record inserts that failed during rule execution.",
		},
		recordLabels,
	)

	StaleEntitiesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_automation_stale_entities_detected_total",
			Help: "Total number of stale leads/projects returned by the detector.",
		},
		staleLabels,
	)

	DailyRunDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_automation_daily_run_duration_seconds",
			Help:    "Histogram of daily automation run durations.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7min
		},
		runLabels,
	)

	LastDailyRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crm_automation_last_daily_run_timestamp_seconds",
			Help: "Unix time of the last completed daily automation run.",
		},
		[]string{"company_id"},
	)

	NotificationEventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_automation_notification_events_total",
			Help: "Total number of notification events handed to NATS, labeled by status.",
		},
		publishLabels,
	)

	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_automation_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabel,
	)
)

// InitMetrics toggles metric collection. Collectors are registered by promauto at init.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// Enabled reports whether metric collection is on.
func Enabled() bool {
	return metricsEnabled
}

// sanitizeTenant ensures the tenant label is valid or returns a default value.
func sanitizeTenant(tenant string) string {
	if tenant == "" {
		return "unknown"
	}
	return tenant
}

// IncRuleExecution increments the rule execution counter.
func IncRuleExecution(triggerType, companyID string, err error) {
	if !metricsEnabled {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	RuleExecutionsTotal.WithLabelValues(triggerType, sanitizeTenant(companyID), result).Inc()
}

// IncRecordCreated counts one record (task, notification, activity) created for an entity.
func IncRecordCreated(record, entity, companyID string) {
	if !metricsEnabled {
		return
	}
	RecordsCreatedTotal.WithLabelValues(record, entity, sanitizeTenant(companyID)).Inc()
}

// IncRecordWriteFailure counts one skipped insert.
func IncRecordWriteFailure(record, entity, companyID string) {
	if !metricsEnabled {
		return
	}
	RecordWriteFailuresTotal.WithLabelValues(record, entity, sanitizeTenant(companyID)).Inc()
}

// AddStaleEntities adds n detected stale entities.
func AddStaleEntities(entity, companyID string, n int) {
	if !metricsEnabled || n <= 0 {
		return
	}
	StaleEntitiesDetectedTotal.WithLabelValues(entity, sanitizeTenant(companyID)).Add(float64(n))
}

// ObserveDailyRun records a finished daily run.
func ObserveDailyRun(companyID string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DailyRunDurationSeconds.WithLabelValues(sanitizeTenant(companyID), status).Observe(duration.Seconds())
	LastDailyRunTimestamp.WithLabelValues(sanitizeTenant(companyID)).SetToCurrentTime()
}

// IncNotificationEvent counts a notification event publish outcome ("published", "failed", "dropped").
func IncNotificationEvent(companyID, status string) {
	if !metricsEnabled {
		return
	}
	NotificationEventsPublishedTotal.WithLabelValues(sanitizeTenant(companyID), status).Inc()
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity, companyID string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, sanitizeTenant(companyID), status).Observe(duration.Seconds())
}

// SanitizeErrorType maps an error message onto a small set of categories.
// Keep this simple to avoid high cardinality.
func SanitizeErrorType(errStr string) string {
	if errStr == "" || errStr == "none" {
		return "none"
	}

	switch {
	case strings.Contains(errStr, "unsupported rule"):
		return "unsupported_rule"
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "SQL"), strings.Contains(errStr, "duplicate key"), strings.Contains(errStr, "constraint"), strings.Contains(errStr, "connection"):
		return "database"
	case strings.Contains(errStr, "validation failed"), strings.Contains(errStr, "bad request"), strings.Contains(errStr, "invalid"), strings.Contains(errStr, "schema"):
		return "validation"
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "nats"), strings.Contains(errStr, "jetstream"):
		return "nats"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	default:
		return "unknown"
	}
}
