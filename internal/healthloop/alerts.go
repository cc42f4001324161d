package healthloop

import "log/slog"

// LogAlertSink is the default AlertSink: it simply logs alert/recovery
// transitions at warn/info level. A deployment wanting paging (Slack,
// PagerDuty, ...) wraps or replaces it; nothing in this package assumes
// a particular notification backend (spec.md §4.7 leaves delivery
// unspecified).
type LogAlertSink struct{}

func (LogAlertSink) Alert(serviceName, message string) {
	slog.Warn("dependency unhealthy", "service", serviceName, "message", message)
}

func (LogAlertSink) Recovered(serviceName string) {
	slog.Info("dependency recovered", "service", serviceName)
}
