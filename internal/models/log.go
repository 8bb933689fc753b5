package models

// LogSeverity classifies an audit log entry appended to a page's action log.
type LogSeverity string

const (
	LogInfo    LogSeverity = "info"
	LogWarning LogSeverity = "warning"
	LogError   LogSeverity = "error"
	LogSuccess LogSeverity = "success"
)
