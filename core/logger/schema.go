package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var allowedOutcome = map[string]string{
	"ok":           "ok",
	"fail":         "fail",
	"skip":         "skip",
	"cancelled":    "cancelled",
	"rate_limited": "rate_limited",
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

// normalizeStatus folds the "error" spelling produced by Status into "fail".
func normalizeStatus(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "error" {
		return "fail"
	}
	return status
}

func normalizeOutcome(outcome string) (string, bool) {
	val, ok := allowedOutcome[strings.ToLower(strings.TrimSpace(outcome))]
	return val, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"cb_key",
	"outcome",
	"duration_ms",
	"registrant_id",
	"target_id",
	"index",
	"step",
	"next_step",
	"action",
	"reason",
	"count",
	"sent",
	"failed",
	"reminded",
	"payload",
	"lang",
	"mode",
	"listen",
	"public_url",
	"db",
	"host",
	"port",
	"err",
	"error_kind",
	"attempts",
}
