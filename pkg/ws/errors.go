package ws

import "strings"

// maxCloseReason is the longest close reason the WebSocket close frame
// can carry (125-byte control payload minus the 2-byte status code).
const maxCloseReason = 123

// sanitizeError strips storage internals out of an error message before
// it is shown to a client. Connection strings and driver errors collapse
// to a generic description; anything else passes through unchanged.
func sanitizeError(msg string) string {
	lower := strings.ToLower(msg)

	if strings.Contains(msg, "postgresql://") || strings.Contains(msg, "postgres://") {
		return "Database connection error"
	}
	if strings.Contains(msg, "DATABASE_URL") || strings.Contains(lower, "dsn") {
		return "Database configuration error"
	}
	if strings.Contains(lower, "driver") && (strings.Contains(lower, "postgres") || strings.Contains(lower, "database") || strings.Contains(lower, "sql")) {
		return "Database driver error"
	}
	if strings.Contains(lower, "postgres") && strings.Contains(lower, "database") {
		return "Database configuration error"
	}
	return msg
}

// closeReason truncates a sanitized message to fit in a close frame.
func closeReason(msg string) string {
	msg = sanitizeError(msg)
	if len(msg) <= maxCloseReason {
		return msg
	}
	return msg[:maxCloseReason]
}
