// Package observability provides logging, metrics, and tracing helpers
// used by the session executor. Every helper is nil-safe so callers can
// pass a nil logger to disable output.
package observability

import (
	"log/slog"
)

// EnrichLogger adds session_id, node_id, and attempt attributes to a logger.
// Returns nil if logger is nil.
func EnrichLogger(logger *slog.Logger, sessionID, nodeID string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("node_id", nodeID),
		slog.Int("attempt", attempt),
	)
}

// LogSessionStart logs the beginning of an invocation.
// mode is one of "start", "resume", "recover", or "observe".
func LogSessionStart(logger *slog.Logger, sessionID, mode, fromNode string) {
	if logger == nil {
		return
	}
	logger.Info("session invocation starting",
		slog.String("session_id", sessionID),
		slog.String("mode", mode),
		slog.String("from_node", fromNode),
	)
}

// LogSessionComplete logs a session reaching END.
func LogSessionComplete(logger *slog.Logger, sessionID string, durationMs float64, stages int) {
	if logger == nil {
		return
	}
	logger.Info("session completed",
		slog.String("session_id", sessionID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("stages_executed", stages),
	)
}

// LogSessionSuspended logs a session pausing for external input.
func LogSessionSuspended(logger *slog.Logger, sessionID, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("session suspended",
		slog.String("session_id", sessionID),
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSessionError logs a failed invocation with the stage it stopped at.
func LogSessionError(logger *slog.Logger, sessionID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("session failed",
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs the start of stage execution at debug level.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
	)
}

// LogNodeComplete logs successful stage completion at debug level.
func LogNodeComplete(logger *slog.Logger, nodeID, next string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.String("next_node", next),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs stage failure at error level.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogInterrupt logs a stage requesting external input.
func LogInterrupt(logger *slog.Logger, nodeID string, payloadBytes int) {
	if logger == nil {
		return
	}
	logger.Info("node requested input",
		slog.String("node_id", nodeID),
		slog.Int("payload_bytes", payloadBytes),
	)
}

// LogCheckpoint logs a successful checkpoint save at debug level.
func LogCheckpoint(logger *slog.Logger, nodeID, status string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("node_id", nodeID),
		slog.String("status", status),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs a checkpoint failure at warn level.
func LogCheckpointError(logger *slog.Logger, nodeID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("node_id", nodeID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}
