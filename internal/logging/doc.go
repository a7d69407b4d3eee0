// Package logging provides structured logging for the memory core.
//
// It wraps zap with:
//   - a custom Trace level (-2, below Debug) for wire-level detail
//   - automatic context field injection (trace_id, span_id, session.id, request.id)
//   - defense-in-depth secret redaction at the encoder layer
//   - level-aware sampling so Info/Warn floods don't drown Error+
//
// Create a logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg)
//
// Log with context:
//
//	ctx = logging.WithSessionID(ctx, episode.UserID)
//	logger.Info(ctx, "episode consolidated", zap.String("episode_id", ep.ID))
package logging
