// Package logging provides structured logging for questd on top of Zap.
//
// The Logger adds:
//   - a Trace level below Debug
//   - stdout output plus an optional OpenTelemetry log bridge
//   - request, user and trace correlation fields taken from the context
//   - encoder-level redaction of credentials (passwords, tokens, API keys)
//   - sampling of entries below error level
//
// Typical use:
//
//	cfg, err := logging.FromAppConfig(appCfg)
//	logger, err := logging.NewLogger(cfg, nil)
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, reqID)
//	logger.Info(ctx, "mission created", zap.String("mission.id", id))
//
// Tests use NewTestLogger to capture and assert on entries.
package logging
