// Package logger builds the slog loggers used across the dispatch engine.
//
// Loggers carry context-extracted attributes: register extractors once and
// every log call made with a context enriched via WithIntentID or
// WithAccount automatically includes the intent id or account address.
// This keeps send-pipeline logs correlatable without threading attributes
// through every call site.
//
//	log := logger.New(logger.IntentIDExtractor, logger.AccountExtractor)
//
//	ctx = logger.WithIntentID(ctx, intent.ID)
//	log.InfoContext(ctx, "batch started", slog.Int("recipients", n))
//	// {"level":"INFO","msg":"batch started","recipients":42,"intent_id":"..."}
//
// NewWithSentry adds Sentry error reporting on top of stdout logging and
// falls back to stdout only when no DSN is configured, so the same code
// path works in development and production.
package logger
