// Package observability provides structured logging and metrics for the
// gateway, auth and agent services.
//
// This package implements:
//   - zap loggers configured from LOG_LEVEL and LOG_FORMAT
//   - Prometheus collectors for edge decisions, token issuance and chat intents
//   - Request duration instrumentation
//
// Tokens and passwords are never attached to log fields.
package observability
