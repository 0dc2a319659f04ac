// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stdout + OpenTelemetry)
//   - Automatic context field injection (trace_id, chat.id, message.id)
//   - Redaction of secrets and patient data
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithChatID(ctx, "42")
//	logger.Info(ctx, "patient log saved", zap.String("record.code", rec.Code))
//
// # Patient Data
//
// Field keys that carry patient data (name, age, dx, notes) are redacted by
// the encoder, so a record accidentally logged field-by-field never reaches
// stdout. Log the record code only.
package logging
