// Package logging provides structured logging configuration for the mock
// StatsD server.
//
// It wraps log/slog so every component logs the same way:
//
//	logger := logging.New(logging.Parse(cfg.Log.Level, cfg.Log.Format))
//	logger.Info("listening", "addr", addr)
//
// Components accept a *slog.Logger through an option or setter and fall
// back to logging.Nop(). In tests, ForTest routes output to t.Log.
package logging
