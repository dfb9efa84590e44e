// Package logger declares the logging contract the core packages emit
// through. The zerolog-backed implementation lives in infra/logger.
package logger

// Logger exposes logging methods for common severity levels. Debugw carries
// structured fields for the high-volume diagnostic paths.
type Logger interface {
	Debugf(format string, args ...any)
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
