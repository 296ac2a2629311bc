// Package logging holds the process-wide zap logger.
package logging
