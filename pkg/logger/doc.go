// Package logger provides the structured logging interface used across idledata.
//
// It wraps zerolog and adds:
// - Leveled logging (Debug, Info, Warn, Error, Fatal)
// - Fields carried by derived loggers (WithField, WithFields, WithError)
// - Coloured console output on stderr, optionally mirrored to a file
// - A global logger for commands, and OrGlobal for components built with a nil logger
// - NewNopLogger and a capturing TestLogger for tests
//
// Usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("stage", "harvest")
//	log.InfoWithFields("Query finished", map[string]interface{}{
//	    "query": "a",
//	    "items": 42,
//	})
package logger
