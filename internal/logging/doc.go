// Package logging provides structured logging for the maxcul gateway.
//
// This package wraps a zap logger with package-level helpers so every part of
// the gateway logs through the same configured instance. Logging is silent
// until Initialize is called with a level or MAXCUL_LOG_LEVEL is set.
//
// # Log Levels
//
//   - Debug: raw serial lines, decoded frames, credit bookkeeping
//   - Info: connection and handshake progress, MQTT and feed clients
//   - Warn: retries, unmatched ACKs, credit shortfalls, dropped lines
//   - Error: handshake failures, unsupported firmware, stream faults
//
// # Structured Logging
//
//	logging.Info("Gateway online",
//	    zap.String("port", "/dev/ttyACM0"),
//	    zap.Int("version", 167),
//	)
//
// # Protocol Logging
//
// Raw lines and decoded messages are logged at debug level with a direction:
//
//	logging.LogLine(logging.DirectionIn, "Z0E03020218F941123456000119602A2E")
//	logging.LogMessage(logging.DirectionOut, msg)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Tests can install their own logger, for example one built on
// zaptest/observer, with SetLogger.
//
// # Thread Safety
//
// The helpers are safe for concurrent use once the logger is installed.
// Initialize and SetLogger are meant to run before goroutines start.
package logging
