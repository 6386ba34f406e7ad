/*
Package log provides structured logging for Grain using zerolog.

The log package wraps the zerolog library to provide JSON-structured
logging with component-specific loggers, configurable log levels, and
helper functions for common logging patterns. All logs include
timestamps and support filtering by severity level.

# Architecture

A single package-level zerolog.Logger is initialized once via log.Init
and shared by every Grain package. Child loggers add well-known context
fields so log lines can be filtered by subsystem:

  - WithComponent("event-store"), WithComponent("pubsub"), ...
  - WithProcessor("todo/send-welcome-email")
  - WithCommand("example/create-counter")
  - WithQuery("example/counter-value")
  - WithEventType("example/counter-created")

# Log Levels

  - Debug: per-event trace output (delivery, fold steps); development only
  - Info: lifecycle messages (store opened, processor started)
  - Warn: recoverable oddities (snapshot decode failure forcing a rebuild)
  - Error: handler failures, storage errors
  - Fatal: unrecoverable startup errors; exits the process

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Structured logging:

	logger := log.WithComponent("todo")
	logger.Error().
		Err(err).
		Str("event_type", ev.Type).
		Msg("Handler returned anomaly")

JSON output (production):

	{"level":"error","component":"todo","event_type":"example/counter-created","time":"2026-08-24T10:30:00Z","message":"Handler returned anomaly"}

Console output (development):

	10:30:00 ERR Handler returned anomaly component=todo event_type=example/counter-created

# Best Practices

Do:
  - Use Info level in production
  - Create component-specific child loggers
  - Log errors with .Err() to keep the cause chain
  - Use typed fields (.Str, .Int) rather than string interpolation

Don't:
  - Log event bodies at Info level (they may carry user data)
  - Log in per-event hot paths above Debug

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - pkg/metrics for the numeric side of observability
*/
package log
