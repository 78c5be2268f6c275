// Package logging provides structured logging for arbiter runs.
//
// [Logger] wraps log/slog and fans each record out to two sinks: a text
// handler for the operator's console and a JSON handler writing to a
// size-rotated file. The fan-out is done with github.com/samber/slog-multi.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying handlers and file.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(logging.Options{
//	    Dir:      "/var/log/arbiter",
//	    Level:    "INFO",
//	    Console:  os.Stderr,
//	    Rotation: logging.DefaultRotationConfig(),
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	tickLog := logger.WithRun(runID).WithTick(42)
//	tickLog.WithBehavior("lookAtBall").Debug("tracking", "pan", 6.375)
//
// # Reading Logs Back
//
// [ReadLogs] parses the JSON log file and [FilterLogs] narrows it by level,
// run, behavior or message. The `arbiter logs` command is built on them.
package logging
