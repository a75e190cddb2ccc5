package space

// logging functions

import (
	"os"

	"github.com/intuitivelabs/slog"
)

const (
	pDBG  = "DBG: space: "
	pWARN = "WARNING: space: "
	pERR  = "ERROR: space: "
	pBUG  = "BUG: space: "
)

// Runtime debug flag for segment/trim logging - controlled by SPACE_LOG_ALLOC env var.
var logAlloc = os.Getenv("SPACE_LOG_ALLOC") != ""

// Log is the package log. Debug output is enabled by SPACE_LOG_ALLOC.
var Log slog.Log = newLog()

func newLog() slog.Log {
	if logAlloc {
		return slog.New(slog.LDBG, slog.LbackTraceS|slog.LlocInfoS, slog.LStdErr)
	}
	return slog.New(slog.LERR, slog.LbackTraceS|slog.LlocInfoS, slog.LStdErr)
}

// DBGon is a shorthand for checking if logging at LDBG level is enabled.
func DBGon() bool {
	return Log.L(slog.LDBG)
}

// DBG is a shorthand for logging a debug message.
func DBG(f string, a ...interface{}) {
	Log.LLog(slog.LDBG, 1, pDBG, f, a...)
}

// WARNon is a shorthand for checking if logging at LWARN level is enabled.
func WARNon() bool {
	return Log.WARNon()
}

// WARN is a shorthand for logging a warning message.
func WARN(f string, a ...interface{}) {
	Log.LLog(slog.LWARN, 1, pWARN, f, a...)
}

// ERR is a shorthand for logging an error message.
func ERR(f string, a ...interface{}) {
	Log.LLog(slog.LERR, 1, pERR, f, a...)
}

// BUG is a shorthand for logging a bug message.
func BUG(f string, a ...interface{}) {
	Log.LLog(slog.LBUG, 1, pBUG, f, a...)
}
