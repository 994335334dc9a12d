// Package logging is the reporting façade of memcore. It does not own a
// sink: hosts install their own *zap.Logger with SetLogger.
package logging

import (
	"fmt"
	"sync"

	"github.com/zeebo/errs/v2"
	"go.uber.org/zap"
)

var (
	mu     sync.Mutex
	logger *zap.Logger
)

// Logger returns the installed logger, or a no-op logger if none was set.
func Logger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// SetLogger installs l as the logger. A nil l restores the no-op logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// Violation is the panic value used when an invariant is violated.
type Violation struct {
	Msg string
	Err error
}

func (v *Violation) Error() string { return v.Err.Error() }
func (v *Violation) Unwrap() error { return v.Err }

// Fatal logs msg at error level and aborts the current operation by
// panicking with a *Violation.
func Fatal(msg string, fields ...zap.Field) {
	Logger().Error(msg, fields...)
	panic(&Violation{
		Msg: msg,
		Err: errs.Errorf("memcore: %s", msg),
	})
}

// Fatalf is Fatal with a formatted message and no fields.
func Fatalf(format string, args ...any) {
	Fatal(fmt.Sprintf(format, args...))
}

// Check calls Fatal with msg if cond is false.
func Check(cond bool, msg string, fields ...zap.Field) {
	if !cond {
		Fatal(msg, fields...)
	}
}

// debug enables Debugf output.
var debug = false

// SetDebug toggles Debugf output.
func SetDebug(on bool) { debug = on }

func Debugf(format string, args ...any) {
	if debug {
		Logger().Sugar().Debugf(format, args...)
	}
}
