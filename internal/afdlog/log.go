// Package afdlog provides entity-first logging helpers used across the
// daemon, following the familiar Logf(obj, format, args...) convention.
package afdlog

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger is the subset of logrus.FieldLogger this package drives.
type Logger = logrus.FieldLogger

// std is the process-wide logger. Replace it in main() once the daemon
// config has been loaded (log level, output target).
var std Logger = logrus.StandardLogger()

// SetLogger swaps the process-wide logger, e.g. after reading the log
// level out of the daemon config.
func SetLogger(l Logger) {
	std = l
}

func entry(entity interface{}, format string, args []interface{}) string {
	return fmt.Sprintf("%v: %s", entity, fmt.Sprintf(format, args...))
}

// Debugf logs at debug level about entity.
func Debugf(entity interface{}, format string, args ...interface{}) {
	std.Debug(entry(entity, format, args))
}

// Infof logs at info level about entity.
func Infof(entity interface{}, format string, args ...interface{}) {
	std.Info(entry(entity, format, args))
}

// Warnf logs at warn level about entity.
func Warnf(entity interface{}, format string, args ...interface{}) {
	std.Warn(entry(entity, format, args))
}

// Errorf logs at error level about entity.
func Errorf(entity interface{}, format string, args ...interface{}) {
	std.Error(entry(entity, format, args))
}
