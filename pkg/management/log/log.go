/*
Copyright The AutoCrane Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package log contains the logging subsystem used across AutoCrane.
package log

import (
	"github.com/go-logr/logr"
)

// Log is the logger used by every AutoCrane component that does not carry
// its own named child logger.
var Log logr.Logger = logr.Discard()

// SetLogger sets the backing logr implementation.
func SetLogger(logger logr.Logger) {
	Log = logger
}

// WithName returns a named child of Log, the way every AutoCrane component
// identifies itself in structured log output.
func WithName(name string) logr.Logger {
	return Log.WithName(name)
}

// WithValues returns a child of Log carrying the given key/value pairs.
func WithValues(keysAndValues ...interface{}) logr.Logger {
	return Log.WithValues(keysAndValues...)
}

// Info logs a message at the info level on Log.
func Info(msg string, keysAndValues ...interface{}) {
	Log.Info(msg, keysAndValues...)
}

// Error logs a message at the error level on Log.
func Error(err error, msg string, keysAndValues ...interface{}) {
	Log.Error(err, msg, keysAndValues...)
}

// Warning logs a message as info with a "warning" marker: logr has no
// dedicated warning level, so AutoCrane follows the same convention the
// rest of the ecosystem uses for logr-backed loggers.
func Warning(msg string, keysAndValues ...interface{}) {
	Log.WithValues(keysAndValues...).Info("warning: " + msg)
}
