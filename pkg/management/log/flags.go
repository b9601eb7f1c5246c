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

package log

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	controllerruntime "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Level names accepted by the --log-level flag.
const (
	ErrorLevelString = "error"
	InfoLevelString  = "info"
	DebugLevelString = "debug"

	// DefaultLevelString is used when --log-level is omitted or invalid.
	DefaultLevelString = InfoLevelString
)

var (
	logLevel       string
	logDestination string
)

// Flags bundles the command-line flags controlling logging.
type Flags struct {
	zapOptions zap.Options
}

// AddFlags binds the logging flags to the given flag set.
func (l *Flags) AddFlags(flags *pflag.FlagSet) {
	loggingFlagSet := &flag.FlagSet{}
	loggingFlagSet.StringVar(&logLevel, "log-level", DefaultLevelString,
		"the desired log level, one of error, info and debug")
	loggingFlagSet.StringVar(&logDestination, "log-destination", "",
		"where the log stream will be written; defaults to stderr")
	l.zapOptions.BindFlags(loggingFlagSet)
	flags.AddGoFlagSet(loggingFlagSet)
}

// ConfigureLogging builds the zap-backed logr.Logger honoring the flags
// parsed into l and installs it as both the process-wide AutoCrane logger
// and the controller-runtime logger used by the client libraries.
func (l *Flags) ConfigureLogging() {
	logger := zap.New(zap.UseFlagOptions(&l.zapOptions), withLevel, withDestination)

	switch logLevel {
	case ErrorLevelString, InfoLevelString, DebugLevelString:
	default:
		logger.Info("invalid log level, defaulting", "level", logLevel, "default", DefaultLevelString)
	}

	controllerruntime.SetLogger(logger)
	SetLogger(logger)
}

func levelFromString(l string) zapcore.Level {
	switch l {
	case ErrorLevelString:
		return zapcore.ErrorLevel
	case DebugLevelString:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func withLevel(in *zap.Options) {
	in.Level = levelFromString(logLevel)
}

func withDestination(in *zap.Options) {
	if logDestination == "" {
		return
	}

	logStream, err := os.OpenFile(logDestination, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600) //#nosec
	if err != nil {
		panic(fmt.Sprintf("cannot open log destination %v: %v", logDestination, err))
	}

	in.DestWriter = logStream
}
