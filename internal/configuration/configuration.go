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

// Package configuration contains AutoCrane's configuration, read from
// environment variables.
package configuration

import (
	"os"
	"strconv"
	"strings"
	"time"

	autocraneerrors "github.com/timmydo/AutoCrane/pkg/autocrane/errors"
)

// LeaderLease is the fixed lease name used for leader election. It is not
// configurable.
const LeaderLease = "acleaderorchestrate"

const (
	defaultIterationSeconds               = 60
	defaultConsecutiveErrorLimit          = 5
	defaultWatchdogFailuresBeforeEviction = 3
)

// Data holds AutoCrane's runtime configuration.
type Data struct {
	// Namespaces is the set of namespaces the orchestrator reconciles.
	Namespaces []string

	// OperatorNamespace is where the manifest ConfigMap and the leader
	// election lease live.
	OperatorNamespace string

	// IterationSeconds is the control loop's fixed period.
	IterationSeconds int

	// ConsecutiveErrorLimit is the number of consecutive failed
	// iterations tolerated before the loop exits with code 2.
	ConsecutiveErrorLimit int

	// WatchdogFailuresBeforeEviction is the width, in iterations, of the
	// sliding failure window (W in the design).
	WatchdogFailuresBeforeEviction int
}

// newDefaultConfig returns a Data populated with every default value.
func newDefaultConfig() *Data {
	return &Data{
		IterationSeconds:               defaultIterationSeconds,
		ConsecutiveErrorLimit:          defaultConsecutiveErrorLimit,
		WatchdogFailuresBeforeEviction: defaultWatchdogFailuresBeforeEviction,
	}
}

// FromEnvironment builds a Data by reading AutoCrane's environment
// variables, falling back to defaults for anything unset, then validates
// it.
func FromEnvironment() (*Data, error) {
	config := newDefaultConfig()

	config.Namespaces = splitAndTrim(os.Getenv("AUTOCRANE_NAMESPACES"))
	config.OperatorNamespace = strings.TrimSpace(os.Getenv("AUTOCRANE_OPERATOR_NAMESPACE"))

	if v := os.Getenv("AUTOCRANE_ITERATION_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			config.IterationSeconds = parsed
		}
	}
	if v := os.Getenv("AUTOCRANE_CONSECUTIVE_ERROR_LIMIT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			config.ConsecutiveErrorLimit = parsed
		}
	}
	if v := os.Getenv("AUTOCRANE_WATCHDOG_FAILURES_BEFORE_EVICTION"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			config.WatchdogFailuresBeforeEviction = parsed
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the invariants the control loop depends on at startup.
func (d *Data) Validate() error {
	if len(d.Namespaces) == 0 {
		return autocraneerrors.ErrNoNamespaces
	}
	return nil
}

// IterationPeriod returns the configured loop period as a time.Duration.
func (d *Data) IterationPeriod() time.Duration {
	return time.Duration(d.IterationSeconds) * time.Second
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
