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

// Package errors contains the sentinel errors AutoCrane returns or logs for
// configuration and terminal conditions, as opposed to ordinary transient
// failures.
package errors

import "errors"

// ErrNoNamespaces is returned at startup when the configured namespace list
// is empty. Fatal: the loop never starts.
var ErrNoNamespaces = errors.New("no namespaces configured")

// ErrLeaderTaskTerminated is observed by the control loop when the
// background leader-election task has completed. Terminal: the loop exits.
var ErrLeaderTaskTerminated = errors.New("leader election task terminated")

// ErrConsecutiveErrorLimitExceeded is raised once the loop's consecutive
// iteration-error counter exceeds the configured limit. Terminal.
var ErrConsecutiveErrorLimitExceeded = errors.New("consecutive error limit exceeded")
