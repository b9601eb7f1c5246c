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

// Package clock provides an injectable source of the current time, so the
// control loop and its tests never call time.Now directly.
package clock

import "time"

// Clock is a source of the current time.
type Clock interface {
	// Now returns the current time, as unix seconds.
	Now() int64
}

// System is the production Clock, backed by the wall clock.
type System struct{}

// Now returns time.Now().Unix().
func (System) Now() int64 {
	return time.Now().Unix()
}

// Fake is a Clock with a settable time, for tests.
type Fake struct {
	Current int64
}

// Now returns the fake's current time.
func (f *Fake) Now() int64 {
	return f.Current
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.Current += int64(d.Seconds())
}
