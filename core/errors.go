/* Copyright 2026 The Coxswain Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import "errors"

var (
	// ErrBadInterval is reported when a timer operation carries a
	// non-positive interval.
	ErrBadInterval = errors.New("non-positive timer interval")

	// ErrNotStarted is returned by Send before Start.
	ErrNotStarted = errors.New("store not started")

	// ErrStopped is returned by Send after the store loop has exited.
	ErrStopped = errors.New("store stopped")
)
