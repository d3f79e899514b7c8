// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import "errors"

var (
	// ErrBlobKeyNotFound is returned by blob operations when a key is missing
	ErrBlobKeyNotFound = errors.New("blob key not found")

	// ErrBlobStoreUnavailable is returned when the blob store is closed
	ErrBlobStoreUnavailable = errors.New("blob store is unavailable")

	// ErrStopIteration may be returned by an iteration callback to end the
	// iteration without error
	ErrStopIteration = errors.New("stop iteration")
)
