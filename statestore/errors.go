// Copyright 2025 AxonFlow
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

package statestore

import "errors"

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("statestore: key not found")

// StoreError wraps a backend failure with the operation and key that
// triggered it, following the same ConnectorError shape the rest of the
// platform uses for external-capability errors.
type StoreError struct {
	Operation string
	Key       string
	Cause     error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return "statestore." + e.Operation + "(" + e.Key + "): " + e.Cause.Error()
	}
	return "statestore." + e.Operation + ": " + e.Cause.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

func newStoreError(op, key string, cause error) *StoreError {
	return &StoreError{Operation: op, Key: key, Cause: cause}
}
