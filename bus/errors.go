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

package bus

import (
	"errors"
	"time"
)

// ErrRateLimited is returned by Publish when the sender has exceeded
// rate_limit_max messages within rate_limit_window_s. The
// message is not dead-lettered.
var ErrRateLimited = errors.New("bus: sender rate limited")

// ErrUnknownMessageType is returned by Publish for a MessageType outside
// the closed variant set.
var ErrUnknownMessageType = errors.New("bus: unknown message type")

// FailedMessage is the durable dead-letter record for a message that could
// not be delivered.
type FailedMessage struct {
	Message    Message   `json:"message"`
	Reason     string    `json:"reason"`
	RetryCount int       `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
}
