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

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentctl_bus_messages_published_total",
		Help: "Messages accepted by Publish, by message type.",
	}, []string{"message_type"})

	rateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentctl_bus_publish_rate_limited_total",
		Help: "Publish calls refused by the per-sender rate limit.",
	})

	deadLetteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentctl_bus_messages_dead_lettered_total",
		Help: "Messages routed to the failed:messages stream.",
	})

	broadcastsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentctl_bus_broadcasts_total",
		Help: "Department-wide broadcast fan-outs performed.",
	})
)

func init() {
	prometheus.MustRegister(publishedTotal, rateLimitedTotal, deadLetteredTotal, broadcastsTotal)
}
