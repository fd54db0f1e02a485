// Copyright 2025 The amqpwire Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/packetd/amqpwire/common"
)

var (
	connectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "transport_connects_total",
			Help:      "Transport successful connects total",
		},
	)

	bytesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "transport_read_bytes_total",
			Help:      "Transport read bytes total",
		},
	)

	bytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "transport_written_bytes_total",
			Help:      "Transport written bytes total",
		},
	)

	framesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "transport_received_frames_total",
			Help:      "Transport received frames total",
		},
	)

	framesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "transport_sent_frames_total",
			Help:      "Transport sent frames total",
		},
	)

	readTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "transport_read_timeouts_total",
			Help:      "Transport read timeouts total",
		},
	)
)
