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

//go:build !linux

package transport

import (
	"net"
	"time"
)

// applySocketSettings 非 Linux 平台仅应用 net 标准库能表达的部分
// 其余选项静默跳过
func applySocketSettings(conn *net.TCPConn, overrides map[string]int) error {
	nodelay := 1
	keepidle := 60
	if v, ok := overrides["TCP_NODELAY"]; ok {
		nodelay = v
	}
	if v, ok := overrides["TCP_KEEPIDLE"]; ok {
		keepidle = v
	}

	if err := conn.SetNoDelay(nodelay != 0); err != nil {
		return err
	}
	return conn.SetKeepAlivePeriod(time.Duration(keepidle) * time.Second)
}
