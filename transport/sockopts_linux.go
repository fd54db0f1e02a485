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
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// defaultSocketSettings 默认 TCP 选项 USER_TIMEOUT 单位 ms
var defaultSocketSettings = map[string]int{
	"TCP_NODELAY":      1,
	"TCP_USER_TIMEOUT": 1000,
	"TCP_KEEPIDLE":     60,
	"TCP_KEEPINTVL":    10,
	"TCP_KEEPCNT":      9,
}

var tcpOptNames = map[string]int{
	"TCP_NODELAY":      unix.TCP_NODELAY,
	"TCP_USER_TIMEOUT": unix.TCP_USER_TIMEOUT,
	"TCP_KEEPIDLE":     unix.TCP_KEEPIDLE,
	"TCP_KEEPINTVL":    unix.TCP_KEEPINTVL,
	"TCP_KEEPCNT":      unix.TCP_KEEPCNT,
	"TCP_MAXSEG":       unix.TCP_MAXSEG,
	"TCP_QUICKACK":     unix.TCP_QUICKACK,
}

// applySocketSettings 在默认表上合并调用方覆盖后逐项下发
func applySocketSettings(conn *net.TCPConn, overrides map[string]int) error {
	settings := make(map[string]int, len(defaultSocketSettings))
	for name, val := range defaultSocketSettings {
		settings[name] = val
	}
	for name, val := range overrides {
		settings[name] = val
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		return errors.Wrap(err, "raw conn")
	}

	var optErr error
	ctlErr := raw.Control(func(fd uintptr) {
		for name, val := range settings {
			opt, ok := tcpOptNames[name]
			if !ok {
				optErr = errors.Errorf("unknown tcp option %q", name)
				return
			}
			if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, opt, val); err != nil {
				optErr = errors.Wrapf(err, "setsockopt %s=%d", name, val)
				return
			}
		}
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			optErr = errors.Wrap(err, "setsockopt SO_KEEPALIVE")
		}
	})
	if ctlErr != nil {
		return errors.Wrap(ctlErr, "sockopt control")
	}
	return optErr
}
