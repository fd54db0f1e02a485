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

package bufpool

import (
	"github.com/valyala/bytebufferpool"
)

// Acquire 从池中取出 buffer 使用完毕必须调用 Release 归还
func Acquire() *bytebufferpool.ByteBuffer {
	return bytebufferpool.Get()
}

// Release 归还 buffer 归还后不允许再持有其字节切片
func Release(buf *bytebufferpool.ByteBuffer) {
	bytebufferpool.Put(buf)
}
