// Copyright 2025 The packetd Authors
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

// Acquire 从池中取出一个空 ByteBuffer
//
// 持有方写入完毕后其 B 字段可被切片引用 引用存活期间不允许 Release
func Acquire() *bytebufferpool.ByteBuffer {
	return bytebufferpool.Get()
}

// Release 归还 ByteBuffer 归还后禁止再触碰任何由其派生的切片
func Release(b *bytebufferpool.ByteBuffer) {
	bytebufferpool.Put(b)
}
