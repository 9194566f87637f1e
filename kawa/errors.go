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

package kawa

import (
	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	format = "kawa: " + format
	return errors.Errorf(format, args...)
}

var (
	// ErrMalformedStartLine 起始行非法 版本 token 错误 状态码非数字 缺失 SP
	ErrMalformedStartLine = newError("malformed start line")

	// ErrMalformedHeader header 非法 name 含非 token 字符 缺失冒号
	// 过时的行折叠 或者 CR 之后未跟随 LF
	ErrMalformedHeader = newError("malformed header")

	// ErrConflictingLength 同时出现 Transfer-Encoding 与 Content-Length
	// 或者出现两个取值不同的 Content-Length
	ErrConflictingLength = newError("conflicting message length")

	// ErrBadChunkSize chunk-size 为空 非十六进制 或者大到不合理
	ErrBadChunkSize = newError("bad chunk size")

	// ErrBadChunkTrailer chunk 数据之后缺失 CRLF
	ErrBadChunkTrailer = newError("bad chunk trailer")

	// ErrUnexpectedEOF 消息中途收到 EOF 且 Kind 不为 Until-EOF
	ErrUnexpectedEOF = newError("unexpected eof")

	// ErrBufferFull 单个 token 超出 Buffer 容量 无法通过 Shift 继续
	ErrBufferFull = newError("buffer full with incomplete token")

	// ErrConsumeOverflow Consume 的字节数超过 gather-list 总长
	ErrConsumeOverflow = newError("consume exceeds pending output")
)
