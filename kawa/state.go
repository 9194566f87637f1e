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

// Role 标识 Kawa 解析的方向
//
// 同一条 HTTP 链接的两个方向语法不同 每个方向各持有一个 Kawa 实例
type Role uint8

const (
	// RoleRequest 解析客户端发出的请求
	RoleRequest Role = iota

	// RoleResponse 解析服务端返回的响应
	RoleResponse
)

// Phase 解析所处的宏观阶段
type Phase uint8

const (
	PhaseStatusLine Phase = iota
	PhaseHeaders
	PhaseBody
	PhaseTrailers
	PhaseTerminated
	PhaseError
)

// Transfer body 的传输策略 在 END_HEADER 时刻裁决
type Transfer uint8

const (
	// TransferUnset header 尚未解析完毕
	TransferUnset Transfer = iota

	// TransferLength 固定长度 body 由 Content-Length 给出
	TransferLength

	// TransferChunked Transfer-Encoding 列表以 chunked 结尾
	TransferChunked

	// TransferUntilEOF 无边界 body 由调用方通过 ParseEOF 终结
	TransferUntilEOF
)

// Kind body 传输策略及其长度
type Kind struct {
	Transfer Transfer
	Length   uint64
}

// step 阶段内的细粒度状态
type step uint8

const (
	stepLine step = iota // 等待一个完整的 CRLF 行
	stepBody             // 固定长度或者 Until-EOF body 数据
	stepChunkData        // 读取当前 chunk 的剩余数据
	stepChunkCRLF        // chunk 数据之后强制的 CRLF
)

// ParserState 解析器的可恢复状态
//
// 所有字段均为计数或者 Buffer 相对偏移 输入在 token 中途耗尽时
// 解析器原样返回 下次调用从 Kawa 的 parse 游标处继续
// 偏移在 PushLeft 时随引用整体重定位 因此跨越 Shift 的 token 是安全的
type ParserState struct {
	step        step
	chunkRemain uint64 // 当前 chunk 还需读取的字节数
	bodyRemain  uint64 // TransferLength 下还需读取的字节数
	contentLen  uint64
	seenLength  bool // 已出现 Content-Length
	seenChunked bool // 已出现以 chunked 结尾的 Transfer-Encoding
	statusClass statusClass
}

// statusClass 用于 body 裁决的响应状态类别
type statusClass uint8

const (
	statusNormal statusClass = iota
	statusNoBody             // 1xx / 204 / 304 默认无 body
)

func (ps *ParserState) reset() {
	*ps = ParserState{}
}
