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

// BlockKind Block 的语义类别
type BlockKind uint8

const (
	// BlockStatusLine 请求行或者状态行
	BlockStatusLine BlockKind = iota

	// BlockHeader 单条 header 键值对
	BlockHeader

	// BlockCookies Cookie header 的有序键值对拆分 参见 RFC 6265
	BlockCookies

	// BlockChunkHeader chunked 传输的 chunk-size 行 仅 HTTP/1 有意义
	BlockChunkHeader

	// BlockChunk 当前 chunk 的一段连续数据 单个 chunk 可被拆成多个 Block
	BlockChunk

	// BlockFlags 上下文标记 让 Block 流自描述 序列化方无需额外状态
	BlockFlags
)

// Version HTTP 协议版本
type Version uint8

const (
	V10 Version = iota
	V11
	V20
)

// Flags 消息边界标记
type Flags struct {
	EndHeader bool
	EndChunk  bool
	EndBody   bool
	EndStream bool
}

// Pair Cookies Block 中的单个键值对
type Pair struct {
	Key Store
	Val Store
}

// StatusLine 请求行或状态行内容 IsRequest 区分两种形态
//
// 请求形态使用 Method/URI/Authority/Path 字段 URI 为完整目标
// 当 URI 为 absolute-form 时 Authority 与 Path 为进一步的分解视图
// 响应形态使用 Code/Reason 字段 Code 恒为三个 ASCII 数字
type StatusLine struct {
	IsRequest bool
	Version   Version
	Method    Store
	URI       Store
	Authority Store
	Path      Store
	Code      Store
	Reason    Store
}

// Block 有序 Block 流中的单条记录 按 Kind 取对应字段
type Block struct {
	Kind       BlockKind
	StatusLine StatusLine
	Key        Store // BlockHeader
	Val        Store // BlockHeader
	Pairs      []Pair
	SizeText   Store // BlockChunkHeader
	Data       Store // BlockChunk
	Flags      Flags
}

// RequestBlock 构造请求行 Block
func RequestBlock(version Version, method, uri, authority, path Store) Block {
	return Block{
		Kind: BlockStatusLine,
		StatusLine: StatusLine{
			IsRequest: true,
			Version:   version,
			Method:    method,
			URI:       uri,
			Authority: authority,
			Path:      path,
		},
	}
}

// ResponseBlock 构造状态行 Block
func ResponseBlock(version Version, code, reason Store) Block {
	return Block{
		Kind: BlockStatusLine,
		StatusLine: StatusLine{
			Version: version,
			Code:    code,
			Reason:  reason,
		},
	}
}

// HeaderBlock 构造 header Block
func HeaderBlock(key, val Store) Block {
	return Block{Kind: BlockHeader, Key: key, Val: val}
}

// CookiesBlock 构造 Cookies Block
func CookiesBlock(pairs []Pair) Block {
	return Block{Kind: BlockCookies, Pairs: pairs}
}

// ChunkHeaderBlock 构造 chunk-size Block sizeText 仅含十六进制数字
func ChunkHeaderBlock(sizeText Store) Block {
	return Block{Kind: BlockChunkHeader, SizeText: sizeText}
}

// ChunkBlock 构造 chunk 数据 Block
func ChunkBlock(data Store) Block {
	return Block{Kind: BlockChunk, Data: data}
}

// FlagsBlock 构造边界标记 Block
func FlagsBlock(f Flags) Block {
	return Block{Kind: BlockFlags, Flags: f}
}

// pushLeft 将 Block 内所有 Slice Store 整体左移
func (b *Block) pushLeft(delta int) {
	b.StatusLine.Method.PushLeft(delta)
	b.StatusLine.URI.PushLeft(delta)
	b.StatusLine.Authority.PushLeft(delta)
	b.StatusLine.Path.PushLeft(delta)
	b.StatusLine.Code.PushLeft(delta)
	b.StatusLine.Reason.PushLeft(delta)
	b.Key.PushLeft(delta)
	b.Val.PushLeft(delta)
	for i := range b.Pairs {
		b.Pairs[i].Key.PushLeft(delta)
		b.Pairs[i].Val.PushLeft(delta)
	}
	b.SizeText.PushLeft(delta)
	b.Data.PushLeft(delta)
}

// leftmost 返回 Block 内所有 Slice Store 的最小 start 无则返回 -1
func (b *Block) leftmost() int {
	min := -1
	visit := func(s Store) {
		if s.Kind() != StoreSlice || s.Len() == 0 {
			return
		}
		if min == -1 || s.SliceStart() < min {
			min = s.SliceStart()
		}
	}
	visit(b.StatusLine.Method)
	visit(b.StatusLine.URI)
	visit(b.StatusLine.Authority)
	visit(b.StatusLine.Path)
	visit(b.StatusLine.Code)
	visit(b.StatusLine.Reason)
	visit(b.Key)
	visit(b.Val)
	for i := range b.Pairs {
		visit(b.Pairs[i].Key)
		visit(b.Pairs[i].Val)
	}
	visit(b.SizeText)
	visit(b.Data)
	return min
}
