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
	"github.com/packetd/kawa/buffer"
)

// StoreKind Store 的所有权标记
type StoreKind uint8

const (
	// StoreEmpty 零长度哨兵
	StoreEmpty StoreKind = iota

	// StoreSlice 指向 Buffer 当前地址空间的 (start, len) 引用
	// Buffer Shift 之后必须经过 PushLeft 整体重定位
	StoreSlice

	// StoreStatic 进程生命周期的只读常量 如 `": "` `"\r\n"` 等协议字面量
	StoreStatic

	// StoreOwned 由 Kawa 持有的堆上字节 编辑扩长时产生
	StoreOwned

	// StoreShared 调用方字节序列上的只读视图 拷贝 Store 即完成克隆
	// 常用于把某个 header 值复制到日志记录等场景
	StoreShared
)

// Store 带所有权标记的字节区间句柄
//
// Slice 只保存 Buffer 相对偏移而非裸指针 因为 Buffer 可能 Shift 搬移
// 读取时必须回到 Buffer 取借用视图
type Store struct {
	kind  StoreKind
	start int
	len   int
	b     []byte
}

// NewSlice 创建 Buffer 引用型 Store
func NewSlice(start, length int) Store {
	return Store{kind: StoreSlice, start: start, len: length}
}

// NewStatic 创建进程常量型 Store p 必须在进程生命周期内只读
func NewStatic(p []byte) Store {
	return Store{kind: StoreStatic, b: p}
}

// NewOwned 创建堆持有型 Store 会拷贝一份 p
func NewOwned(p []byte) Store {
	return Store{kind: StoreOwned, b: append([]byte(nil), p...)}
}

// NewShared 创建共享视图型 Store 直接引用 p[start:start+length]
func NewShared(p []byte, start, length int) Store {
	return Store{kind: StoreShared, b: p[start : start+length]}
}

// Kind 返回所有权标记
func (s Store) Kind() StoreKind {
	return s.kind
}

// Len 返回字节长度
func (s Store) Len() int {
	if s.kind == StoreSlice {
		return s.len
	}
	return len(s.b)
}

// SliceStart 返回 Slice 的起始偏移 其余变体恒为 0
func (s Store) SliceStart() int {
	if s.kind == StoreSlice {
		return s.start
	}
	return 0
}

// Data 返回借用的字节内容
//
// Slice 变体回到 Buffer 取视图 调用期间不允许 Shift
func (s Store) Data(buf *buffer.Buffer) []byte {
	if s.kind == StoreSlice {
		return buf.Bytes(s.start, s.len)
	}
	return s.b
}

// Modify 用 p 覆写当前内容
//
// 当且仅当变体为 Slice 且 len(p) <= Len() 时原地覆写并收缩长度 保持零拷贝
// 等长编辑同样原地完成 否则退化为一次 Owned 分配
func (s *Store) Modify(buf *buffer.Buffer, p []byte) {
	if s.kind == StoreSlice && len(p) <= s.len {
		copy(buf.Bytes(s.start, s.len), p)
		s.len = len(p)
		return
	}
	*s = NewOwned(p)
}

// PushLeft 将 Slice 起点左移 delta
//
// 调用方必须保证 delta 不超过任何存活 Slice 的 start
func (s *Store) PushLeft(delta int) {
	if s.kind == StoreSlice {
		s.start -= delta
	}
}

// Trim 丢弃头部 k 字节 用于部分写出后的收缩
func (s *Store) Trim(k int) {
	if s.kind == StoreSlice {
		s.start += k
		s.len -= k
		return
	}
	s.b = s.b[k:]
}
