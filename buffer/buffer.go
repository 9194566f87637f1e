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

package buffer

import (
	"io"

	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	format = "buffer: " + format
	return errors.Errorf(format, args...)
}

// Buffer 固定容量的连续字节区域
//
// 输入字节从尾部写入 从头部消费 提供三个单调游标（单位均为字节）
//
//	origin: index 0 所代表的全局偏移 仅在 Shift 时递增
//	start:  未消费数据的起点
//	filled: 有效数据的终点
//
// 任意时刻满足 0 <= start <= filled <= cap
//
// Buffer 对上层的切片引用一无所知 Shift 之后所有以相对偏移保存的引用
// 必须由持有方整体左移 参见 kawa.PushLeft
type Buffer struct {
	data   []byte
	origin uint64
	start  int
	filled int
}

// New 创建并返回容量为 capacity 的 *Buffer 实例
func New(capacity int) *Buffer {
	return &Buffer{
		data: make([]byte, capacity),
	}
}

// Capacity 返回最大容量
func (b *Buffer) Capacity() int {
	return len(b.data)
}

// Start 返回未消费数据的起始偏移
func (b *Buffer) Start() int {
	return b.start
}

// Filled 返回有效数据的结束偏移
func (b *Buffer) Filled() int {
	return b.filled
}

// Origin 返回 index 0 对应的全局偏移
func (b *Buffer) Origin() uint64 {
	return b.origin
}

// Available 返回尾部还可写入的字节数
func (b *Buffer) Available() int {
	return len(b.data) - b.filled
}

// Unconsumed 返回未消费的字节数
func (b *Buffer) Unconsumed() int {
	return b.filled - b.start
}

// Append 将 p 中至多 Available() 字节拷贝进尾部并返回写入数
//
// 写入不足时返回短计数 是否升级为 `header 超出容量` 之类的错误
// 由解析方判断 Buffer 本身不报错
func (b *Buffer) Append(p []byte) int {
	n := copy(b.data[b.filled:], p)
	b.filled += n
	return n
}

// ReadFrom 从 r 中读取数据填充尾部空间
//
// 尾部空间耗尽时 n 为 0 且 err 为 nil 由调用方决定 Shift 或者放弃
func (b *Buffer) ReadFrom(r io.Reader) (int, error) {
	if b.Available() == 0 {
		return 0, nil
	}
	n, err := r.Read(b.data[b.filled:])
	b.filled += n
	if err == io.EOF {
		return n, io.EOF
	}
	return n, err
}

// Consume 将 start 前移 n 字节 代表这段数据不再被任何引用
func (b *Buffer) Consume(n int) error {
	if n < 0 || n > b.filled-b.start {
		return newError("consume %d out of range [0, %d]", n, b.filled-b.start)
	}
	b.start += n
	return nil
}

// ShouldShift 判断是否应该执行 Shift 腾挪空间
//
// 策略为 start > 0 且（尾部空间不足 want 或者 start 已越过容量一半）
func (b *Buffer) ShouldShift(want int) bool {
	if b.start == 0 {
		return false
	}
	return b.Available() < want || b.start > len(b.data)/2
}

// Reserve 判断经过一次 Shift 之后能否再写入 n 字节
func (b *Buffer) Reserve(n int) bool {
	return len(b.data)-(b.filled-b.start) >= n
}

// Shift 将未消费数据整体搬移到 index 0 并返回搬移距离 delta
//
// 调用方在持有任何原始字节视图期间不允许 Shift
// Shift 之后必须先完成引用方的 PushLeft(delta) 才能继续读取切片
func (b *Buffer) Shift() int {
	delta := b.start
	if delta == 0 {
		return 0
	}
	copy(b.data, b.data[b.start:b.filled])
	b.filled -= delta
	b.start = 0
	b.origin += uint64(delta)
	return delta
}

// Bytes 返回 [start, start+length) 的借用视图 调用方不允许越过 filled
//
// 返回的字节为只读语义 任何修改必须通过持有该区间的引用方完成
func (b *Buffer) Bytes(start, length int) []byte {
	return b.data[start : start+length]
}
