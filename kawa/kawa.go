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
	"github.com/valyala/bytebufferpool"

	"github.com/packetd/kawa/buffer"
	"github.com/packetd/kawa/common"
	"github.com/packetd/kawa/internal/bufpool"
)

// Kawa 协议无关的 HTTP 消息中间表示容器
//
// 持有 Buffer（逻辑上） Block 流 输出 gather-list 以及解析状态
// 驱动顺序由调用方决定 操作永不阻塞 两个 Kawa 实例完全独立
//
// 标准驱动循环
//
//	buf.Append / buf.ReadFrom
//	k.Parse                      解析增量输入 追加 Block
//	编辑 Block 流                Insert / Remove / SetHeader ...
//	k.Prepare                    将 Block 流排水成 gather-list
//	k.AsIOSlices                 取向量化写出视图
//	k.Consume(n)                 按实际写出字节收缩 gather-list
//	buf.Consume(k.LeftmostRef() - buf.Start())
//	若 buf.ShouldShift           k.Detach -> buf.Shift -> k.PushLeft(delta)
type Kawa struct {
	storage *buffer.Buffer
	role    Role

	blocks []Block // 已解析且未序列化的 Block 流
	out    []Store // 输出 gather-list 按 Block 流顺序

	cursor       int    // Buffer 相对偏移 下一个未解析字节
	written      uint64 // 已交付给写出方的总字节数
	kind         Kind
	state        ParserState
	phase        Phase
	err          error
	detached     bool
	splitCookies bool

	ownedBufs []*bytebufferpool.ByteBuffer
}

// New 创建并返回 *Kawa 实例
//
// 支持的 options
//
//	splitCookies: bool 将请求的 Cookie header 拆分为 Cookies Block 默认关闭
//	拆分后序列化为规范的 `k=v; k=v` 形式 与非规范输入不保证字节一致
func New(storage *buffer.Buffer, role Role, opts common.Options) *Kawa {
	splitCookies, _ := opts.GetBool("splitCookies")
	return &Kawa{
		storage:      storage,
		role:         role,
		splitCookies: splitCookies,
	}
}

// Storage 返回底层 Buffer
func (k *Kawa) Storage() *buffer.Buffer {
	return k.storage
}

// Role 返回解析方向
func (k *Kawa) Role() Role {
	return k.role
}

// Phase 返回当前解析阶段
func (k *Kawa) Phase() Phase {
	return k.phase
}

// Kind 返回 body 传输策略 END_HEADER 之前为 TransferUnset
func (k *Kawa) Kind() Kind {
	return k.kind
}

// Err 返回终止解析的协议错误 无错误时为 nil
func (k *Kawa) Err() error {
	return k.err
}

// Terminated 返回消息是否已完整解析
func (k *Kawa) Terminated() bool {
	return k.phase == PhaseTerminated
}

// Cursor 返回解析游标 即下一个未解析字节的 Buffer 相对偏移
func (k *Kawa) Cursor() int {
	return k.cursor
}

// Written 返回累计交付给写出方的字节数
func (k *Kawa) Written() uint64 {
	return k.written
}

// Detach 标记进入 detached 状态
//
// Buffer Shift 与 PushLeft 之间的窗口内所有 Slice 偏移失效
// 期间调用 Parse ParseEOF Prepare AsIOSlices 会触发断言
// SetHeader DeleteHeader 以及 Store.Data 不检查 detached 状态
func (k *Kawa) Detach() {
	k.detached = true
}

// Detached 返回是否处于 detached 状态
func (k *Kawa) Detached() bool {
	return k.detached
}

// assertAttached detached 期间解引用 Slice 属于调用方时序错误 直接断言
func (k *Kawa) assertAttached() {
	if k.detached {
		panic(newError("slice access while detached, call PushLeft first"))
	}
}

// Parse 从 Buffer 拉取字节驱动 HTTP/1 解析器 向 Block 流追加记录
//
// 返回时机为 输入耗尽 消息完整 或者协议错误 对空增量幂等
// 协议错误会置 phase 为 PhaseError 并终止后续解析
func (k *Kawa) Parse() error {
	k.assertAttached()
	return k.parseH1()
}

// ParseEOF 由调用方宣告输入 EOF
//
// Until-EOF 消息以此终结 body 已终结消息为幂等空操作
// 其余情况置 ErrUnexpectedEOF
func (k *Kawa) ParseEOF() error {
	k.assertAttached()
	return k.parseH1EOF()
}

// Prepare 将 Block 流中未序列化的后缀排水成 gather-list
//
// 可重复调用 每个 Block 仅序列化一次 编辑必须发生在 Prepare 之前
func (k *Kawa) Prepare() {
	k.assertAttached()
	for i := range k.blocks {
		k.serializeBlock(&k.blocks[i])
	}
	k.blocks = k.blocks[:0]
}

// AsIOSlices 返回 gather-list 的借用视图 适配向量化写出
//
// 视图指向 Buffer 字节 进程常量或者 Kawa 持有的堆字节
// 三者都必须存活到写出完成
func (k *Kawa) AsIOSlices() [][]byte {
	k.assertAttached()
	slices := make([][]byte, 0, len(k.out))
	for i := range k.out {
		slices = append(slices, k.out[i].Data(k.storage))
	}
	return slices
}

// Consume 按写出方实际消费的字节数收缩 gather-list 头部
//
// 跨越边界的 Store 整体丢弃 恰好落在中间的 Store 原地收缩
func (k *Kawa) Consume(n int) error {
	total := 0
	for i := range k.out {
		total += k.out[i].Len()
	}
	if n > total {
		return ErrConsumeOverflow
	}

	k.written += uint64(n)
	for n > 0 {
		head := &k.out[0]
		if n >= head.Len() {
			n -= head.Len()
			k.out = k.out[1:]
			continue
		}
		head.Trim(n)
		n = 0
	}
	return nil
}

// PendingBytes 返回 gather-list 中尚未写出的总字节数
func (k *Kawa) PendingBytes() int {
	total := 0
	for i := range k.out {
		total += k.out[i].Len()
	}
	return total
}

// LeftmostRef 返回仍被引用的最小 Buffer 相对偏移
//
// 统计范围为 gather-list 残余 Block 流以及解析游标
// 低于该水位的 Buffer 字节可以安全释放 无任何引用时即为解析游标
func (k *Kawa) LeftmostRef() int {
	min := k.cursor
	for i := range k.out {
		s := &k.out[i]
		if s.Kind() == StoreSlice && s.Len() > 0 && s.SliceStart() < min {
			min = s.SliceStart()
		}
	}
	for i := range k.blocks {
		if m := k.blocks[i].leftmost(); m != -1 && m < min {
			min = m
		}
	}
	return min
}

// PushLeft 将 Kawa 内所有 Slice 偏移整体左移 delta 并解除 detached
//
// Buffer Shift 之后的唯一合法后续操作
func (k *Kawa) PushLeft(delta int) {
	for i := range k.blocks {
		k.blocks[i].pushLeft(delta)
	}
	for i := range k.out {
		k.out[i].PushLeft(delta)
	}
	k.cursor -= delta
	k.detached = false
}

// Clear 重置为全新消息 保留底层容量与解析游标
//
// 游标保留是为了 keep-alive 场景下同一 Buffer 中的连续消息
func (k *Kawa) Clear() {
	k.blocks = k.blocks[:0]
	k.out = k.out[:0]
	k.written = 0
	k.kind = Kind{}
	k.state.reset()
	k.phase = PhaseStatusLine
	k.err = nil
	for _, bb := range k.ownedBufs {
		bufpool.Release(bb)
	}
	k.ownedBufs = k.ownedBufs[:0]
}

// Len 返回未序列化 Block 的数量
func (k *Kawa) Len() int {
	return len(k.blocks)
}

// Block 返回第 i 个未序列化 Block 的可变引用
func (k *Kawa) Block(i int) *Block {
	return &k.blocks[i]
}

// Insert 在位置 i 插入 Block
func (k *Kawa) Insert(i int, blk Block) {
	k.blocks = append(k.blocks, Block{})
	copy(k.blocks[i+1:], k.blocks[i:])
	k.blocks[i] = blk
}

// Remove 移除位置 i 的 Block
func (k *Kawa) Remove(i int) {
	k.blocks = append(k.blocks[:i], k.blocks[i+1:]...)
}

// append 解析器追加 Block 的唯一入口
func (k *Kawa) append(blk Block) {
	k.blocks = append(k.blocks, blk)
}

// SetHeader 覆写首个匹配 header 的取值 返回是否命中
//
// 缩短或者等长的编辑保持 Slice 原地完成 扩长退化为 Owned 分配
func (k *Kawa) SetHeader(name string, value []byte) bool {
	target := []byte(name)
	for i := range k.blocks {
		blk := &k.blocks[i]
		if blk.Kind != BlockHeader {
			continue
		}
		if equalFold(blk.Key.Data(k.storage), target) {
			blk.Val.Modify(k.storage, value)
			return true
		}
	}
	return false
}

// DeleteHeader 移除所有匹配的 header Block 返回移除数量
func (k *Kawa) DeleteHeader(name string) int {
	target := []byte(name)
	removed := 0
	kept := k.blocks[:0]
	for i := range k.blocks {
		blk := k.blocks[i]
		if blk.Kind == BlockHeader && equalFold(blk.Key.Data(k.storage), target) {
			removed++
			continue
		}
		kept = append(kept, blk)
	}
	k.blocks = kept
	return removed
}

// AddHeader 在 END_HEADER 标记之前插入新 header
//
// 键值字节写入池化的 Owned 存储 Clear 时统一归还
func (k *Kawa) AddHeader(name string, value []byte) {
	bb := bufpool.Acquire()
	bb.WriteString(name)
	bb.Write(value)
	k.ownedBufs = append(k.ownedBufs, bb)

	key := Store{kind: StoreOwned, b: bb.B[:len(name)]}
	val := Store{kind: StoreOwned, b: bb.B[len(name):]}
	blk := HeaderBlock(key, val)

	for i := range k.blocks {
		if k.blocks[i].Kind == BlockFlags && k.blocks[i].Flags.EndHeader {
			k.Insert(i, blk)
			return
		}
	}
	k.append(blk)
}
