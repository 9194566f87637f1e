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

package relay

import (
	"io"
	"net"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/packetd/kawa/buffer"
	"github.com/packetd/kawa/common"
	"github.com/packetd/kawa/kawa"
	"github.com/packetd/kawa/logger"
)

func newError(format string, args ...any) error {
	format = "relay: " + format
	return errors.Errorf(format, args...)
}

const (
	defaultBufferSize = 64 * 1024
	defaultReadChunk  = 4 * 1024
)

// EditRule 单条 header 编辑规则
//
// set 覆写首个同名 header del 删除所有同名 header add 在 END_HEADER 前插入
type EditRule struct {
	Op    string `config:"op"`
	Name  string `config:"name"`
	Value string `config:"value"`
}

func (r EditRule) validate() error {
	switch r.Op {
	case "set", "del", "add":
	default:
		return newError("unknown edit op (%s)", r.Op)
	}
	if r.Name == "" {
		return newError("edit rule requires name")
	}
	return nil
}

// Config Relay 配置
type Config struct {
	Role         string     `config:"role"` // request / response
	BufferSize   int        `config:"bufferSize"`
	ReadChunk    int        `config:"readChunk"`
	SplitCookies bool       `config:"splitCookies"`
	DumpBlocks   bool       `config:"dumpBlocks"`
	Edits        []EditRule `config:"edits"`
}

// Validate 校验配置 所有规则错误一次性聚合返回
func (c *Config) Validate() error {
	var errs error
	switch c.Role {
	case "", "request", "response":
	default:
		errs = multierror.Append(errs, newError("unknown role (%s)", c.Role))
	}
	for _, rule := range c.Edits {
		if err := rule.validate(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (c *Config) setDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.ReadChunk <= 0 {
		c.ReadChunk = defaultReadChunk
	}
}

// Relay 将 HTTP/1 字节流经由 Kawa IR 泵送到写出端
//
// 完整走一遍 IR 的标准驱动循环 解析 编辑 序列化 向量化写出
// 消费水位回收以及 Shift 加 PushLeft 的搬移协议
// 同一实例可处理输入流中 keep-alive 连续的多条消息
type Relay struct {
	cfg  Config
	role kawa.Role
}

// New 创建并返回 *Relay 实例
func New(cfg Config) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	role := kawa.RoleRequest
	if cfg.Role == "response" {
		role = kawa.RoleResponse
	}
	return &Relay{cfg: cfg, role: role}, nil
}

// Run 泵送 src 中的全部消息直到 EOF 或者错误
func (r *Relay) Run(src io.Reader, dst io.Writer) error {
	buf := buffer.New(r.cfg.BufferSize)
	opts := common.NewOptions()
	opts.Merge("splitCookies", r.cfg.SplitCookies)
	k := kawa.New(buf, r.role, opts)

	eof := false
	for {
		if !eof {
			n, err := buf.ReadFrom(src)
			bytesInTotal.Add(float64(n))
			switch {
			case err == io.EOF:
				eof = true
			case err != nil:
				return err
			}
		}

		if err := k.Parse(); err != nil {
			incParseError(r.cfg.Role)
			return err
		}

		r.applyEdits(k)
		if r.cfg.DumpBlocks {
			dumpBlocks(k)
		}

		k.Prepare()
		if err := flush(k, dst); err != nil {
			return err
		}

		// 回收不再被引用的输入前缀
		if err := buf.Consume(k.LeftmostRef() - buf.Start()); err != nil {
			return err
		}

		if k.Terminated() {
			incMessage(r.cfg.Role)
			k.Clear()
			if eof && buf.Filled() == k.Cursor() {
				return nil
			}
			continue
		}

		if eof {
			// 干净的消息边界上收到 EOF 属于正常收尾 不算消息中断
			if k.Phase() == kawa.PhaseStatusLine && buf.Filled() == k.Cursor() {
				return nil
			}
			if err := k.ParseEOF(); err != nil {
				incParseError(r.cfg.Role)
				return err
			}
			continue
		}

		if buf.ShouldShift(r.cfg.ReadChunk) {
			k.Detach()
			delta := buf.Shift()
			k.PushLeft(delta)
			logger.Debugf("relay shift buffer, delta=%d", delta)
		}
	}
}

// applyEdits 对当前未序列化的 Block 流应用编辑规则
//
// Prepare 会排空 Block 流 因此每个 Block 恰好被规则扫过一次
func (r *Relay) applyEdits(k *kawa.Kawa) {
	for _, rule := range r.cfg.Edits {
		switch rule.Op {
		case "set":
			k.SetHeader(rule.Name, []byte(rule.Value))
		case "del":
			k.DeleteHeader(rule.Name)
		case "add":
			if headerPending(k) {
				k.AddHeader(rule.Name, []byte(rule.Value))
			}
		}
	}
}

// headerPending 判断 header 区间是否尚在流中
//
// add 规则要求起始行与 END_HEADER 标记都还未排空 避免把 header
// 插进 body 或者 trailer 区间
func headerPending(k *kawa.Kawa) bool {
	seenStatus := false
	for i := 0; i < k.Len(); i++ {
		blk := k.Block(i)
		switch blk.Kind {
		case kawa.BlockStatusLine:
			seenStatus = true
		case kawa.BlockFlags:
			if blk.Flags.EndHeader && seenStatus {
				return true
			}
		}
	}
	return false
}

// flush 将 gather-list 全量写出 部分写出时按实际字节数收缩
func flush(k *kawa.Kawa, dst io.Writer) error {
	for {
		slices := k.AsIOSlices()
		if len(slices) == 0 {
			return nil
		}

		nb := net.Buffers(slices)
		n, err := nb.WriteTo(dst)
		if n > 0 {
			bytesOutTotal.Add(float64(n))
			if cerr := k.Consume(int(n)); cerr != nil {
				return cerr
			}
		}
		if err != nil {
			return err
		}
	}
}
