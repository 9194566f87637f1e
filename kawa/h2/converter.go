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

package h2

import (
	"bytes"

	fasthttp2 "github.com/dgrr/http2"
	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/packetd/kawa/internal/bufpool"
	"github.com/packetd/kawa/kawa"
)

func newError(format string, args ...any) error {
	format = "kawa/h2: " + format
	return errors.Errorf(format, args...)
}

var (
	charMethod    = []byte(":method")
	charScheme    = []byte(":scheme")
	charPath      = []byte(":path")
	charAuthority = []byte(":authority")
	charStatus    = []byte(":status")
	charCookie    = []byte("cookie")
	charHost      = []byte("Host")
	charHTTP      = []byte("http")
)

// HTTP/1 的链接级 header 在 HTTP/2 中没有对应语义 映射时整体剔除
//
// RFC 7540:
//  HTTP/2 does not use the Connection header field [...] an intermediary
//  transforming an HTTP/1.x message to HTTP/2 will need to remove any header
//  fields nominated by the Connection header field, along with the Connection
//  header field itself.
var connectionHeaders = map[string]struct{}{
	"connection":        {},
	"keep-alive":        {},
	"proxy-connection":  {},
	"transfer-encoding": {},
	"upgrade":           {},
	"te":                {},
	"host":              {}, // host 转换为 :authority 伪头部
}

// Payload Block 流到 HTTP/2 帧载荷的映射结果
//
// Headers / Trailers 为 HPACK 编码后的 header block fragment
// Data 为 DATA 帧载荷的零拷贝视图 Buffer Shift 之前必须完成使用
// 帧头封装与流控由外层的 HTTP/2 帧层负责 不在本包范围
type Payload struct {
	Headers   []byte
	Data      [][]byte
	Trailers  []byte
	EndStream bool
}

// Converter 将已解析的 Block 流映射成 HTTP/2 载荷
//
// HPACK 编码器为单条链接维度的状态 多条消息可复用同一实例
// 销毁时必须调用 Release 归还资源
type Converter struct {
	hpack *fasthttp2.HPACK
}

// NewConverter 创建并返回 *Converter 实例
func NewConverter() *Converter {
	return &Converter{
		hpack: fasthttp2.AcquireHPACK(),
	}
}

// Release 归还 *HPACK 资源
func (c *Converter) Release() {
	c.hpack.Reset()
	fasthttp2.ReleaseHPACK(c.hpack)
}

// Convert 映射单条完整消息 要求 Kawa 已处于 Terminated 阶段
//
// 映射规则
//
//	请求行 -> :method / :scheme / :authority / :path 伪头部
//	状态行 -> :status 伪头部
//	Header / Cookies -> header field name 统一小写 Cookie 逐对拆分
//	ChunkHeader 与 end_chunk 标记 -> 丢弃
//	Chunk -> DATA 载荷
//	end_stream -> EndStream
func (c *Converter) Convert(k *kawa.Kawa) (*Payload, error) {
	if !k.Terminated() {
		return nil, newError("message not terminated, phase=%d", k.Phase())
	}

	scratch := bufpool.Acquire()
	defer bufpool.Release(scratch)

	buf := k.Storage()
	pl := &Payload{}
	hf := &fasthttp2.HeaderField{}
	hdrs := &fasthttp2.Headers{}

	// AppendHeaderField 不对 field 建立动态表索引 编码结果与链接历史无关
	appendField := func(dst []byte, name, value []byte) []byte {
		hf.Reset()
		hf.SetKeyBytes(name)
		hf.SetValueBytes(value)
		hdrs.Reset()
		hdrs.AppendHeaderField(c.hpack, hf, false)
		return append(dst, hdrs.Headers()...)
	}

	inTrailers := false
	for i := 0; i < k.Len(); i++ {
		blk := k.Block(i)
		switch blk.Kind {
		case kawa.BlockStatusLine:
			var err error
			pl.Headers, err = convertStatusLine(k, &blk.StatusLine, appendField)
			if err != nil {
				return nil, err
			}

		case kawa.BlockHeader:
			name := lowerName(scratch, blk.Key.Data(buf))
			if _, ok := connectionHeaders[string(name)]; ok {
				continue
			}
			if inTrailers {
				pl.Trailers = appendField(pl.Trailers, name, blk.Val.Data(buf))
			} else {
				pl.Headers = appendField(pl.Headers, name, blk.Val.Data(buf))
			}

		case kawa.BlockCookies:
			// RFC 7540 8.1.2.5 cookie 允许拆分成多个 field 以提升压缩率
			for j := range blk.Pairs {
				mark := len(scratch.B)
				scratch.Write(blk.Pairs[j].Key.Data(buf))
				if blk.Pairs[j].Val.Kind() != kawa.StoreEmpty {
					scratch.WriteByte('=')
					scratch.Write(blk.Pairs[j].Val.Data(buf))
				}
				pl.Headers = appendField(pl.Headers, charCookie, scratch.B[mark:])
			}

		case kawa.BlockChunk:
			data := blk.Data.Data(buf)
			if len(data) > 0 {
				pl.Data = append(pl.Data, data)
			}

		case kawa.BlockFlags:
			if blk.Flags.EndBody {
				inTrailers = true
			}
			if blk.Flags.EndStream {
				pl.EndStream = true
			}

		case kawa.BlockChunkHeader:
			// HTTP/2 无 chunked 概念 丢弃
		}
	}
	return pl, nil
}

// convertStatusLine 映射请求行或状态行为伪头部
func convertStatusLine(
	k *kawa.Kawa, sl *kawa.StatusLine, appendField func(dst, name, value []byte) []byte,
) ([]byte, error) {
	buf := k.Storage()
	var dst []byte

	if !sl.IsRequest {
		code := sl.Code.Data(buf)
		if len(code) != 3 {
			return nil, newError("invalid status code")
		}
		return appendField(dst, charStatus, code), nil
	}

	uri := sl.URI.Data(buf)
	dst = appendField(dst, charMethod, sl.Method.Data(buf))
	dst = appendField(dst, charScheme, schemeOf(uri))

	if authority := lookupAuthority(k, sl); len(authority) > 0 {
		dst = appendField(dst, charAuthority, authority)
	}

	path := uri
	if sl.Path.Kind() != kawa.StoreEmpty {
		path = sl.Path.Data(buf)
	}
	dst = appendField(dst, charPath, path)
	return dst, nil
}

// schemeOf absolute-form 从 URI 前缀提取 scheme 否则默认 http
func schemeOf(uri []byte) []byte {
	idx := bytes.Index(uri, []byte("://"))
	if idx > 0 {
		return uri[:idx]
	}
	return charHTTP
}

// lookupAuthority 优先取 absolute-form 分解出的 authority 回退到 Host header
func lookupAuthority(k *kawa.Kawa, sl *kawa.StatusLine) []byte {
	buf := k.Storage()
	if sl.Authority.Kind() != kawa.StoreEmpty && sl.Authority.Len() > 0 {
		return sl.Authority.Data(buf)
	}

	for i := 0; i < k.Len(); i++ {
		blk := k.Block(i)
		if blk.Kind != kawa.BlockHeader {
			continue
		}
		if bytes.EqualFold(blk.Key.Data(buf), charHost) {
			return blk.Val.Data(buf)
		}
	}
	return nil
}

// lowerName 在 scratch 中生成 name 的 ASCII 小写副本
func lowerName(scratch *bytebufferpool.ByteBuffer, name []byte) []byte {
	mark := len(scratch.B)
	for _, c := range name {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		scratch.B = append(scratch.B, c)
	}
	return scratch.B[mark:]
}
