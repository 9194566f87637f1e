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
	"bytes"
)

// HTTP/1 增量识别器
//
// 识别器按字节寻址 所有状态为计数或者 Buffer 相对偏移
// 输入在 token 中途耗尽时返回 needmore（nil） 下次调用从游标处恢复
// 实现为 (bytes, state) -> (state, blocks, verdict) 的纯状态机 无内部调度

// parseH1 驱动状态机直到输入耗尽 消息完整或者协议错误
func (k *Kawa) parseH1() error {
	for {
		switch k.phase {
		case PhaseStatusLine:
			if done, err := k.parseStatusLine(); done || err != nil {
				return err
			}

		case PhaseHeaders:
			if done, err := k.parseHeaderLine(); done || err != nil {
				return err
			}

		case PhaseBody:
			if done, err := k.parseBody(); done || err != nil {
				return err
			}

		case PhaseTrailers:
			if done, err := k.parseTrailerLine(); done || err != nil {
				return err
			}

		case PhaseTerminated:
			return nil

		case PhaseError:
			return k.err
		}
	}
}

// parseH1EOF 处理调用方宣告的输入 EOF
func (k *Kawa) parseH1EOF() error {
	switch k.phase {
	case PhaseTerminated:
		return nil

	case PhaseError:
		return k.err

	case PhaseBody:
		if k.kind.Transfer == TransferUntilEOF {
			k.append(FlagsBlock(Flags{EndBody: true, EndStream: true}))
			k.phase = PhaseTerminated
			return nil
		}
	}
	return k.fail(ErrUnexpectedEOF)
}

// fail 进入终止错误态 不做任何恢复尝试 由调用方裁决后续处理
func (k *Kawa) fail(err error) error {
	k.err = err
	k.phase = PhaseError
	return err
}

// peekLine 在 [cursor, filled) 中定位下一个完整的 CRLF 行
//
// 返回的 (start, end) 为去除 CRLF 后的行内容区间 ok 为 false 代表 needmore
// 整行无法进入 Buffer 且无法通过 Shift 腾挪时升级为 ErrBufferFull
func (k *Kawa) peekLine() (start, end int, ok bool, err error) {
	buf := k.storage
	avail := buf.Filled() - k.cursor
	b := buf.Bytes(k.cursor, avail)

	idx := bytes.IndexByte(b, '\n')
	if idx == -1 {
		if buf.Available() == 0 && k.cursor == 0 {
			return 0, 0, false, ErrBufferFull
		}
		return 0, 0, false, nil
	}
	if idx == 0 || b[idx-1] != '\r' {
		return 0, 0, false, ErrMalformedHeader
	}
	return k.cursor, k.cursor + idx - 1, true, nil
}

// parseStatusLine 解析请求行或者状态行
func (k *Kawa) parseStatusLine() (bool, error) {
	start, end, ok, err := k.peekLine()
	if err != nil {
		if err == ErrMalformedHeader {
			err = ErrMalformedStartLine
		}
		return true, k.fail(err)
	}
	if !ok {
		return true, nil
	}

	line := k.storage.Bytes(start, end-start)
	if k.role == RoleRequest {
		err = k.parseRequestLine(line, start)
	} else {
		err = k.parseResponseLine(line, start)
	}
	if err != nil {
		return true, k.fail(err)
	}

	k.cursor = end + 2
	k.phase = PhaseHeaders
	return false, nil
}

// parseRequestLine Method SP URI SP Version
//
// Method 不做集合校验 未知方法原样以 Slice 接受
func (k *Kawa) parseRequestLine(line []byte, start int) error {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return ErrMalformedStartLine
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 <= 0 {
		return ErrMalformedStartLine
	}

	uriStart := start + sp1 + 1
	uri := rest[:sp2]
	version, err := parseVersion(rest[sp2+1:])
	if err != nil {
		return err
	}

	authority, path := splitURI(uri, uriStart)
	k.append(RequestBlock(
		version,
		NewSlice(start, sp1),
		NewSlice(uriStart, sp2),
		authority,
		path,
	))
	return nil
}

// splitURI absolute-form 分解出 authority 与 path 否则 path 即整个 URI
func splitURI(uri []byte, uriStart int) (authority, path Store) {
	idx := bytes.Index(uri, []byte("://"))
	if idx == -1 {
		return Store{}, NewSlice(uriStart, len(uri))
	}

	rest := uri[idx+3:]
	restStart := uriStart + idx + 3
	slash := bytes.IndexByte(rest, '/')
	if slash == -1 {
		return NewSlice(restStart, len(rest)), Store{}
	}
	return NewSlice(restStart, slash), NewSlice(restStart+slash, len(rest)-slash)
}

// parseResponseLine Version SP 3-digit SP Reason Reason 允许为空
func (k *Kawa) parseResponseLine(line []byte, start int) error {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return ErrMalformedStartLine
	}
	version, err := parseVersion(line[:sp1])
	if err != nil {
		return err
	}

	codeStart := sp1 + 1
	if len(line) < codeStart+3 {
		return ErrMalformedStartLine
	}
	code := line[codeStart : codeStart+3]
	for _, c := range code {
		if c < '0' || c > '9' {
			return ErrMalformedStartLine
		}
	}

	// 状态码之后要么直接结行 要么 SP 加原因短语
	// 两种空 Reason 形态以 Store 变体区分 保证序列化字节保真
	var reason Store
	switch {
	case len(line) == codeStart+3:
		reason = Store{}
	case line[codeStart+3] == ' ':
		reason = NewSlice(start+codeStart+4, len(line)-codeStart-4)
	default:
		return ErrMalformedStartLine
	}

	if code[0] == '1' || bytes.Equal(code, []byte("204")) || bytes.Equal(code, []byte("304")) {
		k.state.statusClass = statusNoBody
	}

	k.append(ResponseBlock(version, NewSlice(start+codeStart, 3), reason))
	return nil
}

func parseVersion(p []byte) (Version, error) {
	switch {
	case bytes.Equal(p, charHTTP11):
		return V11, nil
	case bytes.Equal(p, charHTTP10):
		return V10, nil
	}
	return 0, ErrMalformedStartLine
}

// parseHeaderLine 解析单条 header 空行代表 END_HEADER
func (k *Kawa) parseHeaderLine() (bool, error) {
	start, end, ok, err := k.peekLine()
	if err != nil {
		return true, k.fail(err)
	}
	if !ok {
		return true, nil
	}

	if start == end {
		k.cursor = end + 2
		return false, k.endHeader()
	}

	line := k.storage.Bytes(start, end-start)
	if err := k.parseHeaderField(line, start, true); err != nil {
		return true, k.fail(err)
	}
	k.cursor = end + 2
	return false, nil
}

// parseHeaderField name ":" OWS value OWS 行折叠直接拒绝
//
// bookkeeping 为 true 时维护 body 裁决所需的 header 记账
func (k *Kawa) parseHeaderField(line []byte, start int, bookkeeping bool) error {
	if line[0] == ' ' || line[0] == '\t' {
		return ErrMalformedHeader
	}
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return ErrMalformedHeader
	}
	name := line[:colon]
	if !isToken(name) {
		return ErrMalformedHeader
	}

	raw := line[colon+1:]
	val := trimOWS(raw)
	valStart := start + colon + 1 + leadingOWS(raw)

	if bookkeeping {
		if err := k.bookkeepHeader(name, val); err != nil {
			return err
		}
		if k.splitCookies && k.role == RoleRequest && equalFold(name, bytesCookie) {
			k.append(CookiesBlock(splitCookiePairs(val, valStart)))
			return nil
		}
	}

	k.append(HeaderBlock(
		NewSlice(start, colon),
		NewSlice(valStart, len(val)),
	))
	return nil
}

func leadingOWS(p []byte) int {
	n := 0
	for n < len(p) && (p[n] == ' ' || p[n] == '\t') {
		n++
	}
	return n
}

// bookkeepHeader 维护 Content-Length / Transfer-Encoding 记账
func (k *Kawa) bookkeepHeader(name, val []byte) error {
	switch {
	case equalFold(name, bytesContentLength):
		n, ok := parseDecUint(val)
		if !ok {
			return ErrMalformedHeader
		}
		if k.state.seenLength && n != k.state.contentLen {
			return ErrConflictingLength
		}
		k.state.seenLength = true
		k.state.contentLen = n

	case equalFold(name, bytesTransferEncoding):
		if equalFold(lastListElem(val), bytesChunked) {
			k.state.seenChunked = true
		}
	}
	return nil
}

// splitCookiePairs 按 RFC 6265 将 cookie-string 拆成有序键值对
//
// 无 `=` 的段以 Empty Store 作为 Val 序列化时只回写键名
func splitCookiePairs(val []byte, valStart int) []Pair {
	var pairs []Pair
	off := 0
	for off <= len(val) {
		seg := val[off:]
		segLen := bytes.IndexByte(seg, ';')
		if segLen == -1 {
			segLen = len(seg)
		}
		item := seg[:segLen]
		itemStart := valStart + off + leadingOWS(item)
		item = trimOWS(item)

		if len(item) > 0 {
			eq := bytes.IndexByte(item, '=')
			if eq == -1 {
				pairs = append(pairs, Pair{Key: NewSlice(itemStart, len(item))})
			} else {
				pairs = append(pairs, Pair{
					Key: NewSlice(itemStart, eq),
					Val: NewSlice(itemStart+eq+1, len(item)-eq-1),
				})
			}
		}
		off += segLen + 1
	}
	return pairs
}

// endHeader END_HEADER 时刻裁决 body 传输策略
func (k *Kawa) endHeader() error {
	st := &k.state
	switch {
	case st.seenChunked && st.seenLength:
		// 请求同时携带两种长度语义属于走私风险 响应以 chunked 为准
		if k.role == RoleRequest {
			return k.fail(ErrConflictingLength)
		}
		k.kind = Kind{Transfer: TransferChunked}

	case st.seenChunked:
		k.kind = Kind{Transfer: TransferChunked}

	case st.seenLength:
		k.kind = Kind{Transfer: TransferLength, Length: st.contentLen}

	case k.role == RoleResponse && st.statusClass != statusNoBody:
		k.kind = Kind{Transfer: TransferUntilEOF}

	default:
		k.kind = Kind{Transfer: TransferLength}
	}

	noBody := k.kind.Transfer == TransferLength && k.kind.Length == 0
	k.append(FlagsBlock(Flags{EndHeader: true, EndStream: noBody}))
	if noBody {
		k.phase = PhaseTerminated
		return nil
	}

	k.phase = PhaseBody
	switch k.kind.Transfer {
	case TransferLength:
		st.step = stepBody
		st.bodyRemain = k.kind.Length
	case TransferChunked:
		st.step = stepLine
	default:
		st.step = stepBody
	}
	return nil
}

// parseBody 按传输策略消费 body 字节
func (k *Kawa) parseBody() (bool, error) {
	switch k.kind.Transfer {
	case TransferLength:
		return k.parseBodyLength()
	case TransferChunked:
		return k.parseBodyChunked()
	default:
		return k.parseBodyUntilEOF()
	}
}

// parseBodyLength 固定长度 body 每次吐出 min(remain, available) 的单个 Chunk
func (k *Kawa) parseBodyLength() (bool, error) {
	avail := k.storage.Filled() - k.cursor
	take := int(k.state.bodyRemain)
	if avail < take {
		take = avail
	}
	if take > 0 {
		k.append(ChunkBlock(NewSlice(k.cursor, take)))
		k.cursor += take
		k.state.bodyRemain -= uint64(take)
	}
	if k.state.bodyRemain == 0 {
		k.append(FlagsBlock(Flags{EndBody: true, EndStream: true}))
		k.phase = PhaseTerminated
		return false, nil
	}
	return true, nil
}

// parseBodyUntilEOF 来多少吐多少 终结依赖调用方的 ParseEOF
func (k *Kawa) parseBodyUntilEOF() (bool, error) {
	avail := k.storage.Filled() - k.cursor
	if avail > 0 {
		k.append(ChunkBlock(NewSlice(k.cursor, avail)))
		k.cursor += avail
	}
	return true, nil
}

// parseBodyChunked chunk-size 行 chunk 数据 结尾 CRLF 三态循环
//
// chunk 扩展在 `;` 之后整体跳过 不进入 Block 流
func (k *Kawa) parseBodyChunked() (bool, error) {
	switch k.state.step {
	case stepLine:
		start, end, ok, err := k.peekLine()
		if err != nil {
			return true, k.fail(err)
		}
		if !ok {
			return true, nil
		}

		line := k.storage.Bytes(start, end-start)
		hexLen := 0
		for hexLen < len(line) && isHexDigit(line[hexLen]) {
			hexLen++
		}
		if hexLen == 0 || (hexLen < len(line) && line[hexLen] != ';') {
			return true, k.fail(ErrBadChunkSize)
		}
		size, ok := parseHexUint(line[:hexLen])
		if !ok {
			return true, k.fail(ErrBadChunkSize)
		}

		k.cursor = end + 2
		if size == 0 {
			k.append(FlagsBlock(Flags{EndBody: true}))
			k.phase = PhaseTrailers
			return false, nil
		}
		k.append(ChunkHeaderBlock(NewSlice(start, hexLen)))
		k.state.chunkRemain = size
		k.state.step = stepChunkData
		return false, nil

	case stepChunkData:
		avail := k.storage.Filled() - k.cursor
		take := int(k.state.chunkRemain)
		if avail < take {
			take = avail
		}
		if take > 0 {
			k.append(ChunkBlock(NewSlice(k.cursor, take)))
			k.cursor += take
			k.state.chunkRemain -= uint64(take)
		}
		if k.state.chunkRemain > 0 {
			return true, nil
		}
		k.state.step = stepChunkCRLF
		return false, nil

	default: // stepChunkCRLF
		if k.storage.Filled()-k.cursor < 2 {
			return true, nil
		}
		if !bytes.Equal(k.storage.Bytes(k.cursor, 2), charCRLF) {
			return true, k.fail(ErrBadChunkTrailer)
		}
		k.cursor += 2
		k.append(FlagsBlock(Flags{EndChunk: true}))
		k.state.step = stepLine
		return false, nil
	}
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// parseTrailerLine trailer 形同 header 空行终结整条消息
func (k *Kawa) parseTrailerLine() (bool, error) {
	start, end, ok, err := k.peekLine()
	if err != nil {
		return true, k.fail(err)
	}
	if !ok {
		return true, nil
	}

	if start == end {
		k.cursor = end + 2
		k.append(FlagsBlock(Flags{EndHeader: true, EndStream: true}))
		k.phase = PhaseTerminated
		return false, nil
	}

	line := k.storage.Bytes(start, end-start)
	if err := k.parseHeaderField(line, start, false); err != nil {
		return true, k.fail(err)
	}
	k.cursor = end + 2
	return false, nil
}
