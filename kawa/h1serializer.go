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

// HTTP/1 序列化器
//
// 每个 Block 确定性地展开成一串 Store 追加进 gather-list
// Flags Block 让流自描述 序列化过程无需回看协议状态
// 唯一的例外是 end_body 是否展开成 `0\r\n` 取决于消息是否 chunked

func (k *Kawa) emit(s Store) {
	if s.Len() == 0 {
		return
	}
	k.out = append(k.out, s)
}

func (k *Kawa) emitStatic(p []byte) {
	k.out = append(k.out, NewStatic(p))
}

func versionStatic(v Version) []byte {
	if v == V10 {
		return charHTTP10
	}
	return charHTTP11
}

// serializeBlock 将单个 Block 展开进 gather-list
func (k *Kawa) serializeBlock(blk *Block) {
	switch blk.Kind {
	case BlockStatusLine:
		k.serializeStatusLine(&blk.StatusLine)

	case BlockHeader:
		k.emit(blk.Key)
		k.emitStatic(charColonSP)
		k.emit(blk.Val)
		k.emitStatic(charCRLF)

	case BlockCookies:
		k.serializeCookies(blk.Pairs)

	case BlockChunkHeader:
		k.emit(blk.SizeText)
		k.emitStatic(charCRLF)

	case BlockChunk:
		k.emit(blk.Data)

	case BlockFlags:
		if blk.Flags.EndChunk {
			k.emitStatic(charCRLF)
		}
		if blk.Flags.EndBody && k.kind.Transfer == TransferChunked {
			k.emitStatic(charLastChunk)
		}
		if blk.Flags.EndHeader {
			k.emitStatic(charCRLF)
		}
	}
}

func (k *Kawa) serializeStatusLine(sl *StatusLine) {
	if sl.IsRequest {
		k.emit(sl.Method)
		k.emitStatic(charSP)
		k.emit(sl.URI)
		k.emitStatic(charSP)
		k.emitStatic(versionStatic(sl.Version))
		k.emitStatic(charCRLF)
		return
	}

	k.emitStatic(versionStatic(sl.Version))
	k.emitStatic(charSP)
	k.emit(sl.Code)
	// Empty 变体代表输入中状态码后直接结行 不回写 SP
	if sl.Reason.Kind() != StoreEmpty {
		k.emitStatic(charSP)
		k.emit(sl.Reason)
	}
	k.emitStatic(charCRLF)
}

// serializeCookies 以规范形式回写 `Cookie: k=v; k=v`
func (k *Kawa) serializeCookies(pairs []Pair) {
	k.emitStatic(charCookie)
	k.emitStatic(charColonSP)
	for i := range pairs {
		if i > 0 {
			k.emitStatic(charCookieSep)
		}
		k.emit(pairs[i].Key)
		if pairs[i].Val.Kind() != StoreEmpty {
			k.emitStatic(charEq)
			k.emit(pairs[i].Val)
		}
	}
	k.emitStatic(charCRLF)
}
