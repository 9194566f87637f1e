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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/packetd/kawa/buffer"
	"github.com/packetd/kawa/common"
)

const chunkedResponse = "HTTP/1.1 200 OK\r\n" +
	"Transfer-Encoding: chunked\r\n" +
	"Connection: Keep-Alive\r\n" +
	"Trailer: Foo\r\n" +
	"User-Agent: curl/7.43.0\r\n" +
	"\r\n" +
	"4\r\n" +
	"Wiki\r\n" +
	"5\r\n" +
	"pedia\r\n" +
	"0\r\n" +
	"Foo: bar\r\n" +
	"\r\n"

func newKawa(t *testing.T, role Role, capacity int, input string) *Kawa {
	t.Helper()
	buf := buffer.New(capacity)
	assert.Equal(t, len(input), buf.Append([]byte(input)))
	return New(buf, role, common.NewOptions())
}

func blockKinds(k *Kawa) []BlockKind {
	kinds := make([]BlockKind, 0, k.Len())
	for i := 0; i < k.Len(); i++ {
		kinds = append(kinds, k.Block(i).Kind)
	}
	return kinds
}

func storeText(k *Kawa, s Store) string {
	return string(s.Data(k.Storage()))
}

func TestParseChunkedResponse(t *testing.T) {
	k := newKawa(t, RoleResponse, 1024, chunkedResponse)
	assert.NoError(t, k.Parse())
	assert.True(t, k.Terminated())
	assert.Equal(t, TransferChunked, k.Kind().Transfer)

	assert.Equal(t, []BlockKind{
		BlockStatusLine,
		BlockHeader, BlockHeader, BlockHeader, BlockHeader,
		BlockFlags,
		BlockChunkHeader, BlockChunk, BlockFlags,
		BlockChunkHeader, BlockChunk, BlockFlags,
		BlockFlags,
		BlockHeader,
		BlockFlags,
	}, blockKinds(k))

	sl := k.Block(0).StatusLine
	assert.False(t, sl.IsRequest)
	assert.Equal(t, V11, sl.Version)
	assert.Equal(t, "200", storeText(k, sl.Code))
	assert.Equal(t, "OK", storeText(k, sl.Reason))

	assert.Equal(t, "Transfer-Encoding", storeText(k, k.Block(1).Key))
	assert.Equal(t, "chunked", storeText(k, k.Block(1).Val))
	assert.Equal(t, "Connection", storeText(k, k.Block(2).Key))
	assert.Equal(t, "Keep-Alive", storeText(k, k.Block(2).Val))

	assert.Equal(t, Flags{EndHeader: true}, k.Block(5).Flags)
	assert.Equal(t, "4", storeText(k, k.Block(6).SizeText))
	assert.Equal(t, "Wiki", storeText(k, k.Block(7).Data))
	assert.Equal(t, Flags{EndChunk: true}, k.Block(8).Flags)
	assert.Equal(t, "5", storeText(k, k.Block(9).SizeText))
	assert.Equal(t, "pedia", storeText(k, k.Block(10).Data))
	assert.Equal(t, Flags{EndBody: true}, k.Block(12).Flags)
	assert.Equal(t, "Foo", storeText(k, k.Block(13).Key))
	assert.Equal(t, "bar", storeText(k, k.Block(13).Val))
	assert.Equal(t, Flags{EndHeader: true, EndStream: true}, k.Block(14).Flags)
}

func TestParseFragmented(t *testing.T) {
	buf := buffer.New(1024)
	k := New(buf, RoleResponse, common.NewOptions())

	// 逐字节喂入 每个 chunk 的数据可能被拆成多个 Chunk Block
	for i := 0; i < len(chunkedResponse); i++ {
		buf.Append([]byte{chunkedResponse[i]})
		assert.NoError(t, k.Parse())
	}
	assert.True(t, k.Terminated())

	var chunks []string
	var text string
	for i := 0; i < k.Len(); i++ {
		blk := k.Block(i)
		switch blk.Kind {
		case BlockChunk:
			text += storeText(k, blk.Data)
		case BlockFlags:
			if blk.Flags.EndChunk {
				chunks = append(chunks, text)
				text = ""
			}
		}
	}
	assert.Equal(t, []string{"Wiki", "pedia"}, chunks)
}

func TestParseRequest(t *testing.T) {
	input := "POST /search?q=golang HTTP/1.1\r\n" +
		"Host: www.example.com\r\n" +
		"Content-Length: 5\r\n" +
		"\r\n" +
		"hello"

	k := newKawa(t, RoleRequest, 1024, input)
	assert.NoError(t, k.Parse())
	assert.True(t, k.Terminated())
	assert.Equal(t, Kind{Transfer: TransferLength, Length: 5}, k.Kind())

	sl := k.Block(0).StatusLine
	assert.True(t, sl.IsRequest)
	assert.Equal(t, "POST", storeText(k, sl.Method))
	assert.Equal(t, "/search?q=golang", storeText(k, sl.URI))
	assert.Equal(t, StoreEmpty, sl.Authority.Kind())
	assert.Equal(t, "/search?q=golang", storeText(k, sl.Path))

	last := k.Block(k.Len() - 1)
	assert.Equal(t, Flags{EndBody: true, EndStream: true}, last.Flags)
	assert.Equal(t, "hello", storeText(k, k.Block(k.Len()-2).Data))
}

func TestParseAbsoluteURI(t *testing.T) {
	input := "GET http://www.example.com/index.html HTTP/1.1\r\n\r\n"
	k := newKawa(t, RoleRequest, 1024, input)
	assert.NoError(t, k.Parse())

	sl := k.Block(0).StatusLine
	assert.Equal(t, "http://www.example.com/index.html", storeText(k, sl.URI))
	assert.Equal(t, "www.example.com", storeText(k, sl.Authority))
	assert.Equal(t, "/index.html", storeText(k, sl.Path))
}

func TestParseNoBodyRequest(t *testing.T) {
	input := "GET /index.html HTTP/1.1\r\nHost: www.example.com\r\n\r\n"
	k := newKawa(t, RoleRequest, 1024, input)
	assert.NoError(t, k.Parse())
	assert.True(t, k.Terminated())
	assert.Equal(t, Kind{Transfer: TransferLength}, k.Kind())

	last := k.Block(k.Len() - 1)
	assert.Equal(t, Flags{EndHeader: true, EndStream: true}, last.Flags)
}

func TestParseNoBodyStatus(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "204", input: "HTTP/1.1 204 No Content\r\n\r\n"},
		{name: "304", input: "HTTP/1.1 304 Not Modified\r\n\r\n"},
		{name: "100", input: "HTTP/1.1 100 Continue\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newKawa(t, RoleResponse, 1024, tt.input)
			assert.NoError(t, k.Parse())
			assert.True(t, k.Terminated())
			assert.Equal(t, Kind{Transfer: TransferLength}, k.Kind())
		})
	}
}

func TestParseUntilEOF(t *testing.T) {
	input := "HTTP/1.1 200 OK\r\nServer: Apache/2.4.1 (Unix)\r\n\r\nhello world"
	k := newKawa(t, RoleResponse, 1024, input)
	assert.NoError(t, k.Parse())
	assert.False(t, k.Terminated())
	assert.Equal(t, TransferUntilEOF, k.Kind().Transfer)

	assert.NoError(t, k.ParseEOF())
	assert.True(t, k.Terminated())

	last := k.Block(k.Len() - 1)
	assert.Equal(t, Flags{EndBody: true, EndStream: true}, last.Flags)
	assert.Equal(t, "hello world", storeText(k, k.Block(k.Len()-2).Data))
}

func TestParseEmptyReason(t *testing.T) {
	// 状态码后直接结行与 SP 加空 Reason 都要接受 且序列化保真
	tests := []struct {
		name  string
		input string
	}{
		{name: "no sp", input: "HTTP/1.1 404\r\nContent-Length: 0\r\n\r\n"},
		{name: "sp empty reason", input: "HTTP/1.1 404 \r\nContent-Length: 0\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newKawa(t, RoleResponse, 1024, tt.input)
			assert.NoError(t, k.Parse())
			assert.True(t, k.Terminated())

			k.Prepare()
			assert.Equal(t, tt.input, flatten(k))
		})
	}
}

func TestParseIdempotentOnEmptyInput(t *testing.T) {
	k := newKawa(t, RoleResponse, 1024, "HTTP/1.1 200 OK\r\n")
	assert.NoError(t, k.Parse())
	n := k.Len()
	assert.NoError(t, k.Parse())
	assert.Equal(t, n, k.Len())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		role  Role
		input string
		err   error
	}{
		{
			name:  "bad version",
			role:  RoleRequest,
			input: "GET / HTTP/2.2\r\n\r\n",
			err:   ErrMalformedStartLine,
		},
		{
			name:  "missing sp",
			role:  RoleRequest,
			input: "GET/index.html\r\n\r\n",
			err:   ErrMalformedStartLine,
		},
		{
			name:  "non digit status",
			role:  RoleResponse,
			input: "HTTP/1.1 20x OK\r\n\r\n",
			err:   ErrMalformedStartLine,
		},
		{
			name:  "short status",
			role:  RoleResponse,
			input: "HTTP/1.1 20\r\n\r\n",
			err:   ErrMalformedStartLine,
		},
		{
			name:  "obsolete line folding",
			role:  RoleResponse,
			input: "HTTP/1.1 200 OK\r\nFoo: bar\r\n folded\r\n\r\n",
			err:   ErrMalformedHeader,
		},
		{
			name:  "missing colon",
			role:  RoleResponse,
			input: "HTTP/1.1 200 OK\r\nFoo bar\r\n\r\n",
			err:   ErrMalformedHeader,
		},
		{
			name:  "bad token in name",
			role:  RoleResponse,
			input: "HTTP/1.1 200 OK\r\nFo o: bar\r\n\r\n",
			err:   ErrMalformedHeader,
		},
		{
			name:  "bare lf",
			role:  RoleResponse,
			input: "HTTP/1.1 200 OK\r\nFoo: bar\n\r\n",
			err:   ErrMalformedHeader,
		},
		{
			name:  "bad content length",
			role:  RoleResponse,
			input: "HTTP/1.1 200 OK\r\nContent-Length: 12a\r\n\r\n",
			err:   ErrMalformedHeader,
		},
		{
			name:  "conflicting content length",
			role:  RoleResponse,
			input: "HTTP/1.1 200 OK\r\nContent-Length: 10\r\nContent-Length: 11\r\n\r\n",
			err:   ErrConflictingLength,
		},
		{
			name:  "request chunked with content length",
			role:  RoleRequest,
			input: "POST / HTTP/1.1\r\nContent-Length: 10\r\nTransfer-Encoding: chunked\r\n\r\n",
			err:   ErrConflictingLength,
		},
		{
			name:  "bad chunk size",
			role:  RoleResponse,
			input: "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\nzz\r\n",
			err:   ErrBadChunkSize,
		},
		{
			name:  "chunk size too large",
			role:  RoleResponse,
			input: "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n123456789012345678\r\n",
			err:   ErrBadChunkSize,
		},
		{
			name:  "bad chunk trailer",
			role:  RoleResponse,
			input: "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nWikiXX",
			err:   ErrBadChunkTrailer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newKawa(t, tt.role, 1024, tt.input)
			err := k.Parse()
			assert.Error(t, err)
			assert.True(t, errors.Is(err, tt.err))
			assert.Equal(t, PhaseError, k.Phase())
			assert.Equal(t, tt.err, errors.Cause(k.Err()))

			// 错误之后即便继续喂入也不再产出 Block
			n := k.Len()
			k.Storage().Append([]byte("more bytes"))
			assert.Error(t, k.Parse())
			assert.Equal(t, n, k.Len())
		})
	}
}

func TestParseConflictingLengthNoBodyBlocks(t *testing.T) {
	input := "POST / HTTP/1.1\r\nContent-Length: 10\r\nTransfer-Encoding: chunked\r\n\r\n0123456789"
	k := newKawa(t, RoleRequest, 1024, input)

	err := k.Parse()
	assert.True(t, errors.Is(err, ErrConflictingLength))
	for i := 0; i < k.Len(); i++ {
		assert.NotEqual(t, BlockChunk, k.Block(i).Kind)
		assert.NotEqual(t, BlockFlags, k.Block(i).Kind)
	}
}

func TestParseEOFMidMessage(t *testing.T) {
	input := "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nhello"
	k := newKawa(t, RoleRequest, 1024, input)
	assert.NoError(t, k.Parse())
	assert.False(t, k.Terminated())

	err := k.ParseEOF()
	assert.True(t, errors.Is(err, ErrUnexpectedEOF))
	assert.Equal(t, PhaseError, k.Phase())
}

func TestParseBufferFull(t *testing.T) {
	// 单个 token 超出容量 且行首位于偏移 0 无法通过 Shift 腾挪
	k := newKawa(t, RoleRequest, 16, "GET /aaaaaaaaaaa")
	err := k.Parse()
	assert.True(t, errors.Is(err, ErrBufferFull))
}

func TestParseTransferEncodingNotLastChunked(t *testing.T) {
	// 列表末元素不是 chunked 时不进入 chunked 模式
	input := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked, gzip\r\n\r\nraw"
	k := newKawa(t, RoleResponse, 1024, input)
	assert.NoError(t, k.Parse())
	assert.Equal(t, TransferUntilEOF, k.Kind().Transfer)
}

func TestParseDuplicateHeadersPreserved(t *testing.T) {
	input := "HTTP/1.1 200 OK\r\nVia: a\r\nVia: b\r\nContent-Length: 0\r\n\r\n"
	k := newKawa(t, RoleResponse, 1024, input)
	assert.NoError(t, k.Parse())

	var vals []string
	for i := 0; i < k.Len(); i++ {
		blk := k.Block(i)
		if blk.Kind == BlockHeader && storeText(k, blk.Key) == "Via" {
			vals = append(vals, storeText(k, blk.Val))
		}
	}
	assert.Equal(t, []string{"a", "b"}, vals)
}

func TestParseSplitCookies(t *testing.T) {
	opts := common.NewOptions()
	opts.Merge("splitCookies", true)

	input := "GET / HTTP/1.1\r\nCookie: name=value; lang=en; flag\r\n\r\n"
	buf := buffer.New(1024)
	buf.Append([]byte(input))
	k := New(buf, RoleRequest, opts)
	assert.NoError(t, k.Parse())

	var cookies *Block
	for i := 0; i < k.Len(); i++ {
		if k.Block(i).Kind == BlockCookies {
			cookies = k.Block(i)
		}
	}
	assert.NotNil(t, cookies)
	assert.Len(t, cookies.Pairs, 3)
	assert.Equal(t, "name", storeText(k, cookies.Pairs[0].Key))
	assert.Equal(t, "value", storeText(k, cookies.Pairs[0].Val))
	assert.Equal(t, "lang", storeText(k, cookies.Pairs[1].Key))
	assert.Equal(t, "en", storeText(k, cookies.Pairs[1].Val))
	assert.Equal(t, "flag", storeText(k, cookies.Pairs[2].Key))
	assert.Equal(t, StoreEmpty, cookies.Pairs[2].Val.Kind())

	// 规范形式的 cookie 行序列化保真
	k.Prepare()
	assert.Equal(t, input, flatten(k))
}
